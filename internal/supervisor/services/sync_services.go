// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package services

import (
	"context"
)

// ContextRunner matches components exposing a context-aware run loop:
// the WebSocket hub (RunWithContext) and the heartbeat inferrer (Run).
// The interface keeps this package free of those imports.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// WebSocketHubService wraps the WebSocket hub as a supervised service.
//
// The hub's RunWithContext method already implements the suture.Service
// pattern, so this wrapper simply delegates to it and provides a name
// for logging.
type WebSocketHubService struct {
	hub  ContextRunner
	name string
}

// NewWebSocketHubService creates a new WebSocket hub service wrapper.
func NewWebSocketHubService(hub ContextRunner) *WebSocketHubService {
	return &WebSocketHubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service by delegating to the hub's run loop.
// The method returns ctx.Err() on normal shutdown.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	return w.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (w *WebSocketHubService) String() string {
	return w.name
}

// HeartbeatService wraps the DeoVR heartbeat inferrer's tick/sweep loop
// as a supervised service.
type HeartbeatService struct {
	run  func(ctx context.Context) error
	name string
}

// NewHeartbeatService creates the heartbeat service wrapper around the
// inferrer's Run method.
func NewHeartbeatService(run func(ctx context.Context) error) *HeartbeatService {
	return &HeartbeatService{
		run:  run,
		name: "heartbeat-inferrer",
	}
}

// Serve implements suture.Service.
func (h *HeartbeatService) Serve(ctx context.Context) error {
	return h.run(ctx)
}

// String implements fmt.Stringer for logging.
func (h *HeartbeatService) String() string {
	return h.name
}
