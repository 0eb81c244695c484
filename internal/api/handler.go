// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gabriel20xx/MediaViewer/internal/config"
	"github.com/gabriel20xx/MediaViewer/internal/database"
	"github.com/gabriel20xx/MediaViewer/internal/ffmpeg"
	"github.com/gabriel20xx/MediaViewer/internal/logging"
	"github.com/gabriel20xx/MediaViewer/internal/scanner"
	"github.com/gabriel20xx/MediaViewer/internal/session"
	"github.com/gabriel20xx/MediaViewer/internal/stream"
	"github.com/gabriel20xx/MediaViewer/internal/thumbs"
	"github.com/gabriel20xx/MediaViewer/internal/websocket"
)

// Handler carries the dependencies of every API endpoint.
type Handler struct {
	cfg     *config.Config
	db      *database.DB
	store   *session.Store
	hub     *websocket.Hub
	scanner *scanner.Scanner
	engine  *stream.Engine
	thumbs  *thumbs.Generator
	prober  *ffmpeg.Prober
}

// NewHandler wires an API handler.
func NewHandler(
	cfg *config.Config,
	db *database.DB,
	store *session.Store,
	hub *websocket.Hub,
	sc *scanner.Scanner,
	engine *stream.Engine,
	thumbGen *thumbs.Generator,
	prober *ffmpeg.Prober,
) *Handler {
	return &Handler{
		cfg:     cfg,
		db:      db,
		store:   store,
		hub:     hub,
		scanner: sc,
		engine:  engine,
		thumbs:  thumbGen,
		prober:  prober,
	}
}

// Health handles GET /api/health. The shape is fixed: probes and the
// desktop shell check for exactly {"ok":true}.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeRaw(w, http.StatusOK, map[string]bool{"ok": true})
}

// Scan handles POST /api/scan: kicks off a background library rescan, or
// 409 when one is already running.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.scanner.Progress().IsScanning {
		rw.Conflict("scan already in progress")
		return
	}

	go func() {
		// Detached from the request: the scan outlives the response.
		if err := h.scanner.Rescan(context.Background()); err != nil {
			if errors.Is(err, scanner.ErrScanInProgress) {
				return
			}
			logging.Error().Err(err).Msg("background scan failed")
		}
	}()

	rw.Accepted(map[string]bool{"started": true})
}

// ScanProgress handles GET /api/scan/progress with the fixed shape
// {isScanning, scanned, message}.
func (h *Handler) ScanProgress(w http.ResponseWriter, _ *http.Request) {
	writeRaw(w, http.StatusOK, h.scanner.Progress())
}

// CacheClear handles POST /api/cache/clear: drops the thumbnail cache.
func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.thumbs.ClearCache(); err != nil {
		logging.Error().Err(err).Msg("failed to clear thumbnail cache")
		rw.InternalError("failed to clear thumbnail cache")
		return
	}
	rw.Success(map[string]bool{"cleared": true})
}

// WebSocketUpgrade handles GET /ws.
func (h *Handler) WebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r)
}
