// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package models

import (
	"github.com/goccy/go-json"
)

// SessionState is the authoritative playback cursor for one session.
//
// The ephemeral fields (PlayAt, PlayAtLocalMs, CapturedAtLocalMs) are not
// part of the stored state proper; the store attaches them to snapshots so
// broadcasts can carry the coordinated-start schedule. PlayAt is cleared
// whenever a paused update commits or a playing update omits it.
type SessionState struct {
	SessionID    string  `json:"sessionId"`
	MediaID      *string `json:"mediaId"`
	TimeMs       float64 `json:"timeMs"`
	Paused       bool    `json:"paused"`
	FPS          float64 `json:"fps"`
	Frame        int64   `json:"frame"`
	FromClientID string  `json:"fromClientId"`
	UpdatedAtMs  int64   `json:"updatedAtMs"`

	// Ephemerals, present only on snapshots taken for broadcast.
	PlayAt            string `json:"playAt,omitempty"`
	PlayAtLocalMs     *int64 `json:"playAtLocalMs,omitempty"`
	CapturedAtLocalMs *int64 `json:"capturedAtLocalMs,omitempty"`
}

// ClientPresence describes one attached client id. A client id may own
// several live sockets; presence exists while at least one socket does.
type ClientPresence struct {
	ClientID      string  `json:"clientId"`
	UserAgent     string  `json:"userAgent,omitempty"`
	IPAddress     string  `json:"ipAddress,omitempty"`
	UIView        string  `json:"uiView,omitempty"`
	UIMediaID     *string `json:"uiMediaId,omitempty"`
	ConnectedAtMs int64   `json:"connectedAtMs"`
}

// PlaybackCursor is a per-viewer resume position, keyed by
// (clientId, mediaId). It never participates in the broadcast protocol.
type PlaybackCursor struct {
	ClientID    string  `json:"clientId"`
	MediaID     string  `json:"mediaId"`
	TimeMs      float64 `json:"timeMs"`
	FPS         float64 `json:"fps"`
	Frame       int64   `json:"frame"`
	UpdatedAtMs int64   `json:"updatedAtMs"`
}

// NullableString distinguishes a JSON field that was explicitly null from
// one that was absent. client:status uses this: mediaId=null clears the
// presence field while an absent mediaId leaves it untouched.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n NullableString) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}
