// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/gabriel20xx/MediaViewer/internal/models"
	"github.com/gabriel20xx/MediaViewer/internal/session"
	"github.com/gabriel20xx/MediaViewer/internal/validation"
)

// syncPutRequest is the PUT /api/sync body. mediaId distinguishes explicit
// null from absent; both clear the media binding.
type syncPutRequest struct {
	SessionID string                `json:"sessionId"`
	ClientID  string                `json:"clientId" validate:"required"`
	MediaID   models.NullableString `json:"mediaId"`
	TimeMs    float64               `json:"timeMs"`
	Paused    bool                  `json:"paused"`
	FPS       float64               `json:"fps"`
	Frame     int64                 `json:"frame"`
}

// playbackPutRequest is the PUT /api/playback body: a per-viewer resume
// cursor, invisible to the broadcast protocol.
type playbackPutRequest struct {
	ClientID string  `json:"clientId" validate:"required"`
	MediaID  string  `json:"mediaId" validate:"required"`
	TimeMs   float64 `json:"timeMs"`
	FPS      float64 `json:"fps"`
	Frame    int64   `json:"frame"`
}

// SyncGet handles GET /api/sync?sessionId=…: the raw session snapshot,
// ephemerals included. Unknown sessions return the paused default.
func (h *Handler) SyncGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	writeRaw(w, http.StatusOK, h.store.SessionWithEphemerals(sessionID))
}

// SyncPut handles PUT /api/sync: commits an update through the same path
// as WebSocket sync:update and broadcasts, returning the stored state.
func (h *Handler) SyncPut(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req syncPutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("malformed JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	st, err := h.store.UpsertSession(session.Update{
		SessionID:    req.SessionID,
		MediaID:      req.MediaID.Value,
		TimeMs:       req.TimeMs,
		Paused:       req.Paused,
		FPS:          req.FPS,
		Frame:        req.Frame,
		FromClientID: req.ClientID,
	})
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	// HTTP commits never carry a coordinated start.
	h.store.ClearPlayAt(st.SessionID)
	h.hub.BroadcastState(st.SessionID)

	writeRaw(w, http.StatusOK, st)
}

// PlaybackPut handles PUT /api/playback.
func (h *Handler) PlaybackPut(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req playbackPutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("malformed JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	cursor, err := h.store.UpsertPlayback(req.ClientID, req.MediaID, req.TimeMs, req.FPS, req.Frame)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	writeRaw(w, http.StatusOK, cursor)
}

// PlaybackGet handles GET /api/playback?clientId=…&mediaId=….
func (h *Handler) PlaybackGet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	clientID := r.URL.Query().Get("clientId")
	mediaID := r.URL.Query().Get("mediaId")
	if clientID == "" || mediaID == "" {
		rw.BadRequest("clientId and mediaId are required")
		return
	}

	cursor, ok := h.store.GetPlayback(clientID, mediaID)
	if !ok {
		rw.NotFound("no playback cursor for this client and media")
		return
	}
	writeRaw(w, http.StatusOK, cursor)
}
