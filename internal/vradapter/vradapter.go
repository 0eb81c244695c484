// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package vradapter speaks the DeoVR and HereSphere library dialects.
// Both are strict about shape: field names, header versions, and absolute
// URLs are part of the contract and must not be wrapped in the API
// envelope used elsewhere.
package vradapter

import (
	"hash/fnv"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/gabriel20xx/MediaViewer/internal/database"
	"github.com/gabriel20xx/MediaViewer/internal/logging"
	"github.com/gabriel20xx/MediaViewer/internal/models"
	"github.com/gabriel20xx/MediaViewer/internal/session"
)

// libraryLimit caps VR library listings to the most recent titles; headsets
// choke on unbounded lists.
const libraryLimit = 1000

// Handler serves both VR dialects over the catalog and publishes playback
// hints into the sync store.
type Handler struct {
	db        *database.DB
	store     *session.Store
	broadcast func(sessionID string)
}

// NewHandler creates a VR adapter handler. broadcast may be nil in tests.
func NewHandler(db *database.DB, store *session.Store, broadcast func(sessionID string)) *Handler {
	return &Handler{db: db, store: store, broadcast: broadcast}
}

// NumericID derives the positive 32-bit integer id DeoVR requires from an
// opaque catalog id. FNV-1a with the sign bit cleared: stable across
// restarts, and never negative even for adversarial inputs.
func NumericID(mediaID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(mediaID))
	return int(h.Sum32() & 0x7fffffff)
}

// baseURL reconstructs the absolute URL prefix clients must use, honoring
// reverse-proxy headers so headsets on the LAN get reachable links.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host
}

// fovOf resolves the field of view for a catalog item, falling back to
// filename tokens and finally 360.
func fovOf(item *models.MediaItem) int {
	if item.VRFov != nil {
		return *item.VRFov
	}
	tokens := pathTokens(item.RelPath)
	if tokens["180"] || tokens["vr180"] {
		return 180
	}
	return 360
}

// stereoOf resolves the stereo layout, falling back to filename tokens and
// finally mono.
func stereoOf(item *models.MediaItem) string {
	if item.VRStereo != nil {
		return *item.VRStereo
	}
	tokens := pathTokens(item.RelPath)
	for _, c := range []string{"sbs", "lr", "rl", "3dh"} {
		if tokens[c] {
			return models.StereoSBS
		}
	}
	for _, c := range []string{"tb", "bt", "ou", "overunder", "3dv"} {
		if tokens[c] {
			return models.StereoTB
		}
	}
	return models.StereoMono
}

// pathTokens lowercases and splits a path on non-alphanumeric runes.
func pathTokens(relPath string) map[string]bool {
	tokens := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens[b.String()] = true
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(relPath) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// publishHint commits a playback hint from a VR player and broadcasts it.
// Hints are always playing updates without a coordinated start.
func (h *Handler) publishHint(mediaID string, timeMs float64, paused bool, frame int64, fromClientID string) {
	id := mediaID
	_, err := h.store.UpsertSession(session.Update{
		SessionID:    session.DefaultSessionID,
		MediaID:      &id,
		TimeMs:       timeMs,
		Paused:       paused,
		FPS:          30,
		Frame:        frame,
		FromClientID: fromClientID,
	})
	if err != nil {
		logging.Warn().Err(err).Str("from", fromClientID).Msg("vr hint rejected")
		return
	}
	h.store.ClearPlayAt(session.DefaultSessionID)
	if h.broadcast != nil {
		h.broadcast(session.DefaultSessionID)
	}
}

// writeJSON emits a raw dialect payload (never the API envelope).
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("failed to write vr response")
	}
}
