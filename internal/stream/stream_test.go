// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package stream

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabriel20xx/MediaViewer/internal/heartbeat"
	"github.com/gabriel20xx/MediaViewer/internal/models"
	"github.com/gabriel20xx/MediaViewer/internal/session"
)

func newTestEngine(t *testing.T, content []byte) (*Engine, *models.MediaItem) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "clip.mp4"), content, 0o600))

	engine := NewEngine(root, nil, nil, "deovr")
	item := &models.MediaItem{
		ID:        "abc",
		RelPath:   "clip.mp4",
		Filename:  "clip.mp4",
		Ext:       "mp4",
		MediaType: models.MediaTypeVideo,
	}
	return engine, item
}

func serve(engine *Engine, item *models.MediaItem, method, rangeHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/media/abc/stream", nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	engine.ServeMedia(rec, req, item)
	return rec
}

func TestServeMediaFullFile(t *testing.T) {
	t.Parallel()
	content := []byte("0123456789")
	engine, item := newTestEngine(t, content)

	rec := serve(engine, item, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "inline", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
	assert.Equal(t, string(content), rec.Body.String())
}

func TestServeMediaPartialRange(t *testing.T) {
	t.Parallel()
	engine, item := newTestEngine(t, []byte("0123456789"))

	rec := serve(engine, item, http.MethodGet, "bytes=2-5")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))
	assert.Equal(t, "2345", rec.Body.String())
}

func TestServeMediaRangeInvariants(t *testing.T) {
	t.Parallel()
	size := 10
	engine, item := newTestEngine(t, []byte("0123456789"))

	// bytes=0-(n-1) covers the whole file with Content-Length n.
	rec := serve(engine, item, http.MethodGet, fmt.Sprintf("bytes=0-%d", size-1))
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, fmt.Sprintf("%d", size), rec.Header().Get("Content-Length"))

	// bytes=n-n starts past the end: unsatisfiable.
	rec = serve(engine, item, http.MethodGet, fmt.Sprintf("bytes=%d-%d", size, size))
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Equal(t, fmt.Sprintf("bytes */%d", size), rec.Header().Get("Content-Range"))

	// Open-ended bytes=0- is the whole file.
	rec = serve(engine, item, http.MethodGet, "bytes=0-")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, fmt.Sprintf("bytes 0-%d/%d", size-1, size), rec.Header().Get("Content-Range"))
	assert.Equal(t, "0123456789", rec.Body.String())
}

func TestServeMediaRangeClampsEnd(t *testing.T) {
	t.Parallel()
	engine, item := newTestEngine(t, []byte("0123456789"))

	rec := serve(engine, item, http.MethodGet, "bytes=8-99")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 8-9/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, "89", rec.Body.String())
}

func TestServeMediaMalformedRangeFallsBack(t *testing.T) {
	t.Parallel()
	engine, item := newTestEngine(t, []byte("0123456789"))

	for _, header := range []string{"bytes=abc-", "lines=0-5", "bytes=0-2,4-6"} {
		rec := serve(engine, item, http.MethodGet, header)
		assert.Equal(t, http.StatusOK, rec.Code, "header %q", header)
		assert.Equal(t, "0123456789", rec.Body.String())
	}
}

func TestServeMediaHead(t *testing.T) {
	t.Parallel()
	engine, item := newTestEngine(t, []byte("0123456789"))

	rec := serve(engine, item, http.MethodHead, "bytes=0-3")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.String())
}

func TestServeMediaMissingFile(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t, []byte("x"))

	rec := serve(engine, &models.MediaItem{RelPath: "nope.mp4", Ext: "mp4"}, http.MethodGet, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContentTypeFallsBackToSniffing(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	// PNG magic bytes under an unknown extension.
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	require.NoError(t, os.WriteFile(filepath.Join(root, "mystery.bin"), png, 0o600))

	engine := NewEngine(root, nil, nil, "deovr")
	item := &models.MediaItem{ID: "m", RelPath: "mystery.bin", Ext: "bin", MediaType: models.MediaTypeImage}

	rec := serve(engine, item, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestVRProbeRequestsDoNotTouchPlayback(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "clip.mp4"), []byte("0123456789"), 0o600))
	store := session.NewStore()
	engine := NewEngine(root, nil, heartbeat.New(store, nil), "deovr")
	item := &models.MediaItem{ID: "abc", RelPath: "clip.mp4", Filename: "clip.mp4", Ext: "mp4", MediaType: models.MediaTypeVideo}

	vrRequest := func(method, rangeHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/media/abc/stream", nil)
		req.Header.Set("User-Agent", "DeoVR/2.4 (Quest)")
		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}
		rec := httptest.NewRecorder()
		engine.ServeMedia(rec, req, item)
		return rec
	}

	// An unsatisfiable range moves no bytes and must not announce playback.
	rec := vrRequest(http.MethodGet, "bytes=99-")
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Nil(t, store.GetSession(session.DefaultSessionID).MediaID)

	// Neither does a HEAD probe.
	rec = vrRequest(http.MethodHead, "bytes=0-3")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Nil(t, store.GetSession(session.DefaultSessionID).MediaID)

	// A real ranged GET does.
	rec = vrRequest(http.MethodGet, "bytes=0-3")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	st := store.GetSession(session.DefaultSessionID)
	require.NotNil(t, st.MediaID)
	assert.Equal(t, "abc", *st.MediaID)
	assert.False(t, st.Paused)
}

func TestIsVRPlayer(t *testing.T) {
	t.Parallel()
	engine := NewEngine(t.TempDir(), nil, nil, "deovr")

	tests := []struct {
		name   string
		url    string
		ua     string
		expect bool
	}{
		{"deovr user agent", "/s", "DeoVR/2.4 (Quest)", true},
		{"desktop browser", "/s", "Mozilla/5.0", false},
		{"explicit deovr marker", "/s?mvFrom=deovr", "Mozilla/5.0", true},
		{"desktop opt-out wins", "/s?mvFrom=desktop", "DeoVR/2.4", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			req.Header.Set("User-Agent", tt.ua)
			assert.Equal(t, tt.expect, engine.isVRPlayer(req))
		})
	}
}

func TestParseRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		start  int64
		end    int64
		full   bool
		not416 bool
	}{
		{"", 0, 0, true, true},
		{"bytes=0-4", 0, 4, false, true},
		{"bytes=5-", 5, 9, false, true},
		{"bytes=5-100", 5, 9, false, true},
		{"bytes=10-10", 0, 0, false, false},
		{"bytes=4-2", 0, 0, false, false},
		{"bytes=-5", 0, 0, true, true},
		{"bytes=1-2,3-4", 0, 0, true, true},
		{"items=0-4", 0, 0, true, true},
	}
	for _, tt := range tests {
		rng, ok := parseRange(tt.header, 10)
		assert.Equal(t, tt.not416, ok, "header %q", tt.header)
		if !tt.not416 {
			assert.Nil(t, rng, "header %q", tt.header)
			continue
		}
		if tt.full {
			assert.Nil(t, rng, "header %q", tt.header)
		} else {
			require.NotNil(t, rng, "header %q", tt.header)
			assert.Equal(t, tt.start, rng.start, "header %q", tt.header)
			assert.Equal(t, tt.end, rng.end, "header %q", tt.header)
		}
	}
}

func TestRemoteIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4321"
	assert.Equal(t, "192.168.1.5", remoteIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", remoteIP(req))
}
