// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package vradapter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderSVG(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/thumb/{id}", PlaceholderSVG)

	req := httptest.NewRequest(http.MethodGet, "/thumb/abc123.svg", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "<svg"))

	// The same id always renders the same artwork.
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/thumb/abc123.svg", nil))
	assert.Equal(t, rec.Body.String(), rec2.Body.String())

	// The error variant is visibly distinct.
	rec3 := httptest.NewRecorder()
	r.ServeHTTP(rec3, httptest.NewRequest(http.MethodGet, "/thumb/abc123.svg?err=1", nil))
	require.Equal(t, http.StatusOK, rec3.Code)
	assert.NotEqual(t, rec.Body.String(), rec3.Body.String())
}
