// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package vradapter

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// PlaceholderSVG handles GET /thumb/:id.svg: a lightweight stand-in image
// for titles whose real thumbnail is missing or failed to generate
// (?err=1 renders the failure variant). Headsets always need some image,
// so this endpoint never errors.
func PlaceholderSVG(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(chi.URLParam(r, "id"), ".svg")
	label := "no thumbnail"
	fill := "#2b2f36"
	if r.URL.Query().Get("err") == "1" {
		label = "thumbnail failed"
		fill = "#4a2b2b"
	}

	// Deterministic accent hue per id keeps tiles distinguishable.
	hue := NumericID(id) % 360

	w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="640" height="360" viewBox="0 0 640 360">`+
		`<rect width="640" height="360" fill="%s"/>`+
		`<circle cx="320" cy="150" r="48" fill="hsl(%d,40%%,55%%)"/>`+
		`<text x="320" y="260" font-family="sans-serif" font-size="24" fill="#c7ccd4" text-anchor="middle">%s</text>`+
		`</svg>`, fill, hue, label)
}
