// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package vradapter

import (
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gabriel20xx/MediaViewer/internal/logging"
	"github.com/gabriel20xx/MediaViewer/internal/models"
)

// DeoVR wire shapes. Field names (including the snake_case video_url) are
// fixed by the player.
type deovrLibrary struct {
	Authorized string       `json:"authorized"`
	Scenes     []deovrScene `json:"scenes"`
}

type deovrScene struct {
	Name string           `json:"name"`
	List []deovrSceneItem `json:"list"`
}

type deovrSceneItem struct {
	Title        string `json:"title"`
	VideoLength  int    `json:"videoLength"`
	ThumbnailURL string `json:"thumbnailUrl"`
	VideoURL     string `json:"video_url"`
}

type deovrVideo struct {
	ID           int             `json:"id"`
	Title        string          `json:"title"`
	VideoLength  int             `json:"videoLength"`
	Is3D         bool            `json:"is3d"`
	ScreenType   string          `json:"screenType"`
	StereoMode   string          `json:"stereoMode"`
	Encodings    []deovrEncoding `json:"encodings"`
	ThumbnailURL string          `json:"thumbnailUrl"`
}

type deovrEncoding struct {
	Name         string             `json:"name"`
	VideoSources []deovrVideoSource `json:"videoSources"`
}

type deovrVideoSource struct {
	Resolution int    `json:"resolution"`
	URL        string `json:"url"`
}

// DeoVRLibrary handles GET|POST /deovr: the top-level scene listing.
func (h *Handler) DeoVRLibrary(w http.ResponseWriter, r *http.Request) {
	items, err := h.db.ListVRItems(r.Context(), libraryLimit)
	if err != nil {
		logging.Error().Err(err).Msg("deovr library query failed")
		http.Error(w, "library unavailable", http.StatusInternalServerError)
		return
	}

	base := baseURL(r)
	list := make([]deovrSceneItem, 0, len(items))
	for i := range items {
		item := &items[i]
		list = append(list, deovrSceneItem{
			Title:        item.Title,
			VideoLength:  0,
			ThumbnailURL: fmt.Sprintf("%s/api/media/%s/thumb", base, item.ID),
			VideoURL:     fmt.Sprintf("%s/deovr/video/%s", base, item.ID),
		})
	}

	writeJSON(w, deovrLibrary{
		Authorized: "0",
		Scenes:     []deovrScene{{Name: "Library", List: list}},
	})
}

// DeoVRVideo handles GET|POST /deovr/video/:id: per-title detail. Opening
// a title in the player hits this endpoint, so it doubles as the playback
// hint; the heartbeat inferrer refines position once bytes flow.
func (h *Handler) DeoVRVideo(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "id")
	item, err := h.db.GetMediaItem(r.Context(), mediaID)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	base := baseURL(r)
	seconds := 0
	if item.DurationMs != nil {
		seconds = int(math.Round(float64(*item.DurationMs) / 1000))
	}

	screenType := "sphere"
	if fovOf(item) == 180 {
		screenType = "dome"
	}

	stereoMode := stereoOf(item)
	if stereoMode == models.StereoMono {
		stereoMode = "off"
	}

	h.publishHint(item.ID, 0, false, 0, "vr:deovr")

	writeJSON(w, deovrVideo{
		ID:          NumericID(item.ID),
		Title:       item.Title,
		VideoLength: seconds,
		Is3D:        true,
		ScreenType:  screenType,
		StereoMode:  stereoMode,
		Encodings: []deovrEncoding{{
			Name: "h264",
			VideoSources: []deovrVideoSource{{
				Resolution: 1080,
				URL:        fmt.Sprintf("%s/api/media/%s/stream", base, item.ID),
			}},
		}},
		ThumbnailURL: fmt.Sprintf("%s/api/media/%s/thumb", base, item.ID),
	})
}
