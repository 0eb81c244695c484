// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package vradapter

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/gabriel20xx/MediaViewer/internal/logging"
)

// jsonVersionHeader must accompany every HereSphere response; the player
// refuses payloads without it.
const jsonVersionHeader = "HereSphere-JSON-Version"

// heresphereFPS is assumed for frame derivation from event timestamps.
const heresphereFPS = 30

type heresphereLibrary struct {
	Access  int                      `json:"access"`
	Library []heresphereLibraryScene `json:"library"`
}

type heresphereLibraryScene struct {
	Name string   `json:"name"`
	List []string `json:"list"`
}

type heresphereVideo struct {
	Access         int                `json:"access"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	ThumbnailImage string             `json:"thumbnailImage"`
	EventServer    string             `json:"eventServer"`
	Duration       int64              `json:"duration"`
	Projection     string             `json:"projection"`
	Stereo         string             `json:"stereo"`
	Fov            int                `json:"fov"`
	Scripts        []heresphereScript `json:"scripts,omitempty"`
	Media          []heresphereMedia  `json:"media"`
}

type heresphereScript struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type heresphereMedia struct {
	Name    string             `json:"name"`
	Sources []heresphereSource `json:"sources"`
}

type heresphereSource struct {
	Resolution int    `json:"resolution"`
	URL        string `json:"url"`
}

type heresphereEvent struct {
	ID            string  `json:"id"`
	Time          float64 `json:"time"`
	Event         int     `json:"event"`
	ConnectionKey string  `json:"connectionKey"`
}

type heresphereAuth struct {
	Access    int    `json:"access"`
	AuthToken string `json:"auth-token"`
}

type heresphereScan struct {
	ScanData []heresphereScanItem `json:"scanData"`
}

type heresphereScanItem struct {
	Link     string   `json:"link"`
	Title    string   `json:"title"`
	Duration int      `json:"duration"`
	Tags     []string `json:"tags"`
}

func setVersionHeader(w http.ResponseWriter) {
	w.Header().Set(jsonVersionHeader, "1")
}

// HereSphereLibrary handles GET|POST /heresphere: a flat list of video
// detail URLs grouped into one scene.
func (h *Handler) HereSphereLibrary(w http.ResponseWriter, r *http.Request) {
	setVersionHeader(w)

	items, err := h.db.ListVRItems(r.Context(), libraryLimit)
	if err != nil {
		logging.Error().Err(err).Msg("heresphere library query failed")
		http.Error(w, "library unavailable", http.StatusInternalServerError)
		return
	}

	base := baseURL(r)
	list := make([]string, 0, len(items))
	for i := range items {
		list = append(list, fmt.Sprintf("%s/heresphere/video/%s", base, items[i].ID))
	}

	writeJSON(w, heresphereLibrary{
		Access:  1,
		Library: []heresphereLibraryScene{{Name: "Library", List: list}},
	})
}

// HereSphereVideo handles GET|POST /heresphere/video/:id. Opening a title
// publishes a playback hint; precise state follows via the event server.
func (h *Handler) HereSphereVideo(w http.ResponseWriter, r *http.Request) {
	setVersionHeader(w)

	mediaID := chi.URLParam(r, "id")
	item, err := h.db.GetMediaItem(r.Context(), mediaID)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	base := baseURL(r)
	var durationMs int64
	if item.DurationMs != nil {
		durationMs = *item.DurationMs
	}

	video := heresphereVideo{
		Access:         1,
		Title:          item.Title,
		Description:    item.RelPath,
		ThumbnailImage: fmt.Sprintf("%s/api/media/%s/thumb", base, item.ID),
		EventServer:    base + "/heresphere/event",
		Duration:       durationMs,
		Projection:     "equirectangular",
		Stereo:         stereoOf(item),
		Fov:            fovOf(item),
		Media: []heresphereMedia{{
			Name: "h264",
			Sources: []heresphereSource{{
				Resolution: 1080,
				URL:        fmt.Sprintf("%s/api/media/%s/stream", base, item.ID),
			}},
		}},
	}
	if item.HasFunscript {
		video.Scripts = []heresphereScript{{
			Name: item.Filename + ".funscript",
			URL:  fmt.Sprintf("%s/api/media/%s/funscript", base, item.ID),
		}}
	}

	h.publishHint(item.ID, 0, false, 0, "vr:heresphere")

	writeJSON(w, video)
}

// HereSphereEvent handles POST /heresphere/event: the player's explicit
// play/pause/close callbacks. Events 0 (open), 2 (pause), and 3 (close)
// commit as paused; everything else is playing.
func (h *Handler) HereSphereEvent(w http.ResponseWriter, r *http.Request) {
	setVersionHeader(w)

	var ev heresphereEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	mediaID := mediaIDFromEventID(ev.ID)
	if mediaID == "" {
		http.Error(w, "unrecognized video id", http.StatusBadRequest)
		return
	}

	paused := ev.Event == 0 || ev.Event == 2 || ev.Event == 3
	frame := int64(math.Floor(ev.Time / 1000 * heresphereFPS))

	fromClientID := "vr:heresphere"
	if ev.ConnectionKey != "" {
		fromClientID += ":" + ev.ConnectionKey
	}

	h.publishHint(mediaID, ev.Time, paused, frame, fromClientID)
	w.WriteHeader(http.StatusNoContent)
}

// mediaIDFromEventID extracts the catalog id from the video detail URL the
// player echoes back in its event body.
func mediaIDFromEventID(id string) string {
	const marker = "/heresphere/video/"
	idx := strings.LastIndex(id, marker)
	if idx < 0 {
		return ""
	}
	rest := id[idx+len(marker):]
	for _, sep := range []string{"?", "#", "/"} {
		if cut := strings.Index(rest, sep); cut >= 0 {
			rest = rest[:cut]
		}
	}
	return rest
}

// HereSphereAuth handles GET|POST /heresphere/auth. Access control is out
// of scope for a single-host LAN tool; the token is a fixed marker.
func (h *Handler) HereSphereAuth(w http.ResponseWriter, _ *http.Request) {
	setVersionHeader(w)
	writeJSON(w, heresphereAuth{Access: 1, AuthToken: "local"})
}

// HereSphereScan handles GET|POST /heresphere/scan: the compact listing
// the player uses to pre-populate its library index.
func (h *Handler) HereSphereScan(w http.ResponseWriter, r *http.Request) {
	setVersionHeader(w)

	items, err := h.db.ListVRItems(r.Context(), libraryLimit)
	if err != nil {
		logging.Error().Err(err).Msg("heresphere scan query failed")
		http.Error(w, "library unavailable", http.StatusInternalServerError)
		return
	}

	base := baseURL(r)
	data := make([]heresphereScanItem, 0, len(items))
	for i := range items {
		data = append(data, heresphereScanItem{
			Link:     fmt.Sprintf("%s/heresphere/video/%s", base, items[i].ID),
			Title:    items[i].Title,
			Duration: 0,
			Tags:     []string{},
		})
	}

	writeJSON(w, heresphereScan{ScanData: data})
}
