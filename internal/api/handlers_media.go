// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gabriel20xx/MediaViewer/internal/database"
	"github.com/gabriel20xx/MediaViewer/internal/funscript"
	"github.com/gabriel20xx/MediaViewer/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// MediaList handles GET /api/media: the paginated catalog search.
//
// Query parameters: query, mediaType, hasFunscript, isVr, durationMinMs,
// durationMaxMs, speedMin, speedMax, widthMin, widthMax, heightMin,
// heightMax, sort (modified|title|filename|duration|speed|resolution),
// order (asc|desc), page (>= 1), pageSize (clamped 1..100).
func (h *Handler) MediaList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	filters := database.SearchFilters{
		Query:         q.Get("query"),
		MediaType:     q.Get("mediaType"),
		HasFunscript:  parseBoolParam(q.Get("hasFunscript")),
		IsVR:          parseBoolParam(q.Get("isVr")),
		DurationMinMs: parseInt64Param(q.Get("durationMinMs")),
		DurationMaxMs: parseInt64Param(q.Get("durationMaxMs")),
		SpeedMin:      parseFloatParam(q.Get("speedMin")),
		SpeedMax:      parseFloatParam(q.Get("speedMax")),
		WidthMin:      parseIntParam(q.Get("widthMin")),
		WidthMax:      parseIntParam(q.Get("widthMax")),
		HeightMin:     parseIntParam(q.Get("heightMin")),
		HeightMax:     parseIntParam(q.Get("heightMax")),
	}

	sortField := q.Get("sort")
	if sortField == "" {
		sortField = database.SortModified
	}
	desc := q.Get("order") != "asc"

	page := 1
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v >= 1 {
		page = v
	}
	pageSize := defaultPageSize
	if v, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		pageSize = v
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, total, err := h.db.SearchMediaItems(r.Context(), filters, sortField, desc, page, pageSize)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithPagination(items, &PaginationMeta{
		Total:    total,
		Count:    len(items),
		Page:     page,
		PageSize: pageSize,
		HasMore:  int64(page*pageSize) < total,
	})
}

// mediaItem resolves the {id} URL parameter against the catalog, replying
// 404 on unknown ids. Returns nil after writing the response on failure.
func (h *Handler) mediaItem(w http.ResponseWriter, r *http.Request) *models.MediaItem {
	id := chi.URLParam(r, "id")
	item, err := h.db.GetMediaItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			NewResponseWriter(w, r).NotFound("unknown media id")
		} else {
			NewResponseWriter(w, r).DatabaseError(err)
		}
		return nil
	}
	return item
}

// MediaStream handles GET|HEAD /api/media/{id}/stream.
func (h *Handler) MediaStream(w http.ResponseWriter, r *http.Request) {
	item := h.mediaItem(w, r)
	if item == nil {
		return
	}
	h.engine.ServeMedia(w, r, item)
}

// MediaThumb handles GET /api/media/{id}/thumb. Generation failures
// redirect to the placeholder so galleries always render an image.
func (h *Handler) MediaThumb(w http.ResponseWriter, r *http.Request) {
	item := h.mediaItem(w, r)
	if item == nil {
		return
	}

	path, err := h.thumbs.Get(r.Context(), item)
	if err != nil {
		http.Redirect(w, r, "/thumb/"+item.ID+".svg?err=1", http.StatusFound)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}

// MediaFunscript handles GET /api/media/{id}/funscript: the raw sidecar
// JSON, or 404 when none exists.
func (h *Handler) MediaFunscript(w http.ResponseWriter, r *http.Request) {
	item := h.mediaItem(w, r)
	if item == nil {
		return
	}

	raw, err := funscript.LoadRaw(h.engine.AbsolutePath(item.RelPath))
	if err != nil {
		if errors.Is(err, funscript.ErrNoSidecar) {
			NewResponseWriter(w, r).NotFound("no funscript for this media")
		} else {
			NewResponseWriter(w, r).InternalError("failed to read funscript")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(raw)
}

// MediaFileInfo handles GET /api/media/{id}/fileinfo: an on-demand stat.
func (h *Handler) MediaFileInfo(w http.ResponseWriter, r *http.Request) {
	item := h.mediaItem(w, r)
	if item == nil {
		return
	}

	info := models.FileInfo{
		ID:      item.ID,
		RelPath: item.RelPath,
	}
	if fi, err := os.Stat(h.engine.AbsolutePath(item.RelPath)); err == nil {
		info.Exists = true
		info.SizeBytes = fi.Size()
		info.ModifiedMs = fi.ModTime().UnixMilli()
	}
	writeRaw(w, http.StatusOK, info)
}

// MediaProbe handles GET /api/media/{id}/probe: a fresh ffprobe run,
// bypassing the catalog's cached values.
func (h *Handler) MediaProbe(w http.ResponseWriter, r *http.Request) {
	item := h.mediaItem(w, r)
	if item == nil {
		return
	}

	result, err := h.prober.Probe(r.Context(), h.engine.AbsolutePath(item.RelPath))
	if err != nil {
		NewResponseWriter(w, r).Error(http.StatusBadGateway, ErrCodeInternalError, "probe failed")
		return
	}
	writeRaw(w, http.StatusOK, result)
}

func parseBoolParam(s string) *bool {
	switch s {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	default:
		return nil
	}
}

func parseIntParam(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt64Param(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloatParam(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
