// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gabriel20xx/MediaViewer/internal/config"
	"github.com/gabriel20xx/MediaViewer/internal/middleware"
	"github.com/gabriel20xx/MediaViewer/internal/vradapter"
)

// Router builds the full HTTP handler tree.
type Router struct {
	cfg     *config.Config
	handler *Handler
	vr      *vradapter.Handler
}

// NewRouter creates a Router.
func NewRouter(cfg *config.Config, handler *Handler, vr *vradapter.Handler) *Router {
	return &Router{cfg: cfg, handler: handler, vr: vr}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
// This allows our existing middleware to work with Chi's r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes using the Chi router.
//
// Route layout: /api/* is the JSON surface, /ws the sync socket, /deovr
// and /heresphere the VR dialects, /thumb the placeholder, and everything
// else falls through to the static UI. The SPA catch-all must never
// shadow the VR or placeholder groups.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(chiMiddleware(middleware.RequestID)) // X-Request-ID + logging context
	r.Use(chimiddleware.RealIP)                // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)             // Recover from panics
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// ========================
	// JSON API
	// ========================
	r.Route("/api", func(r chi.Router) {
		if !router.cfg.Security.RateLimitDisabled {
			// Streaming endpoints issue bursts of Range requests, so the
			// limit is per-IP with a generous window.
			r.Use(httprate.LimitByIP(
				router.cfg.Security.RateLimitReqs,
				router.cfg.Security.RateLimitWindow,
			))
		}
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/health", router.handler.Health)

		r.Post("/scan", router.handler.Scan)
		r.Get("/scan/progress", router.handler.ScanProgress)
		r.Post("/cache/clear", router.handler.CacheClear)

		r.Get("/sync", router.handler.SyncGet)
		r.Put("/sync", router.handler.SyncPut)
		r.Get("/playback", router.handler.PlaybackGet)
		r.Put("/playback", router.handler.PlaybackPut)

		r.Get("/media", router.handler.MediaList)
		r.Get("/media/{id}/stream", router.handler.MediaStream)
		r.Head("/media/{id}/stream", router.handler.MediaStream)
		r.Get("/media/{id}/thumb", router.handler.MediaThumb)
		r.Get("/media/{id}/funscript", router.handler.MediaFunscript)
		r.Get("/media/{id}/fileinfo", router.handler.MediaFileInfo)
		r.Get("/media/{id}/probe", router.handler.MediaProbe)
	})

	// ========================
	// WebSocket + Metrics
	// ========================
	// Root-level health mirrors /api/health for probes that skip the prefix.
	r.Get("/health", router.handler.Health)
	r.Get("/ws", router.handler.WebSocketUpgrade)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// ========================
	// VR dialects
	// ========================
	// Both players probe with GET and POST interchangeably.
	getPost := func(r chi.Router, pattern string, fn http.HandlerFunc) {
		r.Get(pattern, fn)
		r.Post(pattern, fn)
	}

	r.Route("/deovr", func(r chi.Router) {
		getPost(r, "/", router.vr.DeoVRLibrary)
		getPost(r, "/video/{id}", router.vr.DeoVRVideo)
	})

	r.Route("/heresphere", func(r chi.Router) {
		getPost(r, "/", router.vr.HereSphereLibrary)
		getPost(r, "/video/{id}", router.vr.HereSphereVideo)
		r.Post("/event", router.vr.HereSphereEvent)
		getPost(r, "/auth", router.vr.HereSphereAuth)
		getPost(r, "/scan", router.vr.HereSphereScan)
	})

	r.Get("/thumb/{id}", vradapter.PlaceholderSVG)

	// ========================
	// Static UI
	// ========================
	r.NotFound(spaHandler(router.cfg.Server.WebRoot))

	return r
}

// spaHandler serves the static UI, falling back to index.html for client
// side routes. Reserved prefixes never reach here because their routes are
// registered explicitly above.
func spaHandler(webRoot string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(webRoot))

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}

		rel := strings.TrimPrefix(filepath.Clean("/"+r.URL.Path), "/")
		if rel != "" {
			if info, err := os.Stat(filepath.Join(webRoot, rel)); err == nil && !info.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}
		http.ServeFile(w, r, filepath.Join(webRoot, "index.html"))
	}
}
