// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package main is the entry point for the MediaViewer server.
//
// MediaViewer is a self-hosted media server that keeps several playback
// clients (desktop browsers and VR headsets) looking at the same library
// and, within a session, the same playback position. One process serves
// the catalog API, range streaming, the WebSocket sync hub, and the
// DeoVR/HereSphere dialects.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: flat environment variables layered over defaults (Koanf v2)
//  2. Database: DuckDB media catalog
//  3. Sync state store: in-memory sessions, presences, and playback cursors
//  4. WebSocket hub + heartbeat inferrer: real-time state fan-out
//  5. Scanner, streaming engine, thumbnail generator
//  6. HTTP(S) server: JSON API, VR dialects, static UI
//
// All long-running pieces run under a suture supervision tree, so a crash
// in one layer restarts that layer without taking the process down.
//
// # Configuration
//
// Configuration uses the historical flat names (see internal/config):
//
//	export MEDIA_ROOT=/srv/media        # required, absolute
//	export DATABASE_URL=data/mv.duckdb
//	export PORT=3000
//	./mediaviewer
//
// HTTPS for VR headsets that refuse plain HTTP:
//
//	export USE_SSL=true                 # self-signed localhost cert by default
//	./mediaviewer
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests (10s timeout), the hub closes its sockets, and the
// database is closed last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gabriel20xx/MediaViewer/internal/api"
	"github.com/gabriel20xx/MediaViewer/internal/config"
	"github.com/gabriel20xx/MediaViewer/internal/database"
	"github.com/gabriel20xx/MediaViewer/internal/ffmpeg"
	"github.com/gabriel20xx/MediaViewer/internal/heartbeat"
	"github.com/gabriel20xx/MediaViewer/internal/logging"
	"github.com/gabriel20xx/MediaViewer/internal/scanner"
	"github.com/gabriel20xx/MediaViewer/internal/session"
	"github.com/gabriel20xx/MediaViewer/internal/stream"
	"github.com/gabriel20xx/MediaViewer/internal/supervisor"
	"github.com/gabriel20xx/MediaViewer/internal/supervisor/services"
	"github.com/gabriel20xx/MediaViewer/internal/thumbs"
	"github.com/gabriel20xx/MediaViewer/internal/tlsutil"
	"github.com/gabriel20xx/MediaViewer/internal/vradapter"
	ws "github.com/gabriel20xx/MediaViewer/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting MediaViewer with supervisor tree")

	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Info().
		Str("media_root", cfg.Media.Root).
		Str("db_path", cfg.DatabasePath()).
		Int("port", cfg.Server.Port).
		Bool("tls", cfg.TLS.Enabled).
		Msg("Configuration loaded")

	// Initialize the DuckDB media catalog
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Threads: cfg.Database.Threads,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	// Create supervisor tree
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Sync state store and WebSocket hub. The hub must exist before the
	// heartbeat inferrer and VR adapters, which publish through it.
	store := session.NewStore()
	hub := ws.NewHub(store)

	// Heartbeat inferrer turns DeoVR stream activity into playback state
	inferrer := heartbeat.New(store, hub.BroadcastState)

	// External tool wrappers
	prober := ffmpeg.NewProber(cfg.Tools.FFprobePath, cfg.Tools.ProbeTimeout)
	transcoder := ffmpeg.NewTranscoder(cfg.Tools.FFmpegPath)

	// Library scanner, streaming engine, thumbnail generator
	sc := scanner.New(cfg.Media.Root, db, prober)
	engine := stream.NewEngine(cfg.Media.Root, transcoder, inferrer, cfg.Stream.DeoVRUAToken)
	thumbGen, err := thumbs.NewGenerator(cfg.Thumbs.CacheDir, cfg.Media.Root, transcoder, cfg.Thumbs.FailMarkerTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize thumbnail generator")
	}

	handler := api.NewHandler(cfg, db, store, hub, sc, engine, thumbGen, prober)
	vr := vradapter.NewHandler(db, store, hub.BroadcastState)
	router := api.NewRouter(cfg, handler, vr)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No ReadTimeout/WriteTimeout: streaming responses and WebSocket
		// connections are long-lived by design.
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Sync layer services
	tree.AddSyncService(services.NewWebSocketHubService(hub))
	tree.AddSyncService(services.NewHeartbeatService(inferrer.Run))
	logging.Info().Msg("WebSocket hub and heartbeat inferrer added to supervisor tree")

	// API layer: plain HTTP or TLS, generating a self-signed certificate
	// when enabled without configured paths.
	if cfg.TLS.Enabled {
		certPath, keyPath := cfg.TLS.CertPath, cfg.TLS.KeyPath
		if (certPath == "" || keyPath == "") && cfg.TLS.AutoSelfSigned {
			certPath, keyPath, err = tlsutil.EnsureSelfSigned(filepath.Join(filepath.Dir(cfg.DatabasePath()), "tls"))
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to prepare self-signed certificate")
			}
		}
		tree.AddAPIService(services.NewHTTPSServerService(server, certPath, keyPath, cfg.Server.ShutdownTimeout))
		logging.Info().Str("addr", server.Addr).Msg("HTTPS server service added")
	} else {
		tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
		logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")
	}

	// Kick off an initial library scan in the background so a fresh install
	// has a populated catalog without waiting for a manual POST /api/scan.
	go func() {
		if err := sc.Rescan(ctx); err != nil && !errors.Is(err, scanner.ErrScanInProgress) {
			logging.Warn().Err(err).Msg("Initial library scan failed")
		}
	}()

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
