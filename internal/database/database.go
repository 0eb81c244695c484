// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package database implements the media catalog on DuckDB.
//
// The catalog is the authoritative record of discovered media items. It is
// read by every other component and written exclusively by the scanner.
// DuckDB runs in-process via database/sql; an empty path opens an in-memory
// database, which the tests rely on.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB database/sql driver

	"github.com/gabriel20xx/MediaViewer/internal/logging"
)

// schemaTimeout bounds schema bootstrap at startup.
const schemaTimeout = 60 * time.Second

// DB wraps the DuckDB connection for the media catalog.
type DB struct {
	conn *sql.DB
	path string
}

// Config holds catalog store options.
type Config struct {
	// Path is the database file path. Empty opens an in-memory database.
	Path string

	// Threads passed to DuckDB; 0 means runtime.NumCPU().
	Threads int
}

// New opens (creating if needed) the catalog database and bootstraps the schema.
func New(cfg Config) (*DB, error) {
	connStr := ""
	if cfg.Path != "" {
		dbDir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}

		threads := cfg.Threads
		if threads <= 0 {
			threads = runtime.NumCPU()
		}
		connStr = fmt.Sprintf("%s?access_mode=read_write&threads=%d", cfg.Path, threads)
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	if err := db.conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.createSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("media catalog opened")
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// ensureContext returns a background context when the caller passed nil.
func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// createSchema runs the idempotent table and index creation statements.
func (db *DB) createSchema(ctx context.Context) error {
	for _, query := range schemaStatements() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// schemaStatements returns the DDL for the catalog, in execution order.
func schemaStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS media_items (
			-- Identity
			id VARCHAR PRIMARY KEY,
			rel_path VARCHAR NOT NULL UNIQUE,
			filename VARCHAR NOT NULL,
			title VARCHAR NOT NULL,
			ext VARCHAR NOT NULL,
			media_type VARCHAR NOT NULL,

			-- File attributes
			size_bytes BIGINT NOT NULL,
			modified_ms BIGINT NOT NULL,

			-- Probed video attributes (NULL for images and unprobed files)
			duration_ms BIGINT,
			width INTEGER,
			height INTEGER,

			-- Sidecar haptic script
			has_funscript BOOLEAN NOT NULL DEFAULT FALSE,
			funscript_action_count INTEGER,
			funscript_avg_speed DOUBLE,

			-- VR classification
			is_vr BOOLEAN NOT NULL DEFAULT FALSE,
			vr_fov INTEGER,
			vr_stereo VARCHAR,
			vr_projection VARCHAR,

			-- Bookkeeping
			created_at TIMESTAMP NOT NULL DEFAULT now(),
			updated_at TIMESTAMP NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_media_items_modified ON media_items (modified_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_media_items_vr ON media_items (is_vr, modified_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_media_items_type ON media_items (media_type)`,
	}
}
