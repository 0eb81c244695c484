// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package config loads MediaViewer configuration from layered sources:
// built-in defaults, an optional YAML file, and environment variables
// (highest priority). Environment names follow the historical flat scheme
// (MEDIA_ROOT, PORT, USE_SSL, ...) and are mapped onto the nested structure
// via an explicit table, so unrelated environment variables never leak in.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Media    MediaConfig    `koanf:"media"`
	Database DatabaseConfig `koanf:"database"`
	TLS      TLSConfig      `koanf:"tls"`
	Security SecurityConfig `koanf:"security"`
	Tools    ToolsConfig    `koanf:"tools"`
	Stream   StreamConfig   `koanf:"stream"`
	Thumbs   ThumbsConfig   `koanf:"thumbs"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// WebRoot is the directory served as the static UI with SPA fallback.
	WebRoot string `koanf:"web_root"`
}

// MediaConfig holds media library settings.
type MediaConfig struct {
	// Root is the absolute path of the media tree. Required.
	Root string `koanf:"root"`
}

// DatabaseConfig holds catalog store settings.
type DatabaseConfig struct {
	// URL is the DuckDB database path (DATABASE_URL). A duckdb:// prefix
	// is accepted and stripped.
	URL string `koanf:"url"`

	// Threads passed to DuckDB; 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// TLSConfig holds HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	KeyPath  string `koanf:"key_path"`
	CertPath string `koanf:"cert_path"`

	// AutoSelfSigned generates a localhost certificate when Enabled is true
	// and the configured paths are missing. Default on.
	AutoSelfSigned bool `koanf:"auto_self_signed"`
}

// SecurityConfig holds CORS and rate limit settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// ToolsConfig holds external binary paths.
type ToolsConfig struct {
	FFprobePath  string        `koanf:"ffprobe_path"`
	FFmpegPath   string        `koanf:"ffmpeg_path"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
}

// StreamConfig holds range streaming settings.
type StreamConfig struct {
	// DeoVRUAToken is the case-insensitive User-Agent substring that marks
	// a request as coming from a DeoVR player.
	DeoVRUAToken string `koanf:"deovr_ua_token"`
}

// ThumbsConfig holds thumbnail generator settings.
type ThumbsConfig struct {
	CacheDir string `koanf:"cache_dir"`

	// FailMarkerTTL is how long a media id stays marked as failing before
	// generation is retried.
	FailMarkerTTL time.Duration `koanf:"fail_marker_ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config struct with all default values.
// These are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
			WebRoot:         "web",
		},
		Media: MediaConfig{
			Root: "/media",
		},
		Database: DatabaseConfig{
			URL:     "data/mediaviewer.duckdb",
			Threads: 0, // 0 = use runtime.NumCPU()
		},
		TLS: TLSConfig{
			Enabled:        false,
			KeyPath:        "",
			CertPath:       "",
			AutoSelfSigned: true,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Tools: ToolsConfig{
			FFprobePath:  "ffprobe",
			FFmpegPath:   "ffmpeg",
			ProbeTimeout: 15 * time.Second,
		},
		Stream: StreamConfig{
			DeoVRUAToken: "deovr",
		},
		Thumbs: ThumbsConfig{
			CacheDir:      "data/thumbs",
			FailMarkerTTL: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for fatal problems. A server that
// starts with an unusable media root would silently serve an empty
// library, so this is a refuse-to-start condition.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Media.Root) == "" {
		return fmt.Errorf("media root (MEDIA_ROOT) must not be empty")
	}
	if !filepath.IsAbs(c.Media.Root) {
		return fmt.Errorf("media root must be an absolute path, got %q", c.Media.Root)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.TLS.Enabled && !c.TLS.AutoSelfSigned {
		if c.TLS.KeyPath == "" || c.TLS.CertPath == "" {
			return fmt.Errorf("USE_SSL requires HTTPS_KEY_PATH and HTTPS_CERT_PATH unless HTTPS_AUTO_SELF_SIGNED is enabled")
		}
	}
	return nil
}

// DatabasePath returns the filesystem path of the DuckDB catalog,
// stripping an optional duckdb:// scheme from DATABASE_URL.
func (c *Config) DatabasePath() string {
	url := strings.TrimSpace(c.Database.URL)
	url = strings.TrimPrefix(url, "duckdb://")
	if url == "" {
		return "data/mediaviewer.duckdb"
	}
	return url
}
