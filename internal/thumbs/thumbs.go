// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package thumbs generates and caches poster frames. Generation shells out
// to ffmpeg; a per-title circuit breaker remembers failures so a broken
// file is not re-probed on every gallery render.
package thumbs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/gabriel20xx/MediaViewer/internal/ffmpeg"
	"github.com/gabriel20xx/MediaViewer/internal/logging"
	"github.com/gabriel20xx/MediaViewer/internal/metrics"
	"github.com/gabriel20xx/MediaViewer/internal/models"
)

// ErrUnavailable reports that generation recently failed for this title
// and is suppressed until the fail marker expires.
var ErrUnavailable = errors.New("thumbnail generation suppressed after failure")

// defaultOffsetMs is the capture position for files without a known
// duration.
const defaultOffsetMs = int64(5000)

// Generator produces cached poster frames.
type Generator struct {
	cacheDir   string
	mediaRoot  string
	transcoder *ffmpeg.Transcoder
	failTTL    time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
}

// NewGenerator creates a Generator writing JPEGs under cacheDir. failTTL
// is how long a failed title stays suppressed.
func NewGenerator(cacheDir, mediaRoot string, transcoder *ffmpeg.Transcoder, failTTL time.Duration) (*Generator, error) {
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache dir: %w", err)
	}
	return &Generator{
		cacheDir:   cacheDir,
		mediaRoot:  mediaRoot,
		transcoder: transcoder,
		failTTL:    failTTL,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[string]),
	}, nil
}

// cachePath returns the on-disk location for a title's thumbnail.
func (g *Generator) cachePath(mediaID string) string {
	return filepath.Join(g.cacheDir, mediaID+".jpg")
}

// breakerFor returns the title's circuit breaker, creating it on first use.
// One failure opens the breaker for failTTL; the first request after the
// timeout retries generation.
func (g *Generator) breakerFor(mediaID string) *gobreaker.CircuitBreaker[string] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[mediaID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "thumb:" + mediaID,
		MaxRequests: 1,
		Timeout:     g.failTTL,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})
	g.breakers[mediaID] = cb
	return cb
}

// Get returns the path of a cached or freshly generated thumbnail.
// Returns ErrUnavailable while the title's fail marker is active; callers
// redirect to the placeholder.
func (g *Generator) Get(ctx context.Context, item *models.MediaItem) (string, error) {
	out := g.cachePath(item.ID)
	if _, err := os.Stat(out); err == nil {
		metrics.ThumbnailsTotal.WithLabelValues("cached").Inc()
		return out, nil
	}

	if item.MediaType == models.MediaTypeImage {
		// Images are their own thumbnail.
		return filepath.Join(g.mediaRoot, filepath.FromSlash(item.RelPath)), nil
	}

	path, err := g.breakerFor(item.ID).Execute(func() (string, error) {
		return out, g.generate(ctx, item, out)
	})
	switch {
	case err == nil:
		metrics.ThumbnailsTotal.WithLabelValues("generated").Inc()
		return path, nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ThumbnailsTotal.WithLabelValues("rejected").Inc()
		return "", ErrUnavailable
	default:
		metrics.ThumbnailsTotal.WithLabelValues("failed").Inc()
		return "", err
	}
}

// generate captures one frame part-way into the title.
func (g *Generator) generate(ctx context.Context, item *models.MediaItem, out string) error {
	offsetMs := defaultOffsetMs
	if item.DurationMs != nil && *item.DurationMs > 0 {
		offsetMs = *item.DurationMs / 10
	}

	abs := filepath.Join(g.mediaRoot, filepath.FromSlash(item.RelPath))
	if err := g.transcoder.Thumbnail(ctx, abs, offsetMs, out); err != nil {
		logging.Warn().Err(err).Str("media_id", item.ID).Msg("thumbnail generation failed")
		return err
	}
	return nil
}

// ClearCache removes every cached thumbnail and resets fail markers.
func (g *Generator) ClearCache() error {
	if err := os.RemoveAll(g.cacheDir); err != nil {
		return fmt.Errorf("failed to clear thumbnail cache: %w", err)
	}
	if err := os.MkdirAll(g.cacheDir, 0o750); err != nil {
		return fmt.Errorf("failed to recreate thumbnail cache dir: %w", err)
	}

	g.mu.Lock()
	g.breakers = make(map[string]*gobreaker.CircuitBreaker[string])
	g.mu.Unlock()
	return nil
}
