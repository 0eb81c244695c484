// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package scanner walks the media root, probes containers, classifies VR
// media, and keeps the catalog in sync with the filesystem. Exactly one
// scan runs at a time; the catalog is the only thing it writes.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/gabriel20xx/MediaViewer/internal/database"
	"github.com/gabriel20xx/MediaViewer/internal/ffmpeg"
	"github.com/gabriel20xx/MediaViewer/internal/funscript"
	"github.com/gabriel20xx/MediaViewer/internal/logging"
	"github.com/gabriel20xx/MediaViewer/internal/metrics"
	"github.com/gabriel20xx/MediaViewer/internal/models"
)

// ErrScanInProgress is returned when Rescan is called while a scan runs.
var ErrScanInProgress = errors.New("scan already in progress")

const (
	// progressEvery controls how often the progress snapshot updates
	// during the walk.
	progressEvery = 10

	// cleanupConcurrency bounds parallel stat calls during cleanup.
	cleanupConcurrency = 32
)

// videoExtensions and imageExtensions enumerate accepted media containers
// (lowercase, no dot). Everything else is skipped.
var (
	videoExtensions = map[string]bool{
		"mp4": true, "m4v": true, "mov": true, "mkv": true,
		"webm": true, "avi": true,
	}
	imageExtensions = map[string]bool{
		"jpg": true, "jpeg": true, "png": true, "gif": true,
		"webp": true, "bmp": true,
	}
)

// Progress is a snapshot of the current (or last) scan.
type Progress struct {
	IsScanning bool   `json:"isScanning"`
	Scanned    int    `json:"scanned"`
	Message    string `json:"message"`
}

// Scanner walks the media root and maintains the catalog.
type Scanner struct {
	root   string
	db     *database.DB
	prober *ffmpeg.Prober

	mu       sync.Mutex
	scanning bool
	scanned  int
	message  string
}

// New creates a Scanner for the given media root.
func New(root string, db *database.DB, prober *ffmpeg.Prober) *Scanner {
	return &Scanner{
		root:   root,
		db:     db,
		prober: prober,
	}
}

// Progress returns the current scan progress snapshot.
func (s *Scanner) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress{IsScanning: s.scanning, Scanned: s.scanned, Message: s.message}
}

// setProgress updates the progress snapshot.
func (s *Scanner) setProgress(scanned int, message string) {
	s.mu.Lock()
	s.scanned = scanned
	s.message = message
	s.mu.Unlock()
}

// Rescan walks the media root, upserts every discovered item, then removes
// catalog rows whose files vanished. It blocks until the scan completes;
// callers that want a background scan run it in a goroutine.
//
// Returns ErrScanInProgress when another scan is already running.
func (s *Scanner) Rescan(ctx context.Context) error {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		return ErrScanInProgress
	}
	s.scanning = true
	s.scanned = 0
	s.message = "starting scan"
	s.mu.Unlock()

	metrics.ScanRunning.Set(1)
	start := time.Now()

	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
		metrics.ScanRunning.Set(0)
		metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	scanned, err := s.walk(ctx)
	if err != nil {
		s.setProgress(scanned, fmt.Sprintf("scan failed: %v", err))
		return fmt.Errorf("media walk failed: %w", err)
	}
	metrics.ScanFilesTotal.Set(float64(scanned))

	deleted, err := s.cleanup(ctx, scanned)
	if err != nil {
		s.setProgress(scanned, fmt.Sprintf("cleanup failed: %v", err))
		return fmt.Errorf("catalog cleanup failed: %w", err)
	}

	s.setProgress(scanned, "scan complete")
	logging.Info().
		Int("files", scanned).
		Int64("deleted", deleted).
		Dur("elapsed", time.Since(start)).
		Msg("library scan completed")
	return nil
}

// walk traverses the media root and upserts every accepted file.
func (s *Scanner) walk(ctx context.Context) (int, error) {
	scanned := 0

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directories degrade to a warning, not a failed scan.
			logging.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		item, ok := s.buildItem(ctx, path, d)
		if !ok {
			return nil
		}
		if err := s.db.UpsertMediaItem(ctx, item); err != nil {
			return err
		}

		scanned++
		if scanned%progressEvery == 0 {
			s.setProgress(scanned, fmt.Sprintf("scanning: %d files", scanned))
		}
		return nil
	})

	return scanned, err
}

// buildItem stats, probes, and classifies one file.
// Returns ok=false for files the catalog does not track.
func (s *Scanner) buildItem(ctx context.Context, path string, d fs.DirEntry) (*models.MediaItem, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	var mediaType models.MediaType
	switch {
	case videoExtensions[ext]:
		mediaType = models.MediaTypeVideo
	case imageExtensions[ext]:
		mediaType = models.MediaTypeImage
	default:
		return nil, false
	}

	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("skipping file outside media root")
		return nil, false
	}
	relPath := filepath.ToSlash(rel)
	// A rel path that still escapes the root is hostile (symlink games).
	if relPath == ".." || strings.HasPrefix(relPath, "../") {
		logging.Warn().Str("path", path).Msg("skipping path escaping media root")
		return nil, false
	}

	info, err := d.Info()
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("skipping unstattable file")
		return nil, false
	}

	filename := filepath.Base(path)
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	item := &models.MediaItem{
		ID:         MediaID(relPath),
		RelPath:    relPath,
		Filename:   filename,
		Title:      stem,
		Ext:        ext,
		MediaType:  mediaType,
		SizeBytes:  info.Size(),
		ModifiedMs: info.ModTime().UnixMilli(),
	}

	var probe *ffmpeg.ProbeResult
	if mediaType == models.MediaTypeVideo {
		probe = s.prober.ProbeOrNil(ctx, path)
		if probe != nil {
			item.DurationMs = probe.DurationMs
			item.Width = probe.Width
			item.Height = probe.Height
		}

		script, err := funscript.Load(path)
		switch {
		case err == nil:
			stats := funscript.Stats(script)
			item.HasFunscript = true
			item.FunscriptActionCount = &stats.ActionCount
			item.FunscriptAvgSpeed = &stats.AvgSpeed
		case errors.Is(err, funscript.ErrNoSidecar):
			// No sidecar: the common case.
		default:
			logging.Warn().Err(err).Str("path", path).Msg("unreadable funscript sidecar, continuing without it")
		}
	}

	vr := ClassifyVR(relPath, probe)
	item.IsVR = vr.IsVR
	item.VRFov = vr.Fov
	item.VRStereo = vr.Stereo
	item.VRProjection = vr.Projection

	return item, true
}

// cleanup deletes catalog rows whose files no longer resolve. Stats run
// with bounded concurrency; permission errors count as present so a
// transient EACCES cannot mass-delete the library.
func (s *Scanner) cleanup(ctx context.Context, scanned int) (int64, error) {
	relPaths, err := s.db.ListRelPaths(ctx)
	if err != nil {
		return 0, err
	}
	if len(relPaths) == 0 {
		return 0, nil
	}

	s.setProgress(scanned, fmt.Sprintf("cleanup: checking %d entries", len(relPaths)))

	var (
		missingMu sync.Mutex
		missing   []string
		checked   int
	)

	sem := semaphore.NewWeighted(cleanupConcurrency)
	g, gctx := errgroup.WithContext(ctx)

	for _, relPath := range relPaths {
		relPath := relPath
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			absPath := filepath.Join(s.root, filepath.FromSlash(relPath))
			_, statErr := os.Stat(absPath)

			missingMu.Lock()
			checked++
			if checked%200 == 0 {
				s.setProgress(scanned, fmt.Sprintf("cleanup: %d/%d checked", checked, len(relPaths)))
			}
			if statErr != nil && errors.Is(statErr, fs.ErrNotExist) {
				missing = append(missing, relPath)
			}
			missingMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if len(missing) == 0 {
		return 0, nil
	}
	return s.db.DeleteByRelPaths(ctx, missing)
}

// MediaID derives the stable opaque catalog id for a rel path.
// FNV-1a 64 keeps ids identical across rescans without storing a mapping.
func MediaID(relPath string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(relPath))
	return fmt.Sprintf("%016x", h.Sum64())
}
