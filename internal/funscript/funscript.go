// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

// Package funscript loads sidecar haptic scripts. For a media file
// <stem>.<ext>, the sidecar is <stem>.funscript in the same directory.
package funscript

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/gabriel20xx/MediaViewer/internal/models"
)

// ErrNoSidecar is returned when no matching .funscript file exists.
var ErrNoSidecar = errors.New("no funscript sidecar")

// SidecarPath returns the expected sidecar path for a media file.
func SidecarPath(mediaPath string) string {
	ext := filepath.Ext(mediaPath)
	return strings.TrimSuffix(mediaPath, ext) + ".funscript"
}

// Load reads and parses the sidecar for the given media path.
// Returns ErrNoSidecar when the file does not exist; parse failures are
// ordinary errors (callers degrade rather than fail the scan).
func Load(mediaPath string) (*models.Funscript, error) {
	raw, err := os.ReadFile(SidecarPath(mediaPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSidecar
		}
		return nil, fmt.Errorf("failed to read funscript sidecar: %w", err)
	}

	var script models.Funscript
	if err := json.Unmarshal(raw, &script); err != nil {
		return nil, fmt.Errorf("failed to parse funscript sidecar: %w", err)
	}
	return &script, nil
}

// LoadRaw returns the raw sidecar bytes for direct HTTP serving.
func LoadRaw(mediaPath string) ([]byte, error) {
	raw, err := os.ReadFile(SidecarPath(mediaPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSidecar
		}
		return nil, fmt.Errorf("failed to read funscript sidecar: %w", err)
	}
	return raw, nil
}

// Stats derives the catalog summary from a script.
//
// AvgSpeed is total absolute position travel divided by total elapsed time,
// in percent per second: sum(|delta pos|) / sum(|delta t|) * 1000. Pairs
// with non-positive time deltas are ignored so a malformed script cannot
// produce an infinite speed.
func Stats(script *models.Funscript) models.FunscriptStats {
	stats := models.FunscriptStats{}
	if script == nil {
		return stats
	}
	stats.ActionCount = len(script.Actions)
	if len(script.Actions) < 2 {
		return stats
	}

	var travel float64
	var elapsedMs float64
	for i := 1; i < len(script.Actions); i++ {
		prev := script.Actions[i-1]
		cur := script.Actions[i]
		dt := float64(cur.At - prev.At)
		if dt <= 0 {
			continue
		}
		travel += math.Abs(float64(cur.Pos - prev.Pos))
		elapsedMs += dt
	}
	if elapsedMs > 0 {
		stats.AvgSpeed = travel / elapsedMs * 1000
	}
	return stats
}
