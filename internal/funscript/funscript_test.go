// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package funscript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabriel20xx/MediaViewer/internal/models"
)

func TestSidecarPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/m/clip.funscript", SidecarPath("/m/clip.mp4"))
	assert.Equal(t, "/m/a.b.funscript", SidecarPath("/m/a.b.mkv"))
	assert.Equal(t, "/m/noext.funscript", SidecarPath("/m/noext"))
}

func TestLoadNoSidecar(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "clip.mp4"))
	assert.ErrorIs(t, err, ErrNoSidecar)
}

func TestLoadParsesSidecar(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	media := filepath.Join(dir, "clip.mp4")
	script := `{"version":"1.0","actions":[{"at":0,"pos":0},{"at":500,"pos":100}]}`
	require.NoError(t, os.WriteFile(SidecarPath(media), []byte(script), 0o600))

	got, err := Load(media)
	require.NoError(t, err)
	assert.Equal(t, "1.0", got.Version)
	require.Len(t, got.Actions, 2)
	assert.Equal(t, int64(500), got.Actions[1].At)
	assert.Equal(t, 100, got.Actions[1].Pos)
}

func TestLoadMalformedSidecar(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	media := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(SidecarPath(media), []byte("{nope"), 0o600))

	_, err := Load(media)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSidecar)
}

func TestStatsAvgSpeed(t *testing.T) {
	t.Parallel()

	// 0->100 over 1s then 100->0 over 1s: 200 position units in 2 seconds.
	script := &models.Funscript{Actions: []models.FunscriptAction{
		{At: 0, Pos: 0},
		{At: 1000, Pos: 100},
		{At: 2000, Pos: 0},
	}}
	stats := Stats(script)
	assert.Equal(t, 3, stats.ActionCount)
	assert.InDelta(t, 100.0, stats.AvgSpeed, 1e-9)
}

func TestStatsIgnoresNonPositiveDeltas(t *testing.T) {
	t.Parallel()

	// The duplicate timestamp pair contributes neither travel nor time.
	script := &models.Funscript{Actions: []models.FunscriptAction{
		{At: 0, Pos: 0},
		{At: 0, Pos: 50},
		{At: 1000, Pos: 100},
	}}
	stats := Stats(script)
	assert.Equal(t, 3, stats.ActionCount)
	assert.InDelta(t, 50.0, stats.AvgSpeed, 1e-9)
}

func TestStatsDegenerateScripts(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Stats(nil).ActionCount)
	assert.Zero(t, Stats(&models.Funscript{}).AvgSpeed)

	one := &models.Funscript{Actions: []models.FunscriptAction{{At: 0, Pos: 50}}}
	stats := Stats(one)
	assert.Equal(t, 1, stats.ActionCount)
	assert.Zero(t, stats.AvgSpeed)
}
