// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabriel20xx/MediaViewer/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func boolPtr(v bool) *bool      { return &v }
func int64Ptr(v int64) *int64   { return &v }
func intPtr(v int) *int         { return &v }
func f64Ptr(v float64) *float64 { return &v }
func strPtr(v string) *string   { return &v }

// seedItem builds a minimal video row; callers tweak fields afterwards.
func seedItem(relPath string, modifiedMs int64) *models.MediaItem {
	return &models.MediaItem{
		ID:         fmt.Sprintf("%016x", modifiedMs),
		RelPath:    relPath,
		Filename:   relPath,
		Title:      relPath,
		Ext:        ".mp4",
		MediaType:  models.MediaTypeVideo,
		SizeBytes:  1024,
		ModifiedMs: modifiedMs,
	}
}

func mustUpsert(t *testing.T, db *DB, item *models.MediaItem) {
	t.Helper()
	require.NoError(t, db.UpsertMediaItem(context.Background(), item))
}

func TestUpsertAndGetMediaItem(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	item := seedItem("movies/clip.mp4", 100)
	item.DurationMs = int64Ptr(90_000)
	item.Width = intPtr(1920)
	item.Height = intPtr(1080)
	item.HasFunscript = true
	item.FunscriptActionCount = intPtr(42)
	item.FunscriptAvgSpeed = f64Ptr(137.5)
	item.IsVR = true
	item.VRFov = intPtr(180)
	item.VRStereo = strPtr("sbs")
	item.VRProjection = strPtr("equirectangular")
	mustUpsert(t, db, item)

	got, err := db.GetMediaItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.RelPath, got.RelPath)
	assert.Equal(t, models.MediaTypeVideo, got.MediaType)
	require.NotNil(t, got.DurationMs)
	assert.Equal(t, int64(90_000), *got.DurationMs)
	require.NotNil(t, got.FunscriptAvgSpeed)
	assert.InDelta(t, 137.5, *got.FunscriptAvgSpeed, 0.001)
	require.NotNil(t, got.VRStereo)
	assert.Equal(t, "sbs", *got.VRStereo)

	byPath, err := db.GetMediaItemByRelPath(ctx, "movies/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, item.ID, byPath.ID)

	_, err = db.GetMediaItem(ctx, "deadbeefdeadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetMediaItemByRelPath(ctx, "nope.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertRefreshesExistingRow(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	item := seedItem("clip.mp4", 100)
	mustUpsert(t, db, item)

	item.Title = "renamed"
	item.SizeBytes = 2048
	item.DurationMs = int64Ptr(5000)
	mustUpsert(t, db, item)

	n, err := db.CountMediaItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := db.GetMediaItemByRelPath(ctx, "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, int64(2048), got.SizeBytes)
	require.NotNil(t, got.DurationMs)
	assert.Equal(t, int64(5000), *got.DurationMs)
}

func TestSearchMediaItemsFilters(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	a := seedItem("beach_sunset.mp4", 100)
	a.DurationMs = int64Ptr(60_000)
	a.Width = intPtr(1920)
	a.Height = intPtr(1080)
	mustUpsert(t, db, a)

	b := seedItem("mountain.mp4", 200)
	b.Title = "Sunset Hike"
	b.DurationMs = int64Ptr(300_000)
	b.HasFunscript = true
	b.FunscriptAvgSpeed = f64Ptr(180)
	b.Width = intPtr(3840)
	b.Height = intPtr(1920)
	b.IsVR = true
	mustUpsert(t, db, b)

	c := seedItem("photos/pic.jpg", 300)
	c.MediaType = models.MediaTypeImage
	c.Ext = ".jpg"
	mustUpsert(t, db, c)

	// Case-insensitive substring against filename or title.
	items, total, err := db.SearchMediaItems(ctx, SearchFilters{Query: "SUNSET"}, SortModified, true, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, "mountain.mp4", items[0].RelPath)
	assert.Equal(t, "beach_sunset.mp4", items[1].RelPath)

	_, total, err = db.SearchMediaItems(ctx, SearchFilters{MediaType: "image"}, SortModified, true, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = db.SearchMediaItems(ctx, SearchFilters{HasFunscript: boolPtr(true)}, SortModified, true, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = db.SearchMediaItems(ctx, SearchFilters{IsVR: boolPtr(false)}, SortModified, true, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// Closed ranges are inclusive on both ends.
	items, total, err = db.SearchMediaItems(ctx, SearchFilters{
		DurationMinMs: int64Ptr(60_000),
		DurationMaxMs: int64Ptr(60_000),
	}, SortModified, true, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "beach_sunset.mp4", items[0].RelPath)

	_, total, err = db.SearchMediaItems(ctx, SearchFilters{
		SpeedMin: f64Ptr(100),
		SpeedMax: f64Ptr(200),
	}, SortModified, true, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = db.SearchMediaItems(ctx, SearchFilters{
		WidthMin:  intPtr(3000),
		HeightMin: intPtr(1500),
	}, SortModified, true, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSearchMediaItemsSortNullsLast(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	withDuration := seedItem("a.mp4", 100)
	withDuration.DurationMs = int64Ptr(10_000)
	mustUpsert(t, db, withDuration)

	// Never probed: duration is NULL and must sort after real values
	// in either direction.
	unprobed := seedItem("b.mp4", 200)
	mustUpsert(t, db, unprobed)

	longer := seedItem("c.mp4", 300)
	longer.DurationMs = int64Ptr(20_000)
	mustUpsert(t, db, longer)

	items, _, err := db.SearchMediaItems(ctx, SearchFilters{}, SortDuration, false, 1, 50)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a.mp4", items[0].RelPath)
	assert.Equal(t, "c.mp4", items[1].RelPath)
	assert.Equal(t, "b.mp4", items[2].RelPath)

	items, _, err = db.SearchMediaItems(ctx, SearchFilters{}, SortDuration, true, 1, 50)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "c.mp4", items[0].RelPath)
	assert.Equal(t, "a.mp4", items[1].RelPath)
	assert.Equal(t, "b.mp4", items[2].RelPath)
}

func TestSearchMediaItemsTiebreakModifiedDesc(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	older := seedItem("x/same.mp4", 100)
	older.Title = "Same Title"
	older.DurationMs = int64Ptr(1000)
	mustUpsert(t, db, older)

	newer := seedItem("y/same.mp4", 500)
	newer.Title = "Same Title"
	newer.DurationMs = int64Ptr(1000)
	mustUpsert(t, db, newer)

	items, _, err := db.SearchMediaItems(ctx, SearchFilters{}, SortDuration, false, 1, 50)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "y/same.mp4", items[0].RelPath)
	assert.Equal(t, "x/same.mp4", items[1].RelPath)
}

func TestSearchMediaItemsPagination(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		mustUpsert(t, db, seedItem(fmt.Sprintf("v%d.mp4", i), i*100))
	}

	items, total, err := db.SearchMediaItems(ctx, SearchFilters{}, SortModified, true, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, items, 2)
	assert.Equal(t, "v5.mp4", items[0].RelPath)

	items, _, err = db.SearchMediaItems(ctx, SearchFilters{}, SortModified, true, 3, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "v1.mp4", items[0].RelPath)

	// Out-of-range inputs clamp instead of erroring.
	items, total, err = db.SearchMediaItems(ctx, SearchFilters{}, SortModified, true, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, items, 1)
	assert.Equal(t, "v5.mp4", items[0].RelPath)
}

func TestSearchMediaItemsUnknownSortFallsBack(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	mustUpsert(t, db, seedItem("old.mp4", 100))
	mustUpsert(t, db, seedItem("new.mp4", 200))

	items, _, err := db.SearchMediaItems(ctx, SearchFilters{}, "bogus", true, 1, 50)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "new.mp4", items[0].RelPath)
}

func TestSearchMediaItemsResolutionSort(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	small := seedItem("sd.mp4", 100)
	small.Width = intPtr(640)
	small.Height = intPtr(480)
	mustUpsert(t, db, small)

	big := seedItem("uhd.mp4", 50)
	big.Width = intPtr(3840)
	big.Height = intPtr(2160)
	mustUpsert(t, db, big)

	items, _, err := db.SearchMediaItems(ctx, SearchFilters{}, SortResolution, true, 1, 50)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "uhd.mp4", items[0].RelPath)
}

func TestListVRItems(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	flat := seedItem("flat.mp4", 100)
	mustUpsert(t, db, flat)

	vrOld := seedItem("vr_old.mp4", 200)
	vrOld.IsVR = true
	mustUpsert(t, db, vrOld)

	vrNew := seedItem("vr_new.mp4", 300)
	vrNew.IsVR = true
	mustUpsert(t, db, vrNew)

	// VR images never reach the headset listings.
	vrImage := seedItem("pano.jpg", 400)
	vrImage.MediaType = models.MediaTypeImage
	vrImage.IsVR = true
	mustUpsert(t, db, vrImage)

	items, err := db.ListVRItems(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "vr_new.mp4", items[0].RelPath)
	assert.Equal(t, "vr_old.mp4", items[1].RelPath)

	items, err = db.ListVRItems(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "vr_new.mp4", items[0].RelPath)
}

func TestListRelPathsByMediaType(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	mustUpsert(t, db, seedItem("v.mp4", 100))
	pic := seedItem("p.jpg", 200)
	pic.MediaType = models.MediaTypeImage
	mustUpsert(t, db, pic)

	paths, err := db.ListRelPaths(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v.mp4", "p.jpg"}, paths)

	paths, err = db.ListRelPaths(ctx, string(models.MediaTypeVideo))
	require.NoError(t, err)
	assert.Equal(t, []string{"v.mp4"}, paths)
}

func TestDeleteByRelPathsChunks(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	// Enough rows to force multiple IN(...) chunks.
	const rows = deleteChunkSize + 10
	doomed := make([]string, 0, rows)
	for i := 0; i < rows; i++ {
		item := seedItem(fmt.Sprintf("bulk/v%04d.mp4", i), int64(i+1))
		mustUpsert(t, db, item)
		doomed = append(doomed, item.RelPath)
	}
	mustUpsert(t, db, seedItem("survivor.mp4", 999_999))

	deleted, err := db.DeleteByRelPaths(ctx, doomed)
	require.NoError(t, err)
	assert.Equal(t, int64(rows), deleted)

	n, err := db.CountMediaItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err = db.DeleteByRelPaths(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
