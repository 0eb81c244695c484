// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel20xx/MediaViewer/internal/logging"
	"github.com/gabriel20xx/MediaViewer/internal/models"
)

// deleteChunkSize bounds the IN(...) list of cleanup deletes.
const deleteChunkSize = 500

// mediaColumns is the canonical select list, kept in sync with scanMediaItem.
const mediaColumns = `id, rel_path, filename, title, ext, media_type,
	size_bytes, modified_ms, duration_ms, width, height,
	has_funscript, funscript_action_count, funscript_avg_speed,
	is_vr, vr_fov, vr_stereo, vr_projection`

// UpsertMediaItem inserts or refreshes one catalog row, keyed by rel_path.
// The id is preserved by construction (it is derived from rel_path), so a
// conflict update never changes identity.
func (db *DB) UpsertMediaItem(ctx context.Context, item *models.MediaItem) error {
	ctx = ensureContext(ctx)

	query := `
		INSERT INTO media_items (
			id, rel_path, filename, title, ext, media_type,
			size_bytes, modified_ms, duration_ms, width, height,
			has_funscript, funscript_action_count, funscript_avg_speed,
			is_vr, vr_fov, vr_stereo, vr_projection, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, now())
		ON CONFLICT (rel_path) DO UPDATE SET
			filename = excluded.filename,
			title = excluded.title,
			ext = excluded.ext,
			media_type = excluded.media_type,
			size_bytes = excluded.size_bytes,
			modified_ms = excluded.modified_ms,
			duration_ms = excluded.duration_ms,
			width = excluded.width,
			height = excluded.height,
			has_funscript = excluded.has_funscript,
			funscript_action_count = excluded.funscript_action_count,
			funscript_avg_speed = excluded.funscript_avg_speed,
			is_vr = excluded.is_vr,
			vr_fov = excluded.vr_fov,
			vr_stereo = excluded.vr_stereo,
			vr_projection = excluded.vr_projection,
			updated_at = now()`

	_, err := db.conn.ExecContext(ctx, query,
		item.ID, item.RelPath, item.Filename, item.Title, item.Ext, string(item.MediaType),
		item.SizeBytes, item.ModifiedMs, item.DurationMs, item.Width, item.Height,
		item.HasFunscript, item.FunscriptActionCount, item.FunscriptAvgSpeed,
		item.IsVR, item.VRFov, item.VRStereo, item.VRProjection,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert media item %s: %w", item.RelPath, err)
	}
	return nil
}

// GetMediaItem returns the item with the given id, or ErrNotFound.
func (db *DB) GetMediaItem(ctx context.Context, id string) (*models.MediaItem, error) {
	ctx = ensureContext(ctx)

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media_items WHERE id = ?`, id)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media item %s: %w", id, err)
	}
	return item, nil
}

// GetMediaItemByRelPath returns the item stored under rel_path, or ErrNotFound.
func (db *DB) GetMediaItemByRelPath(ctx context.Context, relPath string) (*models.MediaItem, error) {
	ctx = ensureContext(ctx)

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media_items WHERE rel_path = ?`, relPath)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media item by rel_path %s: %w", relPath, err)
	}
	return item, nil
}

// ListVRItems returns up to limit VR videos, most recently modified first.
// This feeds the VR adapters' library listings.
func (db *DB) ListVRItems(ctx context.Context, limit int) ([]models.MediaItem, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 1000
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+mediaColumns+`
		 FROM media_items
		 WHERE is_vr = TRUE AND media_type = 'video'
		 ORDER BY modified_ms DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list VR items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectMediaItems(rows)
}

// SearchFilters narrows a catalog search. Nil pointer fields are ignored.
type SearchFilters struct {
	// Query substring-matches filename or title, case-insensitive.
	Query        string
	MediaType    string
	HasFunscript *bool
	IsVR         *bool

	DurationMinMs *int64
	DurationMaxMs *int64
	SpeedMin      *float64
	SpeedMax      *float64
	WidthMin      *int
	WidthMax      *int
	HeightMin     *int
	HeightMax     *int
}

// Valid sort fields for SearchMediaItems.
const (
	SortModified   = "modified"
	SortTitle      = "title"
	SortFilename   = "filename"
	SortDuration   = "duration"
	SortSpeed      = "speed"
	SortResolution = "resolution"
)

// sortExpressions maps sort field names to SQL expressions.
var sortExpressions = map[string]string{
	SortModified:   "modified_ms",
	SortTitle:      "title",
	SortFilename:   "filename",
	SortDuration:   "duration_ms",
	SortSpeed:      "funscript_avg_speed",
	SortResolution: "(COALESCE(width, 0) * COALESCE(height, 0))",
}

// SearchMediaItems runs a paginated catalog search and returns the page
// plus the total match count. Page numbering starts at 1; the sort always
// puts NULLs last with modified_ms DESC as the tiebreaker.
func (db *DB) SearchMediaItems(ctx context.Context, filters SearchFilters, sortField string, desc bool, page, pageSize int) ([]models.MediaItem, int64, error) {
	ctx = ensureContext(ctx)

	where, args := buildMediaFilters(filters)

	var total int64
	countQuery := `SELECT COUNT(*) FROM media_items` + where
	if err := db.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count media items: %w", err)
	}

	expr, ok := sortExpressions[sortField]
	if !ok {
		expr = sortExpressions[SortModified]
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	query := fmt.Sprintf(`SELECT %s FROM media_items%s
		ORDER BY %s %s NULLS LAST, modified_ms DESC
		LIMIT ? OFFSET ?`, mediaColumns, where, expr, direction)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search media items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items, err := collectMediaItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// buildMediaFilters translates SearchFilters into a WHERE clause and args.
func buildMediaFilters(f SearchFilters) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if q := strings.TrimSpace(f.Query); q != "" {
		clauses = append(clauses, `(filename ILIKE ? OR title ILIKE ?)`)
		pattern := "%" + q + "%"
		args = append(args, pattern, pattern)
	}
	if f.MediaType != "" {
		clauses = append(clauses, `media_type = ?`)
		args = append(args, f.MediaType)
	}
	if f.HasFunscript != nil {
		clauses = append(clauses, `has_funscript = ?`)
		args = append(args, *f.HasFunscript)
	}
	if f.IsVR != nil {
		clauses = append(clauses, `is_vr = ?`)
		args = append(args, *f.IsVR)
	}
	if f.DurationMinMs != nil {
		clauses = append(clauses, `duration_ms >= ?`)
		args = append(args, *f.DurationMinMs)
	}
	if f.DurationMaxMs != nil {
		clauses = append(clauses, `duration_ms <= ?`)
		args = append(args, *f.DurationMaxMs)
	}
	if f.SpeedMin != nil {
		clauses = append(clauses, `funscript_avg_speed >= ?`)
		args = append(args, *f.SpeedMin)
	}
	if f.SpeedMax != nil {
		clauses = append(clauses, `funscript_avg_speed <= ?`)
		args = append(args, *f.SpeedMax)
	}
	if f.WidthMin != nil {
		clauses = append(clauses, `width >= ?`)
		args = append(args, *f.WidthMin)
	}
	if f.WidthMax != nil {
		clauses = append(clauses, `width <= ?`)
		args = append(args, *f.WidthMax)
	}
	if f.HeightMin != nil {
		clauses = append(clauses, `height >= ?`)
		args = append(args, *f.HeightMin)
	}
	if f.HeightMax != nil {
		clauses = append(clauses, `height <= ?`)
		args = append(args, *f.HeightMax)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListRelPaths returns the rel_path of every row with one of the given
// media types. Used by scan cleanup to detect vanished files.
func (db *DB) ListRelPaths(ctx context.Context, mediaTypes ...string) ([]string, error) {
	ctx = ensureContext(ctx)
	if len(mediaTypes) == 0 {
		mediaTypes = []string{string(models.MediaTypeVideo), string(models.MediaTypeImage)}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(mediaTypes)), ",")
	args := make([]interface{}, len(mediaTypes))
	for i, t := range mediaTypes {
		args[i] = t
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT rel_path FROM media_items WHERE media_type IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rel_paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan rel_path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// DeleteByRelPaths removes rows whose files vanished, in chunks so the
// IN(...) list stays bounded. Returns the number of rows deleted.
func (db *DB) DeleteByRelPaths(ctx context.Context, relPaths []string) (int64, error) {
	ctx = ensureContext(ctx)

	var deleted int64
	for start := 0; start < len(relPaths); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(relPaths) {
			end = len(relPaths)
		}
		chunk := relPaths[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]interface{}, len(chunk))
		for i, p := range chunk {
			args[i] = p
		}

		res, err := db.conn.ExecContext(ctx,
			`DELETE FROM media_items WHERE rel_path IN (`+placeholders+`)`, args...)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete media items: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted += n
		}
	}

	if deleted > 0 {
		logging.Info().Int64("deleted", deleted).Msg("removed vanished media items from catalog")
	}
	return deleted, nil
}

// CountMediaItems returns the total number of catalog rows.
func (db *DB) CountMediaItems(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count media items: %w", err)
	}
	return n, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanMediaItem.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMediaItem maps one result row onto a MediaItem.
func scanMediaItem(row rowScanner) (*models.MediaItem, error) {
	var (
		item        models.MediaItem
		mediaType   string
		durationMs  sql.NullInt64
		width       sql.NullInt64
		height      sql.NullInt64
		actionCount sql.NullInt64
		avgSpeed    sql.NullFloat64
		vrFov       sql.NullInt64
		vrStereo    sql.NullString
		vrProj      sql.NullString
	)

	err := row.Scan(
		&item.ID, &item.RelPath, &item.Filename, &item.Title, &item.Ext, &mediaType,
		&item.SizeBytes, &item.ModifiedMs, &durationMs, &width, &height,
		&item.HasFunscript, &actionCount, &avgSpeed,
		&item.IsVR, &vrFov, &vrStereo, &vrProj,
	)
	if err != nil {
		return nil, err
	}

	item.MediaType = models.MediaType(mediaType)
	if durationMs.Valid {
		v := durationMs.Int64
		item.DurationMs = &v
	}
	if width.Valid {
		v := int(width.Int64)
		item.Width = &v
	}
	if height.Valid {
		v := int(height.Int64)
		item.Height = &v
	}
	if actionCount.Valid {
		v := int(actionCount.Int64)
		item.FunscriptActionCount = &v
	}
	if avgSpeed.Valid {
		v := avgSpeed.Float64
		item.FunscriptAvgSpeed = &v
	}
	if vrFov.Valid {
		v := int(vrFov.Int64)
		item.VRFov = &v
	}
	if vrStereo.Valid {
		v := vrStereo.String
		item.VRStereo = &v
	}
	if vrProj.Valid {
		v := vrProj.String
		item.VRProjection = &v
	}

	return &item, nil
}

// collectMediaItems drains a result set into a slice.
func collectMediaItems(rows *sql.Rows) ([]models.MediaItem, error) {
	var items []models.MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
