package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"streamvault/models"
)

// SourceRepository persists playlist sources and the playlist fetch cache.
type SourceRepository struct {
	q Queryer
}

func NewSourceRepository(q Queryer) *SourceRepository {
	return &SourceRepository{q: q}
}

// CreateSource inserts a source and fills in its ID.
func (r *SourceRepository) CreateSource(ctx context.Context, s *models.Source) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO playlist_sources (name, source_type, url, username, is_active, display_order, epg_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.SourceType, s.URL, s.Username, s.IsActive, s.DisplayOrder, s.EPGURL, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	s.ID, err = res.LastInsertId()
	return err
}

// GetSource returns the source or nil when absent.
func (r *SourceRepository) GetSource(ctx context.Context, id int64) (*models.Source, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, name, source_type, url, username, is_active, display_order, epg_url, created_at, last_refresh_at
		FROM playlist_sources WHERE id = ?`, id)
	return scanSource(row)
}

// ListSources returns sources by display order. When activeOnly is set,
// soft-disabled sources are excluded.
func (r *SourceRepository) ListSources(ctx context.Context, activeOnly bool) ([]models.Source, error) {
	query := `
		SELECT id, name, source_type, url, username, is_active, display_order, epg_url, created_at, last_refresh_at
		FROM playlist_sources`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY display_order, id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		var s models.Source
		if err := rows.Scan(&s.ID, &s.Name, &s.SourceType, &s.URL, &s.Username, &s.IsActive,
			&s.DisplayOrder, &s.EPGURL, &s.CreatedAt, &s.LastRefreshAt); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// SetActive soft-enables or soft-disables a source.
func (r *SourceRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE playlist_sources SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set source active: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("source %d not found", id)
	}
	return nil
}

// SetDisplayOrder moves a source in the user ordering.
func (r *SourceRepository) SetDisplayOrder(ctx context.Context, id int64, order int) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE playlist_sources SET display_order = ? WHERE id = ?`, order, id)
	if err != nil {
		return fmt.Errorf("set source order: %w", err)
	}
	return nil
}

// SetEPGURL records the EPG URL discovered in the playlist header.
func (r *SourceRepository) SetEPGURL(ctx context.Context, id int64, epgURL string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE playlist_sources SET epg_url = ? WHERE id = ?`, epgURL, id)
	if err != nil {
		return fmt.Errorf("set source epg url: %w", err)
	}
	return nil
}

// TouchRefreshed stamps the source's last successful refresh.
func (r *SourceRepository) TouchRefreshed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE playlist_sources SET last_refresh_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("touch source: %w", err)
	}
	return nil
}

// DeleteSource hard-deletes a source. Imported content keeps its rows with
// source_id set NULL; callers normally prefer SetActive(false).
func (r *SourceRepository) DeleteSource(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM playlist_sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("source %d not found", id)
	}
	return nil
}

// GetCache returns the cached playlist fetch record for a URL, or nil.
func (r *SourceRepository) GetCache(ctx context.Context, sourceURL string) (*models.PlaylistCache, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT source_url, file_path, epg_url, fetched_at
		FROM playlist_cache WHERE source_url = ?`, sourceURL)
	c := &models.PlaylistCache{}
	err := row.Scan(&c.SourceURL, &c.FilePath, &c.EPGURL, &c.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist cache: %w", err)
	}
	return c, nil
}

// PutCache upserts the playlist fetch record for a URL.
func (r *SourceRepository) PutCache(ctx context.Context, c models.PlaylistCache) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO playlist_cache (source_url, file_path, epg_url, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_url) DO UPDATE SET
			file_path = excluded.file_path,
			epg_url = excluded.epg_url,
			fetched_at = excluded.fetched_at`,
		c.SourceURL, c.FilePath, c.EPGURL, c.FetchedAt)
	if err != nil {
		return fmt.Errorf("put playlist cache: %w", err)
	}
	return nil
}

// ExpireCache removes cache records older than the cutoff and returns their
// file paths so callers can unlink the cached playlist bodies.
func (r *SourceRepository) ExpireCache(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT file_path FROM playlist_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query expired cache: %w", err)
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM playlist_cache WHERE fetched_at < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("delete expired cache: %w", err)
	}
	return paths, nil
}

func scanSource(row *sql.Row) (*models.Source, error) {
	s := &models.Source{}
	err := row.Scan(&s.ID, &s.Name, &s.SourceType, &s.URL, &s.Username, &s.IsActive,
		&s.DisplayOrder, &s.EPGURL, &s.CreatedAt, &s.LastRefreshAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	return s, nil
}
