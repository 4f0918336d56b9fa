package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"streamvault/models"
)

// HistoryRepository persists per-profile watch progress.
type HistoryRepository struct {
	q Queryer
}

func NewHistoryRepository(q Queryer) *HistoryRepository {
	return &HistoryRepository{q: q}
}

// Upsert records progress for one (profile, content) pair, replacing any
// prior record so at most one row exists per pair.
func (r *HistoryRepository) Upsert(ctx context.Context, h models.WatchHistory) error {
	if h.LastWatchedAt.IsZero() {
		h.LastWatchedAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO watch_history (profile_id, media_type, media_id, progress, last_watched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (profile_id, media_type, media_id) DO UPDATE SET
			progress = excluded.progress,
			last_watched_at = excluded.last_watched_at`,
		h.ProfileID, h.MediaType, h.MediaID, h.Progress, h.LastWatchedAt)
	if err != nil {
		return fmt.Errorf("upsert watch history: %w", err)
	}
	return nil
}

// Get returns the history record for one (profile, content) pair, or nil.
func (r *HistoryRepository) Get(ctx context.Context, profileID int64, mediaType models.MediaType, mediaID int64) (*models.WatchHistory, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, profile_id, media_type, media_id, progress, last_watched_at
		FROM watch_history
		WHERE profile_id = ? AND media_type = ? AND media_id = ?`,
		profileID, mediaType, mediaID)
	h := &models.WatchHistory{}
	err := row.Scan(&h.ID, &h.ProfileID, &h.MediaType, &h.MediaID, &h.Progress, &h.LastWatchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watch history: %w", err)
	}
	return h, nil
}

// ListRecent returns a profile's history newest first.
func (r *HistoryRepository) ListRecent(ctx context.Context, profileID int64, limit int) ([]models.WatchHistory, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, profile_id, media_type, media_id, progress, last_watched_at
		FROM watch_history
		WHERE profile_id = ?
		ORDER BY last_watched_at DESC LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list watch history: %w", err)
	}
	defer rows.Close()

	var records []models.WatchHistory
	for rows.Next() {
		var h models.WatchHistory
		if err := rows.Scan(&h.ID, &h.ProfileID, &h.MediaType, &h.MediaID, &h.Progress, &h.LastWatchedAt); err != nil {
			return nil, err
		}
		records = append(records, h)
	}
	return records, rows.Err()
}

// Delete removes the history record for one (profile, content) pair.
func (r *HistoryRepository) Delete(ctx context.Context, profileID int64, mediaType models.MediaType, mediaID int64) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM watch_history
		WHERE profile_id = ? AND media_type = ? AND media_id = ?`,
		profileID, mediaType, mediaID)
	if err != nil {
		return fmt.Errorf("delete watch history: %w", err)
	}
	return nil
}
