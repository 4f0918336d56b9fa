package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"streamvault/models"
)

// WatchlistRepository persists watchlists, their items and the up-next queue.
type WatchlistRepository struct {
	q Queryer
}

func NewWatchlistRepository(q Queryer) *WatchlistRepository {
	return &WatchlistRepository{q: q}
}

// CreateWatchlist inserts a named list for a profile.
func (r *WatchlistRepository) CreateWatchlist(ctx context.Context, w *models.Watchlist) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO watchlists (profile_id, name, created_at) VALUES (?, ?, ?)`,
		w.ProfileID, w.Name, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert watchlist: %w", err)
	}
	w.ID, err = res.LastInsertId()
	return err
}

// ListWatchlists returns a profile's lists oldest first.
func (r *WatchlistRepository) ListWatchlists(ctx context.Context, profileID int64) ([]models.Watchlist, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, profile_id, name, created_at
		FROM watchlists WHERE profile_id = ? ORDER BY id`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list watchlists: %w", err)
	}
	defer rows.Close()

	var lists []models.Watchlist
	for rows.Next() {
		var w models.Watchlist
		if err := rows.Scan(&w.ID, &w.ProfileID, &w.Name, &w.CreatedAt); err != nil {
			return nil, err
		}
		lists = append(lists, w)
	}
	return lists, rows.Err()
}

// DeleteWatchlist removes a list and its items.
func (r *WatchlistRepository) DeleteWatchlist(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM watchlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete watchlist: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("watchlist %d not found", id)
	}
	return nil
}

// AddItem appends content to a list; re-adding is a no-op.
func (r *WatchlistRepository) AddItem(ctx context.Context, watchlistID int64, mediaType models.MediaType, mediaID int64) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO watchlist_items (watchlist_id, media_type, media_id, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (watchlist_id, media_type, media_id) DO NOTHING`,
		watchlistID, mediaType, mediaID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add watchlist item: %w", err)
	}
	return nil
}

// RemoveItem removes content from a list; returns whether a row was removed.
func (r *WatchlistRepository) RemoveItem(ctx context.Context, watchlistID int64, mediaType models.MediaType, mediaID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM watchlist_items
		WHERE watchlist_id = ? AND media_type = ? AND media_id = ?`,
		watchlistID, mediaType, mediaID)
	if err != nil {
		return false, fmt.Errorf("remove watchlist item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListItems returns a list's items in add order.
func (r *WatchlistRepository) ListItems(ctx context.Context, watchlistID int64) ([]models.WatchlistItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, watchlist_id, media_type, media_id, added_at
		FROM watchlist_items WHERE watchlist_id = ? ORDER BY id`, watchlistID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist items: %w", err)
	}
	defer rows.Close()

	var items []models.WatchlistItem
	for rows.Next() {
		var it models.WatchlistItem
		if err := rows.Scan(&it.ID, &it.WatchlistID, &it.MediaType, &it.MediaID, &it.AddedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Enqueue appends content to a profile's up-next queue.
func (r *WatchlistRepository) Enqueue(ctx context.Context, profileID int64, mediaType models.MediaType, mediaID int64) error {
	var maxPos sql.NullInt64
	err := r.q.QueryRowContext(ctx,
		`SELECT MAX(position) FROM up_next_queue WHERE profile_id = ?`, profileID).Scan(&maxPos)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("queue position: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO up_next_queue (profile_id, media_type, media_id, position, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (profile_id, media_type, media_id) DO NOTHING`,
		profileID, mediaType, mediaID, maxPos.Int64+1, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("enqueue up next: %w", err)
	}
	return nil
}

// Dequeue pops the head of the queue, or returns nil when empty.
func (r *WatchlistRepository) Dequeue(ctx context.Context, profileID int64) (*models.UpNextQueueItem, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, profile_id, media_type, media_id, position, added_at
		FROM up_next_queue WHERE profile_id = ?
		ORDER BY position LIMIT 1`, profileID)
	it := &models.UpNextQueueItem{}
	err := row.Scan(&it.ID, &it.ProfileID, &it.MediaType, &it.MediaID, &it.Position, &it.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue up next: %w", err)
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM up_next_queue WHERE id = ?`, it.ID); err != nil {
		return nil, fmt.Errorf("dequeue up next: %w", err)
	}
	return it, nil
}

// ListQueue returns the queue in play order.
func (r *WatchlistRepository) ListQueue(ctx context.Context, profileID int64) ([]models.UpNextQueueItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, profile_id, media_type, media_id, position, added_at
		FROM up_next_queue WHERE profile_id = ? ORDER BY position`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list up next queue: %w", err)
	}
	defer rows.Close()

	var items []models.UpNextQueueItem
	for rows.Next() {
		var it models.UpNextQueueItem
		if err := rows.Scan(&it.ID, &it.ProfileID, &it.MediaType, &it.MediaID, &it.Position, &it.AddedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
