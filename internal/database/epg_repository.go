package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"streamvault/models"
)

// EPGRepository persists programme-guide entries.
type EPGRepository struct {
	q Queryer
}

func NewEPGRepository(q Queryer) *EPGRepository {
	return &EPGRepository{q: q}
}

// PruneBefore batch-deletes entries whose end time is before the cutoff.
// Returns the number of removed rows.
func (r *EPGRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM epg_entries WHERE end_time < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune epg entries: %w", err)
	}
	return res.RowsAffected()
}

// InsertEntries batch-inserts programmes, skipping duplicates matched by
// (channel, start time, title).
func (r *EPGRepository) InsertEntries(ctx context.Context, entries []models.EPGEntry) error {
	if len(entries) == 0 {
		return nil
	}

	// SQLite caps bound parameters per statement; insert in slices.
	const chunk = 150
	for start := 0; start < len(entries); start += chunk {
		end := start + chunk
		if end > len(entries) {
			end = len(entries)
		}
		if err := r.insertChunk(ctx, entries[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *EPGRepository) insertChunk(ctx context.Context, entries []models.EPGEntry) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO epg_entries (channel_id, title, description, category, start_time, end_time) VALUES `)
	args := make([]any, 0, len(entries)*6)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, e.ChannelID, e.Title, e.Description, e.Category, e.StartTime, e.EndTime)
	}
	sb.WriteString(` ON CONFLICT (channel_id, start_time, title) DO NOTHING`)

	if _, err := r.q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert epg entries: %w", err)
	}
	return nil
}

// EntriesForChannel returns programmes overlapping [from, to) ordered by
// start time.
func (r *EPGRepository) EntriesForChannel(ctx context.Context, channelID int64, from, to time.Time) ([]models.EPGEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, channel_id, title, description, category, start_time, end_time
		FROM epg_entries
		WHERE channel_id = ? AND end_time > ? AND start_time < ?
		ORDER BY start_time`, channelID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list epg entries: %w", err)
	}
	defer rows.Close()

	var entries []models.EPGEntry
	for rows.Next() {
		var e models.EPGEntry
		if err := rows.Scan(&e.ID, &e.ChannelID, &e.Title, &e.Description, &e.Category, &e.StartTime, &e.EndTime); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// NowNext returns the currently airing programme and the one after it.
// Either may be nil.
func (r *EPGRepository) NowNext(ctx context.Context, channelID int64, now time.Time) (*models.EPGEntry, *models.EPGEntry, error) {
	entries, err := r.EntriesForChannel(ctx, channelID, now, now.Add(24*time.Hour))
	if err != nil {
		return nil, nil, err
	}

	var current, next *models.EPGEntry
	for i := range entries {
		e := entries[i]
		if e.IsAiring(now) {
			current = &e
			continue
		}
		if e.StartTime.After(now) {
			next = &e
			break
		}
	}
	return current, next, nil
}

// Count returns the number of stored programme entries.
func (r *EPGRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM epg_entries`).Scan(&n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("count epg entries: %w", err)
	}
	return n, nil
}
