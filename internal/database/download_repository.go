package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"streamvault/models"
)

// DownloadRepository persists offline download records.
type DownloadRepository struct {
	q Queryer
}

func NewDownloadRepository(q Queryer) *DownloadRepository {
	return &DownloadRepository{q: q}
}

// Create inserts a queued download and fills in its ID.
func (r *DownloadRepository) Create(ctx context.Context, d *models.Download) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = models.DownloadQueued
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO downloads (profile_id, media_type, media_id, file_path, content_type, status, bytes_done, total_bytes, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ProfileID, d.MediaType, d.MediaID, d.FilePath, d.ContentType, d.Status,
		d.BytesDone, d.TotalBytes, d.Error, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	d.ID, err = res.LastInsertId()
	return err
}

// Get returns the download or nil when absent.
func (r *DownloadRepository) Get(ctx context.Context, id int64) (*models.Download, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, profile_id, media_type, media_id, file_path, content_type, status, bytes_done, total_bytes, error, created_at, updated_at
		FROM downloads WHERE id = ?`, id)
	d := &models.Download{}
	err := row.Scan(&d.ID, &d.ProfileID, &d.MediaType, &d.MediaID, &d.FilePath, &d.ContentType,
		&d.Status, &d.BytesDone, &d.TotalBytes, &d.Error, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get download: %w", err)
	}
	return d, nil
}

// SetStatus updates the lifecycle state and error text.
func (r *DownloadRepository) SetStatus(ctx context.Context, id int64, status models.DownloadStatus, errText string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE downloads SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, errText, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set download status: %w", err)
	}
	return nil
}

// SetProgress updates byte counters during transfer.
func (r *DownloadRepository) SetProgress(ctx context.Context, id int64, bytesDone, totalBytes int64) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE downloads SET bytes_done = ?, total_bytes = ?, updated_at = ? WHERE id = ?`,
		bytesDone, totalBytes, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set download progress: %w", err)
	}
	return nil
}

// SetResult records the final file path and detected content type.
func (r *DownloadRepository) SetResult(ctx context.Context, id int64, filePath, contentType string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE downloads SET file_path = ?, content_type = ?, updated_at = ? WHERE id = ?`,
		filePath, contentType, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set download result: %w", err)
	}
	return nil
}

// ListByProfile returns a profile's downloads newest first.
func (r *DownloadRepository) ListByProfile(ctx context.Context, profileID int64) ([]models.Download, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, profile_id, media_type, media_id, file_path, content_type, status, bytes_done, total_bytes, error, created_at, updated_at
		FROM downloads WHERE profile_id = ? ORDER BY created_at DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()
	return collectDownloads(rows)
}

// ListQueued returns downloads waiting for a worker, oldest first.
func (r *DownloadRepository) ListQueued(ctx context.Context) ([]models.Download, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, profile_id, media_type, media_id, file_path, content_type, status, bytes_done, total_bytes, error, created_at, updated_at
		FROM downloads WHERE status = ? ORDER BY created_at`, models.DownloadQueued)
	if err != nil {
		return nil, fmt.Errorf("list queued downloads: %w", err)
	}
	defer rows.Close()
	return collectDownloads(rows)
}

// Delete removes a download record.
func (r *DownloadRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete download: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("download %d not found", id)
	}
	return nil
}

func collectDownloads(rows *sql.Rows) ([]models.Download, error) {
	var downloads []models.Download
	for rows.Next() {
		var d models.Download
		if err := rows.Scan(&d.ID, &d.ProfileID, &d.MediaType, &d.MediaID, &d.FilePath, &d.ContentType,
			&d.Status, &d.BytesDone, &d.TotalBytes, &d.Error, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}
