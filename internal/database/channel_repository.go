package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamvault/models"
)

// ChannelRepository persists channels and their stream variants.
type ChannelRepository struct {
	q Queryer
}

func NewChannelRepository(q Queryer) *ChannelRepository {
	return &ChannelRepository{q: q}
}

// ChannelIDsByName returns the name → id map of all channels. Import runs
// this after the channel batch-insert so variants can be linked to both old
// and newly inserted parents.
func (r *ChannelRepository) ChannelIDsByName(ctx context.Context) (map[string]int64, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name FROM channels`)
	if err != nil {
		return nil, fmt.Errorf("query channel names: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		byName[name] = id
	}
	return byName, rows.Err()
}

// InsertChannels batch-inserts channels.
func (r *ChannelRepository) InsertChannels(ctx context.Context, channels []models.Channel) error {
	// SQLite caps bound parameters per statement; insert in slices.
	const chunk = 150
	for start := 0; start < len(channels); start += chunk {
		end := start + chunk
		if end > len(channels) {
			end = len(channels)
		}
		if err := r.insertChannelChunk(ctx, channels[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChannelRepository) insertChannelChunk(ctx context.Context, channels []models.Channel) error {
	if len(channels) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO channels (stable_id, source_id, name, logo_url, group_title, tvg_id, added_at) VALUES `)
	args := make([]any, 0, len(channels)*7)
	now := time.Now().UTC()
	for i, c := range channels {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		stableID := c.StableID
		if stableID == "" {
			stableID = uuid.NewString()
		}
		args = append(args, stableID, c.SourceID, c.Name, c.LogoURL, c.GroupTitle, c.TVGID, now)
	}

	if _, err := r.q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert channels: %w", err)
	}
	return nil
}

// InsertVariants batch-inserts variants, skipping duplicates by stream URL
// within each channel.
func (r *ChannelRepository) InsertVariants(ctx context.Context, variants []models.ChannelVariant) error {
	// SQLite caps bound parameters per statement; insert in slices.
	const chunk = 150
	for start := 0; start < len(variants); start += chunk {
		end := start + chunk
		if end > len(variants) {
			end = len(variants)
		}
		if err := r.insertVariantChunk(ctx, variants[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChannelRepository) insertVariantChunk(ctx context.Context, variants []models.ChannelVariant) error {
	if len(variants) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO channel_variants (channel_id, name, stream_url) VALUES `)
	args := make([]any, 0, len(variants)*3)
	for i, v := range variants {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, v.ChannelID, v.Name, v.StreamURL)
	}
	sb.WriteString(` ON CONFLICT (channel_id, stream_url) DO NOTHING`)

	if _, err := r.q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert channel variants: %w", err)
	}
	return nil
}

// GetChannelByID returns the channel or nil when absent.
func (r *ChannelRepository) GetChannelByID(ctx context.Context, id int64) (*models.Channel, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, stable_id, source_id, name, logo_url, group_title, tvg_id, added_at
		FROM channels WHERE id = ?`, id)
	c := &models.Channel{}
	err := row.Scan(&c.ID, &c.StableID, &c.SourceID, &c.Name, &c.LogoURL, &c.GroupTitle, &c.TVGID, &c.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return c, nil
}

// ListChannels returns all channels ordered by name.
func (r *ChannelRepository) ListChannels(ctx context.Context) ([]models.Channel, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, stable_id, source_id, name, logo_url, group_title, tvg_id, added_at
		FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var c models.Channel
		if err := rows.Scan(&c.ID, &c.StableID, &c.SourceID, &c.Name, &c.LogoURL, &c.GroupTitle, &c.TVGID, &c.AddedAt); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// GetVariant returns the variant or nil when absent.
func (r *ChannelRepository) GetVariant(ctx context.Context, id int64) (*models.ChannelVariant, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, channel_id, name, stream_url FROM channel_variants WHERE id = ?`, id)
	v := &models.ChannelVariant{}
	err := row.Scan(&v.ID, &v.ChannelID, &v.Name, &v.StreamURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

// VariantsForChannel returns a channel's variants sorted by name. This is
// the deterministic fallback order used by playback.
func (r *ChannelRepository) VariantsForChannel(ctx context.Context, channelID int64) ([]models.ChannelVariant, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, channel_id, name, stream_url
		FROM channel_variants WHERE channel_id = ? ORDER BY name`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var variants []models.ChannelVariant
	for rows.Next() {
		var v models.ChannelVariant
		if err := rows.Scan(&v.ID, &v.ChannelID, &v.Name, &v.StreamURL); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// ChannelIDsByTVGID maps external TV-guide identifiers to channel IDs,
// used to resolve XMLTV programme channel references.
func (r *ChannelRepository) ChannelIDsByTVGID(ctx context.Context) (map[string]int64, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, tvg_id FROM channels WHERE tvg_id != ''`)
	if err != nil {
		return nil, fmt.Errorf("query tvg ids: %w", err)
	}
	defer rows.Close()

	byTVGID := make(map[string]int64)
	for rows.Next() {
		var id int64
		var tvgID string
		if err := rows.Scan(&id, &tvgID); err != nil {
			return nil, err
		}
		byTVGID[tvgID] = id
	}
	return byTVGID, rows.Err()
}
