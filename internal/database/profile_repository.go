package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"streamvault/models"
)

// ProfileRepository persists profiles and their favorites.
type ProfileRepository struct {
	q Queryer
}

func NewProfileRepository(q Queryer) *ProfileRepository {
	return &ProfileRepository{q: q}
}

// CreateProfile inserts a profile and fills in its ID.
func (r *ProfileRepository) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO profiles (name, avatar_hue, is_kids, created_at)
		VALUES (?, ?, ?, ?)`,
		p.Name, p.AvatarHue, p.IsKids, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// GetProfile returns the profile or nil when absent.
func (r *ProfileRepository) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, name, avatar_hue, is_kids, created_at FROM profiles WHERE id = ?`, id)
	p := &models.Profile{}
	err := row.Scan(&p.ID, &p.Name, &p.AvatarHue, &p.IsKids, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns all profiles ordered by creation.
func (r *ProfileRepository) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name, avatar_hue, is_kids, created_at FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.AvatarHue, &p.IsKids, &p.CreatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// DeleteProfile removes a profile; history, favorites, watchlists and
// downloads cascade with it.
func (r *ProfileRepository) DeleteProfile(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("profile %d not found", id)
	}
	return nil
}

// AddFavorite marks content as a favorite; adding twice is a no-op.
func (r *ProfileRepository) AddFavorite(ctx context.Context, profileID int64, mediaType models.MediaType, mediaID int64) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO favorites (profile_id, media_type, media_id, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (profile_id, media_type, media_id) DO NOTHING`,
		profileID, mediaType, mediaID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite unmarks content; returns whether a row was removed.
func (r *ProfileRepository) RemoveFavorite(ctx context.Context, profileID int64, mediaType models.MediaType, mediaID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM favorites
		WHERE profile_id = ? AND media_type = ? AND media_id = ?`,
		profileID, mediaType, mediaID)
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListFavorites returns a profile's favorites newest first.
func (r *ProfileRepository) ListFavorites(ctx context.Context, profileID int64) ([]models.Favorite, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, profile_id, media_type, media_id, added_at
		FROM favorites WHERE profile_id = ? ORDER BY added_at DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var favorites []models.Favorite
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.ID, &f.ProfileID, &f.MediaType, &f.MediaID, &f.AddedAt); err != nil {
			return nil, err
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}
