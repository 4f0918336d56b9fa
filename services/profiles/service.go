// Package profiles manages local viewing profiles and their favorites.
package profiles

import (
	"context"
	"fmt"
	"strings"

	"streamvault/internal/database"
	"streamvault/models"
)

const maxProfiles = 8

// Service manages profiles and favorites.
type Service struct {
	profiles *database.ProfileRepository
}

func NewService(db *database.DB) *Service {
	return &Service{profiles: database.NewProfileRepository(db.Connection())}
}

// Create adds a profile. Names must be non-empty and there is a hard cap
// so the picker stays usable.
func (s *Service) Create(ctx context.Context, name string, isKids bool, avatarHue int) (*models.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("profile name must not be empty")
	}
	existing, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) >= maxProfiles {
		return nil, fmt.Errorf("at most %d profiles are supported", maxProfiles)
	}

	p := &models.Profile{Name: name, IsKids: isKids, AvatarHue: avatarHue}
	if err := s.profiles.CreateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Profile, error) {
	return s.profiles.GetProfile(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.Profile, error) {
	return s.profiles.ListProfiles(ctx)
}

// Delete removes the profile and everything scoped to it: history,
// favorites, watchlists, queue and downloads cascade away with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.profiles.DeleteProfile(ctx, id)
}

// ToggleFavorite flips the favorite flag for one content item and returns
// whether it is a favorite afterwards.
func (s *Service) ToggleFavorite(ctx context.Context, profileID int64, mediaType models.MediaType, mediaID int64) (bool, error) {
	removed, err := s.profiles.RemoveFavorite(ctx, profileID, mediaType, mediaID)
	if err != nil {
		return false, err
	}
	if removed {
		return false, nil
	}
	if err := s.profiles.AddFavorite(ctx, profileID, mediaType, mediaID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) Favorites(ctx context.Context, profileID int64) ([]models.Favorite, error) {
	return s.profiles.ListFavorites(ctx, profileID)
}
