// Package watchlist manages named watchlists and the per-profile
// up-next queue.
package watchlist

import (
	"context"
	"fmt"
	"strings"

	"streamvault/internal/database"
	"streamvault/models"
)

// Service manages watchlists, their items and the manual play-next queue.
type Service struct {
	watchlists *database.WatchlistRepository
}

func NewService(db *database.DB) *Service {
	return &Service{watchlists: database.NewWatchlistRepository(db.Connection())}
}

// CreateList creates a named watchlist owned by a profile.
func (s *Service) CreateList(ctx context.Context, profileID int64, name string) (*models.Watchlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("watchlist name must not be empty")
	}

	w := &models.Watchlist{ProfileID: profileID, Name: name}
	if err := s.watchlists.CreateWatchlist(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) Lists(ctx context.Context, profileID int64) ([]models.Watchlist, error) {
	return s.watchlists.ListWatchlists(ctx, profileID)
}

func (s *Service) DeleteList(ctx context.Context, id int64) error {
	return s.watchlists.DeleteWatchlist(ctx, id)
}

// AddItem adds one content item to a watchlist. Adding a duplicate is a
// no-op.
func (s *Service) AddItem(ctx context.Context, watchlistID int64, mediaType models.MediaType, mediaID int64) error {
	return s.watchlists.AddItem(ctx, watchlistID, mediaType, mediaID)
}

// RemoveItem removes one content item and reports whether it was present.
func (s *Service) RemoveItem(ctx context.Context, watchlistID int64, mediaType models.MediaType, mediaID int64) (bool, error) {
	return s.watchlists.RemoveItem(ctx, watchlistID, mediaType, mediaID)
}

func (s *Service) Items(ctx context.Context, watchlistID int64) ([]models.WatchlistItem, error) {
	return s.watchlists.ListItems(ctx, watchlistID)
}

// Enqueue appends one content item to the profile's up-next queue.
func (s *Service) Enqueue(ctx context.Context, profileID int64, mediaType models.MediaType, mediaID int64) error {
	return s.watchlists.Enqueue(ctx, profileID, mediaType, mediaID)
}

// Dequeue pops the head of the up-next queue, nil when empty.
func (s *Service) Dequeue(ctx context.Context, profileID int64) (*models.UpNextQueueItem, error) {
	return s.watchlists.Dequeue(ctx, profileID)
}

func (s *Service) Queue(ctx context.Context, profileID int64) ([]models.UpNextQueueItem, error) {
	return s.watchlists.ListQueue(ctx, profileID)
}
