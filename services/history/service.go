// Package history tracks how far each profile has watched each piece of
// content and powers the continue-watching shelf.
package history

import (
	"context"
	"fmt"
	"time"

	"streamvault/internal/database"
	"streamvault/models"
)

// finishedThreshold marks content as fully watched; nearly-done items
// drop off the continue-watching shelf.
const finishedThreshold = 0.95

// Service reads and updates per-profile watch history.
type Service struct {
	history *database.HistoryRepository
}

func NewService(db *database.DB) *Service {
	return &Service{history: database.NewHistoryRepository(db.Connection())}
}

// Record stores the watch position for one content item. Progress is a
// fraction of the runtime and is clamped to [0, 1].
func (s *Service) Record(ctx context.Context, profileID int64, mediaType models.MediaType, mediaID int64, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return s.history.Upsert(ctx, models.WatchHistory{
		ProfileID:     profileID,
		MediaType:     mediaType,
		MediaID:       mediaID,
		Progress:      progress,
		LastWatchedAt: time.Now().UTC(),
	})
}

// Progress returns the stored history record, or nil when the profile has
// never watched the item.
func (s *Service) Progress(ctx context.Context, profileID int64, mediaType models.MediaType, mediaID int64) (*models.WatchHistory, error) {
	return s.history.Get(ctx, profileID, mediaType, mediaID)
}

// ContinueWatching lists partially watched items, most recent first.
// Finished items and barely-started ones are filtered out.
func (s *Service) ContinueWatching(ctx context.Context, profileID int64, limit int) ([]models.WatchHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	// Over-fetch to survive the filter below.
	recent, err := s.history.ListRecent(ctx, profileID, limit*3)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	var out []models.WatchHistory
	for _, h := range recent {
		if h.Progress >= finishedThreshold || h.Progress <= 0 {
			continue
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Recent lists the newest history records regardless of progress.
func (s *Service) Recent(ctx context.Context, profileID int64, limit int) ([]models.WatchHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.history.ListRecent(ctx, profileID, limit)
}

// Forget removes one item from a profile's history.
func (s *Service) Forget(ctx context.Context, profileID int64, mediaType models.MediaType, mediaID int64) error {
	return s.history.Delete(ctx, profileID, mediaType, mediaID)
}
