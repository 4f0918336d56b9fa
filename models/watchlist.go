package models

import "time"

// Watchlist is a named, profile-owned list of content to watch later.
type Watchlist struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profileId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// WatchlistItem is one entry of a watchlist.
type WatchlistItem struct {
	ID          int64     `json:"id"`
	WatchlistID int64     `json:"watchlistId"`
	MediaType   MediaType `json:"mediaType"`
	MediaID     int64     `json:"mediaId"`
	AddedAt     time.Time `json:"addedAt"`
}

// UpNextQueueItem orders content in a profile's manual play-next queue.
type UpNextQueueItem struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profileId"`
	MediaType MediaType `json:"mediaType"`
	MediaID   int64     `json:"mediaId"`
	Position  int       `json:"position"`
	AddedAt   time.Time `json:"addedAt"`
}
