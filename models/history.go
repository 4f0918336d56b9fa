package models

import "time"

// WatchHistory tracks per-profile, per-content playback progress.
// At most one record exists per (profile, mediaType, mediaID).
type WatchHistory struct {
	ID            int64     `json:"id"`
	ProfileID     int64     `json:"profileId"`
	MediaType     MediaType `json:"mediaType"`
	MediaID       int64     `json:"mediaId"`
	Progress      float64   `json:"progress"` // 0..1 fraction of the runtime
	LastWatchedAt time.Time `json:"lastWatchedAt"`
}

// IsFinished reports whether the item counts as fully watched.
func (h WatchHistory) IsFinished() bool {
	return h.Progress >= 0.95
}
