package models

import "time"

// EPGEntry is one scheduled programme window for a channel.
// Invariant: StartTime < EndTime. Entries are deduplicated by
// (channel, startTime, title) and pruned once EndTime falls a day behind.
type EPGEntry struct {
	ID          int64     `json:"id"`
	ChannelID   int64     `json:"channelId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

// IsAiring reports whether the programme covers the given instant.
func (e EPGEntry) IsAiring(now time.Time) bool {
	return !now.Before(e.StartTime) && now.Before(e.EndTime)
}
