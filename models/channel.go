package models

import "time"

// Channel is a logical live TV channel. It carries one or more stream
// variants; playback falls back across variants sorted by name.
type Channel struct {
	ID         int64     `json:"id"`
	StableID   string    `json:"stableId"`
	SourceID   *int64    `json:"sourceId,omitempty"`
	Name       string    `json:"name"`
	LogoURL    string    `json:"logoUrl,omitempty"`
	GroupTitle string    `json:"groupTitle,omitempty"`
	TVGID      string    `json:"tvgId,omitempty"` // external TV-guide identifier
	AddedAt    time.Time `json:"addedAt"`
}

// ChannelVariant is one stream URL for a channel (a quality tier or mirror).
type ChannelVariant struct {
	ID        int64  `json:"id"`
	ChannelID int64  `json:"channelId"`
	Name      string `json:"name"`
	StreamURL string `json:"streamUrl"`
}
