package models

import "time"

// SourceType identifies the playlist format of a configured source.
type SourceType string

const (
	SourceTypeM3U     SourceType = "m3u"
	SourceTypeXtream  SourceType = "xtream"
	SourceTypeUnknown SourceType = "unknown"
)

// Source is a configured playlist origin. Sources are soft-disabled via
// IsActive rather than deleted so their imported content keeps a valid owner.
type Source struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	SourceType    SourceType `json:"sourceType"`
	URL           string     `json:"url"`
	Username      string     `json:"username,omitempty"`
	Password      string     `json:"-"` // kept in the secrets store, never serialized
	IsActive      bool       `json:"isActive"`
	DisplayOrder  int        `json:"displayOrder"`
	EPGURL        string     `json:"epgUrl,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastRefreshAt *time.Time `json:"lastRefreshAt,omitempty"`
}

// PlaylistCache records the last fetch of a playlist URL so refreshes can be
// skipped while the cached copy is still fresh.
type PlaylistCache struct {
	SourceURL string    `json:"sourceUrl"`
	FilePath  string    `json:"filePath"`
	EPGURL    string    `json:"epgUrl,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// IsFresh reports whether the cached playlist was fetched within ttl.
func (c PlaylistCache) IsFresh(ttl time.Duration) bool {
	return time.Since(c.FetchedAt) < ttl
}
