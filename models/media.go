package models

import "time"

// Movie is a single VOD title imported from a playlist source.
// StableID is assigned once at creation and never changes; the search index
// and external enrichment reference it.
type Movie struct {
	ID          int64      `json:"id"`
	StableID    string     `json:"stableId"`
	SourceID    *int64     `json:"sourceId,omitempty"`
	Title       string     `json:"title"`
	StreamURL   string     `json:"streamUrl"`
	PosterURL   string     `json:"posterUrl,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	ReleaseDate *time.Time `json:"releaseDate,omitempty"`
	ReleaseYear int        `json:"releaseYear,omitempty"`
	IMDBID      string     `json:"imdbId,omitempty"`
	TMDBID      int64      `json:"tmdbId,omitempty"`
	GroupTitle  string     `json:"groupTitle,omitempty"`
	AddedAt     time.Time  `json:"addedAt"`
}

// Series is a show owning seasons which own episodes.
type Series struct {
	ID          int64      `json:"id"`
	StableID    string     `json:"stableId"`
	SourceID    *int64     `json:"sourceId,omitempty"`
	Title       string     `json:"title"`
	PosterURL   string     `json:"posterUrl,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	ReleaseDate *time.Time `json:"releaseDate,omitempty"`
	ReleaseYear int        `json:"releaseYear,omitempty"`
	IMDBID      string     `json:"imdbId,omitempty"`
	AddedAt     time.Time  `json:"addedAt"`
}

// Season belongs to exactly one series.
type Season struct {
	ID       int64 `json:"id"`
	SeriesID int64 `json:"seriesId"`
	Number   int   `json:"number"`
}

// Episode belongs to exactly one season. EpisodeNumber ordering drives
// auto-advance during playback.
type Episode struct {
	ID            int64     `json:"id"`
	StableID      string    `json:"stableId"`
	SeasonID      int64     `json:"seasonId"`
	EpisodeNumber int       `json:"episodeNumber"`
	Title         string    `json:"title"`
	StreamURL     string    `json:"streamUrl"`
	Summary       string    `json:"summary,omitempty"`
	AddedAt       time.Time `json:"addedAt"`
}

// MediaType distinguishes playable and trackable content kinds.
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
	MediaTypeChannel MediaType = "channel"
	MediaTypeSeries  MediaType = "series"
)
