package models

// Title is an enriched metadata record from the movie database.
type Title struct {
	TMDBID      int64   `json:"tmdbId"`
	IMDBID      string  `json:"imdbId,omitempty"`
	Name        string  `json:"name"`
	Overview    string  `json:"overview,omitempty"`
	Year        int     `json:"year,omitempty"`
	PosterURL   string  `json:"posterUrl,omitempty"`
	BackdropURL string  `json:"backdropUrl,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	MediaType   string  `json:"mediaType,omitempty"` // movie or tv
}

// Video is a trailer or clip attached to a title.
type Video struct {
	Key  string `json:"key"`
	Site string `json:"site"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Subtitle is one search result from the subtitle provider.
type Subtitle struct {
	FileID   int64  `json:"fileId"`
	Language string `json:"language"`
	Release  string `json:"release,omitempty"`
	URL      string `json:"url,omitempty"`
}
