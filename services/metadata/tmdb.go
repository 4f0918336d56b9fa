package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"streamvault/internal/httpx"
)

const (
	tmdbBaseURL  = "https://api.themoviedb.org/3"
	tmdbImageURL = "https://image.tmdb.org/t/p/w500"
)

// tmdbClient is a thin client for the TMDB v3 API.
type tmdbClient struct {
	apiKey   string
	language string
	baseURL  string
	http     *httpx.Client
}

func newTMDBClient(apiKey, language string, client *httpx.Client) *tmdbClient {
	if language == "" {
		language = "en-US"
	}
	return &tmdbClient{
		apiKey:   apiKey,
		language: language,
		baseURL:  tmdbBaseURL,
		http:     client,
	}
}

// tmdbMovie is a movie payload from search, trending or similar listings.
type tmdbMovie struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
}

type tmdbMovieList struct {
	Results []tmdbMovie `json:"results"`
}

type tmdbExternalIDs struct {
	IMDBID string `json:"imdb_id"`
}

// tmdbVideo is one trailer/clip record.
type tmdbVideo struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Site string `json:"site"`
	Type string `json:"type"`
}

type tmdbVideoList struct {
	Results []tmdbVideo `json:"results"`
}

func (c *tmdbClient) get(ctx context.Context, path string, query url.Values, v any) error {
	if c.apiKey == "" {
		return fmt.Errorf("no API key configured")
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	query.Set("language", c.language)

	resp, err := c.http.Get(ctx, c.baseURL+path+"?"+query.Encode())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response for %s: %w", path, err)
	}
	return nil
}

// searchMovie returns candidates for a title, optionally filtered to a year.
func (c *tmdbClient) searchMovie(ctx context.Context, title string, year int) ([]tmdbMovie, error) {
	q := url.Values{"query": {title}}
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
	var list tmdbMovieList
	if err := c.get(ctx, "/search/movie", q, &list); err != nil {
		return nil, fmt.Errorf("search movie %q: %w", title, err)
	}
	return list.Results, nil
}

func (c *tmdbClient) externalIDs(ctx context.Context, tmdbID int64) (*tmdbExternalIDs, error) {
	var ids tmdbExternalIDs
	path := fmt.Sprintf("/movie/%d/external_ids", tmdbID)
	if err := c.get(ctx, path, nil, &ids); err != nil {
		return nil, fmt.Errorf("external ids for %d: %w", tmdbID, err)
	}
	return &ids, nil
}

func (c *tmdbClient) videos(ctx context.Context, tmdbID int64) ([]tmdbVideo, error) {
	var list tmdbVideoList
	path := fmt.Sprintf("/movie/%d/videos", tmdbID)
	if err := c.get(ctx, path, nil, &list); err != nil {
		return nil, fmt.Errorf("videos for %d: %w", tmdbID, err)
	}
	return list.Results, nil
}

func (c *tmdbClient) trending(ctx context.Context) ([]tmdbMovie, error) {
	var list tmdbMovieList
	if err := c.get(ctx, "/trending/movie/week", nil, &list); err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}
	return list.Results, nil
}

func (c *tmdbClient) similar(ctx context.Context, tmdbID int64) ([]tmdbMovie, error) {
	var list tmdbMovieList
	path := fmt.Sprintf("/movie/%d/similar", tmdbID)
	if err := c.get(ctx, path, nil, &list); err != nil {
		return nil, fmt.Errorf("similar for %d: %w", tmdbID, err)
	}
	return list.Results, nil
}

// posterURL expands a TMDB poster path to a full image URL.
func posterURL(path string) string {
	if path == "" {
		return ""
	}
	return tmdbImageURL + path
}

// releaseYear extracts the year from a TMDB release date (YYYY-MM-DD).
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
