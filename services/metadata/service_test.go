package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"streamvault/internal/database"
	"streamvault/internal/httpx"
	"streamvault/models"
)

func setupMetadataService(t *testing.T, apiURL string) (*Service, *database.DB) {
	t.Helper()
	tmpDir := t.TempDir()
	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(tmpDir, "test.db")})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client := httpx.NewClient(httpx.Config{
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})
	svc := NewService(db, client, "test-key", "en-US", filepath.Join(tmpDir, "cache"), 24)
	svc.tmdb.baseURL = apiURL
	return svc, db
}

func TestSearchTitle_UsesCacheOnRepeat(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"results":[{"id":949,"title":"Heat","overview":"A crew of thieves.","poster_path":"/heat.jpg","release_date":"1995-12-15","vote_average":8.3}]}`)
	}))
	defer srv.Close()

	svc, _ := setupMetadataService(t, srv.URL)
	ctx := context.Background()

	title, err := svc.SearchTitle(ctx, "Heat", 1995)
	if err != nil {
		t.Fatalf("SearchTitle failed: %v", err)
	}
	if title == nil || title.TMDBID != 949 || title.Year != 1995 {
		t.Fatalf("unexpected match: %+v", title)
	}
	if title.PosterURL != tmdbImageURL+"/heat.jpg" {
		t.Errorf("poster path not expanded: %q", title.PosterURL)
	}

	if _, err := svc.SearchTitle(ctx, "Heat", 1995); err != nil {
		t.Fatalf("second SearchTitle failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 API call with caching, got %d", calls.Load())
	}
}

func TestEnrichMovie_StoresMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search/movie":
			fmt.Fprint(w, `{"results":[{"id":949,"title":"Heat","overview":"A crew of thieves.","poster_path":"/heat.jpg","release_date":"1995-12-15"}]}`)
		case r.URL.Path == "/movie/949/external_ids":
			fmt.Fprint(w, `{"imdb_id":"tt0113277"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	svc, db := setupMetadataService(t, srv.URL)
	ctx := context.Background()

	catalog := database.NewCatalogRepository(db.Connection())
	if err := catalog.InsertMovies(ctx, []models.Movie{{Title: "Heat", StreamURL: "http://example.com/heat.mp4"}}); err != nil {
		t.Fatalf("InsertMovies failed: %v", err)
	}
	movie, err := catalog.GetMovieByTitle(ctx, "Heat")
	if err != nil || movie == nil {
		t.Fatalf("GetMovieByTitle failed: %v", err)
	}

	svc.EnrichMovie(ctx, movie.ID)

	enriched, err := catalog.GetMovieByID(ctx, movie.ID)
	if err != nil {
		t.Fatalf("GetMovieByID failed: %v", err)
	}
	if enriched.TMDBID != 949 || enriched.IMDBID != "tt0113277" {
		t.Errorf("identifiers not stored: %+v", enriched)
	}
	if enriched.Summary != "A crew of thieves." || enriched.ReleaseYear != 1995 {
		t.Errorf("summary or year not stored: %+v", enriched)
	}
	if enriched.StableID != movie.StableID {
		t.Error("stable ID changed during enrichment")
	}
}

func TestEnrichMovie_ProviderFailureIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	svc, db := setupMetadataService(t, srv.URL)
	ctx := context.Background()

	catalog := database.NewCatalogRepository(db.Connection())
	if err := catalog.InsertMovies(ctx, []models.Movie{{Title: "Obscurity", StreamURL: "http://example.com/x.mp4"}}); err != nil {
		t.Fatalf("InsertMovies failed: %v", err)
	}
	movie, _ := catalog.GetMovieByTitle(ctx, "Obscurity")

	// Must not panic or corrupt the row.
	svc.EnrichMovie(ctx, movie.ID)

	after, err := catalog.GetMovieByID(ctx, movie.ID)
	if err != nil {
		t.Fatalf("GetMovieByID failed: %v", err)
	}
	if after.TMDBID != 0 || after.Summary != "" {
		t.Errorf("row modified despite provider failure: %+v", after)
	}
}

func TestVideosAndTrending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/949/videos":
			fmt.Fprint(w, `{"results":[{"key":"abc","name":"Trailer","site":"YouTube","type":"Trailer"}]}`)
		case "/trending/movie/week":
			fmt.Fprint(w, `{"results":[{"id":1,"title":"A"},{"id":2,"title":"B"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	svc, _ := setupMetadataService(t, srv.URL)
	ctx := context.Background()

	videos, err := svc.Videos(ctx, 949)
	if err != nil {
		t.Fatalf("Videos failed: %v", err)
	}
	if len(videos) != 1 || videos[0].Key != "abc" || videos[0].Site != "YouTube" {
		t.Errorf("unexpected videos: %+v", videos)
	}

	trending, err := svc.Trending(ctx)
	if err != nil {
		t.Fatalf("Trending failed: %v", err)
	}
	if len(trending) != 2 || trending[0].Name != "A" {
		t.Errorf("unexpected trending titles: %+v", trending)
	}
}

func TestFileCache_JitteredTTLIsStable(t *testing.T) {
	c := newFileCache(t.TempDir(), 24)
	first := c.jitteredTTL("some-key")
	if first < 24*time.Hour || first >= 30*time.Hour {
		t.Errorf("jittered TTL out of range: %v", first)
	}
	if second := c.jitteredTTL("some-key"); second != first {
		t.Errorf("TTL not stable for the same key: %v vs %v", first, second)
	}
}
