// Package metadata enriches the imported catalog with artwork, summaries
// and identifiers from TMDB. Enrichment is best effort: a provider outage
// leaves the catalog playable, just plain.
package metadata

import (
	"context"
	"fmt"
	"log"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"streamvault/internal/database"
	"streamvault/internal/httpx"
	"streamvault/models"
)

const (
	hotCacheTTL     = 15 * time.Minute
	hotCacheCleanup = 30 * time.Minute
)

// Service looks up and caches title metadata.
type Service struct {
	tmdb    *tmdbClient
	cache   *fileCache
	hot     *gocache.Cache
	catalog *database.CatalogRepository
}

func NewService(db *database.DB, client *httpx.Client, apiKey, language, cacheDir string, ttlHours int) *Service {
	return &Service{
		tmdb:    newTMDBClient(apiKey, language, client),
		cache:   newFileCache(cacheDir, ttlHours),
		hot:     gocache.New(hotCacheTTL, hotCacheCleanup),
		catalog: database.NewCatalogRepository(db.Connection()),
	}
}

// UpdateAPIKey swaps credentials and drops everything cached under the old
// key.
func (s *Service) UpdateAPIKey(apiKey, language string) {
	s.tmdb = newTMDBClient(apiKey, language, s.tmdb.http)
	s.hot.Flush()
	if err := s.cache.clear(); err != nil {
		log.Printf("[metadata] failed to clear cache: %v", err)
	}
}

// SearchTitle finds the best match for a title, preferring the year when
// known.
func (s *Service) SearchTitle(ctx context.Context, title string, year int) (*models.Title, error) {
	key := cacheKey("search", title, fmt.Sprintf("%d", year))
	if hit, ok := s.hot.Get(key); ok {
		return hit.(*models.Title), nil
	}
	var cached models.Title
	if s.cache.get(key, &cached) {
		s.hot.Set(key, &cached, gocache.DefaultExpiration)
		return &cached, nil
	}

	results, err := s.tmdb.searchMovie(ctx, title, year)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	match := titleFromTMDB(results[0])

	if err := s.cache.set(key, match); err != nil {
		log.Printf("[metadata] failed to cache search result: %v", err)
	}
	s.hot.Set(key, match, gocache.DefaultExpiration)
	return match, nil
}

// EnrichMovie looks the movie up by title and stores poster, summary and
// identifiers on the catalog row. Lookup failures are logged, not
// returned: enrichment never blocks an import.
func (s *Service) EnrichMovie(ctx context.Context, movieID int64) {
	movie, err := s.catalog.GetMovieByID(ctx, movieID)
	if err != nil || movie == nil {
		log.Printf("[metadata] movie %d not found for enrichment: %v", movieID, err)
		return
	}

	match, err := s.SearchTitle(ctx, movie.Title, movie.ReleaseYear)
	if err != nil || match == nil {
		log.Printf("[metadata] no match for %q: %v", movie.Title, err)
		return
	}

	imdbID := match.IMDBID
	if imdbID == "" {
		if ids, err := s.tmdb.externalIDs(ctx, match.TMDBID); err == nil {
			imdbID = ids.IMDBID
		}
	}

	err = s.catalog.UpdateMovieEnrichment(ctx, movie.ID,
		match.PosterURL, match.Overview, imdbID, match.TMDBID, match.Year)
	if err != nil {
		log.Printf("[metadata] failed to store enrichment for %q: %v", movie.Title, err)
		return
	}
	log.Printf("[metadata] enriched %q (tmdb %d)", movie.Title, match.TMDBID)
}

// Videos returns trailers and clips for a TMDB title.
func (s *Service) Videos(ctx context.Context, tmdbID int64) ([]models.Video, error) {
	key := cacheKey("videos", fmt.Sprintf("%d", tmdbID))
	var cached []models.Video
	if s.cache.get(key, &cached) {
		return cached, nil
	}

	raw, err := s.tmdb.videos(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	videos := make([]models.Video, 0, len(raw))
	for _, v := range raw {
		videos = append(videos, models.Video{Key: v.Key, Site: v.Site, Type: v.Type, Name: v.Name})
	}
	if err := s.cache.set(key, videos); err != nil {
		log.Printf("[metadata] failed to cache videos: %v", err)
	}
	return videos, nil
}

// Trending returns this week's trending movies.
func (s *Service) Trending(ctx context.Context) ([]models.Title, error) {
	key := cacheKey("trending", "week")
	var cached []models.Title
	if s.cache.get(key, &cached) {
		return cached, nil
	}

	raw, err := s.tmdb.trending(ctx)
	if err != nil {
		return nil, err
	}
	titles := titlesFromTMDB(raw)
	if err := s.cache.set(key, titles); err != nil {
		log.Printf("[metadata] failed to cache trending: %v", err)
	}
	return titles, nil
}

// Similar returns titles related to a TMDB title.
func (s *Service) Similar(ctx context.Context, tmdbID int64) ([]models.Title, error) {
	key := cacheKey("similar", fmt.Sprintf("%d", tmdbID))
	var cached []models.Title
	if s.cache.get(key, &cached) {
		return cached, nil
	}

	raw, err := s.tmdb.similar(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	titles := titlesFromTMDB(raw)
	if err := s.cache.set(key, titles); err != nil {
		log.Printf("[metadata] failed to cache similar titles: %v", err)
	}
	return titles, nil
}

func titleFromTMDB(m tmdbMovie) *models.Title {
	return &models.Title{
		TMDBID:    m.ID,
		Name:      m.Title,
		Overview:  m.Overview,
		Year:      releaseYear(m.ReleaseDate),
		PosterURL: posterURL(m.PosterPath),
		Rating:    m.VoteAverage,
		MediaType: "movie",
	}
}

func titlesFromTMDB(raw []tmdbMovie) []models.Title {
	titles := make([]models.Title, 0, len(raw))
	for _, m := range raw {
		titles = append(titles, *titleFromTMDB(m))
	}
	return titles
}
