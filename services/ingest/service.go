// Package ingest imports playlist sources into the catalog: plain M3U
// playlists and Xtream portals, deduplicated against existing content and
// committed in a single transaction per source.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mozillazg/go-unidecode"
	"github.com/sourcegraph/conc/pool"

	"streamvault/config"
	"streamvault/internal/database"
	"streamvault/internal/events"
	"streamvault/internal/httpx"
	"streamvault/internal/secrets"
	"streamvault/models"
)

// Service imports playlist sources.
type Service struct {
	db      *database.DB
	sources *database.SourceRepository
	client  *httpx.Client
	bus     *events.Bus
	secrets *secrets.Store
	cfg     config.IngestSettings
}

func NewService(db *database.DB, client *httpx.Client, bus *events.Bus, store *secrets.Store, cfg config.IngestSettings) *Service {
	return &Service{
		db:      db,
		sources: database.NewSourceRepository(db.Connection()),
		client:  client,
		bus:     bus,
		secrets: store,
		cfg:     cfg,
	}
}

// ImportResult summarizes one source import.
type ImportResult struct {
	SourceID int64  `json:"sourceId"`
	Movies   int    `json:"movies"`
	Series   int    `json:"series"`
	Episodes int    `json:"episodes"`
	Channels int    `json:"channels"`
	Variants int    `json:"variants"`
	EPGURL   string `json:"epgUrl,omitempty"`
}

// ImportSource fetches and imports one configured source. All inserted
// rows land in a single transaction; any failure rolls the import back and
// returns a typed error.
func (s *Service) ImportSource(ctx context.Context, sourceID int64) (*ImportResult, error) {
	source, err := s.sources.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("source %d not found", sourceID)
	}
	if !source.IsActive {
		return nil, fmt.Errorf("source %d is disabled", sourceID)
	}

	if source.Password == "" && source.Username != "" {
		password, err := s.secrets.Get(secrets.SourcePasswordKey(source.ID))
		if err != nil && !errors.Is(err, secrets.ErrNotFound) {
			return nil, err
		}
		source.Password = password
	}

	sourceType := source.SourceType
	if sourceType == "" || sourceType == models.SourceTypeUnknown {
		sourceType, err = Detect(source.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
	}

	log.Printf("[ingest] importing source %d (%s, %s)", source.ID, source.Name, sourceType)

	var result *ImportResult
	switch sourceType {
	case models.SourceTypeM3U:
		result, err = s.importM3U(ctx, source)
	case models.SourceTypeXtream:
		result, err = s.importXtream(ctx, source)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlaylist, source.URL)
	}
	if err != nil {
		return nil, err
	}

	if err := s.sources.TouchRefreshed(ctx, source.ID, time.Now().UTC()); err != nil {
		log.Printf("[ingest] failed to record refresh time for source %d: %v", source.ID, err)
	}

	s.bus.Publish(events.TopicImportDone, events.ImportProgress{
		SourceID: source.ID,
		Stage:    "done",
		Movies:   result.Movies,
		Channels: result.Channels,
		Variants: result.Variants,
	})
	log.Printf("[ingest] source %d imported: %d movies, %d series, %d channels, %d variants",
		source.ID, result.Movies, result.Series, result.Channels, result.Variants)
	return result, nil
}

// importM3U fetches the playlist (honoring the local cache), parses it and
// upserts movies, channels and variants.
func (s *Service) importM3U(ctx context.Context, source *models.Source) (*ImportResult, error) {
	path, err := s.fetchPlaylist(ctx, source.URL)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	defer f.Close()

	s.publishProgress(source.ID, "parsing", 0, 0, 0)
	playlist, err := parseM3U(f, s.cfg.ChunkSizeBytes)
	if err != nil {
		if errors.Is(err, ErrParsingFailed) || errors.Is(err, ErrNetwork) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	if playlist.EPGURL != "" && source.EPGURL == "" {
		if err := s.sources.SetEPGURL(ctx, source.ID, playlist.EPGURL); err != nil {
			log.Printf("[ingest] failed to record guide URL for source %d: %v", source.ID, err)
		}
	}

	unit, err := s.db.BeginUnit(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	defer unit.Rollback()

	result, err := s.upsertM3UEntries(ctx, unit, source.ID, playlist.Entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	if err := unit.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	result.SourceID = source.ID
	result.EPGURL = playlist.EPGURL
	return result, nil
}

// upsertM3UEntries writes parsed entries into one open unit of work.
// Movies dedup by exact title, channels by name; variants are linked in a
// second phase once channel rows exist.
func (s *Service) upsertM3UEntries(ctx context.Context, unit *database.UnitOfWork, sourceID int64, entries []m3uEntry) (*ImportResult, error) {
	existingTitles, err := unit.Catalog.ExistingMovieTitles(ctx)
	if err != nil {
		return nil, err
	}
	existingChannels, err := unit.Channels.ChannelIDsByName(ctx)
	if err != nil {
		return nil, err
	}

	var movies []models.Movie
	var channels []models.Channel
	var channelEntries []m3uEntry
	seenMovie := make(map[string]struct{})
	seenChannel := make(map[string]struct{})

	for _, e := range entries {
		if isMovieEntry(e) {
			title := normalizeTitle(e.Title)
			if _, ok := existingTitles[title]; ok {
				continue
			}
			if _, ok := seenMovie[title]; ok {
				continue
			}
			seenMovie[title] = struct{}{}
			movies = append(movies, models.Movie{
				StableID:   uuid.NewString(),
				SourceID:   &sourceID,
				Title:      title,
				StreamURL:  e.StreamURL,
				PosterURL:  e.LogoURL,
				GroupTitle: e.GroupTitle,
			})
			continue
		}

		channelEntries = append(channelEntries, e)
		if _, ok := existingChannels[e.Title]; ok {
			continue
		}
		if _, ok := seenChannel[e.Title]; ok {
			continue
		}
		seenChannel[e.Title] = struct{}{}
		channels = append(channels, models.Channel{
			StableID:   uuid.NewString(),
			SourceID:   &sourceID,
			Name:       e.Title,
			LogoURL:    e.LogoURL,
			GroupTitle: e.GroupTitle,
			TVGID:      e.TVGID,
		})
	}

	if err := unit.Catalog.InsertMovies(ctx, movies); err != nil {
		return nil, err
	}
	if err := unit.Channels.InsertChannels(ctx, channels); err != nil {
		return nil, err
	}
	s.publishProgress(sourceID, "linking", len(movies), len(channels), 0)

	// Second phase: reload the name map so freshly inserted channels get
	// their IDs, then attach every entry as a variant.
	channelIDs, err := unit.Channels.ChannelIDsByName(ctx)
	if err != nil {
		return nil, err
	}
	var variants []models.ChannelVariant
	for _, e := range channelEntries {
		id, ok := channelIDs[e.Title]
		if !ok {
			continue
		}
		variants = append(variants, models.ChannelVariant{
			ChannelID: id,
			Name:      e.Title,
			StreamURL: e.StreamURL,
		})
	}
	if err := unit.Channels.InsertVariants(ctx, variants); err != nil {
		return nil, err
	}

	return &ImportResult{
		Movies:   len(movies),
		Channels: len(channels),
		Variants: len(variants),
	}, nil
}

// importXtream walks the portal API: VOD, series with per-series episode
// listings, then live streams. One failed call aborts the whole import.
func (s *Service) importXtream(ctx context.Context, source *models.Source) (*ImportResult, error) {
	client := newXtreamClient(s.client, source.URL, source.Username, source.Password)

	vod, err := client.VODStreams(ctx)
	if err != nil {
		return nil, err
	}
	seriesList, err := client.Series(ctx)
	if err != nil {
		return nil, err
	}
	live, err := client.LiveStreams(ctx)
	if err != nil {
		return nil, err
	}

	unit, err := s.db.BeginUnit(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	defer unit.Rollback()

	result := &ImportResult{SourceID: source.ID}

	existingTitles, err := unit.Catalog.ExistingMovieTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	var movies []models.Movie
	seen := make(map[string]struct{})
	for _, v := range vod {
		title := normalizeTitle(v.Name)
		if _, ok := existingTitles[title]; ok {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		movies = append(movies, models.Movie{
			StableID:  uuid.NewString(),
			SourceID:  &source.ID,
			Title:     title,
			StreamURL: client.streamURL("movie", v.StreamID.String(), v.ContainerExtension),
			PosterURL: v.StreamIcon,
		})
	}
	if err := unit.Catalog.InsertMovies(ctx, movies); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	result.Movies = len(movies)
	s.publishProgress(source.ID, "vod", result.Movies, 0, 0)

	// Per-series detail calls are independent of the transaction; fan
	// them out with bounded concurrency, then upsert sequentially.
	infos := make([]*xtreamSeriesInfo, len(seriesList))
	workers := pool.New().
		WithMaxGoroutines(max(1, s.cfg.SeriesInfoConcurrency)).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i, sr := range seriesList {
		workers.Go(func(ctx context.Context) error {
			info, err := client.SeriesInfo(ctx, sr.SeriesID.String())
			if err != nil {
				return err
			}
			infos[i] = info
			return nil
		})
	}
	if err := workers.Wait(); err != nil {
		return nil, err
	}

	for i, sr := range seriesList {
		imported, episodes, err := s.importXtreamSeries(ctx, unit, client, source.ID, sr, infos[i])
		if err != nil {
			return nil, err
		}
		if imported {
			result.Series++
		}
		result.Episodes += episodes
	}
	s.publishProgress(source.ID, "series", result.Movies, 0, 0)

	channels, variants, err := s.upsertXtreamLive(ctx, unit, client, source.ID, live)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	result.Channels = channels
	result.Variants = variants

	if err := unit.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return result, nil
}

func (s *Service) importXtreamSeries(ctx context.Context, unit *database.UnitOfWork, client *xtreamClient, sourceID int64, sr xtreamSeries, info *xtreamSeriesInfo) (bool, int, error) {
	title := normalizeTitle(sr.Name)
	existing, err := unit.Catalog.GetSeriesByTitle(ctx, title)
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	imported := false
	series := existing
	if series == nil {
		series = &models.Series{
			StableID:  uuid.NewString(),
			SourceID:  &sourceID,
			Title:     title,
			PosterURL: sr.Cover,
			Summary:   sr.Plot,
		}
		if err := unit.Catalog.InsertSeries(ctx, series); err != nil {
			return false, 0, fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}
		imported = true
	}

	episodes := 0
	for seasonKey, eps := range info.Episodes {
		seasonNum := atoiDefault(seasonKey, 1)
		seasonID, err := unit.Catalog.EnsureSeason(ctx, series.ID, seasonNum)
		if err != nil {
			return false, 0, fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}
		for _, ep := range eps {
			num := atoiDefault(ep.EpisodeNum.String(), 0)
			episode := &models.Episode{
				StableID:      uuid.NewString(),
				SeasonID:      seasonID,
				EpisodeNumber: num,
				Title:         ep.Title,
				StreamURL:     client.streamURL("series", ep.ID.String(), ep.ContainerExtension),
			}
			if err := unit.Catalog.InsertEpisode(ctx, episode); err != nil {
				return false, 0, fmt.Errorf("%w: %v", ErrSaveFailed, err)
			}
			episodes++
		}
	}
	return imported, episodes, nil
}

func (s *Service) upsertXtreamLive(ctx context.Context, unit *database.UnitOfWork, client *xtreamClient, sourceID int64, live []xtreamLive) (int, int, error) {
	existing, err := unit.Channels.ChannelIDsByName(ctx)
	if err != nil {
		return 0, 0, err
	}

	var channels []models.Channel
	seen := make(map[string]struct{})
	for _, l := range live {
		if _, ok := existing[l.Name]; ok {
			continue
		}
		if _, ok := seen[l.Name]; ok {
			continue
		}
		seen[l.Name] = struct{}{}
		channels = append(channels, models.Channel{
			StableID: uuid.NewString(),
			SourceID: &sourceID,
			Name:     l.Name,
			LogoURL:  l.StreamIcon,
			TVGID:    l.EPGChannelID,
		})
	}
	if err := unit.Channels.InsertChannels(ctx, channels); err != nil {
		return 0, 0, err
	}

	channelIDs, err := unit.Channels.ChannelIDsByName(ctx)
	if err != nil {
		return 0, 0, err
	}
	var variants []models.ChannelVariant
	for _, l := range live {
		id, ok := channelIDs[l.Name]
		if !ok {
			continue
		}
		variants = append(variants, models.ChannelVariant{
			ChannelID: id,
			Name:      l.Name,
			StreamURL: client.streamURL("live", l.StreamID.String(), "ts"),
		})
	}
	if err := unit.Channels.InsertVariants(ctx, variants); err != nil {
		return 0, 0, err
	}
	return len(channels), len(variants), nil
}

// fetchPlaylist returns a local file holding the playlist body, reusing
// the cached copy while it is within the configured TTL.
func (s *Service) fetchPlaylist(ctx context.Context, sourceURL string) (string, error) {
	ttl := time.Duration(s.cfg.CacheTTLMinutes) * time.Minute
	cached, err := s.sources.GetCache(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	if cached != nil && cached.IsFresh(ttl) {
		if _, statErr := os.Stat(cached.FilePath); statErr == nil {
			log.Printf("[ingest] using cached playlist for %s", sourceURL)
			return cached.FilePath, nil
		}
	}

	resp, err := s.client.Get(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(s.cfg.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	path := filepath.Join(s.cfg.CacheDir, uuid.NewString()+".m3u")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create cache file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close cache file: %w", err)
	}

	err = s.sources.PutCache(ctx, models.PlaylistCache{
		SourceURL: sourceURL,
		FilePath:  path,
		FetchedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[ingest] failed to record playlist cache for %s: %v", sourceURL, err)
	}
	if cached != nil && cached.FilePath != path {
		os.Remove(cached.FilePath)
	}
	return path, nil
}

func (s *Service) publishProgress(sourceID int64, stage string, movies, channels, variants int) {
	s.bus.Publish(events.TopicImportProgress, events.ImportProgress{
		SourceID: sourceID,
		Stage:    stage,
		Movies:   movies,
		Channels: channels,
		Variants: variants,
	})
}

// normalizeTitle transliterates provider titles to plain ASCII and trims
// whitespace so dedup-by-title is stable across sources.
func normalizeTitle(title string) string {
	return strings.TrimSpace(unidecode.Unidecode(title))
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
