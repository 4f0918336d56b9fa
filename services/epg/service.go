// Package epg keeps the programme guide current: it fetches XMLTV
// documents discovered on playlist sources, maps guide channel IDs onto
// imported channels and maintains a rolling retention window.
package epg

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"streamvault/config"
	"streamvault/internal/database"
	"streamvault/internal/httpx"
	"streamvault/internal/secrets"
	"streamvault/models"
)

// Service refreshes guide data for imported channels.
type Service struct {
	db      *database.DB
	sources *database.SourceRepository
	client  *httpx.Client
	secrets *secrets.Store
	cfg     config.EPGSettings
}

func NewService(db *database.DB, client *httpx.Client, store *secrets.Store, cfg config.EPGSettings) *Service {
	return &Service{
		db:      db,
		sources: database.NewSourceRepository(db.Connection()),
		client:  client,
		secrets: store,
		cfg:     cfg,
	}
}

// RefreshResult summarizes one guide refresh.
type RefreshResult struct {
	Inserted int   `json:"inserted"`
	Dropped  int   `json:"dropped"`
	Pruned   int64 `json:"pruned"`
}

// RefreshAll refreshes the guide for every active source that has a guide
// URL. A failing source is logged and skipped so one dead provider does
// not starve the others.
func (s *Service) RefreshAll(ctx context.Context) (*RefreshResult, error) {
	sources, err := s.sources.ListSources(ctx, true)
	if err != nil {
		return nil, err
	}

	total := &RefreshResult{}
	for _, src := range sources {
		guideURL := src.EPGURL
		if guideURL == "" {
			if password, err := s.secrets.Get(secrets.SourcePasswordKey(src.ID)); err == nil {
				src.Password = password
			}
			guideURL = xtreamGuideURL(src)
		}
		if guideURL == "" {
			continue
		}
		result, err := s.RefreshFromURL(ctx, guideURL)
		if err != nil {
			log.Printf("[epg] refresh for source %d failed: %v", src.ID, err)
			continue
		}
		total.Inserted += result.Inserted
		total.Dropped += result.Dropped
		total.Pruned += result.Pruned
	}
	return total, nil
}

// xtreamGuideURL derives the xmltv.php endpoint for Xtream portals, which
// publish a full guide even when the playlist names no url-tvg.
func xtreamGuideURL(src models.Source) string {
	if src.SourceType != models.SourceTypeXtream || src.Username == "" || src.Password == "" {
		return ""
	}
	q := url.Values{}
	q.Set("username", src.Username)
	q.Set("password", src.Password)
	return strings.TrimSuffix(src.URL, "/") + "/xmltv.php?" + q.Encode()
}

// RefreshFromURL fetches one XMLTV document and imports it.
func (s *Service) RefreshFromURL(ctx context.Context, guideURL string) (*RefreshResult, error) {
	resp, err := s.client.Get(ctx, guideURL)
	if err != nil {
		return nil, fmt.Errorf("fetch guide: %w", err)
	}
	defer resp.Body.Close()

	programmes, err := parseXMLTV(resp.Body)
	if err != nil {
		return nil, err
	}
	return s.importProgrammes(ctx, programmes)
}

// importProgrammes prunes expired entries, then inserts programmes for
// channels we know about. Programmes naming unknown guide IDs are dropped.
func (s *Service) importProgrammes(ctx context.Context, programmes []xmltvProgramme) (*RefreshResult, error) {
	unit, err := s.db.BeginUnit(ctx)
	if err != nil {
		return nil, err
	}
	defer unit.Rollback()

	retention := time.Duration(s.cfg.RetentionHours) * time.Hour
	pruned, err := unit.EPG.PruneBefore(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return nil, err
	}

	channelIDs, err := unit.Channels.ChannelIDsByTVGID(ctx)
	if err != nil {
		return nil, err
	}

	var entries []models.EPGEntry
	dropped := 0
	for _, p := range programmes {
		channelID, ok := channelIDs[p.ChannelID]
		if !ok {
			dropped++
			continue
		}
		entries = append(entries, models.EPGEntry{
			ChannelID:   channelID,
			Title:       p.Title,
			Description: p.Description,
			Category:    p.Category,
			StartTime:   p.Start.UTC(),
			EndTime:     p.Stop.UTC(),
		})
	}
	if err := unit.EPG.InsertEntries(ctx, entries); err != nil {
		return nil, err
	}
	if err := unit.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[epg] imported %d programmes (%d dropped, %d pruned)", len(entries), dropped, pruned)
	return &RefreshResult{Inserted: len(entries), Dropped: dropped, Pruned: pruned}, nil
}

// NowNext returns the airing and following programme for a channel.
func (s *Service) NowNext(ctx context.Context, channelID int64) (*models.EPGEntry, *models.EPGEntry, error) {
	repo := database.NewEPGRepository(s.db.Connection())
	return repo.NowNext(ctx, channelID, time.Now().UTC())
}

// Schedule returns programmes overlapping [from, to) for a channel.
func (s *Service) Schedule(ctx context.Context, channelID int64, from, to time.Time) ([]models.EPGEntry, error) {
	repo := database.NewEPGRepository(s.db.Connection())
	return repo.EntriesForChannel(ctx, channelID, from, to)
}
