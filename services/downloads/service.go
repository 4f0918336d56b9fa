// Package downloads saves offline copies of movies and episodes to local
// storage, working through the queued records with a bounded worker pool.
package downloads

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sourcegraph/conc/pool"

	"streamvault/config"
	"streamvault/internal/database"
	"streamvault/internal/events"
	"streamvault/models"
	"streamvault/utils"
)

const (
	defaultMaxWorkers = 2
	defaultMaxRetries = 3

	// progressStride is how many bytes are written between progress
	// updates, so big files don't hammer the database.
	progressStride = 4 << 20

	sniffSize = 3072
)

// Service downloads media to local files for offline playback.
type Service struct {
	downloads *database.DownloadRepository
	catalog   *database.CatalogRepository
	http      *http.Client
	bus       *events.Bus
	cfg       config.DownloadSettings
}

func NewService(db *database.DB, bus *events.Bus, cfg config.DownloadSettings) *Service {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Service{
		downloads: database.NewDownloadRepository(db.Connection()),
		catalog:   database.NewCatalogRepository(db.Connection()),
		http:      &http.Client{},
		bus:       bus,
		cfg:       cfg,
	}
}

// Enqueue records a download request. The transfer itself happens when
// ProcessQueue runs.
func (s *Service) Enqueue(ctx context.Context, profileID int64, mediaType models.MediaType, mediaID int64) (*models.Download, error) {
	if _, err := s.streamURLFor(ctx, mediaType, mediaID); err != nil {
		return nil, err
	}

	d := &models.Download{ProfileID: profileID, MediaType: mediaType, MediaID: mediaID}
	if err := s.downloads.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to queue download: %w", err)
	}

	log.Printf("[downloads] queued download %d (%s %d)", d.ID, mediaType, mediaID)
	s.publishState(d.ID, models.DownloadQueued, 0, 0, "")
	return d, nil
}

// ProcessQueue works through all queued downloads with a bounded worker
// pool and returns once every transfer has finished or failed.
func (s *Service) ProcessQueue(ctx context.Context) error {
	queued, err := s.downloads.ListQueued(ctx)
	if err != nil {
		return fmt.Errorf("failed to list queued downloads: %w", err)
	}
	if len(queued) == 0 {
		return nil
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	log.Printf("[downloads] processing %d queued download(s) with %d worker(s)", len(queued), s.cfg.MaxWorkers)
	workers := pool.New().WithMaxGoroutines(s.cfg.MaxWorkers)
	for _, d := range queued {
		workers.Go(func() {
			s.run(ctx, &d)
		})
	}
	workers.Wait()
	return nil
}

func (s *Service) run(ctx context.Context, d *models.Download) {
	url, err := s.streamURLFor(ctx, d.MediaType, d.MediaID)
	if err != nil {
		s.fail(ctx, d.ID, err)
		return
	}
	// Some providers hand out stream URLs with raw spaces in the path.
	if encoded, err := utils.EncodeURLWithSpaces(url); err == nil {
		url = encoded
	}

	if err := s.downloads.SetStatus(ctx, d.ID, models.DownloadInProgress, ""); err != nil {
		log.Printf("[downloads] failed to mark download %d as downloading: %v", d.ID, err)
		return
	}
	s.publishState(d.ID, models.DownloadInProgress, 0, 0, "")

	var filePath, contentType string
	err = retry.Do(
		func() error {
			var ferr error
			filePath, contentType, ferr = s.fetch(ctx, d.ID, url)
			return ferr
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.cfg.MaxRetries)+1),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		s.fail(ctx, d.ID, err)
		return
	}

	if err := s.downloads.SetResult(ctx, d.ID, filePath, contentType); err != nil {
		s.fail(ctx, d.ID, fmt.Errorf("failed to record download result: %w", err))
		return
	}
	if err := s.downloads.SetStatus(ctx, d.ID, models.DownloadCompleted, ""); err != nil {
		log.Printf("[downloads] failed to mark download %d as completed: %v", d.ID, err)
		return
	}

	final, err := s.downloads.Get(ctx, d.ID)
	if err != nil || final == nil {
		log.Printf("[downloads] download %d completed but could not be reloaded: %v", d.ID, err)
		return
	}
	log.Printf("[downloads] completed download %d (%d bytes, %s)", d.ID, final.BytesDone, contentType)
	s.publishState(d.ID, models.DownloadCompleted, final.BytesDone, final.TotalBytes, "")
}

// fetch streams the media into a temp file, validating the payload before
// committing. A provider that serves an HTML error page with status 200
// must not end up saved as a movie.
func (s *Service) fetch(ctx context.Context, downloadID int64, url string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", retry.Unrecoverable(err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", "", fmt.Errorf("server returned %s", resp.Status)
		}
		return "", "", retry.Unrecoverable(fmt.Errorf("server returned %s", resp.Status))
	}

	head := make([]byte, sniffSize)
	n, err := io.ReadFull(resp.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", "", err
	}
	head = head[:n]

	kind := mimetype.Detect(head)
	if kind.Is("text/html") {
		return "", "", retry.Unrecoverable(fmt.Errorf("server returned an HTML page instead of media"))
	}

	tmpPath := filepath.Join(s.cfg.Dir, fmt.Sprintf("%d.partial", downloadID))
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", "", retry.Unrecoverable(err)
	}
	defer f.Close()

	if _, err := f.Write(head); err != nil {
		os.Remove(tmpPath)
		return "", "", retry.Unrecoverable(err)
	}

	total := resp.ContentLength
	written := int64(len(head))
	s.reportProgress(ctx, downloadID, written, total)

	buf := make([]byte, 256<<10)
	var sinceUpdate int64
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				os.Remove(tmpPath)
				return "", "", retry.Unrecoverable(werr)
			}
			written += int64(n)
			sinceUpdate += int64(n)
			if sinceUpdate >= progressStride {
				sinceUpdate = 0
				s.reportProgress(ctx, downloadID, written, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			os.Remove(tmpPath)
			return "", "", rerr
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", "", retry.Unrecoverable(err)
	}

	finalPath := filepath.Join(s.cfg.Dir, fmt.Sprintf("%d%s", downloadID, kind.Extension()))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", "", retry.Unrecoverable(err)
	}

	s.reportProgress(ctx, downloadID, written, written)
	return finalPath, kind.String(), nil
}

func (s *Service) reportProgress(ctx context.Context, downloadID, bytesDone, totalBytes int64) {
	if totalBytes < 0 {
		totalBytes = 0
	}
	if err := s.downloads.SetProgress(ctx, downloadID, bytesDone, totalBytes); err != nil {
		log.Printf("[downloads] failed to record progress for download %d: %v", downloadID, err)
	}
	s.publishState(downloadID, models.DownloadInProgress, bytesDone, totalBytes, "")
}

func (s *Service) fail(ctx context.Context, downloadID int64, cause error) {
	log.Printf("[downloads] download %d failed: %v", downloadID, cause)
	if err := s.downloads.SetStatus(ctx, downloadID, models.DownloadFailed, cause.Error()); err != nil {
		log.Printf("[downloads] failed to mark download %d as failed: %v", downloadID, err)
	}
	s.publishState(downloadID, models.DownloadFailed, 0, 0, cause.Error())
}

// List returns all downloads owned by a profile, newest first.
func (s *Service) List(ctx context.Context, profileID int64) ([]models.Download, error) {
	return s.downloads.ListByProfile(ctx, profileID)
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Download, error) {
	return s.downloads.Get(ctx, id)
}

// Remove deletes the download record and its local file, if any.
func (s *Service) Remove(ctx context.Context, id int64) error {
	d, err := s.downloads.Get(ctx, id)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("download %d not found", id)
	}

	if d.FilePath != "" {
		if err := os.Remove(d.FilePath); err != nil && !os.IsNotExist(err) {
			log.Printf("[downloads] failed to remove file for download %d: %v", id, err)
		}
	}
	return s.downloads.Delete(ctx, id)
}

func (s *Service) streamURLFor(ctx context.Context, mediaType models.MediaType, mediaID int64) (string, error) {
	switch mediaType {
	case models.MediaTypeMovie:
		movie, err := s.catalog.GetMovieByID(ctx, mediaID)
		if err != nil {
			return "", err
		}
		if movie == nil {
			return "", fmt.Errorf("movie %d not found", mediaID)
		}
		if movie.StreamURL == "" {
			return "", fmt.Errorf("movie %d has no stream URL", mediaID)
		}
		if err := utils.ValidateMediaURL(movie.StreamURL); err != nil {
			return "", err
		}
		return movie.StreamURL, nil

	case models.MediaTypeEpisode:
		episode, err := s.catalog.GetEpisodeByID(ctx, mediaID)
		if err != nil {
			return "", err
		}
		if episode == nil {
			return "", fmt.Errorf("episode %d not found", mediaID)
		}
		if episode.StreamURL == "" {
			return "", fmt.Errorf("episode %d has no stream URL", mediaID)
		}
		if err := utils.ValidateMediaURL(episode.StreamURL); err != nil {
			return "", err
		}
		return episode.StreamURL, nil

	default:
		return "", fmt.Errorf("cannot download media type %q", mediaType)
	}
}

func (s *Service) publishState(downloadID int64, status models.DownloadStatus, bytesDone, totalBytes int64, errText string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TopicDownloadState, events.DownloadState{
		DownloadID: downloadID,
		Status:     string(status),
		BytesDone:  bytesDone,
		TotalBytes: totalBytes,
		Error:      errText,
	})
}
