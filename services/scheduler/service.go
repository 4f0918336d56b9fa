// Package scheduler runs the recurring background work: playlist source
// refreshes, guide refreshes, download queue processing, cache cleanup and
// nightly backups.
package scheduler

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"streamvault/config"
	"streamvault/internal/database"
	"streamvault/services/backup"
	"streamvault/services/downloads"
	"streamvault/services/epg"
	"streamvault/services/ingest"
)

// Task names accepted by RunTaskNow.
const (
	TaskSourceRefresh = "source-refresh"
	TaskEPGRefresh    = "epg-refresh"
	TaskDownloads     = "downloads"
	TaskCacheCleanup  = "cache-cleanup"
	TaskBackup        = "backup"
)

const backupInterval = 24 * time.Hour

const taskTimeout = 30 * time.Minute

// Service drives the recurring background tasks on a single check loop.
type Service struct {
	sources   *database.SourceRepository
	ingest    *ingest.Service
	epg       *epg.Service
	downloads *downloads.Service
	backup    *backup.Service
	cfg       config.SchedulerSettings

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Task state tracking (in-memory, not persisted)
	taskMu        sync.Mutex
	taskRunning   map[string]bool
	lastEPGRun    time.Time
	lastBackupRun time.Time
}

func NewService(db *database.DB, ingestSvc *ingest.Service, epgSvc *epg.Service, downloadsSvc *downloads.Service, backupSvc *backup.Service, cfg config.SchedulerSettings) *Service {
	if cfg.CheckIntervalSeconds <= 0 {
		cfg.CheckIntervalSeconds = 60
	}
	if cfg.RefreshIntervalHours <= 0 {
		cfg.RefreshIntervalHours = 12
	}
	if cfg.EPGRefreshIntervalHrs <= 0 {
		cfg.EPGRefreshIntervalHrs = 6
	}
	return &Service{
		sources:     database.NewSourceRepository(db.Connection()),
		ingest:      ingestSvc,
		epg:         epgSvc,
		downloads:   downloadsSvc,
		backup:      backupSvc,
		cfg:         cfg,
		taskRunning: make(map[string]bool),
	}
}

// Start begins the background check loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(loopCtx)

	log.Println("[scheduler] started")
	return nil
}

// Stop cancels the loop and waits for in-flight tasks, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] stopped")
	case <-ctx.Done():
		log.Println("[scheduler] stopped before all tasks finished")
	}

	s.running = false
	return nil
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	interval := time.Duration(s.cfg.CheckIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.checkAndRun(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

func (s *Service) checkAndRun(ctx context.Context) {
	s.spawn(ctx, TaskSourceRefresh, s.refreshDueSources)
	s.spawn(ctx, TaskEPGRefresh, s.refreshEPGIfDue)
	s.spawn(ctx, TaskDownloads, s.processDownloads)
	s.spawn(ctx, TaskCacheCleanup, s.cleanCaches)
	s.spawn(ctx, TaskBackup, s.backupIfDue)
}

// spawn runs one named task in the background, skipping it while a
// previous run is still going.
func (s *Service) spawn(ctx context.Context, name string, run func(context.Context) error) {
	s.taskMu.Lock()
	if s.taskRunning[name] {
		s.taskMu.Unlock()
		return
	}
	s.taskRunning[name] = true
	s.taskMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.taskMu.Lock()
			delete(s.taskRunning, name)
			s.taskMu.Unlock()
		}()

		taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
		defer cancel()

		if err := run(taskCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[scheduler] task %s failed: %v", name, err)
		}
	}()
}

// RunTaskNow executes one task immediately, outside its schedule.
func (s *Service) RunTaskNow(ctx context.Context, name string) error {
	switch name {
	case TaskSourceRefresh:
		return s.refreshDueSources(ctx)
	case TaskEPGRefresh:
		_, err := s.epg.RefreshAll(ctx)
		return err
	case TaskDownloads:
		return s.processDownloads(ctx)
	case TaskCacheCleanup:
		return s.cleanCaches(ctx)
	case TaskBackup:
		return s.runBackup(ctx)
	default:
		return errors.New("unknown task: " + name)
	}
}

// IsTaskRunning reports whether a named task is currently executing.
func (s *Service) IsTaskRunning(name string) bool {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	return s.taskRunning[name]
}

// refreshDueSources re-imports every active source whose last refresh is
// older than the configured interval.
func (s *Service) refreshDueSources(ctx context.Context) error {
	interval := time.Duration(s.cfg.RefreshIntervalHours) * time.Hour

	sources, err := s.sources.ListSources(ctx, true)
	if err != nil {
		return err
	}

	for _, src := range sources {
		if src.LastRefreshAt != nil && time.Since(*src.LastRefreshAt) < interval {
			continue
		}
		log.Printf("[scheduler] refreshing source %d (%s)", src.ID, src.Name)
		if _, err := s.ingest.ImportSource(ctx, src.ID); err != nil {
			log.Printf("[scheduler] source %d refresh failed: %v", src.ID, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (s *Service) refreshEPGIfDue(ctx context.Context) error {
	interval := time.Duration(s.cfg.EPGRefreshIntervalHrs) * time.Hour

	s.taskMu.Lock()
	due := time.Since(s.lastEPGRun) >= interval
	s.taskMu.Unlock()
	if !due {
		return nil
	}

	result, err := s.epg.RefreshAll(ctx)
	if err != nil {
		return err
	}

	s.taskMu.Lock()
	s.lastEPGRun = time.Now()
	s.taskMu.Unlock()

	log.Printf("[scheduler] guide refreshed: %d entries imported, %d pruned", result.Inserted, result.Pruned)
	return nil
}

func (s *Service) processDownloads(ctx context.Context) error {
	return s.downloads.ProcessQueue(ctx)
}

// cleanCaches drops playlist cache rows past the refresh interval and
// removes their files.
func (s *Service) cleanCaches(ctx context.Context) error {
	cutoff := time.Now().Add(-time.Duration(s.cfg.RefreshIntervalHours) * time.Hour)
	stale, err := s.sources.ExpireCache(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[scheduler] failed to remove stale playlist cache %s: %v", path, err)
		}
	}
	if len(stale) > 0 {
		log.Printf("[scheduler] removed %d stale playlist cache file(s)", len(stale))
	}
	return nil
}

func (s *Service) backupIfDue(ctx context.Context) error {
	if s.backup == nil {
		return nil
	}

	s.taskMu.Lock()
	due := time.Since(s.lastBackupRun) >= backupInterval
	s.taskMu.Unlock()
	if !due {
		return nil
	}

	if err := s.runBackup(ctx); err != nil {
		return err
	}

	s.taskMu.Lock()
	s.lastBackupRun = time.Now()
	s.taskMu.Unlock()
	return nil
}

func (s *Service) runBackup(ctx context.Context) error {
	if s.backup == nil {
		return errors.New("backups are not configured")
	}
	if _, err := s.backup.Create(ctx); err != nil {
		return err
	}
	_, err := s.backup.Prune()
	return err
}
