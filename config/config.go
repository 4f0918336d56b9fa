package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings is the full on-disk configuration.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Database  DatabaseSettings  `json:"database"`
	Logging   LoggingSettings   `json:"logging"`
	Ingest    IngestSettings    `json:"ingest"`
	EPG       EPGSettings       `json:"epg"`
	Playback  PlaybackSettings  `json:"playback"`
	Metadata  MetadataSettings  `json:"metadata"`
	Subtitles SubtitleSettings  `json:"subtitles"`
	Downloads DownloadSettings  `json:"downloads"`
	Scheduler SchedulerSettings `json:"scheduler"`
	Kids      KidsSettings      `json:"kids"`
	Backup    BackupSettings    `json:"backup"`
}

type ServerSettings struct {
	ListenAddr        string `json:"listenAddr"`
	APIRatePerMinute  int    `json:"apiRatePerMinute"`
	APIRateBurst      int    `json:"apiRateBurst"`
}

type DatabaseSettings struct {
	Path string `json:"path"`
}

type LoggingSettings struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays"`
}

type IngestSettings struct {
	CacheDir              string  `json:"cacheDir"`
	CacheTTLMinutes       int     `json:"cacheTtlMinutes"`
	ChunkSizeBytes        int     `json:"chunkSizeBytes"`
	FetchRatePerSecond    float64 `json:"fetchRatePerSecond"`
	FetchBurst            int     `json:"fetchBurst"`
	FetchTimeoutSeconds   int     `json:"fetchTimeoutSeconds"`
	SeriesInfoConcurrency int     `json:"seriesInfoConcurrency"`
}

type EPGSettings struct {
	RetentionHours int `json:"retentionHours"`
}

type PlaybackSettings struct {
	ProgressIntervalSeconds   int  `json:"progressIntervalSeconds"`
	PreBufferEnabled          bool `json:"preBufferEnabled"`
	PreBufferThresholdSeconds int  `json:"preBufferThresholdSeconds"`
}

type MetadataSettings struct {
	APIKey        string `json:"apiKey"`
	Language      string `json:"language"`
	CacheDir      string `json:"cacheDir"`
	CacheTTLHours int    `json:"cacheTtlHours"`
}

type SubtitleSettings struct {
	APIKey string `json:"apiKey"`
}

type DownloadSettings struct {
	Dir        string `json:"dir"`
	MaxWorkers int    `json:"maxWorkers"`
	MaxRetries int    `json:"maxRetries"`
}

type SchedulerSettings struct {
	CheckIntervalSeconds  int `json:"checkIntervalSeconds"`
	RefreshIntervalHours  int `json:"refreshIntervalHours"`
	EPGRefreshIntervalHrs int `json:"epgRefreshIntervalHours"`
}

// KidsSettings controls content filtering for kids profiles. Terms wrapped
// in /slashes/ are matched as case-insensitive regex, everything else as a
// plain substring.
type KidsSettings struct {
	BlockedTerms []string `json:"blockedTerms"`
}

type BackupSettings struct {
	Dir            string `json:"dir"`
	RetentionDays  int    `json:"retentionDays"`
	RetentionCount int    `json:"retentionCount"`
}

// DefaultSettings returns the settings used when no file exists yet.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			ListenAddr:       ":8480",
			APIRatePerMinute: 300,
			APIRateBurst:     60,
		},
		Database: DatabaseSettings{Path: "data/streamvault.db"},
		Logging: LoggingSettings{
			Path:       "data/logs/streamvault.log",
			MaxSizeMB:  20,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Ingest: IngestSettings{
			CacheDir:              "data/playlists",
			CacheTTLMinutes:       360,
			ChunkSizeBytes:        64 * 1024,
			FetchRatePerSecond:    4,
			FetchBurst:            8,
			FetchTimeoutSeconds:   90,
			SeriesInfoConcurrency: 3,
		},
		EPG: EPGSettings{RetentionHours: 24},
		Playback: PlaybackSettings{
			ProgressIntervalSeconds:   30,
			PreBufferEnabled:          true,
			PreBufferThresholdSeconds: 120,
		},
		Metadata: MetadataSettings{
			Language:      "en-US",
			CacheDir:      "data/cache",
			CacheTTLHours: 24,
		},
		Downloads: DownloadSettings{
			Dir:        "data/downloads",
			MaxWorkers: 2,
			MaxRetries: 3,
		},
		Scheduler: SchedulerSettings{
			CheckIntervalSeconds:  60,
			RefreshIntervalHours:  12,
			EPGRefreshIntervalHrs: 6,
		},
		Kids: KidsSettings{
			BlockedTerms: []string{"xxx", "adult", "porn", "erotic", `/\b18\s*\+/`},
		},
		Backup: BackupSettings{
			Dir:            "data/backups",
			RetentionDays:  30,
			RetentionCount: 10,
		},
	}
}

// Manager loads and saves settings from a single JSON file.
type Manager struct {
	mu   sync.RWMutex
	path string
}

// NewManager creates a settings manager for the given file path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads settings from disk, falling back to defaults when the file
// does not exist yet.
func (m *Manager) Load() (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// Save writes settings to disk atomically (temp file then rename).
func (m *Manager) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings temp file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
