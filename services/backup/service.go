package backup

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"streamvault/config"
)

const (
	backupPrefix = "streamvault_backup_"
	backupSuffix = ".zip"

	databaseEntry = "streamvault.db"
	settingsEntry = "settings.json"
	secretsEntry  = "secrets.json"
)

// Manifest describes the contents of one backup archive, with a sha256
// checksum per entry.
type Manifest struct {
	Version   string            `json:"version"`
	CreatedAt time.Time         `json:"createdAt"`
	Files     map[string]string `json:"files"`
}

// Info is the listing entry for one backup archive.
type Info struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	Version   string    `json:"version,omitempty"`
}

// Service snapshots the database, settings file and secrets store into zip
// archives and enforces the retention policy on old ones.
type Service struct {
	mu           sync.Mutex
	db           *sql.DB
	settingsPath string
	secretsPath  string
	cfg          config.BackupSettings
}

func NewService(db *sql.DB, settingsPath, secretsPath string, cfg config.BackupSettings) (*Service, error) {
	if cfg.Dir == "" {
		cfg.Dir = "data/backups"
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return &Service{
		db:           db,
		settingsPath: settingsPath,
		secretsPath:  secretsPath,
		cfg:          cfg,
	}, nil
}

// Create writes a new backup archive and returns its listing entry. The
// database is snapshotted with VACUUM INTO so a consistent copy is taken
// while the server keeps writing.
func (s *Service) Create(ctx context.Context) (*Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := time.Now().UTC().Format("20060102-150405")
	filename := backupPrefix + timestamp + backupSuffix
	backupPath := filepath.Join(s.cfg.Dir, filename)

	tmpPath := backupPath + ".tmp"
	zipFile, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	zw := zip.NewWriter(zipFile)

	fail := func(err error) (*Info, error) {
		zw.Close()
		zipFile.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	manifest := Manifest{
		Version:   "1",
		CreatedAt: time.Now().UTC(),
		Files:     make(map[string]string),
	}

	checksum, err := s.addDatabase(ctx, zw)
	if err != nil {
		return fail(fmt.Errorf("backup database: %w", err))
	}
	manifest.Files[databaseEntry] = checksum

	for entry, srcPath := range map[string]string{
		settingsEntry: s.settingsPath,
		secretsEntry:  s.secretsPath,
	} {
		if _, err := os.Stat(srcPath); errors.Is(err, os.ErrNotExist) {
			log.Printf("[backup] skipping %s (not found)", entry)
			continue
		}
		checksum, err := addFile(zw, srcPath, entry)
		if err != nil {
			return fail(fmt.Errorf("backup %s: %w", entry, err))
		}
		manifest.Files[entry] = checksum
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fail(fmt.Errorf("marshal manifest: %w", err))
	}
	mw, err := zw.Create("manifest.json")
	if err != nil {
		return fail(fmt.Errorf("create manifest entry: %w", err))
	}
	if _, err := mw.Write(manifestJSON); err != nil {
		return fail(fmt.Errorf("write manifest: %w", err))
	}

	if err := zw.Close(); err != nil {
		zipFile.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close backup archive: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close backup file: %w", err)
	}
	if err := os.Rename(tmpPath, backupPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("finalize backup: %w", err)
	}

	stat, err := os.Stat(backupPath)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}

	info := &Info{
		Filename:  filename,
		Size:      stat.Size(),
		CreatedAt: manifest.CreatedAt,
		Version:   manifest.Version,
	}
	log.Printf("[backup] created %s (%d bytes, %d entries)", filename, info.Size, len(manifest.Files))
	return info, nil
}

// addDatabase snapshots the live database into a temp file with VACUUM INTO
// and streams the result into the archive.
func (s *Service) addDatabase(ctx context.Context, zw *zip.Writer) (string, error) {
	tmp, err := os.CreateTemp(s.cfg.Dir, "snapshot-*.db")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", tmpPath); err != nil {
		return "", err
	}
	return addFile(zw, tmpPath, databaseEntry)
}

// addFile copies one file into the archive, hashing it on the way through.
func addFile(zw *zip.Writer, srcPath, entry string) (string, error) {
	file, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	w, err := zw.Create(entry)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(w, io.TeeReader(file, hasher)); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// List returns all backups, newest first.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	backups := []Info{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		info := Info{Filename: name, Size: stat.Size(), CreatedAt: stat.ModTime().UTC()}
		if manifest, err := readManifest(filepath.Join(s.cfg.Dir, name)); err == nil {
			info.CreatedAt = manifest.CreatedAt
			info.Version = manifest.Version
		}
		backups = append(backups, info)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

func readManifest(zipPath string) (*Manifest, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "manifest.json" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		var manifest Manifest
		if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
			return nil, err
		}
		return &manifest, nil
	}
	return nil, errors.New("manifest not found in backup")
}

// Delete removes one backup archive by filename.
func (s *Service) Delete(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateFilename(filename); err != nil {
		return err
	}
	backupPath := filepath.Join(s.cfg.Dir, filename)
	if _, err := os.Stat(backupPath); errors.Is(err, os.ErrNotExist) {
		return errors.New("backup not found")
	}
	if err := os.Remove(backupPath); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

// Open returns a reader over one archive for download, plus its size.
func (s *Service) Open(filename string) (io.ReadCloser, int64, error) {
	if err := validateFilename(filename); err != nil {
		return nil, 0, err
	}
	file, err := os.Open(filepath.Join(s.cfg.Dir, filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, errors.New("backup not found")
		}
		return nil, 0, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}
	return file, stat.Size(), nil
}

// Prune applies the retention policy and returns how many archives were
// removed. Both rules apply when both are set.
func (s *Service) Prune() (int, error) {
	if s.cfg.RetentionDays == 0 && s.cfg.RetentionCount == 0 {
		return 0, nil
	}

	backups, err := s.List()
	if err != nil {
		return 0, err
	}

	toDelete := make(map[string]bool)
	if s.cfg.RetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
		for _, b := range backups {
			if b.CreatedAt.Before(cutoff) {
				toDelete[b.Filename] = true
			}
		}
	}
	if s.cfg.RetentionCount > 0 {
		// List is sorted newest first.
		for i := s.cfg.RetentionCount; i < len(backups); i++ {
			toDelete[backups[i].Filename] = true
		}
	}

	deleted := 0
	for filename := range toDelete {
		if err := s.Delete(filename); err != nil {
			log.Printf("[backup] failed to delete old backup %s: %v", filename, err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		log.Printf("[backup] pruned %d old backups", deleted)
	}
	return deleted, nil
}

// validateFilename rejects anything that is not a bare backup archive name,
// closing off path traversal through the API.
func validateFilename(filename string) error {
	if strings.ContainsAny(filename, `/\`) || strings.HasPrefix(filename, ".") {
		return errors.New("invalid backup filename")
	}
	if !strings.HasPrefix(filename, backupPrefix) || !strings.HasSuffix(filename, backupSuffix) {
		return errors.New("invalid backup filename")
	}
	return nil
}
