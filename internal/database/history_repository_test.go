package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"streamvault/models"
)

// setupTestHistoryRepo creates a test database with one profile.
func setupTestHistoryRepo(t *testing.T) (*HistoryRepository, int64) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDB(Config{DatabasePath: dbPath})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	profiles := NewProfileRepository(db.Connection())
	p := &models.Profile{Name: "Alex"}
	if err := profiles.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	return NewHistoryRepository(db.Connection()), p.ID
}

func TestHistoryUpsert_OneRecordPerItem(t *testing.T) {
	repo, profileID := setupTestHistoryRepo(t)
	ctx := context.Background()

	h := models.WatchHistory{
		ProfileID:     profileID,
		MediaType:     models.MediaTypeMovie,
		MediaID:       42,
		Progress:      0.25,
		LastWatchedAt: time.Now().UTC(),
	}
	if err := repo.Upsert(ctx, h); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	h.Progress = 0.5
	if err := repo.Upsert(ctx, h); err != nil {
		t.Fatalf("Upsert (update) failed: %v", err)
	}

	got, err := repo.Get(ctx, profileID, models.MediaTypeMovie, 42)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected history record, got nil")
	}
	if got.Progress != 0.5 {
		t.Errorf("expected progress 0.5 after upsert, got %v", got.Progress)
	}

	recent, err := repo.ListRecent(ctx, profileID, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("expected a single record after double upsert, got %d", len(recent))
	}
}

func TestHistoryListRecent_NewestFirst(t *testing.T) {
	repo, profileID := setupTestHistoryRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	records := []models.WatchHistory{
		{ProfileID: profileID, MediaType: models.MediaTypeMovie, MediaID: 1, Progress: 1, LastWatchedAt: now.Add(-2 * time.Hour)},
		{ProfileID: profileID, MediaType: models.MediaTypeEpisode, MediaID: 2, Progress: 0.4, LastWatchedAt: now},
		{ProfileID: profileID, MediaType: models.MediaTypeMovie, MediaID: 3, Progress: 0.1, LastWatchedAt: now.Add(-time.Hour)},
	}
	for _, h := range records {
		if err := repo.Upsert(ctx, h); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	recent, err := repo.ListRecent(ctx, profileID, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records with limit 2, got %d", len(recent))
	}
	if recent[0].MediaID != 2 || recent[1].MediaID != 3 {
		t.Errorf("expected newest-first order [2 3], got [%d %d]", recent[0].MediaID, recent[1].MediaID)
	}
}

func TestHistoryDelete(t *testing.T) {
	repo, profileID := setupTestHistoryRepo(t)
	ctx := context.Background()

	h := models.WatchHistory{
		ProfileID:     profileID,
		MediaType:     models.MediaTypeChannel,
		MediaID:       7,
		Progress:      0,
		LastWatchedAt: time.Now().UTC(),
	}
	if err := repo.Upsert(ctx, h); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := repo.Delete(ctx, profileID, models.MediaTypeChannel, 7); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := repo.Get(ctx, profileID, models.MediaTypeChannel, 7)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected record to be deleted, got %+v", got)
	}
}
