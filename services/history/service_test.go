package history

import (
	"context"
	"path/filepath"
	"testing"

	"streamvault/internal/database"
	"streamvault/models"
)

func setupHistoryService(t *testing.T) (*Service, int64) {
	t.Helper()
	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	profiles := database.NewProfileRepository(db.Connection())
	p := &models.Profile{Name: "Alex"}
	if err := profiles.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	return NewService(db), p.ID
}

func TestRecord_ClampsProgress(t *testing.T) {
	svc, profileID := setupHistoryService(t)
	ctx := context.Background()

	if err := svc.Record(ctx, profileID, models.MediaTypeMovie, 1, 1.7); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	h, err := svc.Progress(ctx, profileID, models.MediaTypeMovie, 1)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if h.Progress != 1 {
		t.Errorf("expected progress clamped to 1, got %v", h.Progress)
	}

	if err := svc.Record(ctx, profileID, models.MediaTypeMovie, 2, -0.5); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	h, err = svc.Progress(ctx, profileID, models.MediaTypeMovie, 2)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if h.Progress != 0 {
		t.Errorf("expected progress clamped to 0, got %v", h.Progress)
	}
}

func TestContinueWatching_FiltersFinishedAndUnstarted(t *testing.T) {
	svc, profileID := setupHistoryService(t)
	ctx := context.Background()

	if err := svc.Record(ctx, profileID, models.MediaTypeMovie, 1, 0.5); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := svc.Record(ctx, profileID, models.MediaTypeMovie, 2, 0.97); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := svc.Record(ctx, profileID, models.MediaTypeMovie, 3, 0); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	items, err := svc.ContinueWatching(ctx, profileID, 10)
	if err != nil {
		t.Fatalf("ContinueWatching failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected only the half-watched item, got %d", len(items))
	}
	if items[0].MediaID != 1 {
		t.Errorf("unexpected item %+v", items[0])
	}
}

func TestForget(t *testing.T) {
	svc, profileID := setupHistoryService(t)
	ctx := context.Background()

	if err := svc.Record(ctx, profileID, models.MediaTypeEpisode, 9, 0.3); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := svc.Forget(ctx, profileID, models.MediaTypeEpisode, 9); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	h, err := svc.Progress(ctx, profileID, models.MediaTypeEpisode, 9)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if h != nil {
		t.Errorf("expected no record after Forget, got %+v", h)
	}
}
