package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"streamvault/models"
)

// setupTestEPGRepo creates a test database with one channel and an EPG repository.
func setupTestEPGRepo(t *testing.T) (*EPGRepository, int64) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDB(Config{DatabasePath: dbPath})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	channels := NewChannelRepository(db.Connection())
	ctx := context.Background()
	if err := channels.InsertChannels(ctx, []models.Channel{{Name: "News 24"}}); err != nil {
		t.Fatalf("InsertChannels failed: %v", err)
	}
	byName, err := channels.ChannelIDsByName(ctx)
	if err != nil {
		t.Fatalf("ChannelIDsByName failed: %v", err)
	}
	return NewEPGRepository(db.Connection()), byName["News 24"]
}

func TestInsertEntries_DedupByStartAndTitle(t *testing.T) {
	repo, channelID := setupTestEPGRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC)
	entries := []models.EPGEntry{
		{ChannelID: channelID, Title: "Evening News", StartTime: start, EndTime: start.Add(time.Hour)},
	}
	if err := repo.InsertEntries(ctx, entries); err != nil {
		t.Fatalf("InsertEntries failed: %v", err)
	}
	// Same channel, start and title again: must not duplicate.
	if err := repo.InsertEntries(ctx, entries); err != nil {
		t.Fatalf("InsertEntries (repeat) failed: %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 entry after repeat insert, got %d", count)
	}
}

func TestPruneBefore_RemovesEndedEntries(t *testing.T) {
	repo, channelID := setupTestEPGRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	entries := []models.EPGEntry{
		{ChannelID: channelID, Title: "Old Show", StartTime: now.Add(-48 * time.Hour), EndTime: now.Add(-47 * time.Hour)},
		{ChannelID: channelID, Title: "Current Show", StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)},
	}
	if err := repo.InsertEntries(ctx, entries); err != nil {
		t.Fatalf("InsertEntries failed: %v", err)
	}

	pruned, err := repo.PruneBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned entry, got %d", pruned)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 remaining entry, got %d", count)
	}
}

func TestEntriesForChannel_OverlapWindow(t *testing.T) {
	repo, channelID := setupTestEPGRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	entries := []models.EPGEntry{
		{ChannelID: channelID, Title: "Morning Show", StartTime: base.Add(-3 * time.Hour), EndTime: base.Add(-2 * time.Hour)},
		{ChannelID: channelID, Title: "Midday Report", StartTime: base.Add(-30 * time.Minute), EndTime: base.Add(30 * time.Minute)},
		{ChannelID: channelID, Title: "Afternoon Film", StartTime: base.Add(time.Hour), EndTime: base.Add(3 * time.Hour)},
	}
	if err := repo.InsertEntries(ctx, entries); err != nil {
		t.Fatalf("InsertEntries failed: %v", err)
	}

	got, err := repo.EntriesForChannel(ctx, channelID, base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("EntriesForChannel failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 overlapping entries, got %d", len(got))
	}
	if got[0].Title != "Midday Report" {
		t.Errorf("expected Midday Report first, got %q", got[0].Title)
	}
}

func TestNowNext(t *testing.T) {
	repo, channelID := setupTestEPGRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 20, 0, 0, 0, time.UTC)
	entries := []models.EPGEntry{
		{ChannelID: channelID, Title: "Quiz Hour", StartTime: base.Add(-30 * time.Minute), EndTime: base.Add(30 * time.Minute)},
		{ChannelID: channelID, Title: "Late Film", StartTime: base.Add(30 * time.Minute), EndTime: base.Add(2 * time.Hour)},
	}
	if err := repo.InsertEntries(ctx, entries); err != nil {
		t.Fatalf("InsertEntries failed: %v", err)
	}

	now, next, err := repo.NowNext(ctx, channelID, base)
	if err != nil {
		t.Fatalf("NowNext failed: %v", err)
	}
	if now == nil || now.Title != "Quiz Hour" {
		t.Errorf("expected Quiz Hour airing, got %+v", now)
	}
	if next == nil || next.Title != "Late Film" {
		t.Errorf("expected Late Film next, got %+v", next)
	}
}
