package downloads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"streamvault/config"
	"streamvault/internal/database"
	"streamvault/internal/events"
	"streamvault/models"
)

// fakeMP4 starts with an ISO base media file header so content sniffing
// recognizes it as video.
var fakeMP4 = append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}, []byte(strings.Repeat("x", 8192))...)

func setupDownloadsService(t *testing.T) (*Service, *database.DB, int64) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	profiles := database.NewProfileRepository(db.Connection())
	p := &models.Profile{Name: "Alex"}
	if err := profiles.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	svc := NewService(db, events.NewBus(), config.DownloadSettings{
		Dir:        filepath.Join(dir, "downloads"),
		MaxWorkers: 2,
		MaxRetries: 1,
	})
	return svc, db, p.ID
}

func seedMovie(t *testing.T, db *database.DB, title, streamURL string) int64 {
	t.Helper()
	ctx := context.Background()
	catalog := database.NewCatalogRepository(db.Connection())
	if err := catalog.InsertMovies(ctx, []models.Movie{{Title: title, StreamURL: streamURL}}); err != nil {
		t.Fatalf("InsertMovies failed: %v", err)
	}
	movie, err := catalog.GetMovieByTitle(ctx, title)
	if err != nil || movie == nil {
		t.Fatalf("GetMovieByTitle failed: %v", err)
	}
	return movie.ID
}

func TestEnqueue_RequiresKnownMedia(t *testing.T) {
	svc, _, profileID := setupDownloadsService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, profileID, models.MediaTypeMovie, 999); err == nil {
		t.Fatal("expected error for unknown movie")
	}
	if _, err := svc.Enqueue(ctx, profileID, models.MediaTypeChannel, 1); err == nil {
		t.Fatal("expected error for live channel download")
	}
}

func TestProcessQueue_DownloadsMovie(t *testing.T) {
	svc, db, profileID := setupDownloadsService(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(fakeMP4)
	}))
	t.Cleanup(srv.Close)

	movieID := seedMovie(t, db, "Night Train", srv.URL+"/movie.mp4")

	d, err := svc.Enqueue(ctx, profileID, models.MediaTypeMovie, movieID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if d.Status != models.DownloadQueued {
		t.Fatalf("expected queued status, got %q", d.Status)
	}

	if err := svc.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}

	got, err := svc.Get(ctx, d.ID)
	if err != nil || got == nil {
		t.Fatalf("failed to reload download: %v", err)
	}
	if got.Status != models.DownloadCompleted {
		t.Fatalf("expected completed status, got %q (error %q)", got.Status, got.Error)
	}
	if got.FilePath == "" {
		t.Fatal("expected a file path on the completed download")
	}
	data, err := os.ReadFile(got.FilePath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if len(data) != len(fakeMP4) {
		t.Fatalf("expected %d bytes on disk, got %d", len(fakeMP4), len(data))
	}
	if got.BytesDone != int64(len(fakeMP4)) {
		t.Fatalf("expected %d bytes recorded, got %d", len(fakeMP4), got.BytesDone)
	}
}

func TestProcessQueue_RejectsHTMLErrorPage(t *testing.T) {
	svc, db, profileID := setupDownloadsService(t)
	ctx := context.Background()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<!DOCTYPE html><html><body>account expired</body></html>"))
	}))
	t.Cleanup(srv.Close)

	movieID := seedMovie(t, db, "Broken Link", srv.URL+"/movie.mp4")
	d, err := svc.Enqueue(ctx, profileID, models.MediaTypeMovie, movieID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := svc.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}

	got, err := svc.Get(ctx, d.ID)
	if err != nil || got == nil {
		t.Fatalf("failed to reload download: %v", err)
	}
	if got.Status != models.DownloadFailed {
		t.Fatalf("expected failed status, got %q", got.Status)
	}
	if got.Error == "" {
		t.Fatal("expected an error message on the failed download")
	}
	// An HTML payload is unrecoverable and must not be retried.
	if n := requests.Load(); n != 1 {
		t.Fatalf("expected exactly one request, got %d", n)
	}
}

func TestProcessQueue_RetriesServerErrors(t *testing.T) {
	svc, db, profileID := setupDownloadsService(t)
	ctx := context.Background()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(fakeMP4)
	}))
	t.Cleanup(srv.Close)

	movieID := seedMovie(t, db, "Flaky Host", srv.URL+"/movie.mp4")
	d, err := svc.Enqueue(ctx, profileID, models.MediaTypeMovie, movieID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := svc.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}

	got, err := svc.Get(ctx, d.ID)
	if err != nil || got == nil {
		t.Fatalf("failed to reload download: %v", err)
	}
	if got.Status != models.DownloadCompleted {
		t.Fatalf("expected completed after retry, got %q (error %q)", got.Status, got.Error)
	}
	if n := requests.Load(); n != 2 {
		t.Fatalf("expected two requests, got %d", n)
	}
}

func TestRemove_DeletesRecordAndFile(t *testing.T) {
	svc, db, profileID := setupDownloadsService(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fakeMP4)
	}))
	t.Cleanup(srv.Close)

	movieID := seedMovie(t, db, "Short Stay", srv.URL+"/movie.mp4")
	d, err := svc.Enqueue(ctx, profileID, models.MediaTypeMovie, movieID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := svc.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}

	got, err := svc.Get(ctx, d.ID)
	if err != nil || got == nil {
		t.Fatalf("failed to reload download: %v", err)
	}

	if err := svc.Remove(ctx, d.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(got.FilePath); !os.IsNotExist(err) {
		t.Fatalf("expected downloaded file to be deleted, stat err: %v", err)
	}

	remaining, err := svc.List(ctx, profileID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, r := range remaining {
		if r.ID == d.ID {
			t.Fatal("expected download record to be deleted")
		}
	}
}
