package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"streamvault/config"
	"streamvault/internal/database"
	"streamvault/internal/events"
	"streamvault/internal/httpx"
	"streamvault/internal/secrets"
	"streamvault/models"
	"streamvault/services/ingest"
)

func setupSourcesHandler(t *testing.T) (*SourcesHandler, *mux.Router, *secrets.Store, *database.DB) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := secrets.Open(filepath.Join(dir, "secrets.json"), "test-passphrase")
	if err != nil {
		t.Fatalf("failed to open secrets store: %v", err)
	}

	client := httpx.NewClient(httpx.Config{RequestsPerSecond: 1000, Burst: 1000, Retries: 0})
	ingestSvc := ingest.NewService(db, client, events.NewBus(), store, config.IngestSettings{
		CacheDir:        filepath.Join(dir, "playlists"),
		CacheTTLMinutes: 60,
	})

	h := NewSourcesHandler(db, store, ingestSvc)
	r := mux.NewRouter()
	r.HandleFunc("/api/sources", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/sources", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/sources/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/sources/{id}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/sources/{id}/import", h.Import).Methods(http.MethodPost)
	return h, r, store, db
}

func TestCreateSource_StoresPasswordInSecrets(t *testing.T) {
	_, router, store, _ := setupSourcesHandler(t)

	body := `{"name":"Provider","url":"http://portal.example.com/get.php?username=u&password=p","username":"u","password":"p"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var src models.Source
	if err := json.NewDecoder(rec.Body).Decode(&src); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if src.ID == 0 {
		t.Fatal("expected source ID to be assigned")
	}
	if src.SourceType != models.SourceTypeXtream {
		t.Fatalf("expected xtream source type, got %q", src.SourceType)
	}

	// The password must be retrievable from the store but absent from
	// the serialized source.
	password, err := store.Get(secrets.SourcePasswordKey(src.ID))
	if err != nil {
		t.Fatalf("failed to read password from secrets: %v", err)
	}
	if password != "p" {
		t.Fatalf("expected stored password %q, got %q", "p", password)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte(`"password"`)) {
		t.Fatal("response must not contain the password")
	}
}

func TestCreateSource_RejectsMissingFields(t *testing.T) {
	_, router, _, _ := setupSourcesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewBufferString(`{"name":"No URL"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListSources_FiltersActive(t *testing.T) {
	_, router, _, db := setupSourcesHandler(t)
	ctx := context.Background()

	sources := database.NewSourceRepository(db.Connection())
	for i, name := range []string{"One", "Two"} {
		src := &models.Source{Name: name, SourceType: models.SourceTypeM3U, URL: fmt.Sprintf("http://example.com/%d.m3u", i), IsActive: true}
		if err := sources.CreateSource(ctx, src); err != nil {
			t.Fatalf("failed to seed source: %v", err)
		}
		if name == "Two" {
			if err := sources.SetActive(ctx, src.ID, false); err != nil {
				t.Fatalf("failed to deactivate source: %v", err)
			}
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sources?active=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []models.Source
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 1 || got[0].Name != "One" {
		t.Fatalf("expected only the active source, got %+v", got)
	}
}

func TestDeleteSource_RemovesSecret(t *testing.T) {
	_, router, store, db := setupSourcesHandler(t)
	ctx := context.Background()

	sources := database.NewSourceRepository(db.Connection())
	src := &models.Source{Name: "Doomed", SourceType: models.SourceTypeXtream, URL: "http://example.com/get.php?username=u&password=p", Username: "u", IsActive: true}
	if err := sources.CreateSource(ctx, src); err != nil {
		t.Fatalf("failed to seed source: %v", err)
	}
	if err := store.Set(secrets.SourcePasswordKey(src.ID), "p"); err != nil {
		t.Fatalf("failed to store password: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/sources/%d", src.ID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, err := store.Get(secrets.SourcePasswordKey(src.ID)); err == nil {
		t.Fatal("expected password to be removed from the secrets store")
	}
}

func TestImportSource_ReportsCounts(t *testing.T) {
	_, router, _, db := setupSourcesHandler(t)
	ctx := context.Background()

	playlist := "#EXTM3U\n" +
		`#EXTINF:-1 tvg-id="n24" group-title="News",News 24` + "\n" +
		"http://example.com/live/n24\n" +
		`#EXTINF:-1 group-title="Movies",Night Train` + "\n" +
		"http://example.com/vod/night-train.mp4\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(playlist))
	}))
	t.Cleanup(srv.Close)

	sources := database.NewSourceRepository(db.Connection())
	src := &models.Source{Name: "List", SourceType: models.SourceTypeM3U, URL: srv.URL + "/list.m3u", IsActive: true}
	if err := sources.CreateSource(ctx, src); err != nil {
		t.Fatalf("failed to seed source: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/sources/%d/import", src.ID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result ingest.ImportResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Movies != 1 || result.Channels != 1 {
		t.Fatalf("expected 1 movie and 1 channel, got %+v", result)
	}
}
