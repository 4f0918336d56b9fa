package subtitles

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"streamvault/internal/httpx"
	"streamvault/models"
)

func testHTTPClient() *httpx.Client {
	return httpx.NewClient(httpx.Config{
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("imdb_id"); got != "0113277" {
			t.Errorf("expected stripped imdb id, got %q", got)
		}
		if got := r.URL.Query().Get("languages"); got != "en" {
			t.Errorf("expected language en, got %q", got)
		}
		fmt.Fprint(w, `{"data":[
			{"attributes":{"language":"en","release":"Heat.1995.BluRay","files":[{"file_id":101}],"url":"http://dl.example.com/101"}},
			{"attributes":{"language":"en","release":"no files","files":[]}}
		]}`)
	}))
	defer srv.Close()

	client := NewClient(testHTTPClient(), "key", t.TempDir())
	client.baseURL = srv.URL

	subs, err := client.Search(context.Background(), "tt0113277", "en")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 usable subtitle, got %d", len(subs))
	}
	if subs[0].FileID != 101 || subs[0].Release != "Heat.1995.BluRay" {
		t.Errorf("unexpected subtitle: %+v", subs[0])
	}
}

func TestSearch_NoAPIKey(t *testing.T) {
	client := NewClient(testHTTPClient(), "", t.TempDir())
	if _, err := client.Search(context.Background(), "tt0113277", "en"); err == nil {
		t.Error("expected an error without an API key")
	}
}

func TestDownload_WritesFile(t *testing.T) {
	payload := "1\n00:00:01,000 --> 00:00:02,000\nHello.\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := NewClient(testHTTPClient(), "key", dir)

	path, err := client.Download(context.Background(), models.Subtitle{
		FileID:   101,
		Language: "en",
		URL:      srv.URL + "/101",
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !strings.HasSuffix(path, "101.en.srt") {
		t.Errorf("unexpected file name %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != payload {
		t.Errorf("payload mismatch: %q", data)
	}
}

func TestDownload_RejectsHTMLErrorPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<!DOCTYPE html><html><body>Quota exceeded</body></html>")
	}))
	defer srv.Close()

	client := NewClient(testHTTPClient(), "key", t.TempDir())
	_, err := client.Download(context.Background(), models.Subtitle{FileID: 101, Language: "en", URL: srv.URL})
	if err == nil {
		t.Error("expected rejection of an HTML payload")
	}
}
