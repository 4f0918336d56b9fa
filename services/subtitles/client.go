// Package subtitles finds and downloads subtitle files for catalog titles
// through an OpenSubtitles-compatible REST API.
package subtitles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"streamvault/internal/httpx"
	"streamvault/models"
)

const defaultBaseURL = "https://api.opensubtitles.com/api/v1"

// Client queries the subtitle provider.
type Client struct {
	apiKey  string
	baseURL string
	http    *httpx.Client
	dir     string
}

func NewClient(client *httpx.Client, apiKey, downloadDir string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    client,
		dir:     downloadDir,
	}
}

type searchResponse struct {
	Data []struct {
		Attributes struct {
			Language string `json:"language"`
			Release  string `json:"release"`
			Files    []struct {
				FileID int64 `json:"file_id"`
			} `json:"files"`
			URL string `json:"url"`
		} `json:"attributes"`
	} `json:"data"`
}

// Search lists subtitles for an IMDB title in one language.
func (c *Client) Search(ctx context.Context, imdbID, language string) ([]models.Subtitle, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("no subtitle API key configured")
	}
	imdbID = strings.TrimPrefix(imdbID, "tt")

	q := url.Values{}
	q.Set("imdb_id", imdbID)
	q.Set("languages", language)
	resp, err := c.http.Get(ctx, c.baseURL+"/subtitles?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("search subtitles: %w", err)
	}
	defer resp.Body.Close()

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode subtitle search: %w", err)
	}

	var subtitles []models.Subtitle
	for _, d := range parsed.Data {
		if len(d.Attributes.Files) == 0 {
			continue
		}
		subtitles = append(subtitles, models.Subtitle{
			FileID:   d.Attributes.Files[0].FileID,
			Language: d.Attributes.Language,
			Release:  d.Attributes.Release,
			URL:      d.Attributes.URL,
		})
	}
	return subtitles, nil
}

// Download fetches a subtitle file and stores it under the download
// directory. The payload must look like text; providers occasionally
// return HTML error pages with a 200 status.
func (c *Client) Download(ctx context.Context, sub models.Subtitle) (string, error) {
	if sub.URL == "" {
		return "", fmt.Errorf("subtitle %d has no download url", sub.FileID)
	}
	resp, err := c.http.Get(ctx, sub.URL)
	if err != nil {
		return "", fmt.Errorf("download subtitle: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read subtitle payload: %w", err)
	}

	kind := mimetype.Detect(payload)
	if !isSubtitlePayload(kind, payload) {
		return "", fmt.Errorf("unexpected subtitle payload type %s", kind.String())
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create subtitle dir: %w", err)
	}
	path := filepath.Join(c.dir, fmt.Sprintf("%d.%s.srt", sub.FileID, sub.Language))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write subtitle file: %w", err)
	}
	log.Printf("[subtitles] downloaded %d (%s) to %s", sub.FileID, sub.Language, path)
	return path, nil
}

// isSubtitlePayload accepts plain-text payloads and rejects HTML and
// binaries.
func isSubtitlePayload(kind *mimetype.MIME, payload []byte) bool {
	if kind.Is("text/html") {
		return false
	}
	for m := kind; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	// SRT files starting with a BOM or cue number sometimes detect as
	// application/octet-stream; accept them when they look like cues.
	head := bytes.TrimLeft(payload[:min(len(payload), 16)], "\xef\xbb\xbf\r\n ")
	return len(head) > 0 && head[0] >= '0' && head[0] <= '9'
}
