package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"streamvault/internal/httpx"
)

const defaultStreamExt = "m3u8"

// xtreamClient talks to an Xtream portal's player_api.php.
type xtreamClient struct {
	http      *httpx.Client
	baseURL   string
	username  string
	password  string
	streamExt string
}

func newXtreamClient(client *httpx.Client, baseURL, username, password string) *xtreamClient {
	return &xtreamClient{
		http:      client,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		username:  username,
		password:  password,
		streamExt: defaultStreamExt,
	}
}

// xtreamVOD is one get_vod_streams result. Portals are loose with number
// formatting, so numeric fields come in as json.Number.
type xtreamVOD struct {
	StreamID           json.Number `json:"stream_id"`
	Name               string      `json:"name"`
	StreamIcon         string      `json:"stream_icon"`
	ContainerExtension string      `json:"container_extension"`
	CategoryID         json.Number `json:"category_id"`
}

// xtreamSeries is one get_series result.
type xtreamSeries struct {
	SeriesID json.Number `json:"series_id"`
	Name     string      `json:"name"`
	Cover    string      `json:"cover"`
	Plot     string      `json:"plot"`
}

// xtreamEpisode is one episode inside a get_series_info response.
type xtreamEpisode struct {
	ID                 json.Number `json:"id"`
	EpisodeNum         json.Number `json:"episode_num"`
	Title              string      `json:"title"`
	ContainerExtension string      `json:"container_extension"`
}

// xtreamSeriesInfo is the get_series_info response; episodes are keyed by
// season number.
type xtreamSeriesInfo struct {
	Episodes map[string][]xtreamEpisode `json:"episodes"`
}

// xtreamLive is one get_live_streams result.
type xtreamLive struct {
	StreamID     json.Number `json:"stream_id"`
	Name         string      `json:"name"`
	StreamIcon   string      `json:"stream_icon"`
	EPGChannelID string      `json:"epg_channel_id"`
	CategoryID   json.Number `json:"category_id"`
}

func (c *xtreamClient) apiURL(action string, extra url.Values) string {
	q := url.Values{}
	q.Set("username", c.username)
	q.Set("password", c.password)
	if action != "" {
		q.Set("action", action)
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return c.baseURL + "/player_api.php?" + q.Encode()
}

// streamURL builds the playback URL for one stream kind: live, movie or
// series.
func (c *xtreamClient) streamURL(kind, id, ext string) string {
	if ext == "" {
		ext = c.streamExt
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s",
		c.baseURL, kind,
		url.PathEscape(c.username), url.PathEscape(c.password),
		url.PathEscape(id), ext)
}

func (c *xtreamClient) VODStreams(ctx context.Context) ([]xtreamVOD, error) {
	var out []xtreamVOD
	if err := c.getJSON(ctx, c.apiURL("get_vod_streams", nil), &out); err != nil {
		return nil, fmt.Errorf("vod streams: %w", err)
	}
	return out, nil
}

func (c *xtreamClient) Series(ctx context.Context) ([]xtreamSeries, error) {
	var out []xtreamSeries
	if err := c.getJSON(ctx, c.apiURL("get_series", nil), &out); err != nil {
		return nil, fmt.Errorf("series: %w", err)
	}
	return out, nil
}

func (c *xtreamClient) SeriesInfo(ctx context.Context, seriesID string) (*xtreamSeriesInfo, error) {
	var out xtreamSeriesInfo
	extra := url.Values{"series_id": {seriesID}}
	if err := c.getJSON(ctx, c.apiURL("get_series_info", extra), &out); err != nil {
		return nil, fmt.Errorf("series info %s: %w", seriesID, err)
	}
	return &out, nil
}

func (c *xtreamClient) LiveStreams(ctx context.Context) ([]xtreamLive, error) {
	var out []xtreamLive
	if err := c.getJSON(ctx, c.apiURL("get_live_streams", nil), &out); err != nil {
		return nil, fmt.Errorf("live streams: %w", err)
	}
	return out, nil
}

func (c *xtreamClient) getJSON(ctx context.Context, apiURL string, v any) error {
	resp, err := c.http.Get(ctx, apiURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return nil
}
