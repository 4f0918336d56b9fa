// Package httpx provides the shared outbound HTTP client. All playlist,
// guide and metadata fetches go through one client so a single token
// bucket paces requests against provider servers.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

const userAgent = "StreamVault/1.0"

// Client paces and retries outbound requests.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	retries uint
}

// Config tunes the shared client.
type Config struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retries           uint
}

func DefaultConfig() Config {
	return Config{
		Timeout:           60 * time.Second,
		RequestsPerSecond: 4,
		Burst:             8,
		Retries:           3,
	}
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		retries: cfg.Retries,
	}
}

// Get fetches url, blocking on the token bucket first. Server errors and
// 429 responses are retried with exponential backoff; other 4xx responses
// are returned to the caller as an error without retrying.
// The caller must close the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	var resp *http.Response
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", userAgent)

			r, err := c.http.Do(req)
			if err != nil {
				return err
			}
			switch {
			case r.StatusCode == http.StatusOK:
				resp = r
				return nil
			case r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500:
				drain(r)
				return fmt.Errorf("server returned %s", r.Status)
			default:
				drain(r)
				return retry.Unrecoverable(fmt.Errorf("server returned %s", r.Status))
			}
		},
		retry.Context(ctx),
		retry.Attempts(c.retries+1),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	return resp, nil
}

func drain(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 1<<16))
	r.Body.Close()
}
