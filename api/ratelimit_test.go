package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitHandler_AllowsWithinBurst(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(1), 3)
	handler := RateLimitHandler(rl, okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/movies", nil)
		req.RemoteAddr = "10.0.0.5:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestRateLimitHandler_BlocksWhenExhausted(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(0.001), 1)
	handler := RateLimitHandler(rl, okHandler())

	first := httptest.NewRequest(http.MethodGet, "/movies", nil)
	first.RemoteAddr = "10.0.0.5:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", rec.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/movies", nil)
	second.RemoteAddr = "10.0.0.5:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want %q", got, "60")
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding 429 body: %v", err)
	}
	if !strings.Contains(body["error"], "too many requests") {
		t.Errorf("error body = %q, want mention of too many requests", body["error"])
	}
}

func TestRateLimitHandler_IsolatesClients(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(0.001), 1)
	handler := RateLimitHandler(rl, okHandler())

	drain := httptest.NewRequest(http.MethodGet, "/movies", nil)
	drain.RemoteAddr = "10.0.0.5:1234"
	handler.ServeHTTP(httptest.NewRecorder(), drain)

	blocked := httptest.NewRequest(http.MethodGet, "/movies", nil)
	blocked.RemoteAddr = "10.0.0.5:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, blocked)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("same client: status = %d, want 429", rec.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/movies", nil)
	other.RemoteAddr = "10.0.0.6:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client: status = %d, want 200", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.168.1.20:52000",
			want:       "192.168.1.20",
		},
		{
			name:       "x-forwarded-for takes first hop",
			remoteAddr: "127.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"},
			want:       "203.0.113.9",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "127.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			want:       "198.51.100.4",
		},
		{
			name:       "forwarded-for wins over real-ip",
			remoteAddr: "127.0.0.1:80",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.9",
				"X-Real-IP":       "198.51.100.4",
			},
			want: "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
