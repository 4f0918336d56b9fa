package utils

import "testing"

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		// Local and private origins
		{"http://localhost:5173", true},
		{"http://127.0.0.1:8480", true},
		{"http://192.168.1.20", true},
		{"http://10.0.0.5:3000", true},
		{"http://172.16.4.1", true},
		{"http://livingroom.local", true},
		{"http://shield", true},
		{"http://[::1]:8480", true},
		{"http://[fe80::1]", true},

		// Public or malformed origins
		{"https://example.com", false},
		{"http://8.8.8.8", false},
		{"http://172.32.0.1", false},
		{"", false},
		{"not a url", false},
		{"http://evil.example.com:8480", false},
	}

	for _, tt := range tests {
		if got := IsAllowedOrigin(tt.origin); got != tt.want {
			t.Errorf("IsAllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
