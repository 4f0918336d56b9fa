package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateMediaURL rejects stream URLs that are not plain http or https.
// Playlists are untrusted input; a crafted entry must not be able to point
// the server at local files or other protocols.
func ValidateMediaURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid media url: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported media url scheme %q", parsed.Scheme)
	}
	return nil
}

// EncodeURLWithSpaces properly encodes a URL that may contain unencoded spaces.
// Some providers hand out URLs with raw spaces which need to be %20 encoded for HTTP.
func EncodeURLWithSpaces(rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	// Build URL with properly encoded path and query
	encoded := parsedURL.Scheme + "://" + parsedURL.Host + parsedURL.EscapedPath()
	if parsedURL.RawQuery != "" {
		// Encode spaces in query string as %20
		encodedQuery := strings.ReplaceAll(parsedURL.RawQuery, " ", "%20")
		encoded += "?" + encodedQuery
	}
	return encoded, nil
}
