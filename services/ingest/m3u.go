package ingest

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"
)

const defaultReadChunkSize = 64 * 1024

// m3uEntry is one parsed #EXTINF/URL pair.
type m3uEntry struct {
	Title      string
	StreamURL  string
	TVGID      string
	TVGName    string
	LogoURL    string
	GroupTitle string
}

// m3uPlaylist is the parse result of one playlist document.
type m3uPlaylist struct {
	EPGURL  string
	Entries []m3uEntry
}

var (
	// key="value", key='value' or key=value after the duration.
	m3uAttrRegex = regexp.MustCompile(`([a-zA-Z0-9_-]+)=(?:"([^"]*)"|'([^']*)'|([^\s,]+))`)

	// url-tvg on the #EXTM3U header line, any quoting style.
	urlTVGRegex = regexp.MustCompile(`url-tvg=(?:"([^"]*)"|'([^']*)'|([^\s]+))`)
)

// parseM3U reads the playlist in fixed-size chunks, carrying a trailing
// partial line across chunk boundaries. EXTINF lines it cannot make sense
// of are skipped; invalid UTF-8 anywhere fails the whole parse. A
// non-positive chunkSize falls back to the default.
func parseM3U(r io.Reader, chunkSize int) (*m3uPlaylist, error) {
	if chunkSize <= 0 {
		chunkSize = defaultReadChunkSize
	}
	playlist := &m3uPlaylist{}
	var pending m3uEntry
	havePending := false

	handleLine := func(line string) error {
		line = strings.TrimRight(line, "\r")
		line = strings.TrimSpace(line)
		if line == "" {
			return nil
		}
		if !utf8.ValidString(line) {
			return fmt.Errorf("%w: playlist is not valid UTF-8", ErrParsingFailed)
		}
		switch {
		case strings.HasPrefix(line, "#EXTM3U"):
			if m := urlTVGRegex.FindStringSubmatch(line); m != nil {
				playlist.EPGURL = firstNonEmpty(m[1], m[2], m[3])
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			entry, ok := parseEXTINF(line)
			if !ok {
				havePending = false
				return nil
			}
			pending = entry
			havePending = true
		case strings.HasPrefix(line, "#"):
			// Other directives are ignored.
		default:
			if havePending {
				pending.StreamURL = line
				playlist.Entries = append(playlist.Entries, pending)
				havePending = false
			}
		}
		return nil
	}

	chunk := make([]byte, chunkSize)
	var carry []byte
	for {
		n, readErr := r.Read(chunk)
		if n > 0 {
			data := append(carry, chunk[:n]...)
			lines := strings.Split(string(data), "\n")
			// The final element may be a partial line; hold it for the
			// next chunk.
			carry = []byte(lines[len(lines)-1])
			for _, line := range lines[:len(lines)-1] {
				if err := handleLine(line); err != nil {
					return nil, err
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, readErr)
		}
	}
	if len(carry) > 0 {
		if err := handleLine(string(carry)); err != nil {
			return nil, err
		}
	}
	return playlist, nil
}

// parseEXTINF extracts attributes and the display title from one EXTINF
// line. The title is everything after the last comma outside quotes, with
// tvg-name and then "Unknown" as fallbacks.
func parseEXTINF(line string) (m3uEntry, bool) {
	body, ok := strings.CutPrefix(line, "#EXTINF:")
	if !ok || strings.TrimSpace(body) == "" {
		return m3uEntry{}, false
	}

	var entry m3uEntry
	for _, m := range m3uAttrRegex.FindAllStringSubmatch(body, -1) {
		value := firstNonEmpty(m[2], m[3], m[4])
		switch strings.ToLower(m[1]) {
		case "tvg-id":
			entry.TVGID = value
		case "tvg-name":
			entry.TVGName = value
		case "tvg-logo":
			entry.LogoURL = value
		case "group-title":
			entry.GroupTitle = value
		}
	}

	if idx := lastUnquotedComma(body); idx >= 0 {
		entry.Title = strings.TrimSpace(body[idx+1:])
	}
	if entry.Title == "" {
		entry.Title = entry.TVGName
	}
	if entry.Title == "" {
		entry.Title = "Unknown"
	}
	return entry, true
}

// isMovieEntry reports whether the entry's group classifies it as VOD
// rather than a live channel.
func isMovieEntry(e m3uEntry) bool {
	return strings.Contains(strings.ToLower(e.GroupTitle), "movie")
}

func lastUnquotedComma(s string) int {
	inQuote := byte(0)
	last := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote == 0 && (c == '"' || c == '\''):
			inQuote = c
		case inQuote == c:
			inQuote = 0
		case inQuote == 0 && c == ',':
			last = i
		}
	}
	return last
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
