package ingest

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// slowReader yields at most chunk bytes per Read call, forcing lines to
// straddle read boundaries.
type slowReader struct {
	data  string
	pos   int
	chunk int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(p) {
		n = len(p)
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func TestParseM3U_Basic(t *testing.T) {
	input := `#EXTM3U url-tvg="http://guide.example.com/epg.xml"
#EXTINF:-1 tvg-id="news24.uk" tvg-name="News 24" tvg-logo="http://img/news.png" group-title="News",News 24 HD
http://stream.example.com/news24/hd
#EXTINF:-1 group-title="Movies",Heat (1995)
http://stream.example.com/vod/heat.mp4
`
	playlist, err := parseM3U(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("parseM3U failed: %v", err)
	}

	if playlist.EPGURL != "http://guide.example.com/epg.xml" {
		t.Errorf("expected guide URL from url-tvg, got %q", playlist.EPGURL)
	}
	if len(playlist.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(playlist.Entries))
	}

	first := playlist.Entries[0]
	if first.Title != "News 24 HD" || first.TVGID != "news24.uk" || first.GroupTitle != "News" {
		t.Errorf("unexpected first entry: %+v", first)
	}
	if first.LogoURL != "http://img/news.png" {
		t.Errorf("expected logo URL, got %q", first.LogoURL)
	}
	if isMovieEntry(first) {
		t.Error("news entry classified as a movie")
	}

	second := playlist.Entries[1]
	if second.Title != "Heat (1995)" {
		t.Errorf("expected Heat (1995), got %q", second.Title)
	}
	if !isMovieEntry(second) {
		t.Error("Movies group entry not classified as a movie")
	}
}

func TestParseM3U_QuotingStyles(t *testing.T) {
	input := "#EXTM3U url-tvg='http://guide.example.com/epg.xml'\n" +
		"#EXTINF:-1 tvg-id=ch1 tvg-name='Channel One' group-title=\"General\",Channel One\n" +
		"http://stream.example.com/ch1\n"

	playlist, err := parseM3U(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("parseM3U failed: %v", err)
	}
	if playlist.EPGURL != "http://guide.example.com/epg.xml" {
		t.Errorf("single-quoted url-tvg not parsed, got %q", playlist.EPGURL)
	}
	e := playlist.Entries[0]
	if e.TVGID != "ch1" {
		t.Errorf("bare attribute value not parsed, got %q", e.TVGID)
	}
	if e.TVGName != "Channel One" {
		t.Errorf("single-quoted attribute not parsed, got %q", e.TVGName)
	}
}

func TestParseM3U_TitleFallbacks(t *testing.T) {
	input := "#EXTM3U\n" +
		"#EXTINF:-1 tvg-name=\"Named Channel\" group-title=\"News\",\n" +
		"http://stream.example.com/a\n" +
		"#EXTINF:-1 group-title=\"News\",\n" +
		"http://stream.example.com/b\n"

	playlist, err := parseM3U(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("parseM3U failed: %v", err)
	}
	if len(playlist.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(playlist.Entries))
	}
	if playlist.Entries[0].Title != "Named Channel" {
		t.Errorf("expected tvg-name fallback, got %q", playlist.Entries[0].Title)
	}
	if playlist.Entries[1].Title != "Unknown" {
		t.Errorf("expected Unknown fallback, got %q", playlist.Entries[1].Title)
	}
}

func TestParseM3U_CommaInsideQuotedAttr(t *testing.T) {
	input := "#EXTM3U\n" +
		"#EXTINF:-1 tvg-name=\"News, Weather\" group-title=\"General\",The Title\n" +
		"http://stream.example.com/x\n"

	playlist, err := parseM3U(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("parseM3U failed: %v", err)
	}
	if playlist.Entries[0].Title != "The Title" {
		t.Errorf("comma inside quotes broke title extraction: %q", playlist.Entries[0].Title)
	}
}

func TestParseM3U_LinesAcrossChunkBoundaries(t *testing.T) {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for i := 0; i < 50; i++ {
		b.WriteString("#EXTINF:-1 group-title=\"News\",Channel ")
		b.WriteString(strings.Repeat("x", i+1))
		b.WriteString("\nhttp://stream.example.com/ch/")
		b.WriteString(strings.Repeat("y", i+1))
		b.WriteString("\n")
	}

	playlist, err := parseM3U(&slowReader{data: b.String(), chunk: 7}, 0)
	if err != nil {
		t.Fatalf("parseM3U failed: %v", err)
	}
	if len(playlist.Entries) != 50 {
		t.Errorf("expected 50 entries across chunk boundaries, got %d", len(playlist.Entries))
	}
}

func TestParseM3U_ConfiguredChunkSize(t *testing.T) {
	input := "#EXTM3U\n#EXTINF:-1 group-title=\"News\",Tiny Chunks\nhttp://stream.example.com/tiny\n"

	// A chunk smaller than any line still reassembles entries.
	playlist, err := parseM3U(strings.NewReader(input), 5)
	if err != nil {
		t.Fatalf("parseM3U failed: %v", err)
	}
	if len(playlist.Entries) != 1 || playlist.Entries[0].Title != "Tiny Chunks" {
		t.Fatalf("unexpected entries %+v", playlist.Entries)
	}
}

func TestParseM3U_CRLFAndNoTrailingNewline(t *testing.T) {
	input := "#EXTM3U\r\n#EXTINF:-1 group-title=\"News\",CRLF Channel\r\nhttp://stream.example.com/crlf"

	playlist, err := parseM3U(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("parseM3U failed: %v", err)
	}
	if len(playlist.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(playlist.Entries))
	}
	if playlist.Entries[0].Title != "CRLF Channel" {
		t.Errorf("unexpected title %q", playlist.Entries[0].Title)
	}
	if playlist.Entries[0].StreamURL != "http://stream.example.com/crlf" {
		t.Errorf("final unterminated line dropped: %q", playlist.Entries[0].StreamURL)
	}
}

func TestParseM3U_SkipsMalformedEXTINF(t *testing.T) {
	input := "#EXTM3U\n" +
		"#EXTINF:\n" +
		"http://stream.example.com/orphan\n" +
		"#EXTINF:-1 group-title=\"News\",Good Channel\n" +
		"http://stream.example.com/good\n"

	playlist, err := parseM3U(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("parseM3U failed: %v", err)
	}
	if len(playlist.Entries) != 1 {
		t.Fatalf("expected only the well-formed entry, got %d", len(playlist.Entries))
	}
	if playlist.Entries[0].Title != "Good Channel" {
		t.Errorf("unexpected entry %+v", playlist.Entries[0])
	}
}

func TestParseM3U_InvalidUTF8(t *testing.T) {
	input := "#EXTM3U\n#EXTINF:-1 group-title=\"News\",Bad \xff\xfe Channel\nhttp://stream.example.com/bad\n"

	_, err := parseM3U(strings.NewReader(input), 0)
	if !errors.Is(err, ErrParsingFailed) {
		t.Errorf("expected ErrParsingFailed for invalid UTF-8, got %v", err)
	}
}
