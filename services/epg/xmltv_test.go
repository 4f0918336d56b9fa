package epg

import (
	"strings"
	"testing"
	"time"
)

const testGuide = `<?xml version="1.0" encoding="UTF-8"?>
<tv generator-info-name="test">
  <channel id="news24.uk">
    <display-name>News 24</display-name>
  </channel>
  <programme start="20260829180000 +0000" stop="20260829190000 +0000" channel="news24.uk">
    <title>Evening News</title>
    <desc>Headlines and analysis.</desc>
    <category>News</category>
  </programme>
  <programme start="20260829190000 +0100" stop="20260829200000 +0100" channel="news24.uk">
    <title>Late Film</title>
  </programme>
</tv>
`

func TestParseXMLTV(t *testing.T) {
	programmes, err := parseXMLTV(strings.NewReader(testGuide))
	if err != nil {
		t.Fatalf("parseXMLTV failed: %v", err)
	}
	if len(programmes) != 2 {
		t.Fatalf("expected 2 programmes, got %d", len(programmes))
	}

	first := programmes[0]
	if first.ChannelID != "news24.uk" || first.Title != "Evening News" {
		t.Errorf("unexpected first programme: %+v", first)
	}
	if first.Description != "Headlines and analysis." || first.Category != "News" {
		t.Errorf("description or category not parsed: %+v", first)
	}
	wantStart := time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC)
	if !first.Start.Equal(wantStart) {
		t.Errorf("expected start %v, got %v", wantStart, first.Start)
	}

	// The second programme carries a +0100 offset: 19:00+0100 is 18:00 UTC.
	second := programmes[1]
	if !second.Start.Equal(wantStart) {
		t.Errorf("offset not applied: expected %v, got %v", wantStart, second.Start)
	}
}

func TestParseXMLTV_DropsMalformedProgrammes(t *testing.T) {
	guide := `<tv>
  <programme start="garbage" stop="20260829190000 +0000" channel="a"><title>Bad Start</title></programme>
  <programme start="20260829180000 +0000" stop="20260829190000 +0000" channel=""><title>No Channel</title></programme>
  <programme start="20260829180000 +0000" stop="20260829190000 +0000" channel="a"><title></title></programme>
  <programme start="20260829190000 +0000" stop="20260829180000 +0000" channel="a"><title>Backwards</title></programme>
  <programme start="20260829180000 +0000" stop="20260829190000 +0000" channel="a"><title>Good</title></programme>
</tv>`

	programmes, err := parseXMLTV(strings.NewReader(guide))
	if err != nil {
		t.Fatalf("parseXMLTV failed: %v", err)
	}
	if len(programmes) != 1 {
		t.Fatalf("expected only the well-formed programme, got %d", len(programmes))
	}
	if programmes[0].Title != "Good" {
		t.Errorf("unexpected surviving programme: %+v", programmes[0])
	}
}

func TestParseXMLTV_TimestampWithoutOffset(t *testing.T) {
	guide := `<tv>
  <programme start="20260829180000" stop="20260829190000" channel="a"><title>Plain</title></programme>
</tv>`

	programmes, err := parseXMLTV(strings.NewReader(guide))
	if err != nil {
		t.Fatalf("parseXMLTV failed: %v", err)
	}
	if len(programmes) != 1 {
		t.Fatalf("expected 1 programme, got %d", len(programmes))
	}
}

func TestParseXMLTV_BrokenDocument(t *testing.T) {
	if _, err := parseXMLTV(strings.NewReader("<tv><programme")); err == nil {
		t.Error("expected an error for a truncated document")
	}
}
