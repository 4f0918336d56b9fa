package epg

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// xmltvDateLayout is the XMLTV timestamp format: YYYYMMDDHHmmss ±HHMM.
const xmltvDateLayout = "20060102150405 -0700"

// xmltvProgramme is one parsed <programme> element.
type xmltvProgramme struct {
	ChannelID   string
	Title       string
	Description string
	Category    string
	Start       time.Time
	Stop        time.Time
}

type xmlProgramme struct {
	Start    string   `xml:"start,attr"`
	Stop     string   `xml:"stop,attr"`
	Channel  string   `xml:"channel,attr"`
	Title    string   `xml:"title"`
	Desc     string   `xml:"desc"`
	Category []string `xml:"category"`
}

// parseXMLTV reads an XMLTV document token by token so large guides never
// load fully into memory. Programmes it cannot make sense of (bad
// timestamps, missing fields, start not before stop) are dropped; only a
// broken document fails the parse.
func parseXMLTV(r io.Reader) ([]xmltvProgramme, error) {
	decoder := xml.NewDecoder(r)
	var programmes []xmltvProgramme

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read guide document: %w", err)
		}

		el, ok := token.(xml.StartElement)
		if !ok || el.Name.Local != "programme" {
			continue
		}
		var raw xmlProgramme
		if err := decoder.DecodeElement(&raw, &el); err != nil {
			continue
		}
		if raw.Channel == "" || raw.Title == "" {
			continue
		}
		start, err := parseXMLTVDate(raw.Start)
		if err != nil {
			continue
		}
		stop, err := parseXMLTVDate(raw.Stop)
		if err != nil {
			continue
		}
		if !start.Before(stop) {
			continue
		}

		category := ""
		if len(raw.Category) > 0 {
			category = raw.Category[0]
		}
		programmes = append(programmes, xmltvProgramme{
			ChannelID:   raw.Channel,
			Title:       raw.Title,
			Description: raw.Desc,
			Category:    category,
			Start:       start,
			Stop:        stop,
		})
	}
	return programmes, nil
}

// parseXMLTVDate handles the standard layout and the variant without a
// timezone suffix, which some providers emit.
func parseXMLTVDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(xmltvDateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("20060102150405", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse guide timestamp %q: %w", s, err)
	}
	return t, nil
}
