package ingest

import (
	"net/url"
	"path"
	"strings"

	"streamvault/models"
)

// Detect classifies a source URL by playlist type. URLs ending in .m3u or
// .m3u8 are plain playlists; URLs carrying username and password query
// parameters are Xtream portals; anything else is unknown.
func Detect(rawURL string) (models.SourceType, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.SourceTypeUnknown, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return models.SourceTypeUnknown, nil
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if ext == ".m3u" || ext == ".m3u8" {
		return models.SourceTypeM3U, nil
	}

	q := u.Query()
	if q.Get("username") != "" && q.Get("password") != "" {
		return models.SourceTypeXtream, nil
	}
	return models.SourceTypeUnknown, nil
}
