package ingest

import "errors"

// Import failures are classified so callers can tell a bad URL from a dead
// provider from a corrupt playlist. All of them wrap the underlying error.
var (
	ErrInvalidURL          = errors.New("invalid source url")
	ErrUnsupportedPlaylist = errors.New("unsupported playlist type")
	ErrNetwork             = errors.New("network failure")
	ErrParsingFailed       = errors.New("playlist parsing failed")
	ErrSaveFailed          = errors.New("saving imported content failed")
)
