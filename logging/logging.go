// Package logging configures the process-wide logger with file rotation.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"streamvault/config"
)

// Setup routes the standard logger to stdout and a size-rotated log file.
// Returns a closer for the rotating writer.
func Setup(settings config.LoggingSettings) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(settings.Path), 0o755); err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   settings.Path,
		MaxSize:    settings.MaxSizeMB,
		MaxBackups: settings.MaxBackups,
		MaxAge:     settings.MaxAgeDays,
		Compress:   true,
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	return rotator, nil
}
