// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs a JSON slog logger writing to stdout as the default logger.
// Debug output is enabled when debug is true.
func Setup(debug bool) *slog.Logger {
	return SetupWriter(os.Stdout, debug)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
