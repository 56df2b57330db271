package logging

import (
	"io"
	"log/slog"
)

// New returns a JSON logger writing to w at the given level, with source locations.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
}
