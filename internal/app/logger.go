package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a slog.Logger writing JSON when format is "json" and
// human-readable text otherwise.
func NewLogger(format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{AddSource: true}))
}
