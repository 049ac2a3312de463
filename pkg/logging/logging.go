// Package logging configures slog for the toolkit's daemons and commands.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Format selects the log output encoding.
type Format string

// Supported output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options controls logger construction.
type Options struct {
	// Level is the minimum level to emit. Defaults to slog.LevelInfo.
	Level slog.Level

	// Format is the output encoding. Defaults to text.
	Format Format

	// Output is the destination writer. Defaults to os.Stderr.
	Output io.Writer
}

// New creates a slog.Logger from opts.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(opts.Output, hopts)
	} else {
		handler = slog.NewTextHandler(opts.Output, hopts)
	}
	return slog.New(handler)
}

// Nop returns a logger that discards everything. Use it where a logger is
// required but output is unwanted, such as in tests.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info for
// unrecognized input.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat maps a format name to a Format, defaulting to text.
func ParseFormat(s string) Format {
	if s == "json" || s == "JSON" {
		return FormatJSON
	}
	return FormatText
}
