package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"WARNING": slog.LevelInfo, // only lowercase "warning" is accepted
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(Options{Format: FormatJSON, Output: &buf})
	log.Info("hello", "k", "v")

	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected JSON output, got %s", buf.String())
	}
}

func TestNop_DiscardsOutput(t *testing.T) {
	t.Parallel()
	// Must not panic and must not write anywhere observable.
	Nop().Error("ignored")
}
