package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/go-co-op/gocron/v2"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "short", max: 10, want: "short"},
		{in: "exactly-10", max: 10, want: "exactly-10"},
		{in: "this is too long", max: 10, want: "this is..."},
		{in: "abcdef", max: 3, want: "..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestNewZapBuilds(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"debug", "info"} {
		z, err := NewZap(level, false)
		if err != nil {
			t.Fatalf("NewZap(%q) error = %v", level, err)
		}
		_ = z.Sync()
	}
}

func TestGocronLoggerMarksMissingJobs(t *testing.T) {
	t.Parallel()

	args := schedulerArgs([]any{"error", fmt.Errorf("remove: %w", gocron.ErrJobNotFound), "name", "x"})
	if len(args) != 6 || args[2] != "job_missing" || args[3] != true {
		t.Errorf("schedulerArgs() = %v", args)
	}
	if args := schedulerArgs([]any{"error", errors.New("boom")}); len(args) != 2 {
		t.Errorf("schedulerArgs(other error) = %v", args)
	}
}
