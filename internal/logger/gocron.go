package logger

import (
	"errors"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// gocronLogger implements gocron.Logger on top of slog. gocron reports at
// a chatty level, so its info messages are logged at debug.
type gocronLogger struct {
	log *slog.Logger
}

// NewGocronLogger returns a gocron.Logger that writes to log.
func NewGocronLogger(log *slog.Logger) gocron.Logger {
	return &gocronLogger{log: log.With("component", "gocron")}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.log.Debug(msg, args...) }
func (l *gocronLogger) Info(msg string, args ...any) { l.log.Debug(msg, args...) }
func (l *gocronLogger) Warn(msg string, args ...any) { l.log.Warn(msg, schedulerArgs(args)...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.log.Error(msg, schedulerArgs(args)...) }

// schedulerArgs marks a missing job, which only happens after a shutdown
// race, so it can be told apart from real failures.
func schedulerArgs(args []any) []any {
	out := make([]any, 0, len(args)+2)
	for i := 0; i < len(args); i++ {
		out = append(out, args[i])
		if err, ok := args[i].(error); ok && errors.Is(err, gocron.ErrJobNotFound) {
			out = append(out, "job_missing", true)
		}
	}
	return out
}
