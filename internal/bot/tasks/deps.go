// Package tasks implements the scheduled housekeeping tasks: database
// maintenance and removal of stale statistics files.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/scoutbot/internal/config"
)

// Maintainer runs database housekeeping and reports the store size.
type Maintainer interface {
	RunSQLMaintenance(ctx context.Context) error
	Count(ctx context.Context) (total, invited int64, err error)
}

// Cleaner removes statistics files older than a given age.
type Cleaner interface {
	Clean(ctx context.Context, maxAge time.Duration) (int, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    Maintainer
	Exporter Cleaner
	Config   *config.Config
}
