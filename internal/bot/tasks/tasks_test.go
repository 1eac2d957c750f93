package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/edgard/scoutbot/internal/config"
)

type fakeStore struct {
	maintained int
	err        error
}

func (f *fakeStore) RunSQLMaintenance(context.Context) error {
	f.maintained++
	return f.err
}

func (f *fakeStore) Count(context.Context) (int64, int64, error) {
	return 3, 1, nil
}

type fakeCleaner struct {
	maxAge time.Duration
	err    error
}

func (f *fakeCleaner) Clean(_ context.Context, maxAge time.Duration) (int, error) {
	f.maxAge = maxAge
	return 2, f.err
}

func newDeps(store *fakeStore, cleaner *fakeCleaner) TaskDeps {
	cfg := &config.Config{}
	cfg.Stats.MaxAge = 90 * time.Minute
	return TaskDeps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:    store,
		Exporter: cleaner,
		Config:   cfg,
	}
}

func TestRegisterAllTasks(t *testing.T) {
	tasks := RegisterAllTasks(newDeps(&fakeStore{}, &fakeCleaner{}))
	for _, name := range []string{"sql_maintenance", "stats_cleanup"} {
		if tasks[name] == nil {
			t.Errorf("task %q not registered", name)
		}
	}
}

func TestSQLMaintenanceTask(t *testing.T) {
	store := &fakeStore{}
	task := newSQLMaintenanceTask(newDeps(store, &fakeCleaner{}))

	if err := task(context.Background()); err != nil {
		t.Fatalf("task() error = %v", err)
	}
	if store.maintained != 1 {
		t.Errorf("maintenance ran %d times, want 1", store.maintained)
	}

	store.err = errors.New("disk full")
	if err := task(context.Background()); !errors.Is(err, store.err) {
		t.Errorf("task() error = %v, want wrapped %v", err, store.err)
	}
}

func TestStatsCleanupUsesConfiguredMaxAge(t *testing.T) {
	cleaner := &fakeCleaner{}
	task := newStatsCleanupTask(newDeps(&fakeStore{}, cleaner))

	if err := task(context.Background()); err != nil {
		t.Fatalf("task() error = %v", err)
	}
	if cleaner.maxAge != 90*time.Minute {
		t.Errorf("maxAge = %v, want 1h30m", cleaner.maxAge)
	}

	cleaner.err = errors.New("permission denied")
	if err := task(context.Background()); !errors.Is(err, cleaner.err) {
		t.Errorf("task() error = %v, want wrapped %v", err, cleaner.err)
	}
}
