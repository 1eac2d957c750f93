package bot

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/scoutbot/internal/bot/tasks"
	"github.com/edgard/scoutbot/internal/config"
	"github.com/edgard/scoutbot/internal/directory/directorytest"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type blockingListener struct{}

func (blockingListener) Start(ctx context.Context) { <-ctx.Done() }

type returningListener struct{}

func (returningListener) Start(context.Context) {}

type runner struct {
	ran atomic.Bool
}

func (r *runner) Run(ctx context.Context) error {
	r.ran.Store(true)
	<-ctx.Done()
	return nil
}

func newTestScheduler(t *testing.T, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) *Scheduler {
	t.Helper()
	s, err := NewScheduler(discard, cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	return s
}

func TestRunStopsOnCancelAndDisconnects(t *testing.T) {
	dir := directorytest.New()
	controller, metricsSrv := &runner{}, &runner{}
	b := NewBot(discard, blockingListener{}, newTestScheduler(t, nil, nil), controller, dir, WithMetricsServer(metricsSrv))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}

	if !controller.ran.Load() || !metricsSrv.ran.Load() {
		t.Error("controller or metrics server not started")
	}
	if dir.IsConnected() {
		t.Error("scout client still connected after shutdown")
	}
}

func TestRunFailsWhenListenerStops(t *testing.T) {
	b := NewBot(discard, returningListener{}, newTestScheduler(t, nil, nil), &runner{}, directorytest.New())

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(context.Background()) }()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("Run() = nil, want an error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
	}
}

func TestSchedulerRunsEnabledTasks(t *testing.T) {
	var calls atomic.Int32
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"tick":     {Enabled: true, Schedule: "* * * * * *"},
		"disabled": {Enabled: false, Schedule: "* * * * * *"},
		"unknown":  {Enabled: true, Schedule: "* * * * * *"},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"tick":     func(context.Context) error { calls.Add(1); return nil },
		"disabled": func(context.Context) error { t.Error("disabled task ran"); return nil },
	}

	s := newTestScheduler(t, cfg, taskMap)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() = nil, want an error")
	}

	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if calls.Load() == 0 {
		t.Error("enabled task never ran")
	}
}
