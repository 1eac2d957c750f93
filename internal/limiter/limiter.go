// Package limiter enforces the invitation quotas: a hard cap per request and
// a daily cap over a rolling 24-hour window. Only confirmed successes
// consume budget.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/edgard/scoutbot/internal/errors"
)

var (
	ErrBatchTooLarge      = errors.New("batch exceeds the per-request cap")
	ErrDailyLimitExceeded = errors.New("daily invitation limit reached")
)

// ExhaustedError is returned by TryReserve when the rolling window has no
// budget left.
type ExhaustedError struct {
	RetryAfter time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v, retry after %s", ErrDailyLimitExceeded, e.RetryAfter.Format(time.RFC3339))
}

func (e *ExhaustedError) Code() string {
	return apperrors.CodeDailyLimitExceeded
}

func (e *ExhaustedError) Unwrap() error {
	return ErrDailyLimitExceeded
}

// Window is the persisted accounting state.
type Window struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// WindowStore loads and saves the window between calls.
type WindowStore interface {
	Load(ctx context.Context) (Window, error)
	Save(ctx context.Context, w Window) error
}

// MemoryStore keeps the window in process memory, so a restart starts a
// fresh window.
type MemoryStore struct {
	mu sync.Mutex
	w  Window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.w, nil
}

func (m *MemoryStore) Save(_ context.Context, w Window) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.w = w
	return nil
}

// Config holds the quota values.
type Config struct {
	DailyCap int
	BatchCap int
	Window   time.Duration
}

// DefaultConfig returns the production quotas.
func DefaultConfig() Config {
	return Config{DailyCap: 200, BatchCap: 200, Window: 24 * time.Hour}
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// Limiter tracks invitations within the rolling window.
type Limiter struct {
	cfg   Config
	store WindowStore
	now   func() time.Time

	mu sync.Mutex
}

// New creates a Limiter. A nil store keeps the window in memory.
func New(cfg Config, store WindowStore, opts ...Option) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	l := &Limiter{cfg: cfg, store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BatchCap returns the per-request cap.
func (l *Limiter) BatchCap() int {
	return l.cfg.BatchCap
}

// CheckBatch validates a request size against the per-request cap without
// touching the window.
func (l *Limiter) CheckBatch(n int) error {
	if n > l.cfg.BatchCap {
		return apperrors.New(apperrors.CodeBatchTooLarge,
			fmt.Sprintf("cannot invite %d users at once, the maximum is %d", n, l.cfg.BatchCap), ErrBatchTooLarge)
	}
	if n <= 0 {
		return apperrors.Newf(apperrors.CodeParse, "invitation count must be positive, got %d", n)
	}
	return nil
}

// current loads the window, starting a new one when the previous expired.
func (l *Limiter) current(ctx context.Context) (Window, error) {
	w, err := l.store.Load(ctx)
	if err != nil {
		return Window{}, apperrors.NewStorageError("failed to load invitation window", err)
	}

	now := l.now()
	if w.Start.IsZero() || now.Sub(w.Start) >= l.cfg.Window {
		w = Window{Start: now}
		if err := l.store.Save(ctx, w); err != nil {
			return Window{}, apperrors.NewStorageError("failed to reset invitation window", err)
		}
	}
	return w, nil
}

// TryReserve checks a request for n invitations and returns how many may be
// attempted. It does not consume budget; call Commit after each success.
func (l *Limiter) TryReserve(ctx context.Context, n int) (int, error) {
	if err := l.CheckBatch(n); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.current(ctx)
	if err != nil {
		return 0, err
	}

	if w.Count >= l.cfg.DailyCap {
		return 0, &ExhaustedError{RetryAfter: w.Start.Add(l.cfg.Window)}
	}
	return min(n, l.cfg.DailyCap-w.Count), nil
}

// Commit records k confirmed invitations.
func (l *Limiter) Commit(ctx context.Context, k int) error {
	if k <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.current(ctx)
	if err != nil {
		return err
	}
	w.Count += k
	if err := l.store.Save(ctx, w); err != nil {
		return apperrors.NewStorageError("failed to save invitation window", err)
	}
	return nil
}

// Remaining returns the budget left in the current window.
func (l *Limiter) Remaining(ctx context.Context) (int, error) {
	w, err := l.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return max(l.cfg.DailyCap-w.Count, 0), nil
}

// Snapshot returns the current window.
func (l *Limiter) Snapshot(ctx context.Context) (Window, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current(ctx)
}
