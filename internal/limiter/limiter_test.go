package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/edgard/scoutbot/internal/errors"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestLimiter() (*Limiter, *testClock) {
	clock := &testClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	return New(DefaultConfig(), nil, WithClock(clock.Now)), clock
}

func TestExhaustedAfterDailyCap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, clock := newTestLimiter()

	start := clock.now
	for range 200 {
		if _, err := l.TryReserve(ctx, 1); err != nil {
			t.Fatalf("TryReserve() error = %v", err)
		}
		if err := l.Commit(ctx, 1); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		clock.now = clock.now.Add(time.Minute)
	}

	_, err := l.TryReserve(ctx, 1)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("TryReserve() error = %v, want *ExhaustedError", err)
	}
	if !exhausted.RetryAfter.Equal(start.Add(24 * time.Hour)) {
		t.Errorf("RetryAfter = %v, want %v", exhausted.RetryAfter, start.Add(24*time.Hour))
	}
	if !apperrors.HasCode(err, apperrors.CodeDailyLimitExceeded) || !errors.Is(err, ErrDailyLimitExceeded) {
		t.Errorf("error %v not classified as daily limit", err)
	}
}

func TestWindowResetsAfter24h(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, clock := newTestLimiter()

	if _, err := l.TryReserve(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := l.Commit(ctx, 150); err != nil {
		t.Fatal(err)
	}

	clock.now = clock.now.Add(24 * time.Hour)
	got, err := l.TryReserve(ctx, 200)
	if err != nil || got != 200 {
		t.Fatalf("TryReserve() after reset = %d, %v; want 200", got, err)
	}

	w, err := l.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if w.Count != 0 || !w.Start.Equal(clock.now) {
		t.Errorf("window = %+v, want fresh window at %v", w, clock.now)
	}
}

func TestTryReserveClampsToRemaining(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newTestLimiter()

	if _, err := l.TryReserve(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := l.Commit(ctx, 190); err != nil {
		t.Fatal(err)
	}

	got, err := l.TryReserve(ctx, 50)
	if err != nil || got != 10 {
		t.Fatalf("TryReserve(50) = %d, %v; want 10", got, err)
	}
	if rem, _ := l.Remaining(ctx); rem != 10 {
		t.Errorf("Remaining() = %d, want 10", rem)
	}

	// Reserving never consumes budget.
	if got, _ := l.TryReserve(ctx, 5); got != 5 {
		t.Errorf("TryReserve(5) = %d, want 5", got)
	}
}

func TestBatchTooLarge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newTestLimiter()

	_, err := l.TryReserve(ctx, 201)
	if !errors.Is(err, ErrBatchTooLarge) || !apperrors.HasCode(err, apperrors.CodeBatchTooLarge) {
		t.Fatalf("TryReserve(201) error = %v", err)
	}

	// Checked before the window, so an exhausted window still reports the batch cap.
	if err := l.Commit(ctx, 200); err != nil {
		t.Fatal(err)
	}
	if _, err := l.TryReserve(ctx, 500); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("TryReserve(500) on exhausted window = %v", err)
	}
}

func TestTryReserveRejectsNonPositive(t *testing.T) {
	t.Parallel()
	l, _ := newTestLimiter()

	if _, err := l.TryReserve(context.Background(), 0); !apperrors.HasCode(err, apperrors.CodeParse) {
		t.Errorf("TryReserve(0) error = %v", err)
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context) (Window, error) { return Window{}, errors.New("down") }
func (failingStore) Save(context.Context, Window) error   { return errors.New("down") }

func TestStoreFailureIsStorageError(t *testing.T) {
	t.Parallel()
	l := New(DefaultConfig(), failingStore{})

	if _, err := l.TryReserve(context.Background(), 1); !apperrors.HasCode(err, apperrors.CodeStorage) {
		t.Errorf("TryReserve() error = %v, want STORAGE", err)
	}
}
