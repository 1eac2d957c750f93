package directory

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"
)

// stuckClient blocks every call until its context ends.
type stuckClient struct {
	Client
}

func (stuckClient) IsAuthorized(ctx context.Context) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (stuckClient) Connect(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stuckClient) IsConnected() bool { return true }

func (stuckClient) Dialogs(ctx context.Context) iter.Seq2[Dialog, error] {
	return func(yield func(Dialog, error) bool) {
		<-ctx.Done()
		yield(Dialog{}, ctx.Err())
	}
}

func TestWithTimeoutBoundsCalls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := WithTimeout(stuckClient{}, 20*time.Millisecond)

	start := time.Now()
	if _, err := c.IsAuthorized(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("IsAuthorized() error = %v, want deadline exceeded", err)
	}
	if err := c.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v, want deadline exceeded", err)
	}
	if _, _, err := FindDialog(ctx, c, "Dest"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("FindDialog() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("bounded calls took %s", elapsed)
	}
	if !c.IsConnected() {
		t.Error("IsConnected not forwarded")
	}
}

func TestWithTimeoutDisabled(t *testing.T) {
	t.Parallel()
	var c Client = stuckClient{}
	if got := WithTimeout(c, 0); got != c {
		t.Error("WithTimeout(0) wrapped the client")
	}
}
