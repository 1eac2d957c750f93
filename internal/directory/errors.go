package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"
)

var (
	ErrPrivacyRestricted = errors.New("user privacy settings forbid the invitation")
	ErrNotMutualContact  = errors.New("user is not a mutual contact")
	ErrFloodWait         = errors.New("directory flood limit reached")
	ErrUnresolved        = errors.New("user cannot be resolved by this session")
	ErrNotConnected      = errors.New("directory session is not connected")
	ErrNotAuthorized     = errors.New("directory session is not authorized")
	ErrInvalidCode       = errors.New("login code is invalid or expired")
	ErrPasswordRequired  = errors.New("account requires a two-step verification password")
)

// FloodWaitError is returned when the directory throttles the session.
// Wait is zero when the directory did not say how long to wait.
type FloodWaitError struct {
	Wait time.Duration
	err  error
}

func (e *FloodWaitError) Error() string {
	if e.Wait > 0 {
		return fmt.Sprintf("%v: retry in %s", ErrFloodWait, e.Wait)
	}
	return ErrFloodWait.Error()
}

func (e *FloodWaitError) Is(target error) bool {
	return target == ErrFloodWait
}

func (e *FloodWaitError) Unwrap() error {
	return e.err
}

// classify maps an RPC error onto the package sentinels, keeping the
// original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &FloodWaitError{Wait: wait, err: err}
	}
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return fmt.Errorf("%w: %w", ErrPasswordRequired, err)
	}

	switch {
	case tgerr.Is(err, "PEER_FLOOD"):
		return &FloodWaitError{err: err}
	case tgerr.Is(err, "USER_PRIVACY_RESTRICTED"):
		return fmt.Errorf("%w: %w", ErrPrivacyRestricted, err)
	case tgerr.Is(err, "USER_NOT_MUTUAL_CONTACT"):
		return fmt.Errorf("%w: %w", ErrNotMutualContact, err)
	case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EXPIRED", "PHONE_CODE_EMPTY"):
		return fmt.Errorf("%w: %w", ErrInvalidCode, err)
	case tgerr.Is(err, "AUTH_KEY_UNREGISTERED", "SESSION_REVOKED", "USER_DEACTIVATED"):
		return fmt.Errorf("%w: %w", ErrNotAuthorized, err)
	}
	return err
}
