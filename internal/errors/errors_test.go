package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk I/O error")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, CodeUnknown},
		{"plain error", cause, CodeUnknown},
		{"storage", NewStorageError("insert failed", cause), CodeStorage},
		{"transport", NewTransportError("connect failed", cause), CodeTransport},
		{"parse", NewParseError("bad limit", nil), CodeParse},
		{"config", NewConfigError("missing token", nil), CodeConfig},
		{"wrapped", fmt.Errorf("batch: %w", Newf(CodeFloodWait, "wait %ds", 30)), CodeFloodWait},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("%s: Code() = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewTransportError("invite failed", cause)

	if got := err.Error(); got != "invite failed: connection reset" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if got := Newf(CodeParse, "limit %q", "x").Error(); got != `limit "x"` {
		t.Errorf("Newf().Error() = %q", got)
	}
}

func TestHasCode(t *testing.T) {
	t.Parallel()

	if HasCode(nil, CodeUnknown) {
		t.Error("HasCode(nil) = true")
	}
	if !HasCode(NewStorageError("x", nil), CodeStorage) {
		t.Error("HasCode(storage) = false")
	}
	if HasCode(NewStorageError("x", nil), CodeTransport) {
		t.Error("HasCode(storage, transport) = true")
	}
}
