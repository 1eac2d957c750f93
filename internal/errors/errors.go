// Package errors defines the application error taxonomy shared by the
// invitation engine, the conversation state machine and the stores.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown             = "UNKNOWN"
	CodeConfig              = "CONFIG"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeParse               = "PARSE"
	CodeDestinationNotFound = "DESTINATION_NOT_FOUND"
	CodeNotAChannel         = "NOT_A_CHANNEL"
	CodeBatchTooLarge       = "BATCH_TOO_LARGE"
	CodeDailyLimitExceeded  = "DAILY_LIMIT_EXCEEDED"
	CodePerUserInvite       = "PER_USER_INVITE"
	CodeFloodWait           = "FLOOD_WAIT"
	CodeResolutionFailed    = "RESOLUTION_FAILED"
	CodeStorage             = "STORAGE"
	CodeTransport           = "TRANSPORT"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

// New returns an application error with the given code.
func New(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

// Newf is New with a formatted message and no cause.
func Newf(code, format string, args ...any) error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}

// NewStorageError wraps a persistence failure.
func NewStorageError(message string, cause error) error {
	return New(CodeStorage, message, cause)
}

// NewTransportError wraps a directory session or delivery failure.
func NewTransportError(message string, cause error) error {
	return New(CodeTransport, message, cause)
}

// NewParseError reports operator input that did not match the expected shape.
func NewParseError(message string, cause error) error {
	return New(CodeParse, message, cause)
}

// NewConfigError reports an invalid or missing configuration value.
func NewConfigError(message string, cause error) error {
	return New(CodeConfig, message, cause)
}
