// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors. Every public query in the analytics layer
// returns (value, error); callers branch on these with errors.Is.
var (
	// ErrInvalidArgument marks an out-of-range or missing query parameter.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks an unknown user or record.
	ErrNotFound = errors.New("not found")
	// ErrPartialIngestion marks a batch where some records were skipped.
	ErrPartialIngestion = errors.New("partial ingestion failure")
	// ErrExternalCall marks a failed generation, classification or embedding call.
	ErrExternalCall = errors.New("external call failed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// InvalidArgumentf wraps ErrInvalidArgument with a formatted detail.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// ValidateMonth fails with ErrInvalidArgument when month is outside 1..12.
func ValidateMonth(month int) error {
	if month < 1 || month > 12 {
		return InvalidArgumentf("month must be between 1 and 12, got %d", month)
	}
	return nil
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
