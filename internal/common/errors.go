// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
)

// Common application errors.
var (
	// Source errors.
	ErrSourceAuth        = errors.New("source authentication failed")
	ErrSourceUnavailable = errors.New("source unavailable")

	// Ledger errors.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// Transport errors.
	ErrConnectTimeout  = errors.New("connect acknowledgement timed out")
	ErrPublishRejected = errors.New("publish not acknowledged")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
