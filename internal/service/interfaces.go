// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/zenorc/zenorc/internal/model"
)

// NotificationSource yields candidate notifications from an inbox. The
// underlying connection is stateful and not safe for concurrent use;
// implementations serialize access internally, and callers must not assume
// two calls can overlap.
type NotificationSource interface {
	// FetchUnseen returns up to limit unread notifications, newest first.
	FetchUnseen(ctx context.Context, limit int) ([]model.Notification, error)
	// MarkConsumed flags the underlying message so it is not re-fetched.
	MarkConsumed(ctx context.Context, sourceRef string) error
}

// Ledger is the durable append-only record of accepted transactions. It is
// used only to seed in-memory dedup state at startup and for audit rows.
type Ledger interface {
	// LoadKnownIDs returns every transaction id previously recorded.
	LoadKnownIDs(ctx context.Context) (map[string]struct{}, error)
	// Record appends one row for an accepted transaction.
	Record(ctx context.Context, entry model.LedgerEntry) error
}

// Dispatcher publishes a single confirmation event downstream. It retries
// internally up to its configured bound and returns a non-nil error only
// after exhausting all attempts. It knows nothing about transaction
// identity; the caller records the resulting status.
type Dispatcher interface {
	Publish(ctx context.Context) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
