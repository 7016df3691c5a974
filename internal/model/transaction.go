package model

import "time"

// TransactionStatus tracks a transaction through the dispatch pipeline.
type TransactionStatus string

// Transaction status constants. Completed and Failed are terminal; a
// transaction is never recycled out of either.
const (
	StatusQueued     TransactionStatus = "Queued"
	StatusProcessing TransactionStatus = "Processing"
	StatusCompleted  TransactionStatus = "Completed"
	StatusFailed     TransactionStatus = "Failed"
)

// Terminal reports whether s is an end state.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Transaction represents one accepted, uniquely-identified payment event.
// Identity is ID: two notifications yielding the same ID are the same
// transaction and must not be double-processed.
type Transaction struct {
	AcceptedAt time.Time
	ID         string
	Amount     string // fixed expected value in this domain, e.g. "5"
}

// LedgerEntry is the row appended to the dedupe ledger for an accepted
// transaction, column order [id, amount, date, time].
type LedgerEntry struct {
	When   time.Time
	ID     string
	Amount string
}
