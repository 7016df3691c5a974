package sheets

import (
	"context"
	"sync"

	"github.com/zenorc/zenorc/internal/model"
)

// MockLedger is a mock implementation of service.Ledger for testing.
type MockLedger struct {
	RecordFunc      func(ctx context.Context, entry model.LedgerEntry) error
	LoadFunc        func(ctx context.Context) (map[string]struct{}, error)
	KnownIDs        map[string]struct{}
	Recorded        []model.LedgerEntry
	RecordCallCount int
	mu              sync.Mutex
}

// NewMockLedger creates a new mock ledger with an optional pre-seeded id set.
func NewMockLedger(knownIDs ...string) *MockLedger {
	ids := make(map[string]struct{}, len(knownIDs))
	for _, id := range knownIDs {
		ids[id] = struct{}{}
	}
	return &MockLedger{KnownIDs: ids}
}

// LoadKnownIDs implements the service.Ledger interface.
func (m *MockLedger) LoadKnownIDs(ctx context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	ids := make(map[string]struct{}, len(m.KnownIDs))
	for id := range m.KnownIDs {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// Record implements the service.Ledger interface.
func (m *MockLedger) Record(ctx context.Context, entry model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordCallCount++

	var err error
	if m.RecordFunc != nil {
		err = m.RecordFunc(ctx, entry)
	}
	if err == nil {
		m.Recorded = append(m.Recorded, entry)
	}
	return err
}

// RecordedEntries returns a copy of all successfully recorded entries.
func (m *MockLedger) RecordedEntries() []model.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]model.LedgerEntry, len(m.Recorded))
	copy(entries, m.Recorded)
	return entries
}

// SetRecordError configures the mock to fail every Record call.
func (m *MockLedger) SetRecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordFunc = func(_ context.Context, _ model.LedgerEntry) error {
		return err
	}
}
