package imap

import (
	"context"
	"sync"

	"github.com/zenorc/zenorc/internal/model"
)

// MockSource is a mock implementation of service.NotificationSource for
// testing.
type MockSource struct {
	FetchFunc        func(ctx context.Context, limit int) ([]model.Notification, error)
	MarkConsumedFunc func(ctx context.Context, sourceRef string) error
	Notifications    []model.Notification
	Consumed         []string
	FetchCallCount   int
	mu               sync.Mutex
}

// NewMockSource creates a mock source that serves the given notifications
// on every fetch.
func NewMockSource(notifications ...model.Notification) *MockSource {
	return &MockSource{Notifications: notifications}
}

// FetchUnseen implements the service.NotificationSource interface.
func (m *MockSource) FetchUnseen(ctx context.Context, limit int) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchCallCount++

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, limit)
	}

	notifications := m.Notifications
	if limit > 0 && len(notifications) > limit {
		notifications = notifications[:limit]
	}
	out := make([]model.Notification, len(notifications))
	copy(out, notifications)
	return out, nil
}

// MarkConsumed implements the service.NotificationSource interface.
func (m *MockSource) MarkConsumed(ctx context.Context, sourceRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.MarkConsumedFunc != nil {
		if err := m.MarkConsumedFunc(ctx, sourceRef); err != nil {
			return err
		}
	}
	m.Consumed = append(m.Consumed, sourceRef)
	return nil
}

// ConsumedRefs returns a copy of all refs marked consumed.
func (m *MockSource) ConsumedRefs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	refs := make([]string, len(m.Consumed))
	copy(refs, m.Consumed)
	return refs
}
