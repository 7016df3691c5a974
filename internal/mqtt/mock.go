package mqtt

import (
	"context"
	"sync"
	"time"
)

// MockDispatcher is a mock implementation of service.Dispatcher for testing.
type MockDispatcher struct {
	PublishFunc      func(ctx context.Context) error
	PublishTimes     []time.Time
	PublishCallCount int
	mu               sync.Mutex
}

// NewMockDispatcher creates a new mock dispatcher.
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

// Publish implements the service.Dispatcher interface.
func (m *MockDispatcher) Publish(ctx context.Context) error {
	m.mu.Lock()
	m.PublishCallCount++
	m.PublishTimes = append(m.PublishTimes, time.Now())
	fn := m.PublishFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// Calls returns the number of Publish calls so far.
func (m *MockDispatcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PublishCallCount
}

// Times returns a copy of the recorded call timestamps.
func (m *MockDispatcher) Times() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	times := make([]time.Time, len(m.PublishTimes))
	copy(times, m.PublishTimes)
	return times
}

// SetPublishError configures the mock to fail every Publish call.
func (m *MockDispatcher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishFunc = func(_ context.Context) error {
		return err
	}
}
