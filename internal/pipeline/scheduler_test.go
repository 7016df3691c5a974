package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenorc/zenorc/internal/model"
	"github.com/zenorc/zenorc/internal/mqtt"
)

// fakeClock drives the scheduler's view of time deterministically.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time          { return c.current }
func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestScheduler(state *State, dispatcher *mqtt.MockDispatcher, cooldown time.Duration) (*Scheduler, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sc := NewScheduler(state, dispatcher, SchedulerConfig{Cooldown: cooldown, Tick: time.Second}, nil)
	sc.now = clock.now
	return sc, clock
}

func enqueueAll(t *testing.T, state *State, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.True(t, state.Admit(id))
		state.Enqueue(id)
	}
}

func TestScheduler_DispatchesHeadAndCompletes(t *testing.T) {
	state := NewState(nil)
	dispatcher := mqtt.NewMockDispatcher()
	sc, _ := newTestScheduler(state, dispatcher, 40*time.Second)
	enqueueAll(t, state, "a")

	sc.Tick(context.Background())

	assert.Equal(t, 1, dispatcher.Calls())
	assert.Equal(t, model.StatusCompleted, state.Snapshot().Statuses["a"])
	assert.Equal(t, 0, state.QueueLen())
}

func TestScheduler_CooldownFloor(t *testing.T) {
	state := NewState(nil)
	dispatcher := mqtt.NewMockDispatcher()
	cooldown := 40 * time.Second
	sc, clock := newTestScheduler(state, dispatcher, cooldown)
	enqueueAll(t, state, "a", "b")

	ctx := context.Background()
	sc.Tick(ctx)
	require.Equal(t, 1, dispatcher.Calls())

	// Re-checks inside the cooldown window perform no state change.
	clock.advance(39 * time.Second)
	sc.Tick(ctx)
	assert.Equal(t, 1, dispatcher.Calls(), "dispatched inside cooldown window")
	assert.Equal(t, model.StatusQueued, state.Snapshot().Statuses["b"])

	// At the floor the next dispatch is permitted.
	clock.advance(time.Second)
	sc.Tick(ctx)
	assert.Equal(t, 2, dispatcher.Calls())
	assert.Equal(t, model.StatusCompleted, state.Snapshot().Statuses["b"])
}

func TestScheduler_FIFOOrder(t *testing.T) {
	state := NewState(nil)
	dispatcher := mqtt.NewMockDispatcher()
	sc, clock := newTestScheduler(state, dispatcher, 10*time.Second)
	enqueueAll(t, state, "first", "second", "third")

	ctx := context.Background()
	var processed []string
	for range 3 {
		before := state.Snapshot().Statuses
		sc.Tick(ctx)
		after := state.Snapshot().Statuses
		for id, st := range after {
			if st.Terminal() && !before[id].Terminal() {
				processed = append(processed, id)
			}
		}
		clock.advance(10 * time.Second)
	}

	assert.Equal(t, []string{"first", "second", "third"}, processed)
}

func TestScheduler_FailedPublishMarksFailedAndStampsCooldown(t *testing.T) {
	state := NewState(nil)
	dispatcher := mqtt.NewMockDispatcher()
	dispatcher.SetPublishError(errors.New("broker unreachable"))
	cooldown := 40 * time.Second
	sc, clock := newTestScheduler(state, dispatcher, cooldown)
	enqueueAll(t, state, "doomed", "next")

	ctx := context.Background()
	sc.Tick(ctx)

	snapshot := state.Snapshot()
	assert.Equal(t, model.StatusFailed, snapshot.Statuses["doomed"])

	// lastDispatchAt was still updated: the next item waits out the window.
	clock.advance(time.Second)
	sc.Tick(ctx)
	assert.Equal(t, 1, dispatcher.Calls())
	assert.Equal(t, model.StatusQueued, state.Snapshot().Statuses["next"])

	clock.advance(cooldown)
	sc.Tick(ctx)
	assert.Equal(t, 2, dispatcher.Calls())
}

func TestScheduler_FailedTransactionIsNeverRecycled(t *testing.T) {
	state := NewState(nil)
	dispatcher := mqtt.NewMockDispatcher()
	dispatcher.SetPublishError(errors.New("broker unreachable"))
	sc, clock := newTestScheduler(state, dispatcher, time.Second)
	enqueueAll(t, state, "doomed")

	ctx := context.Background()
	sc.Tick(ctx)
	require.Equal(t, model.StatusFailed, state.Snapshot().Statuses["doomed"])

	for range 5 {
		clock.advance(time.Minute)
		sc.Tick(ctx)
	}
	assert.Equal(t, 1, dispatcher.Calls(), "a terminal transaction must not be retried")
}

func TestScheduler_EmptyQueueIsANoOp(t *testing.T) {
	state := NewState(nil)
	dispatcher := mqtt.NewMockDispatcher()
	sc, _ := newTestScheduler(state, dispatcher, time.Second)

	sc.Tick(context.Background())

	assert.Equal(t, 0, dispatcher.Calls())
}
