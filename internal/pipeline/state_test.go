package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenorc/zenorc/internal/model"
)

func TestState_AdmitDeduplicates(t *testing.T) {
	state := NewState(nil)

	assert.True(t, state.Admit("txn-1"))
	assert.False(t, state.Admit("txn-1"), "second admit of the same id must be rejected")

	snapshot := state.Snapshot()
	assert.Equal(t, model.StatusQueued, snapshot.Statuses["txn-1"])
}

func TestState_SeededIDsAreRejected(t *testing.T) {
	state := NewState(map[string]struct{}{"ledger-known": {}})

	assert.False(t, state.Admit("ledger-known"))
	assert.True(t, state.Admit("fresh"))
}

func TestState_EnqueueRequiresQueuedStatus(t *testing.T) {
	state := NewState(nil)

	// Not admitted: no status record, so no queue entry.
	state.Enqueue("ghost")
	assert.Equal(t, 0, state.QueueLen())

	require.True(t, state.Admit("txn-1"))
	state.Enqueue("txn-1")
	assert.Equal(t, 1, state.QueueLen())

	// Double enqueue keeps the at-most-once queue invariant.
	state.Enqueue("txn-1")
	assert.Equal(t, 1, state.QueueLen())
}

func TestState_PopReadyRespectsFIFOAndCooldown(t *testing.T) {
	state := NewState(nil)
	cooldown := 40 * time.Second
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b", "c"} {
		require.True(t, state.Admit(id))
		state.Enqueue(id)
	}

	// First pop: no dispatch has happened, cooldown gate is open.
	id, ok := state.PopReady(now, cooldown)
	require.True(t, ok)
	assert.Equal(t, "a", id)
	assert.Equal(t, model.StatusProcessing, state.Snapshot().Statuses["a"])

	state.Finish("a", true, now)

	// Cooldown not elapsed: nothing pops, queue order untouched.
	_, ok = state.PopReady(now.Add(39*time.Second), cooldown)
	assert.False(t, ok)
	assert.Equal(t, 2, state.QueueLen())

	// Exactly at the floor the head pops, strictly in enqueue order.
	id, ok = state.PopReady(now.Add(cooldown), cooldown)
	require.True(t, ok)
	assert.Equal(t, "b", id)
}

func TestState_FinishRecordsTerminalStatus(t *testing.T) {
	state := NewState(nil)
	now := time.Now()

	require.True(t, state.Admit("ok"))
	state.Enqueue("ok")
	require.True(t, state.Admit("bad"))
	state.Enqueue("bad")

	id, ok := state.PopReady(now, time.Second)
	require.True(t, ok)
	state.Finish(id, true, now)

	id, ok = state.PopReady(now.Add(time.Second), time.Second)
	require.True(t, ok)
	state.Finish(id, false, now.Add(time.Second))

	snapshot := state.Snapshot()
	assert.Equal(t, model.StatusCompleted, snapshot.Statuses["ok"])
	assert.Equal(t, model.StatusFailed, snapshot.Statuses["bad"])
	assert.Equal(t, 0, snapshot.QueueLength)
}

func TestState_FailedDispatchStillConsumesCooldown(t *testing.T) {
	state := NewState(nil)
	cooldown := 40 * time.Second
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, state.Admit("first"))
	state.Enqueue("first")
	require.True(t, state.Admit("second"))
	state.Enqueue("second")

	id, ok := state.PopReady(now, cooldown)
	require.True(t, ok)
	state.Finish(id, false, now)

	// The failed dispatch stamped the cooldown clock.
	_, ok = state.PopReady(now.Add(time.Second), cooldown)
	assert.False(t, ok)
	assert.Equal(t, cooldown-time.Second, state.CooldownRemaining(now.Add(time.Second), cooldown))
}

func TestState_SnapshotIsACopy(t *testing.T) {
	state := NewState(nil)
	require.True(t, state.Admit("txn-1"))
	state.Enqueue("txn-1")

	snapshot := state.Snapshot()
	snapshot.Statuses["txn-1"] = model.StatusFailed

	assert.Equal(t, model.StatusQueued, state.Snapshot().Statuses["txn-1"])
}
