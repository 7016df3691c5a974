// Package pipeline implements the ingestion → dedupe → queue →
// rate-limited-dispatch core of the payment relay.
package pipeline

import (
	"sync"
	"time"

	"github.com/zenorc/zenorc/internal/model"
)

// State is the shared in-memory structure read and written by the ingestion
// loop, the cooldown scheduler, and the status surface. One mutex guards
// everything; operations are short and contention is low.
//
// Invariants:
//   - knownIDs is a superset of every id ever queued and never shrinks.
//   - an id appears in the queue at most once, and only while Queued.
//   - statuses is append-only for the process lifetime.
type State struct {
	lastDispatchAt time.Time
	knownIDs       map[string]struct{}
	consumedRefs   map[string]struct{}
	statuses       map[string]model.TransactionStatus
	queue          []string
	mu             sync.Mutex
}

// NewState returns a State seeded with ids previously recorded in the
// ledger. seed may be nil when the ledger was unreachable at startup.
func NewState(seed map[string]struct{}) *State {
	known := make(map[string]struct{}, len(seed))
	for id := range seed {
		known[id] = struct{}{}
	}
	return &State{
		knownIDs:     known,
		consumedRefs: make(map[string]struct{}),
		statuses:     make(map[string]model.TransactionStatus),
	}
}

// RefConsumed reports whether sourceRef was already inspected this process
// lifetime.
func (s *State) RefConsumed(sourceRef string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.consumedRefs[sourceRef]
	return ok
}

// ConsumeRef records sourceRef as inspected.
func (s *State) ConsumeRef(sourceRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumedRefs[sourceRef] = struct{}{}
}

// Admit registers txnID unless it is already known: it adds the id to the
// dedup set and sets its status to Queued, but does not yet make it
// dispatchable. Callers append the ledger row and then call Enqueue, so the
// durable record always precedes dispatch eligibility. The return value
// reports whether the id was new.
func (s *State) Admit(txnID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.knownIDs[txnID]; ok {
		return false
	}
	if _, ok := s.statuses[txnID]; ok {
		return false
	}

	s.knownIDs[txnID] = struct{}{}
	s.statuses[txnID] = model.StatusQueued
	return true
}

// Enqueue appends an admitted transaction to the queue tail, making it
// eligible for dispatch. Only ids in the Queued state are accepted, which
// keeps the at-most-once queue membership invariant.
func (s *State) Enqueue(txnID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statuses[txnID] != model.StatusQueued {
		return
	}
	for _, queued := range s.queue {
		if queued == txnID {
			return
		}
	}
	s.queue = append(s.queue, txnID)
}

// PopReady removes and returns the queue head if the queue is non-empty and
// the cooldown has elapsed since the last terminal transition (or no
// dispatch has happened yet). The popped transaction moves to Processing.
func (s *State) PopReady(now time.Time, cooldown time.Duration) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return "", false
	}
	if !s.lastDispatchAt.IsZero() && now.Sub(s.lastDispatchAt) < cooldown {
		return "", false
	}

	txnID := s.queue[0]
	s.queue = s.queue[1:]
	s.statuses[txnID] = model.StatusProcessing
	return txnID, true
}

// CooldownRemaining returns how long until the next dispatch is permitted.
// Zero means dispatch is allowed now.
func (s *State) CooldownRemaining(now time.Time, cooldown time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastDispatchAt.IsZero() {
		return 0
	}
	remaining := cooldown - now.Sub(s.lastDispatchAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Finish records the terminal status for a Processing transaction and stamps
// the cooldown clock. A failed publish still consumes the cooldown window so
// an unreachable broker is not hammered.
func (s *State) Finish(txnID string, succeeded bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if succeeded {
		s.statuses[txnID] = model.StatusCompleted
	} else {
		s.statuses[txnID] = model.StatusFailed
	}
	s.lastDispatchAt = now
}

// QueueLen returns the number of transactions awaiting dispatch.
func (s *State) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Snapshot is a point-in-time read-only projection of pipeline state for
// external observers.
type Snapshot struct {
	Statuses    map[string]model.TransactionStatus
	QueueLength int
}

// Snapshot copies the current queue length and status map.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]model.TransactionStatus, len(s.statuses))
	for id, st := range s.statuses {
		statuses[id] = st
	}
	return Snapshot{QueueLength: len(s.queue), Statuses: statuses}
}
