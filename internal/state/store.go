// Package state holds the concurrent table of agent lifecycle records, the
// single source of truth for agent status. All mutation goes through the
// store; no caller ever holds a reference into the table.
//
// Locking is scoped per record: the table-level lock guards only map
// membership, so monitors for different agents and management callers never
// contend except on the same record.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnknownAgent is returned for operations on an id the store has never
	// seen or has since removed.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrDuplicateAgent is returned by Add for an id already present.
	// Ids are uuids, so this is defensive.
	ErrDuplicateAgent = errors.New("duplicate agent")

	// ErrTerminalState rejects a status transition that would leave or
	// revisit a terminal state. The stored record is left untouched; callers
	// may inspect the rejection to detect protocol anomalies.
	ErrTerminalState = errors.New("agent already in terminal state")
)

type entry struct {
	mu  sync.Mutex
	rec Record
}

// Store is the agent record table.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	alive   func(pid int) bool
}

// Option configures a Store.
type Option func(*Store)

// WithLivenessCheck replaces the OS process liveness probe used by Poll.
func WithLivenessCheck(alive func(pid int) bool) Option {
	return func(s *Store) { s.alive = alive }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		alive:   PIDAlive,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a new record. Zero Status defaults to running and zero
// StartTime to now, matching what a freshly spawned agent looks like.
func (s *Store) Add(rec Record) error {
	if rec.AgentID == "" {
		return fmt.Errorf("agent id is empty")
	}
	if rec.Status == "" {
		rec.Status = StatusRunning
	}
	if !rec.Status.valid() {
		return fmt.Errorf("invalid status %q", rec.Status)
	}
	if rec.StartTime.IsZero() {
		rec.StartTime = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[rec.AgentID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, rec.AgentID)
	}
	s.entries[rec.AgentID] = &entry{rec: rec.clone()}
	return nil
}

// Update merges the supplied fields into the record and returns the updated
// snapshot. A transition out of a terminal state, or into pending from
// running, fails ErrTerminalState / an invalid-transition error and leaves
// the record untouched, including the update's other fields.
func (s *Store) Update(agentID string, upd Update) (Record, error) {
	e, err := s.lookup(agentID)
	if err != nil {
		return Record{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if upd.Status != nil {
		next := *upd.Status
		if !next.valid() {
			return Record{}, fmt.Errorf("invalid status %q", next)
		}
		if e.rec.Status.Terminal() {
			return Record{}, fmt.Errorf("%w: %s is %s", ErrTerminalState, agentID, e.rec.Status)
		}
		if e.rec.Status == StatusRunning && next == StatusPending {
			return Record{}, fmt.Errorf("invalid transition %s -> %s for %s", e.rec.Status, next, agentID)
		}
		e.rec.Status = next
		if next.Terminal() {
			// PID is only defined while running.
			e.rec.PID = 0
		}
	}
	if upd.LastReasoning != nil {
		e.rec.LastReasoning = *upd.LastReasoning
	}
	if upd.Result != nil {
		e.rec.Result = *upd.Result
	}
	if upd.ExitCode != nil {
		code := *upd.ExitCode
		e.rec.ExitCode = &code
	}
	if upd.SessionInfo != nil {
		e.rec.SessionInfo = *upd.SessionInfo
	}
	return e.rec.clone(), nil
}

// Get returns an immutable snapshot of the record.
func (s *Store) Get(agentID string) (Record, error) {
	e, err := s.lookup(agentID)
	if err != nil {
		return Record{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.clone(), nil
}

// Remove deletes the record. Removing an absent id is a no-op.
func (s *Store) Remove(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, agentID)
}

// List returns snapshots of every record, oldest first.
func (s *Store) List() []Record {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.rec.clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].AgentID < out[j].AgentID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Len returns the number of records in the table.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Poll transitions every running record whose pid fails the OS liveness
// check to terminated with reason "process vanished". This covers children
// killed by something other than this controller, which the IPC stream never
// reports. Returns the ids that were transitioned.
//
// Poll never holds the table lock across a liveness probe; it locks one
// record at a time.
func (s *Store) Poll() []string {
	s.mu.RLock()
	snapshot := make(map[string]*entry, len(s.entries))
	for id, e := range s.entries {
		snapshot[id] = e
	}
	s.mu.RUnlock()

	var vanished []string
	for id, e := range snapshot {
		e.mu.Lock()
		if e.rec.Status == StatusRunning && !s.alive(e.rec.PID) {
			e.rec.Status = StatusTerminated
			e.rec.Result = "process vanished"
			e.rec.PID = 0
			vanished = append(vanished, id)
		}
		e.mu.Unlock()
	}
	sort.Strings(vanished)
	return vanished
}

func (s *Store) lookup(agentID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return e, nil
}
