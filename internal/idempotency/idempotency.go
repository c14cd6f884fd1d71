// Package idempotency deduplicates retried write requests by client-supplied
// key.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrEmptyKey is returned for a blank key.
var ErrEmptyKey = errors.New("idempotency: empty key")

// State is what Begin found for a key.
type State int

const (
	// StateNew means the key was free and is now reserved by the caller.
	StateNew State = iota
	// StatePending means another request holds the key and has not finished.
	StatePending
	// StateDone means a request with this key already completed.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StatePending:
		return "pending"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Result is the outcome of Begin. EventID is set for StateDone.
type Result struct {
	State   State
	EventID uint
}

// Store reserves keys and remembers which event each completed key produced.
type Store interface {
	// Begin reserves key, or reports who already holds it.
	Begin(ctx context.Context, key string) (Result, error)
	// Complete records the event produced under a reserved key.
	Complete(ctx context.Context, key string, eventID uint) error
	// Abort releases a reserved key so it can be retried.
	Abort(ctx context.Context, key string) error
}

type memEntry struct {
	eventID uint
	done    bool
	expires time.Time
}

// DefaultPendingTTL bounds how long a reservation survives a request that
// never completed or aborted it.
const DefaultPendingTTL = time.Minute

// MemoryStore is an in-process Store. Completed keys expire after ttl,
// unfinished reservations after pendingTTL.
type MemoryStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	pendingTTL time.Duration
	entries    map[string]memEntry
	now        func() time.Time
}

// NewMemoryStore creates a MemoryStore. A non-positive ttl means 24 hours.
// Reservations expire after DefaultPendingTTL, or ttl if that is shorter.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{
		ttl:        ttl,
		pendingTTL: min(DefaultPendingTTL, ttl),
		entries:    map[string]memEntry{},
		now:        time.Now,
	}
}

func (m *MemoryStore) Begin(_ context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	if e, ok := m.entries[key]; ok {
		if e.done {
			return Result{State: StateDone, EventID: e.eventID}, nil
		}
		return Result{State: StatePending}, nil
	}
	m.entries[key] = memEntry{expires: now.Add(m.pendingTTL)}
	return Result{State: StateNew}, nil
}

func (m *MemoryStore) Complete(_ context.Context, key string, eventID uint) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{eventID: eventID, done: true, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Abort(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !e.done {
		delete(m.entries, key)
	}
	return nil
}

// Len returns the number of live keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(m.now())
	return len(m.entries)
}

// sweep drops expired entries. Callers hold mu.
func (m *MemoryStore) sweep(now time.Time) {
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
}
