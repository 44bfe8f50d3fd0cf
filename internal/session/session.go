// Package session keeps per-browser state keyed by an opaque cookie value.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTTL is how long an untouched session survives.
const DefaultIdleTTL = 30 * time.Minute

type entry[T any] struct {
	value    T
	lastSeen time.Time
}

// Store maps session ids to values of type T. Values evicted by Sweep are
// passed to the release callback, if any.
type Store[T any] struct {
	idleTTL time.Duration
	release func(T)
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry[T]
}

// NewStore constructs a Store. A non-positive idleTTL uses DefaultIdleTTL.
func NewStore[T any](idleTTL time.Duration, release func(T)) *Store[T] {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Store[T]{
		idleTTL: idleTTL,
		release: release,
		now:     time.Now,
		entries: make(map[string]*entry[T]),
	}
}

// Create stores value under a fresh random id and returns the id.
func (s *Store[T]) Create(value T) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = &entry[T]{value: value, lastSeen: s.now()}
	s.mu.Unlock()
	return id
}

// Get returns the value for id and marks the session as active. Ids that
// are not well-formed UUIDs are rejected without a lookup.
func (s *Store[T]) Get(id string) (T, bool) {
	var zero T
	if _, err := uuid.Parse(id); err != nil {
		return zero, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return zero, false
	}
	e.lastSeen = s.now()
	return e.value, true
}

// Len returns the number of live sessions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Store[T]) Sweep() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var evicted []T
	for id, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, e.value)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	if s.release != nil {
		for _, v := range evicted {
			s.release(v)
		}
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is cancelled.
func (s *Store[T]) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
