// Package memory is a bounded in-process conjunction log.
package memory

import (
	"context"
	"sync"

	"github.com/signalsfoundry/orbital-guard/internal/storage"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 10000

// Store keeps the most recent events; the oldest are dropped once capacity
// is reached.
type Store struct {
	mu       sync.RWMutex
	events   []storage.ConjunctionEvent
	capacity int
	closed   bool
}

var _ storage.Recorder = (*Store)(nil)

// New constructs a Store.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// Record appends events.
func (s *Store) Record(_ context.Context, events ...storage.ConjunctionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	s.events = append(s.events, events...)
	if over := len(s.events) - s.capacity; over > 0 {
		s.events = append([]storage.ConjunctionEvent(nil), s.events[over:]...)
	}
	return nil
}

// List returns matching events, newest first.
func (s *Store) List(_ context.Context, q storage.Query) ([]storage.ConjunctionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	limit := q.EffectiveLimit()
	out := make([]storage.ConjunctionEvent, 0)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := s.events[i]
		if q.FocusKey != "" && ev.FocusKey != q.FocusKey {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Close releases the events.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.events = nil
	s.mu.Unlock()
	return nil
}
