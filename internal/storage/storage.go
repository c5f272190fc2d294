// Package storage defines the conjunction log: a record of hazards observed
// for a focus object, written when a hazard appears or changes severity.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/orbital-guard/model"
)

// DefaultLimit caps List results when the query does not.
const DefaultLimit = 100

// ErrClosed is returned by recorders used after Close.
var ErrClosed = errors.New("recorder closed")

// ConjunctionEvent is one observed hazard transition.
type ConjunctionEvent struct {
	ID              string           `json:"id"`
	FocusKey        string           `json:"focusKey"`
	FocusName       string           `json:"focusName"`
	ObjectKey       string           `json:"objectKey,omitempty"`
	ObjectName      string           `json:"objectName"`
	ObjectKind      model.ObjectKind `json:"objectType"`
	DistanceKm      float64          `json:"distance"`
	Severity        model.Severity   `json:"severity"`
	TimeToCollision *float64         `json:"timeToCollision,omitempty"`
	Collision       bool             `json:"collision"`
	SimTime         time.Time        `json:"simTime"`
	RecordedAt      time.Time        `json:"recordedAt"`
}

// Query filters List. An empty FocusKey matches every focus.
type Query struct {
	FocusKey string
	Limit    int
}

// EffectiveLimit returns the limit to apply.
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Recorder persists conjunction events. List returns the newest events
// first.
type Recorder interface {
	Record(ctx context.Context, events ...ConjunctionEvent) error
	List(ctx context.Context, q Query) ([]ConjunctionEvent, error)
	Close() error
}

// Discard is a Recorder that keeps nothing.
type Discard struct{}

func (Discard) Record(context.Context, ...ConjunctionEvent) error { return nil }
func (Discard) List(context.Context, Query) ([]ConjunctionEvent, error) {
	return []ConjunctionEvent{}, nil
}
func (Discard) Close() error { return nil }

// NewEvents converts hazards into events stamped with fresh IDs.
func NewEvents(focus model.TrackedObject, hazards []model.HazardRecord, simTime, now time.Time) []ConjunctionEvent {
	events := make([]ConjunctionEvent, 0, len(hazards))
	for _, h := range hazards {
		ev := ConjunctionEvent{
			ID:         uuid.NewString(),
			FocusKey:   focus.Key(),
			FocusName:  focus.DisplayName(),
			ObjectKey:  h.ObjectKey,
			ObjectName: h.DebrisName,
			ObjectKind: h.Type,
			DistanceKm: h.Distance,
			Severity:   h.Severity,
			Collision:  h.Collision,
			SimTime:    simTime.UTC(),
			RecordedAt: now.UTC(),
		}
		if h.TimeToCollision != nil {
			v := *h.TimeToCollision
			ev.TimeToCollision = &v
		}
		events = append(events, ev)
	}
	return events
}

// SortNewestFirst orders events by recording time, newest first, breaking
// ties on simulation time.
func SortNewestFirst(events []ConjunctionEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.After(b.RecordedAt)
		}
		return a.SimTime.After(b.SimTime)
	})
}

// Tracker remembers the last severity seen per (focus, object) so that only
// transitions are recorded. Objects are identified by TrackingKey.
type Tracker struct {
	mu    sync.Mutex
	focus string
	last  map[string]trackedState
}

type trackedState struct {
	severity  model.Severity
	collision bool
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]trackedState)}
}

// Changes returns the hazards that are new or whose severity or collision
// flag changed since the previous call for the same focus. Switching focus
// resets the history.
func (t *Tracker) Changes(focusKey string, hazards []model.HazardRecord) []model.HazardRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	if focusKey != t.focus {
		t.focus = focusKey
		t.last = make(map[string]trackedState)
	}
	next := make(map[string]trackedState, len(hazards))
	var changed []model.HazardRecord
	for _, h := range hazards {
		st := trackedState{severity: h.Severity, collision: h.Collision}
		key := h.TrackingKey()
		next[key] = st
		if prev, ok := t.last[key]; !ok || prev != st {
			changed = append(changed, h)
		}
	}
	t.last = next
	return changed
}

// Reset forgets all history.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.focus = ""
	t.last = make(map[string]trackedState)
	t.mu.Unlock()
}
