package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/orbital-guard/model"
)

// ErrObjectNotFound is returned when a key is not in the catalog.
var ErrObjectNotFound = errors.New("object not found")

// Snapshot is an immutable view of the catalog. Callers must treat the
// slices as read-only.
type Snapshot struct {
	Objects  []model.TrackedObject
	LoadedAt time.Time
	// Generation increases on every Replace.
	Generation uint64

	byKey map[string]int
}

// Len returns the number of objects in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Objects)
}

// Get looks up an object by key.
func (s *Snapshot) Get(key string) (model.TrackedObject, bool) {
	if s == nil {
		return model.TrackedObject{}, false
	}
	i, ok := s.byKey[key]
	if !ok {
		return model.TrackedObject{}, false
	}
	return s.Objects[i], true
}

// Event is emitted to subscribers when the catalog is replaced.
type Event struct {
	Snapshot *Snapshot
	// Skipped counts entries dropped for duplicate keys.
	Skipped int
}

// Catalog is the shared, read-mostly store of tracked objects. The contents
// are replaced wholesale and never mutated in place, so readers can hold a
// snapshot without locking.
type Catalog struct {
	snap atomic.Pointer[Snapshot]

	mu     sync.Mutex
	subs   map[int]func(Event)
	nextID int
	gen    uint64
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	c := &Catalog{subs: make(map[int]func(Event))}
	c.snap.Store(&Snapshot{byKey: map[string]int{}})
	return c
}

// Replace installs a new set of objects. Entries with an empty or repeated
// key are dropped; the first occurrence wins. Subscribers are notified
// outside the lock.
func (c *Catalog) Replace(objects []model.TrackedObject) *Snapshot {
	kept := make([]model.TrackedObject, 0, len(objects))
	byKey := make(map[string]int, len(objects))
	skipped := 0
	for _, o := range objects {
		key := o.Key()
		if _, dup := byKey[key]; dup || key == "" {
			skipped++
			continue
		}
		byKey[key] = len(kept)
		kept = append(kept, o)
	}

	c.mu.Lock()
	c.gen++
	snap := &Snapshot{Objects: kept, LoadedAt: time.Now().UTC(), Generation: c.gen, byKey: byKey}
	c.snap.Store(snap)
	subs := make([]func(Event), 0, len(c.subs))
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, c.subs[id])
	}
	c.mu.Unlock()

	ev := Event{Snapshot: snap, Skipped: skipped}
	for _, sub := range subs {
		sub(ev)
	}
	return snap
}

// Snapshot returns the current snapshot.
func (c *Catalog) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Objects returns the current objects.
func (c *Catalog) Objects() []model.TrackedObject {
	return c.snap.Load().Objects
}

// Get returns the object with the given key.
func (c *Catalog) Get(key string) (model.TrackedObject, error) {
	if o, ok := c.snap.Load().Get(key); ok {
		return o, nil
	}
	return model.TrackedObject{}, fmt.Errorf("%w: %q", ErrObjectNotFound, key)
}

// FindByName returns the first object whose key or display name equals name.
func (c *Catalog) FindByName(name string) (model.TrackedObject, error) {
	snap := c.snap.Load()
	if o, ok := snap.Get(name); ok {
		return o, nil
	}
	for _, o := range snap.Objects {
		if o.Name == name {
			return o, nil
		}
	}
	return model.TrackedObject{}, fmt.Errorf("%w: %q", ErrObjectNotFound, name)
}

// ByKind returns the objects of the given kind.
func (c *Catalog) ByKind(kind model.ObjectKind) []model.TrackedObject {
	return c.Filter(func(o model.TrackedObject) bool { return o.Kind == kind })
}

// Filter returns the objects accepted by keep.
func (c *Catalog) Filter(keep func(model.TrackedObject) bool) []model.TrackedObject {
	objects := c.snap.Load().Objects
	out := make([]model.TrackedObject, 0, len(objects))
	for _, o := range objects {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// Subscribe registers a callback for catalog replacements. It returns an
// unsubscribe function.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}
