package timectrl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

var (
	// ErrOutsideHorizon is returned when a scrub target lies beyond the
	// supported distance from the real present.
	ErrOutsideHorizon = errors.New("time outside supported horizon")
	// ErrInvalidScale is returned for non-finite, non-positive or
	// oversized scales.
	ErrInvalidScale = errors.New("invalid time scale")
)

// Default clock parameters.
const (
	DefaultTick    = 100 * time.Millisecond
	DefaultHorizon = 24 * time.Hour
	// MaxScale bounds the rate at roughly eleven simulated days per wall
	// second.
	MaxScale = 1e6
)

// SimClock is an interface for accessing simulation time. Consumers that only
// read the time depend on this rather than on the concrete clock.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// State is the run state of a SimulationClock.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	default:
		return "STOPPED"
	}
}

// EventKind distinguishes clock events.
type EventKind int

const (
	// EventTick is emitted after every advance of a running clock.
	EventTick EventKind = iota
	// EventScrub is emitted after a direct time set; cached positions must
	// be discarded.
	EventScrub
	// EventStateChanged is emitted on play/pause.
	EventStateChanged
)

// Event is delivered to clock listeners.
type Event struct {
	Kind  EventKind
	Time  time.Time
	Tick  uint64
	State State
	// Generation increases on every scrub.
	Generation uint64
}

// Config parameterises a SimulationClock. Zero values select defaults;
// a negative Horizon disables the scrub bound.
type Config struct {
	Start   time.Time
	Tick    time.Duration
	Scale   float64
	Horizon time.Duration
	Running bool
	// WallClock supplies the real present for horizon checks.
	WallClock func() time.Time
}

// SimulationClock drives simulated time and notifies registered listeners.
// Each wall tick advances simulated time by Tick × Scale while running.
type SimulationClock struct {
	mu sync.RWMutex

	current    time.Time
	tick       time.Duration
	scale      float64
	horizon    time.Duration
	state      State
	ticks      uint64
	generation uint64
	wall       func() time.Time

	listeners map[int]func(Event)
	nextID    int
}

// NewSimulationClock constructs a clock.
func NewSimulationClock(cfg Config) *SimulationClock {
	if cfg.WallClock == nil {
		cfg.WallClock = time.Now
	}
	if cfg.Start.IsZero() {
		cfg.Start = cfg.WallClock()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if validScale(cfg.Scale) != nil {
		cfg.Scale = 1
	}
	if cfg.Horizon == 0 {
		cfg.Horizon = DefaultHorizon
	}
	state := StateStopped
	if cfg.Running {
		state = StateRunning
	}
	return &SimulationClock{
		current:   cfg.Start.UTC(),
		tick:      cfg.Tick,
		scale:     cfg.Scale,
		horizon:   cfg.Horizon,
		state:     state,
		wall:      cfg.WallClock,
		listeners: make(map[int]func(Event)),
	}
}

// Now returns the current simulation time. Implements SimClock.
func (c *SimulationClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// State returns the run state.
func (c *SimulationClock) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Ticks returns the number of advances performed so far.
func (c *SimulationClock) Ticks() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ticks
}

// Generation returns the scrub generation.
func (c *SimulationClock) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Scale returns simulated seconds per wall second.
func (c *SimulationClock) Scale() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scale
}

// TickInterval returns the wall duration of one tick.
func (c *SimulationClock) TickInterval() time.Duration {
	return c.tick
}

// Horizon returns the scrub bound; negative means unbounded.
func (c *SimulationClock) Horizon() time.Duration {
	return c.horizon
}

// Play starts the clock. It is a no-op when already running.
func (c *SimulationClock) Play() { c.setState(StateRunning) }

// Pause stops the clock. It is a no-op when already stopped.
func (c *SimulationClock) Pause() { c.setState(StateStopped) }

// Toggle flips between running and stopped and returns the new state.
func (c *SimulationClock) Toggle() State {
	c.mu.Lock()
	next := StateRunning
	if c.state == StateRunning {
		next = StateStopped
	}
	c.state = next
	ev := c.eventLocked(EventStateChanged)
	subs := c.listenersLocked()
	c.mu.Unlock()
	notify(subs, ev)
	return next
}

func (c *SimulationClock) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	ev := c.eventLocked(EventStateChanged)
	subs := c.listenersLocked()
	c.mu.Unlock()
	notify(subs, ev)
}

// SetTime scrubs to t. It is valid in both states and does not change the
// run state.
func (c *SimulationClock) SetTime(t time.Time) error {
	if c.horizon > 0 {
		now := c.wall()
		if t.Before(now.Add(-c.horizon)) || t.After(now.Add(c.horizon)) {
			return fmt.Errorf("%w: %s is more than %s from %s",
				ErrOutsideHorizon, t.UTC().Format(time.RFC3339), c.horizon, now.UTC().Format(time.RFC3339))
		}
	}
	c.mu.Lock()
	c.current = t.UTC()
	c.generation++
	ev := c.eventLocked(EventScrub)
	subs := c.listenersLocked()
	c.mu.Unlock()
	notify(subs, ev)
	return nil
}

// SetScale changes the rate. It takes effect on the next tick.
func (c *SimulationClock) SetScale(scale float64) error {
	if err := validScale(scale); err != nil {
		return err
	}
	c.mu.Lock()
	c.scale = scale
	c.mu.Unlock()
	return nil
}

// Advance performs one wall tick. It reports whether time moved; a stopped
// clock does not advance.
func (c *SimulationClock) Advance() bool {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return false
	}
	step := stepFor(c.tick, c.scale)
	c.current = c.current.Add(step)
	c.ticks++
	ev := c.eventLocked(EventTick)
	subs := c.listenersLocked()
	c.mu.Unlock()
	notify(subs, ev)
	return true
}

// Run advances the clock on every wall tick until ctx is done.
func (c *SimulationClock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Advance()
		}
	}
}

// AddListener registers a callback for clock events. Callbacks run outside
// the clock's lock on the goroutine that caused the event. It returns a
// function that removes the listener.
func (c *SimulationClock) AddListener(fn func(Event)) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *SimulationClock) eventLocked(kind EventKind) Event {
	return Event{Kind: kind, Time: c.current, Tick: c.ticks, State: c.state, Generation: c.generation}
}

func (c *SimulationClock) listenersLocked() []func(Event) {
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, c.listeners[id])
	}
	return subs
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

func validScale(s float64) error {
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 || s > MaxScale {
		return fmt.Errorf("%w: %v (want 0 < scale <= %g)", ErrInvalidScale, s, float64(MaxScale))
	}
	return nil
}

// stepFor converts one wall tick into simulated time, saturating instead of
// overflowing so that time never runs backwards.
func stepFor(tick time.Duration, scale float64) time.Duration {
	f := float64(tick) * scale
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	default:
		return time.Duration(f)
	}
}
