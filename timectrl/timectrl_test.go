package timectrl

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

var wallNow = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func newTestClock(running bool) *SimulationClock {
	return NewSimulationClock(Config{
		Start:     wallNow,
		Tick:      100 * time.Millisecond,
		Scale:     1,
		Running:   running,
		WallClock: func() time.Time { return wallNow },
	})
}

func TestSimulationClockSetTime(t *testing.T) {
	c := newTestClock(false)

	newNow := wallNow.Add(42 * time.Second)
	if err := c.SetTime(newNow); err != nil {
		t.Fatalf("SetTime error: %v", err)
	}
	if got := c.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
	if c.State() != StateStopped {
		t.Fatalf("SetTime must not change the run state")
	}
}

func TestSimulationClockSetTimeHorizon(t *testing.T) {
	c := newTestClock(true)

	if err := c.SetTime(wallNow.Add(-24 * time.Hour)); err != nil {
		t.Fatalf("SetTime at the horizon edge: %v", err)
	}
	if err := c.SetTime(wallNow.Add(25 * time.Hour)); !errors.Is(err, ErrOutsideHorizon) {
		t.Fatalf("SetTime beyond horizon error = %v, want ErrOutsideHorizon", err)
	}

	unbounded := NewSimulationClock(Config{Start: wallNow, Horizon: -1, WallClock: func() time.Time { return wallNow }})
	if err := unbounded.SetTime(wallNow.AddDate(10, 0, 0)); err != nil {
		t.Fatalf("unbounded clock rejected scrub: %v", err)
	}
}

func TestSimulationClockAdvance(t *testing.T) {
	c := newTestClock(false)
	if c.Advance() {
		t.Fatalf("stopped clock should not advance")
	}
	if c.Ticks() != 0 || !c.Now().Equal(wallNow) {
		t.Fatalf("stopped clock moved: ticks=%d now=%v", c.Ticks(), c.Now())
	}

	c.Play()
	c.Advance()
	c.Advance()
	if c.Ticks() != 2 {
		t.Fatalf("Ticks() = %d, want 2", c.Ticks())
	}
	if want := wallNow.Add(200 * time.Millisecond); !c.Now().Equal(want) {
		t.Fatalf("Now() = %v, want %v", c.Now(), want)
	}
}

func TestSimulationClockScaleAppliesOnNextTick(t *testing.T) {
	c := newTestClock(true)
	c.Advance()
	if err := c.SetScale(60); err != nil {
		t.Fatalf("SetScale error: %v", err)
	}
	if want := wallNow.Add(100 * time.Millisecond); !c.Now().Equal(want) {
		t.Fatalf("scale change must not be retroactive: Now() = %v", c.Now())
	}
	c.Advance()
	if want := wallNow.Add(100*time.Millisecond + 6*time.Second); !c.Now().Equal(want) {
		t.Fatalf("Now() = %v, want %v", c.Now(), want)
	}

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1), MaxScale * 2, 1e12} {
		if err := c.SetScale(bad); !errors.Is(err, ErrInvalidScale) {
			t.Fatalf("SetScale(%v) error = %v, want ErrInvalidScale", bad, err)
		}
	}
}

func TestSimulationClockNeverRunsBackwards(t *testing.T) {
	c := NewSimulationClock(Config{
		Start:     wallNow,
		Tick:      10000 * time.Hour,
		Scale:     MaxScale,
		Running:   true,
		WallClock: func() time.Time { return wallNow },
	})
	prev := c.Now()
	for i := 0; i < 5; i++ {
		c.Advance()
		now := c.Now()
		if now.Before(prev) {
			t.Fatalf("tick %d moved time backwards: %v -> %v", i, prev, now)
		}
		prev = now
	}
	if !prev.After(wallNow) {
		t.Fatalf("clock did not advance: %v", prev)
	}
}

func TestStepForSaturates(t *testing.T) {
	cases := []struct {
		tick  time.Duration
		scale float64
		want  time.Duration
	}{
		{100 * time.Millisecond, 60, 6 * time.Second},
		{100 * time.Millisecond, 1e12, time.Duration(math.MaxInt64)},
		{time.Duration(math.MaxInt64), 2, time.Duration(math.MaxInt64)},
		{time.Second, math.NaN(), 0},
	}
	for _, tc := range cases {
		if got := stepFor(tc.tick, tc.scale); got != tc.want {
			t.Fatalf("stepFor(%v, %v) = %v, want %v", tc.tick, tc.scale, got, tc.want)
		}
	}
}

func TestSimulationClockConcurrentToggle(t *testing.T) {
	c := newTestClock(false)
	var mu sync.Mutex
	changes := 0
	c.AddListener(func(e Event) {
		if e.Kind == EventStateChanged {
			mu.Lock()
			changes++
			mu.Unlock()
		}
	})

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Toggle()
		}()
	}
	wg.Wait()

	if c.State() != StateStopped {
		t.Fatalf("after %d toggles state = %v, want STOPPED", n, c.State())
	}
	mu.Lock()
	defer mu.Unlock()
	if changes != n {
		t.Fatalf("state change events = %d, want %d", changes, n)
	}
}

func TestSimulationClockToggleAndEvents(t *testing.T) {
	c := newTestClock(false)
	var mu sync.Mutex
	var kinds []EventKind
	remove := c.AddListener(func(e Event) {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
	})

	if got := c.Toggle(); got != StateRunning {
		t.Fatalf("Toggle() = %v, want RUNNING", got)
	}
	c.Advance()
	if err := c.SetTime(wallNow.Add(time.Hour)); err != nil {
		t.Fatalf("SetTime error: %v", err)
	}
	c.Pause()
	c.Pause()
	remove()
	c.Play()

	want := []EventKind{EventStateChanged, EventTick, EventScrub, EventStateChanged}
	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}
	if c.Generation() != 1 {
		t.Fatalf("Generation() = %d, want 1", c.Generation())
	}
}

func TestSimulationClockRunUpdatesNow(t *testing.T) {
	c := NewSimulationClock(Config{Start: wallNow, Tick: 5 * time.Millisecond, Running: true, WallClock: func() time.Time { return wallNow }})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	if c.Ticks() == 0 {
		t.Fatalf("Run did not advance the clock")
	}
	if want := wallNow.Add(time.Duration(c.Ticks()) * 5 * time.Millisecond); !c.Now().Equal(want) {
		t.Fatalf("Now() = %v, want %v", c.Now(), want)
	}
}
