package timectrl

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a periodic job with its own interval. Tasks are started and
// stopped independently of one another.
type Task struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context)

	runs atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTask constructs a stopped task.
func NewTask(name string, interval time.Duration, fn func(ctx context.Context)) *Task {
	return &Task{Name: name, Interval: interval, Fn: fn}
}

// Runs returns how many times the task has executed.
func (t *Task) Runs() uint64 { return t.runs.Load() }

// Running reports whether the task is started.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Start launches the task loop. It fails if the task is already running or
// has a non-positive interval. The loop ends when ctx is done or Stop is
// called.
func (t *Task) Start(ctx context.Context) error {
	if t.Interval <= 0 {
		return fmt.Errorf("task %q: interval must be positive, got %s", t.Name, t.Interval)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return fmt.Errorf("task %q already running", t.Name)
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel, t.done = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.RunOnce(ctx)
			}
		}
	}()
	return nil
}

// RunOnce executes the task body synchronously.
func (t *Task) RunOnce(ctx context.Context) {
	if t.Fn != nil {
		t.Fn(ctx)
	}
	t.runs.Add(1)
}

// Stop halts the loop and waits for an in-flight run to finish.
func (t *Task) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Scheduler groups tasks that share a lifecycle.
type Scheduler struct {
	mu    sync.Mutex
	tasks []*Task
}

// NewScheduler constructs a scheduler over tasks.
func NewScheduler(tasks ...*Task) *Scheduler {
	return &Scheduler{tasks: tasks}
}

// Add appends a task. It is not started automatically.
func (s *Scheduler) Add(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

// Tasks returns the registered tasks.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Task(nil), s.tasks...)
}

// Task returns the task with the given name, or nil.
func (s *Scheduler) Task(name string) *Task {
	for _, t := range s.Tasks() {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Start starts every task that is not already running. On failure the
// tasks started by this call are stopped again.
func (s *Scheduler) Start(ctx context.Context) error {
	var started []*Task
	for _, t := range s.Tasks() {
		if t.Running() {
			continue
		}
		if err := t.Start(ctx); err != nil {
			for _, st := range started {
				st.Stop()
			}
			return err
		}
		started = append(started, t)
	}
	return nil
}

// Stop stops every task.
func (s *Scheduler) Stop() {
	for _, t := range s.Tasks() {
		t.Stop()
	}
}
