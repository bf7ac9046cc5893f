// Package scheduler runs periodic tasks on an injectable clock.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"basegraph.app/standup/common/logger"
)

// Schedule yields the next activation after a given time. cron.Schedule satisfies it.
type Schedule interface {
	Next(time.Time) time.Time
}

// Every returns a fixed-interval schedule, rounded to whole seconds.
func Every(d time.Duration) Schedule {
	return cron.Every(d)
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTimer(d time.Duration) Timer {
	return &systemTimer{t: time.NewTimer(d)}
}

type systemTimer struct {
	t *time.Timer
}

func (s *systemTimer) C() <-chan time.Time { return s.t.C }
func (s *systemTimer) Stop() bool          { return s.t.Stop() }

type TaskOption func(*Task)

func WithClock(c Clock) TaskOption {
	return func(t *Task) {
		t.clock = c
	}
}

// RunImmediately makes the task fire once as soon as it starts.
func RunImmediately() TaskOption {
	return func(t *Task) {
		t.runAtStart = true
	}
}

// Task invokes fn at every activation of its schedule until stopped.
type Task struct {
	name       string
	schedule   Schedule
	fn         func(ctx context.Context)
	clock      Clock
	runAtStart bool

	started   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewTask(name string, schedule Schedule, fn func(ctx context.Context), opts ...TaskOption) *Task {
	t := &Task{
		name:      name,
		schedule:  schedule,
		fn:        fn,
		clock:     SystemClock{},
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start runs the task loop in its own goroutine.
func (t *Task) Start(ctx context.Context) {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	go t.run(ctx)
}

// Run blocks until the context is done or Stop is called.
func (t *Task) Run(ctx context.Context) {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	t.run(ctx)
}

func (t *Task) run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "standup.scheduler." + t.name,
	})
	defer close(t.stoppedCh)

	slog.DebugContext(ctx, "scheduled task started")

	if t.runAtStart {
		t.fire(ctx)
	}

	for {
		now := t.clock.Now()
		next := t.schedule.Next(now)
		if next.IsZero() {
			slog.WarnContext(ctx, "schedule has no further activations")
			return
		}
		timer := t.clock.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-t.stopCh:
			timer.Stop()
			slog.DebugContext(ctx, "scheduled task stopping")
			return
		case <-timer.C():
			t.fire(ctx)
		}
	}
}

func (t *Task) fire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "scheduled task panicked", "panic", r)
		}
	}()
	t.fn(ctx)
}

// Stop signals the loop to exit and waits for it. Safe to call more than once and on a
// task that never started.
func (t *Task) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
	if t.started.Load() {
		<-t.stoppedCh
	}
}
