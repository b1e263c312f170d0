// Package schedule runs recurring work on an explicit scheduler instead of
// ambient timers. Every registration returns a Task the caller owns and
// stops; callbacks of one task never overlap.
package schedule

import (
	"context"
	"sync"
	"time"
)

// #region interfaces

// Scheduler registers recurring callbacks.
type Scheduler interface {
	Every(ctx context.Context, period time.Duration, fn func(now time.Time)) Task
}

// Task is a handle on one registration.
type Task interface {
	// Stop cancels future callbacks. Safe to call more than once.
	Stop()
	// Done is closed once no further callback will run.
	Done() <-chan struct{}
}

// #endregion interfaces

// #region ticker

// Ticker is the wall-clock scheduler: one goroutine and one time.Ticker per task.
type Ticker struct{}

// NewTicker returns the wall-clock scheduler.
func NewTicker() *Ticker { return &Ticker{} }

// Every starts calling fn each period until ctx ends or the task is stopped.
// Non-positive periods fall back to one second.
func (Ticker) Every(ctx context.Context, period time.Duration, fn func(now time.Time)) Task {
	if period <= 0 {
		period = time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &tickerTask{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		tk := time.NewTicker(period)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tk.C:
				// a stop that raced the tick wins
				if ctx.Err() != nil {
					return
				}
				fn(now)
			}
		}
	}()
	return t
}

type tickerTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *tickerTask) Stop()                 { t.cancel() }
func (t *tickerTask) Done() <-chan struct{} { return t.done }

// #endregion ticker

// #region manual

// Manual is a deterministic scheduler driven by Advance. Callbacks run on the
// goroutine calling Advance, ordered by due time then registration order.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*manualTask
}

// NewManual returns a manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Every registers fn; nothing runs until Advance moves the clock.
func (m *Manual) Every(ctx context.Context, period time.Duration, fn func(now time.Time)) Task {
	if period <= 0 {
		period = time.Second
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTask{
		ctx:    ctx,
		period: period,
		next:   m.now.Add(period),
		fn:     fn,
		done:   make(chan struct{}),
	}
	m.tasks = append(m.tasks, t)
	return t
}

// Now returns the manual clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d and fires every callback that falls
// due, returning how many callbacks ran.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	fired := 0
	for {
		t, due := m.nextDue(target)
		if t == nil {
			break
		}
		t.fn(due)
		fired++
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
	return fired
}

// Pending reports how many registrations are still live.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.stopped() {
			n++
		}
	}
	return n
}

func (m *Manual) nextDue(target time.Time) (*manualTask, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *manualTask
	for _, t := range m.tasks {
		if t.stopped() || t.next.After(target) {
			continue
		}
		if best == nil || t.next.Before(best.next) {
			best = t
		}
	}
	if best == nil {
		return nil, time.Time{}
	}
	due := best.next
	m.now = due
	best.next = due.Add(best.period)
	return best, due
}

type manualTask struct {
	ctx    context.Context
	period time.Duration
	next   time.Time
	fn     func(time.Time)

	once sync.Once
	done chan struct{}
}

func (t *manualTask) Stop() { t.once.Do(func() { close(t.done) }) }

func (t *manualTask) Done() <-chan struct{} { return t.done }

func (t *manualTask) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
	}
	if t.ctx.Err() != nil {
		t.Stop()
		return true
	}
	return false
}

// #endregion manual
