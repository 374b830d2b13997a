// Package scheduler drives the simulation's cooperative task queue: a
// single worker goroutine that sleeps until the next due task according to
// the virtual clock, fires it, and re-queues repeating tasks at a
// drift-free cadence. Grounded on the teacher's worker lifecycle pattern
// (a cancellable goroutine guarded by a done channel) and on the original
// implementation's heap-based event loop.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/myorg/homeiqsim/internal/clock"
	"github.com/myorg/homeiqsim/internal/kernelerr"
)

const (
	maxPollInterval = time.Second
	idlePollInterval = 100 * time.Millisecond
)

// Scheduler runs scheduled work against a clock.Clock's simulated time
// rather than wall time, so a task scheduled "in 10 minutes" fires after
// 10 simulated minutes regardless of the clock's speed.
type Scheduler struct {
	clk    *clock.Clock
	logger *slog.Logger

	mu    sync.Mutex
	items taskHeap
	byID  map[string]*taskItem
	next  uint64

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	stopOnce sync.Once

	jitter func(d time.Duration)
}

// New constructs a Scheduler bound to clk. Start must be called before any
// scheduled task will fire.
func New(clk *clock.Clock, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clk:    clk,
		logger: logger,
		byID:   make(map[string]*taskItem),
		wake:   make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine. It returns immediately; the worker
// runs until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// SetJitterRecorder installs a callback invoked each time a task fires,
// with the simulated-time gap between its scheduled run_at and the clock
// time it actually ran at. Intended for internal/telemetry; nil disables
// recording.
func (s *Scheduler) SetJitterRecorder(fn func(d time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jitter = fn
}

// Stop cancels the worker and blocks until it has exited. Safe to call
// more than once and safe to call even if Start was never called.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.done != nil {
			<-s.done
		}
	})
}

// ScheduleAfter runs fn once, after d of simulated time has elapsed. taskID
// identifies the task per the "at most one live task per id" invariant: if
// a task is already pending under taskID, it is cancelled and replaced by
// this call rather than left to fire alongside the new one. An empty
// taskID is auto-assigned a fresh internal id, exempting the call from
// dedup entirely.
func (s *Scheduler) ScheduleAfter(taskID string, d time.Duration, fn func(now time.Time)) string {
	return s.scheduleAt(taskID, s.clk.Now().Add(d), 0, fn)
}

// ScheduleAt runs fn once, at simulated time t. If t is already in the
// past it fires on the scheduler's next tick. See ScheduleAfter for taskID
// semantics.
func (s *Scheduler) ScheduleAt(taskID string, t time.Time, fn func(now time.Time)) string {
	return s.scheduleAt(taskID, t, 0, fn)
}

// ScheduleInterval runs fn every d of simulated time, starting d from now,
// with a cadence anchored to the original schedule rather than to actual
// fire times, so the queue never drifts later call after call and fn is
// handed each tick's scheduled time. Ticks that fall due while a slow
// handler runs fire back to back once it returns, each with its own
// scheduled time; a paused clock fires none. See ScheduleAfter for taskID
// semantics.
func (s *Scheduler) ScheduleInterval(taskID string, d time.Duration, fn func(now time.Time)) (string, error) {
	if d <= 0 {
		return "", kernelerr.NewInvalidArgument("interval", "must be positive")
	}
	return s.scheduleAt(taskID, s.clk.Now().Add(d), d, fn), nil
}

func (s *Scheduler) scheduleAt(taskID string, at time.Time, interval time.Duration, fn func(now time.Time)) string {
	s.mu.Lock()
	if taskID == "" {
		s.next++
		taskID = fmt.Sprintf("task-%d", s.next)
	} else if old, ok := s.byID[taskID]; ok {
		heap.Remove(&s.items, old.index)
		delete(s.byID, taskID)
	}
	item := &taskItem{id: taskID, at: at, interval: interval, fn: fn}
	heap.Push(&s.items, item)
	s.byID[taskID] = item
	s.mu.Unlock()

	s.signalWake()
	return taskID
}

// Cancel removes a pending task. Returns false if taskID is unknown
// (already fired as a one-shot, already replaced by a later Schedule* call
// under the same id, or never existed).
func (s *Scheduler) Cancel(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.byID[taskID]
	if !ok {
		return false
	}
	heap.Remove(&s.items, item.index)
	delete(s.byID, taskID)
	return true
}

func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the single worker loop. On each iteration it either fires every
// task already due, or sleeps until the next one is — bounded to at most
// maxPollInterval so a clock speed change or a newly scheduled earlier
// task is never missed for long, and to idlePollInterval when the queue is
// empty so Stop is noticed promptly.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	for {
		if ctx.Err() != nil {
			return
		}

		fired := s.fireDue()
		if fired {
			continue
		}

		wait := s.nextWait()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// fireDue pops and runs every task whose scheduled time has arrived,
// reports whether it fired at least one.
func (s *Scheduler) fireDue() bool {
	any := false
	for {
		s.mu.Lock()
		if s.items.Len() == 0 {
			s.mu.Unlock()
			return any
		}
		next := s.items[0]
		now := s.clk.Now()
		if next.at.After(now) {
			s.mu.Unlock()
			return any
		}
		scheduledAt := next.at
		heap.Pop(&s.items)
		delete(s.byID, next.id)
		if next.interval > 0 {
			next.at = next.at.Add(next.interval)
			heap.Push(&s.items, next)
			s.byID[next.id] = next
		}
		jitter := s.jitter
		s.mu.Unlock()

		if jitter != nil {
			jitter(now.Sub(scheduledAt))
		}
		s.invoke(next, scheduledAt)
		any = true
	}
}

func (s *Scheduler) invoke(item *taskItem, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", "task_id", item.id, "panic", r)
		}
	}()
	item.fn(now)
}

// nextWait returns how long the worker should sleep before re-checking the
// queue, in wall-clock time.
func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items.Len() == 0 {
		return idlePollInterval
	}
	wall, ok := s.clk.WallTimeUntil(s.items[0].at)
	if !ok {
		return idlePollInterval
	}
	if wall > maxPollInterval {
		return maxPollInterval
	}
	if wall <= 0 {
		return 0
	}
	return wall
}

// Len reports the number of pending tasks. Intended for tests and metrics.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Len()
}
