// internal/session/tasks.go
package session

import (
	"sync"
	"time"
)

// TaskScheduler groups every deferred task a lobby owns (countdown ticks,
// event deadlines, reply latencies, ambient cycles, cooldowns) under string
// tags so they can be cancelled individually or as a set at teardown.
//
// Scheduling a tag that is already pending replaces the pending task. A fired
// task runs to completion on its own goroutine and must re-validate whatever
// invariant it was scheduled under; Cancel after fire is a safe no-op.
type TaskScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewTaskScheduler returns an empty scheduler.
func NewTaskScheduler() *TaskScheduler {
	return &TaskScheduler{timers: make(map[string]*time.Timer)}
}

// Schedule runs fn after delay under the given tag, replacing any pending
// task with the same tag. No-op once the scheduler is stopped.
func (s *TaskScheduler) Schedule(delay time.Duration, tag string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.timers[tag]; ok {
		old.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// A replaced or cancelled timer may still fire; only the current
		// holder of the tag gets to run.
		current, ok := s.timers[tag]
		if !ok || current != timer || s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.timers, tag)
		s.mu.Unlock()
		fn()
	})
	s.timers[tag] = timer
}

// Cancel stops the pending task for tag, if any.
func (s *TaskScheduler) Cancel(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[tag]; ok {
		t.Stop()
		delete(s.timers, tag)
	}
}

// CancelAll stops every pending task and rejects future scheduling. Called
// when the owning lobby tears down.
func (s *TaskScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for tag, t := range s.timers {
		t.Stop()
		delete(s.timers, tag)
	}
}

// Pending reports whether a task is currently scheduled under tag.
func (s *TaskScheduler) Pending(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[tag]
	return ok
}
