// Package heartbeat provides a windowed wake service: callers ask to be
// woken no earlier than min and no later than max from now, and wakeups
// whose windows overlap an expiring deadline are coalesced onto one
// fire. It is the timer collaborator behind the thermal poll scheduler.
package heartbeat

import (
	"sync"
	"time"
)

type entry struct {
	ref       any
	notBefore time.Time
	deadline  time.Time
}

// Service delivers wakeups through the callback given to New. Delivery
// happens on the service's own timer goroutine; the callback must not
// block for long.
type Service struct {
	wake func(ref any)

	mu      sync.Mutex
	entries map[any]*entry
	timer   *time.Timer
	stopped bool
}

func New(wake func(ref any)) *Service {
	return &Service{
		wake:    wake,
		entries: make(map[any]*entry),
	}
}

// Schedule arms a wakeup for ref within [min, max] from now. A second
// Schedule for the same ref supersedes the first.
func (s *Service) Schedule(ref any, min, max time.Duration) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.entries[ref] = &entry{
		ref:       ref,
		notBefore: now.Add(min),
		deadline:  now.Add(max),
	}
	s.rearmLocked(now)
}

// Stop cancels all armed wakeups. The service cannot be reused.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.entries = nil
	if s.timer != nil {
		s.timer.Stop()
	}
}

// rearmLocked points the timer at the earliest outstanding deadline.
func (s *Service) rearmLocked(now time.Time) {
	var next time.Time
	for _, e := range s.entries {
		if next.IsZero() || e.deadline.Before(next) {
			next = e.deadline
		}
	}
	if next.IsZero() {
		if s.timer != nil {
			s.timer.Stop()
		}
		return
	}

	wait := next.Sub(now)
	if wait < 0 {
		wait = 0
	}

	if s.timer == nil {
		s.timer = time.AfterFunc(wait, s.fire)
	} else {
		s.timer.Stop()
		s.timer.Reset(wait)
	}
}

// fire delivers every entry whose window has opened, not just the one
// whose deadline expired, so overlapping wakeups coalesce.
func (s *Service) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	now := time.Now()
	var due []any
	for ref, e := range s.entries {
		if !now.Before(e.notBefore) {
			due = append(due, ref)
			delete(s.entries, ref)
		}
	}
	s.rearmLocked(now)
	s.mu.Unlock()

	for _, ref := range due {
		s.wake(ref)
	}
}
