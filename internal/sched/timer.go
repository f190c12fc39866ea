// SPDX-License-Identifier: GPL-3.0-or-later

package sched

import "time"

// timerEntry is a named one-shot timer owned by a [Scheduler]. Its
// callback is invoked on the scheduler goroutine once it fires, never
// concurrently with a service's own [Service.Dispatch].
type timerEntry struct {
	stop     func() bool
	canceled bool
}

// ArmTimer schedules callback to run on the scheduler goroutine after d,
// under the timer name. Arming a timer that already exists by that name is
// idempotent — the existing pending timer is left untouched, matching the
// "no-op while already in use" re-arm rule a timer like the route tick
// requires. Safe to call from any goroutine.
func (s *Scheduler) ArmTimer(name string, d time.Duration, callback func()) {
	s.mu.Lock()
	if _, exists := s.timers[name]; exists {
		s.mu.Unlock()
		return
	}
	ch, stop := s.clock.NewTimer(d)
	entry := &timerEntry{stop: stop}
	s.timers[name] = entry
	s.mu.Unlock()

	go s.waitTimer(name, entry, ch, callback)
}

// CancelTimer stops a pending timer by name, if one is armed. Cancelling an
// unarmed or already-fired timer is a harmless no-op. Safe to call from any
// goroutine.
func (s *Scheduler) CancelTimer(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.timers[name]
	if !exists {
		return
	}
	entry.stop()
	entry.canceled = true
	delete(s.timers, name)
}

// TimerArmed reports whether a timer by that name is currently pending.
func (s *Scheduler) TimerArmed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.timers[name]
	return exists
}

// waitTimer blocks on the timer channel and, once it fires, hands the
// callback to the run loop as a pending completion so it executes on the
// scheduler goroutine rather than this helper goroutine.
func (s *Scheduler) waitTimer(name string, entry *timerEntry, ch <-chan time.Time, callback func()) {
	select {
	case _, ok := <-ch:
		if !ok {
			return
		}
	case <-s.done:
		return
	}

	s.mu.Lock()
	current, exists := s.timers[name]
	if !exists || current != entry || current.canceled {
		s.mu.Unlock()
		return
	}
	delete(s.timers, name)
	s.mu.Unlock()

	s.postCompletion(callback)
}
