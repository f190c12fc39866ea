// SPDX-License-Identifier: GPL-3.0-or-later

// Package sched implements the single-threaded cooperative scheduler that
// drives the node discovery and route management engines.
//
// A [Scheduler] pumps a fixed set of [Service] instances in priority order
// (lower priority value dispatches first). Services never block: they latch
// pending events via a [Handle] and return; the scheduler drains one
// service's latched mask at a time, running its [Service.Dispatch] to
// completion before moving to the next. Timer callbacks and event latching
// from arbitrary goroutines are marshaled onto the scheduler goroutine so
// that no two Dispatch calls, and no Dispatch and timer callback, ever run
// concurrently.
package sched

import (
	"context"
	"sort"
	"sync"
)

// Service is one cooperatively-scheduled unit of work (node discovery,
// route management). Dispatch must not block: long-running work is
// expressed as further latched events or armed timers, never as a
// synchronous wait inside Dispatch itself.
type Service interface {
	// Name uniquely identifies the service within a Scheduler.
	Name() string
	// Priority orders dispatch among services with pending events; lower
	// values are serviced first.
	Priority() int
	// Dispatch runs the service's reaction to the latched event mask.
	Dispatch(ctx context.Context, mask uint32)
}

type registeredService struct {
	svc      Service
	priority int
	pending  uint32
}

// Handle lets a [Service] (or anything holding a reference to one, such as
// an observer callback) latch events on it from any goroutine.
type Handle struct {
	sched *Scheduler
	name  string
}

// Post latches mask onto the handle's service and wakes the scheduler.
// Coalesces with any events already pending and not yet drained. Safe to
// call from any goroutine, including from within a Dispatch call itself —
// posted events are always serviced on a later drain pass, never
// re-entrantly within the current Dispatch.
func (h *Handle) Post(mask uint32) {
	h.sched.latch(h.name, mask)
}

// Scheduler is the run loop described in the package doc.
type Scheduler struct {
	mu          sync.Mutex
	services    []*registeredService
	byName      map[string]*registeredService
	sorted      bool
	completions []func()
	timers      map[string]*timerEntry

	wake  chan struct{}
	done  chan struct{}
	clock Clock
}

// New returns a [*Scheduler] with no services registered, using clock for
// timer scheduling. Pass [RealClock]{} in production and a [*FakeClock] in
// tests.
func New(clock Clock) *Scheduler {
	return &Scheduler{
		byName: make(map[string]*registeredService),
		timers: make(map[string]*timerEntry),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		clock:  clock,
	}
}

// Register adds svc to the scheduler and returns a [*Handle] for latching
// events on it. Must be called before [Scheduler.Run] starts; registering
// two services under the same name panics, since that indicates a wiring
// bug in the embedding engine rather than a runtime condition.
func (s *Scheduler) Register(svc Service) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[svc.Name()]; exists {
		panic("sched: duplicate service name " + svc.Name())
	}
	entry := &registeredService{svc: svc, priority: svc.Priority()}
	s.services = append(s.services, entry)
	s.byName[svc.Name()] = entry
	s.sorted = false

	return &Handle{sched: s, name: svc.Name()}
}

func (s *Scheduler) latch(name string, mask uint32) {
	s.mu.Lock()
	entry, exists := s.byName[name]
	if exists {
		entry.pending |= mask
	}
	s.mu.Unlock()

	if exists {
		s.wakeUp()
	}
}

func (s *Scheduler) postCompletion(fn func()) {
	s.mu.Lock()
	s.completions = append(s.completions, fn)
	s.mu.Unlock()
	s.wakeUp()
}

func (s *Scheduler) wakeUp() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) ensureSorted() {
	if s.sorted {
		return
	}
	sort.Slice(s.services, func(i, j int) bool {
		return s.services[i].priority < s.services[j].priority
	})
	s.sorted = true
}

// popCompletions drains and returns the pending completion callbacks
// (mostly fired timers), in the order they completed.
func (s *Scheduler) popCompletions() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.completions) == 0 {
		return nil
	}
	out := s.completions
	s.completions = nil
	return out
}

// nextPending returns the highest-priority service with a non-zero pending
// mask, clearing that mask atomically with the read, or nil if none.
func (s *Scheduler) nextPending() (Service, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSorted()
	for _, entry := range s.services {
		if entry.pending != 0 {
			mask := entry.pending
			entry.pending = 0
			return entry.svc, mask
		}
	}
	return nil, 0
}

// drain runs completions and service dispatches until both are empty. A
// single drain pass may run many dispatches: a dispatch that posts a new
// event to itself or another service is picked up by a later iteration of
// this same pass, consistent with the "serviced on a later tick, never
// re-entrantly" rule.
func (s *Scheduler) drain(ctx context.Context) {
	for {
		ran := false

		for _, fn := range s.popCompletions() {
			fn()
			ran = true
		}

		if svc, mask := s.nextPending(); svc != nil {
			svc.Dispatch(ctx, mask)
			ran = true
		}

		if !ran {
			return
		}
	}
}

// RunOnce performs a single drain pass without blocking, useful from tests
// that want deterministic control over when dispatch happens.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.drain(ctx)
}

// Run blocks, pumping services as events are latched, until ctx is
// canceled. Intended to be run on its own goroutine:
//
//	go scheduler.Run(ctx)
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)

	s.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
		s.drain(ctx)
	}
}
