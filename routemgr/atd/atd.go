// SPDX-License-Identifier: GPL-3.0-or-later

// Package atd models the Arrival-Time-Delay measurement sub-engine as an
// injectable black box: the numerical ATD calculation itself is out of
// scope (it runs against the live MOST ring), but the route manager needs
// a seam to start one probe at a time and learn of its completion.
package atd

import "context"

// Result is the outcome of one ATD probe.
type Result struct {
	// Success reports whether the probe completed successfully.
	Success bool

	// Value is the measured delay, meaningful only when Success is true.
	Value uint16
}

// Prober runs at most one Arrival-Time-Delay measurement at a time against
// a route identified opaquely by routeID.
type Prober interface {
	// Start begins a probe for routeID, measured against the ring's
	// current maxPosition. Completion is reported asynchronously via cb,
	// which fires on the scheduler goroutine and must not block.
	Start(ctx context.Context, routeID string, maxPosition uint16, cb func(Result)) error

	// SetMaxPosition updates the ring's node count, used by subsequent
	// Start calls.
	SetMaxPosition(maxPosition uint16)
}

// FakeProber is a fully-overridable [Prober] test double.
type FakeProber struct {
	StartFunc func(ctx context.Context, routeID string, maxPosition uint16, cb func(Result)) error

	maxPosition uint16
	lastRouteID string
}

var _ Prober = &FakeProber{}

// Start implements [Prober].
func (f *FakeProber) Start(ctx context.Context, routeID string, maxPosition uint16, cb func(Result)) error {
	f.lastRouteID = routeID
	if f.StartFunc != nil {
		return f.StartFunc(ctx, routeID, maxPosition, cb)
	}
	cb(Result{Success: true})
	return nil
}

// SetMaxPosition implements [Prober].
func (f *FakeProber) SetMaxPosition(maxPosition uint16) {
	f.maxPosition = maxPosition
}

// MaxPosition returns the last value passed to SetMaxPosition.
func (f *FakeProber) MaxPosition() uint16 { return f.maxPosition }

// LastRouteID returns the routeID passed to the most recent Start call.
func (f *FakeProber) LastRouteID() string { return f.lastRouteID }
