// SPDX-License-Identifier: GPL-3.0-or-later

package model

// ATDConfig configures Arrival-Time-Delay measurement for a [Route].
type ATDConfig struct {
	// Enabled gates whether the route manager periodically refreshes the
	// route's ATD value. ATD is only computed for a route in state built.
	Enabled bool
}

// Route is an application-owned table entry pairing a source and a sink
// endpoint to carry one stream.
//
// The application owns this descriptor and the route table it lives in for
// the process lifetime; the route manager's internal bookkeeping (state,
// last classification, ATD freshness, observer attachment) is kept
// separately by [routemgr.Engine], keyed by ID, and is never written back
// onto this struct — the core only ever borrows read-only access to the
// fields below, except [Route.ID], which StartProcess fills in when empty,
// and [Route.Active], which it flips through ActivateRoute/DeactivateRoute.
type Route struct {
	// ID uniquely identifies the route. If empty when the route is handed
	// to [routemgr.Engine.StartProcess], one is generated with
	// [NewRouteID].
	ID string

	// Source is the route's source endpoint. Must be non-nil.
	Source *Endpoint

	// Sink is the route's sink endpoint. Must be non-nil.
	Sink *Endpoint

	// Active is the application's request for this route to be built
	// (true) or torn down (false). Flipped by ActivateRoute/DeactivateRoute.
	Active bool

	// StaticConnectionLabel is an optional fixed connection label in
	// range [0x800C, 0x817F]; zero means "propagate from source".
	StaticConnectionLabel uint16

	// ATD configures Arrival-Time-Delay measurement for this route.
	ATD ATDConfig

	// FallbackEnabled marks this route as eligible to build while the
	// route manager is in fallback mode.
	FallbackEnabled bool
}
