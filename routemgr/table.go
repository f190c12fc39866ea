// SPDX-License-Identifier: GPL-3.0-or-later

package routemgr

import (
	"time"

	"github.com/bassosimone/ucsmgr/model"
)

// routeState is the route manager's own lifecycle state for a route,
// tracked separately from the application-owned [model.Route] (spec §3: the
// core never writes internal bookkeeping back onto the application's
// descriptor, only [model.Route.Active] via ActivateRoute/DeactivateRoute).
type routeState int

const (
	routeIdle routeState = iota
	routeConstruction
	routeDeteriorated
	routeDestruction
	routeSuspended
	routeBuilt
)

// String implements [fmt.Stringer].
func (s routeState) String() string {
	switch s {
	case routeIdle:
		return "idle"
	case routeConstruction:
		return "construction"
	case routeDeteriorated:
		return "deteriorated"
	case routeDestruction:
		return "destruction"
	case routeSuspended:
		return "suspended"
	case routeBuilt:
		return "built"
	default:
		return "unknown"
	}
}

// routeInfo is the internal bookkeeping entry for one table row (spec's
// internal_infos), one per [model.Route] handed to StartProcess.
type routeInfo struct {
	route *model.Route
	state routeState

	srcObserverInit  bool
	sinkObserverInit bool

	atdUpToDate bool
	atdValue    uint16

	lastSeverity   Severity
	faultyEndpoint *model.Endpoint

	// srcSpanID/sinkSpanID and srcOpStart/sinkOpStart track the
	// diagnostic span for whichever build/destroy operation is currently
	// outstanding on each endpoint, feeding epm.LogBuildDone/LogDestroyDone.
	srcSpanID   string
	sinkSpanID  string
	srcOpStart  time.Time
	sinkOpStart time.Time
}

func newRouteInfo(r *model.Route) *routeInfo {
	return &routeInfo{route: r, state: routeIdle}
}

// reset clears internal_infos back to its StartProcess-time shape, leaving
// the application-owned route descriptor (including Active) untouched.
func (ri *routeInfo) reset() {
	ri.state = routeIdle
	ri.srcObserverInit = false
	ri.sinkObserverInit = false
	ri.atdUpToDate = false
	ri.atdValue = 0
	ri.lastSeverity = SeverityNone
	ri.faultyEndpoint = nil
	ri.srcSpanID, ri.sinkSpanID = "", ""
	ri.srcOpStart, ri.sinkOpStart = time.Time{}, time.Time{}
}

// touchesNode reports whether either endpoint of this route is hosted on
// node.
func (ri *routeInfo) touchesNode(node *model.Node) bool {
	if ri.route.Source != nil && ri.route.Source.OwningNode == node {
		return true
	}
	if ri.route.Sink != nil && ri.route.Sink.OwningNode == node {
		return true
	}
	return false
}

// observesEndpoint reports whether this route references ep as either its
// source or sink.
func (ri *routeInfo) observesEndpoint(ep *model.Endpoint) bool {
	return ri.route.Source == ep || ri.route.Sink == ep
}

// attached reports whether this route's state belongs to the
// "attached"/in-flight set GetAttachedRoutes enumerates.
func (ri *routeInfo) attached() bool {
	switch ri.state {
	case routeBuilt, routeConstruction, routeDestruction:
		return true
	default:
		return false
	}
}

// eligible reports whether the route-tick cursor should land on this entry,
// per spec §4.2's eligibility rules. fbActive gates fallback mode.
func (ri *routeInfo) eligible(fbActive bool) bool {
	if fbActive {
		return ri.route.FallbackEnabled || ri.route.Active
	}

	r := ri.route
	switch {
	case ri.state == routeSuspended && r.Active:
		return false
	case ri.state == routeBuilt && r.Active:
		return false
	case ri.state == routeIdle && !r.Active:
		return false
	case ri.state == routeIdle && !ri.nodesAvailable():
		return false
	default:
		return true
	}
}

func (ri *routeInfo) nodesAvailable() bool {
	r := ri.route
	if r.Source != nil && !r.Source.IsAvailable() {
		return false
	}
	if r.Sink != nil && !r.Sink.IsAvailable() {
		return false
	}
	return true
}

// buildable reports whether an idle route should start a build on this
// tick, per spec §4.2's "Buildable" definition: idle, active, both
// endpoints present, and FallbackEnabled matches the engine's fbActive mode
// (a biconditional — both true or both false).
func (ri *routeInfo) buildable(fbActive bool) bool {
	r := ri.route
	if ri.state != routeIdle || !r.Active {
		return false
	}
	if r.Source == nil || r.Sink == nil {
		return false
	}
	return r.FallbackEnabled == fbActive
}
