// SPDX-License-Identifier: GPL-3.0-or-later

// Package ucsmgr composes the Node Discovery and Route Management engines
// behind a single [eventbus.Bus], mirroring spec §2's "Event bus"
// component: network-status, fallback, and max-position notifications
// reported through [System] reach RTM over the bus, and both engines' own
// reports are rebroadcast on the bus for the embedding application to
// subscribe to once instead of wiring two separate Report callbacks.
package ucsmgr

import (
	"github.com/bassosimone/ucsmgr/discovery"
	"github.com/bassosimone/ucsmgr/internal/eventbus"
	"github.com/bassosimone/ucsmgr/model"
	"github.com/bassosimone/ucsmgr/routemgr"
)

// NetworkStatusEvent is published on the bus whenever the embedding
// application reports an INIC network-status change via
// [System.NotifyNetworkStatus]. Both [discovery.Engine] and
// [routemgr.Engine] are driven from the same underlying INIC observer
// notification (spec §6's network events); System calls discovery
// directly and publishes this event for routemgr, so the application does
// not have to fan the notification out itself.
type NetworkStatusEvent struct {
	Available bool
	NCE       bool
}

// FallbackEvent is published whenever the application reports a
// [model.FallbackMask] transition via [System.NotifyFallback].
type FallbackEvent struct {
	Active bool
}

// MaxPositionEvent is published whenever the application reports a
// [model.MaxPositionMask] change via [System.NotifyMaxPosition].
type MaxPositionEvent struct {
	MaxPosition uint16
}

// DiscoveryReportEvent rebroadcasts an ND report on the bus.
type DiscoveryReportEvent struct {
	Code model.DiscoveryReportCode
	Sig  *model.Signature
}

// RouteReportEvent rebroadcasts an RTM report on the bus.
type RouteReportEvent struct {
	Code  model.RouteReportCode
	Route *model.Route
}

// System wires a [discovery.Engine] and a [routemgr.Engine] to a shared
// [eventbus.Bus]. Construct one with [NewSystem]; the zero value is not
// usable.
type System struct {
	Bus       *eventbus.Bus
	Discovery *discovery.Engine
	RouteMgr  *routemgr.Engine
}

// NewSystem builds the two engines from discoveryCfg and routeCfg,
// wrapping whatever Report callbacks the caller already set so they keep
// firing, and additionally:
//
//   - rebroadcasts every ND report as a [DiscoveryReportEvent] and every
//     RTM report as a [RouteReportEvent];
//   - subscribes RTM's NotifyAvailability/NotifyFallback/NotifyMaxPosition
//     to the corresponding bus events, so [System.NotifyNetworkStatus] (the
//     single INIC-observer entry point) reaches both engines without the
//     caller touching routeCfg.
//
// discoveryCfg.Scheduler and routeCfg.Scheduler must already be set to
// the same [*sched.Scheduler] (the two engines share one cooperative
// scheduler, per spec §5); NewSystem does not set them.
func NewSystem(discoveryCfg *discovery.Config, routeCfg *routemgr.Config) *System {
	bus := eventbus.New()

	userDiscoveryReport := discoveryCfg.Report
	discoveryCfg.Report = func(code model.DiscoveryReportCode, sig *model.Signature) {
		if userDiscoveryReport != nil {
			userDiscoveryReport(code, sig)
		}
		bus.Publish(DiscoveryReportEvent{Code: code, Sig: sig})
	}

	userRouteReport := routeCfg.Report
	routeCfg.Report = func(code model.RouteReportCode, route *model.Route) {
		if userRouteReport != nil {
			userRouteReport(code, route)
		}
		bus.Publish(RouteReportEvent{Code: code, Route: route})
	}

	discoveryEngine := discovery.NewEngine(discoveryCfg)
	routeEngine := routemgr.NewEngine(routeCfg)

	bus.Subscribe(func(ev eventbus.Event) {
		switch e := ev.(type) {
		case NetworkStatusEvent:
			routeEngine.NotifyAvailability(e.Available)
		case FallbackEvent:
			routeEngine.NotifyFallback(e.Active)
		case MaxPositionEvent:
			routeEngine.NotifyMaxPosition(e.MaxPosition)
		}
	})

	return &System{Bus: bus, Discovery: discoveryEngine, RouteMgr: routeEngine}
}

// NotifyNetworkStatus delivers a single INIC network-status observer
// notification to both engines: discovery directly (the call queues the
// FSM event) and routemgr via the bus.
func (s *System) NotifyNetworkStatus(available bool, nce bool) {
	s.Discovery.NotifyNetworkStatus(available, nce)
	s.Bus.Publish(NetworkStatusEvent{Available: available, NCE: nce})
}

// NotifyFallback delivers a fallback-mode transition to routemgr via the
// bus.
func (s *System) NotifyFallback(active bool) {
	s.Bus.Publish(FallbackEvent{Active: active})
}

// NotifyMaxPosition delivers a max_position change to routemgr via the
// bus.
func (s *System) NotifyMaxPosition(maxPosition uint16) {
	s.Bus.Publish(MaxPositionEvent{MaxPosition: maxPosition})
}

// Terminate stops both engines. Discovery stop errors (e.g. it was never
// started) are not fatal to tearing down routemgr, so Terminate ignores
// them rather than leaving RTM running.
func (s *System) Terminate() {
	_ = s.Discovery.Stop()
	s.RouteMgr.Terminate()
}
