// SPDX-License-Identifier: GPL-3.0-or-later

package routemgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/ucsmgr/internal/epm"
	"github.com/bassosimone/ucsmgr/model"
	"github.com/bassosimone/ucsmgr/routemgr/atd"
)

const tickTimerName = "routemgr/tick"

// eventsPending is the single bit this service latches on the scheduler;
// the internal command queue carries the actual event ordering, exactly
// mirroring the discovery package's engine.
const eventsPending uint32 = 1

// handle is the subset of [*sched.Handle] the engine needs.
type handle interface {
	Post(mask uint32)
}

type cmdKind int

const (
	cmdTick cmdKind = iota
	cmdEndpointResult
	cmdATDComplete
	cmdAvailability
	cmdMaxPosition
	cmdFallback
	cmdTerminate
)

type routeCmd struct {
	kind        cmdKind
	info        *routeInfo
	isSource    bool
	result      epm.Result
	atdResult   atd.Result
	available   bool
	maxPosition uint16
	fbActive    bool
}

// Engine is the Route Management engine (spec §4.2).
//
// Engine registers itself as a [sched.Service] and must be driven by the
// scheduler's Run loop; its own exported methods are safe to call from any
// goroutine.
type Engine struct {
	cfg    *Config
	handle handle

	mu          sync.Mutex
	entries     []*routeInfo
	byID        map[string]*routeInfo
	cursor      int
	started     bool
	nwAvailable bool
	fbActive    bool
	maxPosition uint16
	atdHeld     bool

	queueMu sync.Mutex
	queue   []routeCmd
}

// NewEngine returns a new [*Engine], registered against cfg.Scheduler
// under priority cfg.Priority. The route table is empty until
// [Engine.StartProcess] is called.
func NewEngine(cfg *Config) *Engine {
	runtimex.Assert(cfg.Manager != nil)
	runtimex.Assert(cfg.Scheduler != nil)
	runtimex.Assert(cfg.Report != nil)

	e := &Engine{cfg: cfg, byID: make(map[string]*routeInfo)}
	e.handle = cfg.Scheduler.Register(e)
	return e
}

// Name implements [sched.Service].
func (e *Engine) Name() string { return "routemgr" }

// Priority implements [sched.Service].
func (e *Engine) Priority() int { return e.cfg.Priority }

// Dispatch implements [sched.Service]: drains the RTM command queue.
func (e *Engine) Dispatch(ctx context.Context, mask uint32) {
	for {
		cmd, ok := e.dequeue()
		if !ok {
			return
		}
		e.process(ctx, cmd)
	}
}

func (e *Engine) enqueue(cmd routeCmd) {
	e.queueMu.Lock()
	e.queue = append(e.queue, cmd)
	e.queueMu.Unlock()
	e.handle.Post(eventsPending)
}

func (e *Engine) dequeue() (routeCmd, bool) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	if len(e.queue) == 0 {
		return routeCmd{}, false
	}
	cmd := e.queue[0]
	e.queue = e.queue[1:]
	return cmd, true
}

// StartProcess registers routes with the engine, clears their internal
// bookkeeping, and arms the route-tick timer. One-shot: fails with
// [model.ErrAPILocked] if already started, [model.ErrParam] if routes is
// empty or any entry has a nil Source/Sink.
func (e *Engine) StartProcess(routes []*model.Route) error {
	if len(routes) == 0 {
		return model.ErrParam
	}
	for _, r := range routes {
		if r == nil || r.Source == nil || r.Sink == nil {
			return model.ErrParam
		}
	}

	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return model.ErrAPILocked
	}
	e.entries = make([]*routeInfo, 0, len(routes))
	e.byID = make(map[string]*routeInfo, len(routes))
	for _, r := range routes {
		if r.ID == "" {
			r.ID = model.NewRouteID()
		}
		info := newRouteInfo(r)
		e.entries = append(e.entries, info)
		e.byID[r.ID] = info
	}
	e.cursor = 0
	e.started = true
	e.mu.Unlock()

	e.armTick()
	return nil
}

// ActivateRoute requests r be built. Fails with [model.ErrParam] if r is
// unknown, [model.ErrAlreadySet] if already active.
func (e *Engine) ActivateRoute(r *model.Route) error {
	e.mu.Lock()
	info, ok := e.byID[idOf(r)]
	if !ok {
		e.mu.Unlock()
		return model.ErrParam
	}
	if info.route.Active {
		e.mu.Unlock()
		return model.ErrAlreadySet
	}
	info.route.Active = true
	e.mu.Unlock()

	e.armTick()
	return nil
}

// DeactivateRoute requests r be torn down. Fails with [model.ErrParam] if r
// is unknown, [model.ErrAlreadySet] if already inactive.
func (e *Engine) DeactivateRoute(r *model.Route) error {
	e.mu.Lock()
	info, ok := e.byID[idOf(r)]
	if !ok {
		e.mu.Unlock()
		return model.ErrParam
	}
	if !info.route.Active {
		e.mu.Unlock()
		return model.ErrAlreadySet
	}
	info.route.Active = false
	e.mu.Unlock()

	e.armTick()
	return nil
}

// SetNodeAvailable updates node's availability. Fails with
// [model.ErrNotAvailable] if the network is down and available is true,
// [model.ErrAlreadySet] if node is already in the requested state. Setting
// a node unavailable releases any suspended route touching it and
// propagates the reset to the Endpoint Manager.
func (e *Engine) SetNodeAvailable(node *model.Node, available bool) error {
	if node == nil {
		return model.ErrParam
	}

	e.mu.Lock()
	if available && !e.nwAvailable {
		e.mu.Unlock()
		return model.ErrNotAvailable
	}
	if node.Available == available {
		e.mu.Unlock()
		return model.ErrAlreadySet
	}
	node.Available = available

	var released []*routeInfo
	if !available {
		for _, info := range e.entries {
			if info.state == routeSuspended && info.touchesNode(node) {
				info.state = routeIdle
				released = append(released, info)
			}
		}
	}
	e.mu.Unlock()

	if available {
		e.armTick()
		return nil
	}
	for _, info := range released {
		e.resetEndpoints(info)
	}
	return nil
}

// GetAttachedRoutes returns every route whose state is built,
// construction, or destruction and that references ep as source or sink.
func (e *Engine) GetAttachedRoutes(ep *model.Endpoint) []*model.Route {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*model.Route
	for _, info := range e.entries {
		if info.attached() && info.observesEndpoint(ep) {
			out = append(out, info.route)
		}
	}
	return out
}

// GetConnectionLabel returns r's active connection label. Meaningful only
// when r is built; returns [model.ErrNotAvailable] otherwise.
func (e *Engine) GetConnectionLabel(r *model.Route) (uint16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.byID[idOf(r)]
	if !ok {
		return 0, model.ErrParam
	}
	if info.state != routeBuilt {
		return 0, model.ErrNotAvailable
	}
	return info.route.Sink.ConnectionLabel, nil
}

// GetATDValue returns r's last-measured Arrival-Time-Delay value. Returns
// [model.ErrNotAvailable] if ATD is disabled on r, [model.ErrInvalidShadow]
// (with the stale value) if the measurement has not refreshed since the
// route last changed.
func (e *Engine) GetATDValue(r *model.Route) (uint16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.byID[idOf(r)]
	if !ok {
		return 0, model.ErrParam
	}
	if !info.route.ATD.Enabled {
		return 0, model.ErrNotAvailable
	}
	if !info.atdUpToDate {
		return info.atdValue, model.ErrInvalidShadow
	}
	return info.atdValue, nil
}

// BuildResources is an opaque passthrough to the INIC resource-building
// command, out of scope for this engine's own logic (spec §1). cb is
// invoked with the outcome; if no INIC hook is configured, cb receives
// [model.ErrNotInitialized].
func (e *Engine) BuildResources(ctx context.Context, nodeAddr uint16, index int, cb func(error)) error {
	if cb == nil {
		return model.ErrParam
	}
	if e.cfg.BuildResourcesFunc == nil {
		cb(model.ErrNotInitialized)
		return nil
	}
	return e.cfg.BuildResourcesFunc(ctx, nodeAddr, index, cb)
}

// NotifyAvailability delivers a network-availability transition (spec
// §4.2 Network-status reactions). available mirrors the
// [model.NetworkAvailabilityMask] event.
func (e *Engine) NotifyAvailability(available bool) {
	e.enqueue(routeCmd{kind: cmdAvailability, available: available})
}

// NotifyMaxPosition delivers a new ring node count (spec's max_position
// field, [model.MaxPositionMask] event): every route's ATD is staled and
// the ATD sub-engine learns the new position.
func (e *Engine) NotifyMaxPosition(maxPosition uint16) {
	e.enqueue(routeCmd{kind: cmdMaxPosition, maxPosition: maxPosition})
}

// NotifyFallback delivers a fallback-mode transition ([model.FallbackMask]
// event).
func (e *Engine) NotifyFallback(fbActive bool) {
	e.enqueue(routeCmd{kind: cmdFallback, fbActive: fbActive})
}

// Terminate forces every active, unbuilt route to idle, reports
// process_stop for each, clears Endpoint Manager state on both endpoints,
// unregisters observers, and unschedules the engine. Afterwards
// [Engine.StartProcess] may be called again to restart.
func (e *Engine) Terminate() {
	e.enqueue(routeCmd{kind: cmdTerminate})
}

func (e *Engine) resetEndpoints(info *routeInfo) {
	if info.route.Source != nil {
		e.cfg.Manager.Reset(endpointID(info.route.Source))
	}
	if info.route.Sink != nil {
		e.cfg.Manager.Reset(endpointID(info.route.Sink))
	}
}

func (e *Engine) armTick() {
	e.cfg.Scheduler.ArmTimer(tickTimerName, e.cfg.TickInterval, func() {
		e.enqueue(routeCmd{kind: cmdTick})
	})
}

func idOf(r *model.Route) string {
	if r == nil {
		return ""
	}
	return r.ID
}

// endpointID derives a stable per-process identifier for an endpoint. The
// application-owned [model.Endpoint] carries no ID field of its own, so
// pointer identity (stable for the process lifetime) stands in for one.
func endpointID(ep *model.Endpoint) string {
	return fmt.Sprintf("%p", ep)
}
