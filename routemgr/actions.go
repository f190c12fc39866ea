// SPDX-License-Identifier: GPL-3.0-or-later

package routemgr

import (
	"context"

	"github.com/bassosimone/ucsmgr/internal/epm"
	"github.com/bassosimone/ucsmgr/model"
	"github.com/bassosimone/ucsmgr/routemgr/atd"
)

// process reacts to one dequeued command, implementing spec §4.2's
// per-route scheduling table, build/destroy protocols, deteriorated-route
// recovery, network-status reactions, the ATD loop, and termination.
func (e *Engine) process(ctx context.Context, cmd routeCmd) {
	switch cmd.kind {
	case cmdTick:
		e.handleTick(ctx)
	case cmdEndpointResult:
		e.handleEndpointResult(ctx, cmd.info, cmd.isSource, cmd.result)
	case cmdATDComplete:
		e.handleATDComplete(cmd.info, cmd.atdResult)
	case cmdAvailability:
		e.handleAvailability(cmd.available)
	case cmdMaxPosition:
		e.handleMaxPosition(cmd.maxPosition)
	case cmdFallback:
		e.handleFallback(cmd.fbActive)
	case cmdTerminate:
		e.handleTerminate()
	}
}

// handleTick advances the eligibility cursor one entry and dispatches it per
// its state. If no entry is eligible after one full revolution of the
// table, the tick is not re-armed (process_pause): a later Activate/
// Deactivate/availability/fallback/endpoint-result event re-arms it.
func (e *Engine) handleTick(ctx context.Context) {
	info, ok := e.pickNextEligible()
	if !ok {
		return
	}

	e.mu.Lock()
	state := info.state
	active := info.route.Active
	fbActive := e.fbActive
	e.mu.Unlock()

	switch state {
	case routeIdle:
		if info.buildable(fbActive) {
			e.buildRoute(ctx, info)
		}
	case routeConstruction:
		e.buildRoute(ctx, info)
	case routeDeteriorated:
		e.handleDeteriorated(info)
	case routeDestruction:
		e.destroyRoute(ctx, info)
	case routeSuspended, routeBuilt:
		// In normal mode eligible() filters out the stable active cases,
		// but fallback mode admits every active route, so only a route the
		// application deactivated is torn down here.
		if !active {
			e.destroyRoute(ctx, info)
		}
	}

	e.armTick()
}

// pickNextEligible scans entries starting at the cursor for the first
// eligible route, advancing the cursor past whatever it finds (or leaving
// it unchanged after a dry revolution).
func (e *Engine) pickNextEligible() (*routeInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.entries)
	if n == 0 {
		return nil, false
	}
	for i := 0; i < n; i++ {
		idx := (e.cursor + i) % n
		info := e.entries[idx]
		if info.eligible(e.fbActive) {
			e.cursor = (idx + 1) % n
			return info, true
		}
	}
	return nil, false
}

// buildRoute advances a route through its build protocol: source first,
// then sink, transitioning to built once both endpoints report success.
func (e *Engine) buildRoute(ctx context.Context, info *routeInfo) {
	source, sink := info.route.Source, info.route.Sink

	if source.State == model.EndpointIdle {
		e.startBuild(ctx, info, source, true, info.route.StaticConnectionLabel)
		return
	}

	if source.State == model.EndpointBuilt {
		e.ensureObserved(info, source, true)

		if sink.State == model.EndpointIdle {
			label := info.route.StaticConnectionLabel
			if label == 0 {
				label = source.ConnectionLabel
			}
			e.startBuild(ctx, info, sink, false, label)
			return
		}

		if sink.State == model.EndpointBuilt {
			e.ensureObserved(info, sink, false)
			e.mu.Lock()
			info.state = routeBuilt
			info.atdUpToDate = false
			e.mu.Unlock()
			e.report(model.RouteBuilt, info.route)
			e.requestATDUpdate()
			return
		}
	}

	// Either endpoint is still xrm_processing: this is the common case
	// while waiting for an asynchronous completion. Guard against a stuck
	// endpoint whose last reported result was already actionable but whose
	// state never advanced.
	e.unstickProcessing(info, source)
	e.unstickProcessing(info, sink)
}

func (e *Engine) startBuild(ctx context.Context, info *routeInfo, ep *model.Endpoint, isSource bool, label uint16) {
	sev := e.cfg.SeverityClassifier.Classify(ep.LastResult, ep.RetryCount)
	if sev == SeverityCritical {
		// A stale critical result on an otherwise-idle endpoint: let
		// handleEndpointResult's own deterioration path run its course
		// instead of racing a fresh build attempt against it.
		return
	}

	e.ensureObserved(info, ep, isSource)

	if model.IsValidConnectionLabel(label) {
		ep.ConnectionLabel = label
	}

	spanID := model.NewSpanID()
	t0 := e.cfg.TimeNow()
	epm.LogBuildStart(e.cfg.Logger, spanID, endpointID(ep), ep.ConnectionLabel, nil, t0)

	if err := e.cfg.Manager.Build(ctx, endpointID(ep), ep.ConnectionLabel); err != nil {
		e.cfg.Logger.Info("routemgr build failed", "route", info.route.ID, "source", isSource, "error", err)
		return
	}
	ep.State = model.EndpointXRMProcessing

	e.mu.Lock()
	info.state = routeConstruction
	if isSource {
		info.srcSpanID, info.srcOpStart = spanID, t0
	} else {
		info.sinkSpanID, info.sinkOpStart = spanID, t0
	}
	e.mu.Unlock()
}

func (e *Engine) ensureObserved(info *routeInfo, ep *model.Endpoint, isSource bool) {
	already := info.srcObserverInit
	if !isSource {
		already = info.sinkObserverInit
	}
	if already {
		return
	}

	e.cfg.Manager.Observe(endpointID(ep), func(result epm.Result) {
		e.enqueue(routeCmd{kind: cmdEndpointResult, info: info, isSource: isSource, result: result})
	})
	ep.ObserverAttached = true
	if isSource {
		info.srcObserverInit = true
	} else {
		info.sinkObserverInit = true
	}
}

// unstickProcessing breaks a perceived deadlock: if ep is xrm_processing and
// its last reported result was already critical, the route is driven to
// deteriorated instead of waiting on a completion that may never arrive. An
// uncritical last result alongside a still-processing state is a harmless
// no-op (the completion is simply still in flight).
func (e *Engine) unstickProcessing(info *routeInfo, ep *model.Endpoint) {
	if ep == nil || ep.State != model.EndpointXRMProcessing {
		return
	}
	if e.cfg.SeverityClassifier.Classify(ep.LastResult, ep.RetryCount) != SeverityCritical {
		return
	}
	e.mu.Lock()
	if info.state == routeConstruction {
		info.state = routeDeteriorated
		info.faultyEndpoint = ep
		info.lastSeverity = SeverityCritical
	}
	e.mu.Unlock()
}

// destroyRoute advances a route through its destroy protocol: sink first,
// then source, transitioning to idle once both endpoints report idle. An
// invalid_shadow result (the endpoint is still referenced by another route)
// is treated as this route's own destroy having succeeded.
func (e *Engine) destroyRoute(ctx context.Context, info *routeInfo) {
	source, sink := info.route.Source, info.route.Sink

	if sink.State == model.EndpointBuilt {
		spanID := model.NewSpanID()
		t0 := e.cfg.TimeNow()
		epm.LogDestroyStart(e.cfg.Logger, spanID, endpointID(sink), t0)
		if err := e.cfg.Manager.Destroy(ctx, endpointID(sink)); err != nil {
			e.cfg.Logger.Info("routemgr destroy failed", "route", info.route.ID, "source", false, "error", err)
			return
		}
		sink.State = model.EndpointXRMProcessing
		e.mu.Lock()
		info.state = routeDestruction
		info.sinkSpanID, info.sinkOpStart = spanID, t0
		e.mu.Unlock()
		return
	}

	if sink.State == model.EndpointIdle && source.State == model.EndpointBuilt {
		spanID := model.NewSpanID()
		t0 := e.cfg.TimeNow()
		epm.LogDestroyStart(e.cfg.Logger, spanID, endpointID(source), t0)
		if err := e.cfg.Manager.Destroy(ctx, endpointID(source)); err != nil {
			e.cfg.Logger.Info("routemgr destroy failed", "route", info.route.ID, "source", true, "error", err)
			return
		}
		source.State = model.EndpointXRMProcessing
		e.mu.Lock()
		info.state = routeDestruction
		info.srcSpanID, info.srcOpStart = spanID, t0
		e.mu.Unlock()
		return
	}

	if sink.State == model.EndpointIdle && source.State == model.EndpointIdle {
		e.mu.Lock()
		info.state = routeIdle
		info.srcObserverInit = false
		e.mu.Unlock()
		e.report(model.RouteDestroyed, info.route)
	}
}

// handleEndpointResult applies a completed build/destroy/fault outcome to
// the endpoint that produced it, then escalates the owning route to
// deteriorated if the result classifies as critical.
func (e *Engine) handleEndpointResult(ctx context.Context, info *routeInfo, isSource bool, result epm.Result) {
	ep := info.route.Source
	if !isSource {
		ep = info.route.Sink
	}

	// An invalid_shadow destroy failure means another route still owns
	// this endpoint; this route's own teardown is complete regardless.
	if result.Code == epm.ResultErrDestroy &&
		result.ResultType == epm.ResultTypeInternal &&
		result.Internal == epm.InternalErrorInvalidShadow {
		ep.State = model.EndpointIdle
		ep.LastResult = result
		ep.RetryCount = 0
		e.armTick()
		return
	}

	sev := e.cfg.SeverityClassifier.Classify(result, ep.RetryCount)
	switch sev {
	case SeverityNone:
		ep.RetryCount = 0
	case SeverityUncritical:
		ep.RetryCount++
	case SeverityCritical:
		// Left as-is; the route is driven to deteriorated below.
	}
	ep.LastResult = result

	now := e.cfg.TimeNow()
	spanID, t0 := info.srcSpanID, info.srcOpStart
	if !isSource {
		spanID, t0 = info.sinkSpanID, info.sinkOpStart
	}
	if result.Code == epm.ResultSuccessDestroy || result.Code == epm.ResultErrDestroy {
		epm.LogDestroyDone(e.cfg.Logger, spanID, endpointID(ep), result, t0, now)
	} else {
		epm.LogBuildDone(e.cfg.Logger, spanID, endpointID(ep), result, nil, t0, now)
	}

	switch result.Code {
	case epm.ResultSuccessBuild:
		ep.State = model.EndpointBuilt
	case epm.ResultSuccessDestroy:
		ep.State = model.EndpointIdle
	default:
		// A build/destroy/sync/config fault. An uncritical fault returns
		// the endpoint to idle so the next tick retries with the bumped
		// retry count; a critical fault is left processing until
		// handleDeteriorated resets it explicitly alongside the route's
		// transition to suspended.
		if sev == SeverityUncritical {
			ep.State = model.EndpointIdle
		}
	}

	e.mu.Lock()
	info.lastSeverity = sev
	if sev == SeverityCritical && (info.state == routeConstruction || info.state == routeDestruction || info.state == routeBuilt) {
		info.state = routeDeteriorated
		info.faultyEndpoint = ep
	}
	e.mu.Unlock()

	e.armTick()
}

// handleDeteriorated recovers a deteriorated route: resets the faulty
// endpoint only (uncritical path) or both endpoints (critical path), then
// suspends the route and reports it. The route's ATD value, if any, is
// staled.
func (e *Engine) handleDeteriorated(info *routeInfo) {
	e.mu.Lock()
	sev := info.lastSeverity
	faulty := info.faultyEndpoint
	e.mu.Unlock()

	if sev == SeverityCritical {
		if info.route.Source != nil {
			e.cfg.Manager.Reset(endpointID(info.route.Source))
			info.route.Source.State = model.EndpointIdle
		}
		if info.route.Sink != nil {
			e.cfg.Manager.Reset(endpointID(info.route.Sink))
			info.route.Sink.State = model.EndpointIdle
		}
	} else if faulty != nil {
		e.cfg.Manager.Reset(endpointID(faulty))
		faulty.State = model.EndpointIdle
	}

	e.mu.Lock()
	info.state = routeSuspended
	info.atdUpToDate = false
	info.faultyEndpoint = nil
	e.mu.Unlock()

	e.report(model.RouteSuspended, info.route)
}

// requestATDUpdate scans for the next built, ATD-enabled route whose value
// is stale and starts a probe for it. At most one probe runs at a time
// (atdHeld); a probe started while one is already in flight is skipped and
// will be retried on the next trigger.
func (e *Engine) requestATDUpdate() {
	e.mu.Lock()
	if e.atdHeld || !e.nwAvailable || e.cfg.ATD == nil {
		e.mu.Unlock()
		return
	}

	var target *routeInfo
	for _, info := range e.entries {
		if info.state == routeBuilt && info.route.ATD.Enabled && !info.atdUpToDate {
			target = info
			break
		}
	}
	if target == nil {
		e.mu.Unlock()
		return
	}
	e.atdHeld = true
	maxPosition := e.maxPosition
	e.mu.Unlock()

	err := e.cfg.ATD.Start(context.Background(), target.route.ID, maxPosition, func(result atd.Result) {
		e.enqueue(routeCmd{kind: cmdATDComplete, info: target, atdResult: result})
	})
	if err != nil {
		e.mu.Lock()
		e.atdHeld = false
		e.mu.Unlock()
		e.cfg.Logger.Info("routemgr atd start failed", "route", target.route.ID, "error", err)
	}
}

func (e *Engine) handleATDComplete(info *routeInfo, result atd.Result) {
	e.mu.Lock()
	info.atdUpToDate = true
	if result.Success {
		info.atdValue = result.Value
	}
	e.atdHeld = false
	e.mu.Unlock()

	if result.Success {
		e.report(model.RouteATDUpdate, info.route)
	} else {
		e.report(model.RouteATDError, info.route)
	}

	// Continue the scan: another built route may already be stale.
	e.requestATDUpdate()
}

// handleAvailability reacts to a network-availability transition. Going
// down marks every node unavailable and shuts the Endpoint Manager down;
// coming back up resets every route's internal bookkeeping to idle and
// resumes the route-tick.
func (e *Engine) handleAvailability(available bool) {
	e.mu.Lock()
	if available == e.nwAvailable {
		e.mu.Unlock()
		return
	}
	e.nwAvailable = available

	if !available {
		for _, info := range e.entries {
			if info.route.Source != nil && info.route.Source.OwningNode != nil {
				info.route.Source.OwningNode.Available = false
			}
			if info.route.Sink != nil && info.route.Sink.OwningNode != nil {
				info.route.Sink.OwningNode.Available = false
			}
		}
	} else {
		for _, info := range e.entries {
			info.reset()
		}
	}
	e.mu.Unlock()

	if !available {
		e.cfg.Manager.Shutdown()
		return
	}
	e.armTick()
}

func (e *Engine) handleMaxPosition(maxPosition uint16) {
	e.mu.Lock()
	e.maxPosition = maxPosition
	for _, info := range e.entries {
		info.atdUpToDate = false
	}
	e.mu.Unlock()

	if e.cfg.ATD != nil {
		e.cfg.ATD.SetMaxPosition(maxPosition)
	}
	e.requestATDUpdate()
}

func (e *Engine) handleFallback(fbActive bool) {
	e.mu.Lock()
	e.fbActive = fbActive
	e.mu.Unlock()
	e.armTick()
}

// handleTerminate forces every active, not-yet-built, not-suspended route
// to idle, reports process_stop for each, unregisters observers and resets
// both endpoints in the Endpoint Manager, and unschedules the route-tick.
// StartProcess is required again to resume.
func (e *Engine) handleTerminate() {
	e.mu.Lock()
	var toStop []*routeInfo
	for _, info := range e.entries {
		if info.route.Active && info.state != routeBuilt && info.state != routeSuspended {
			if info.state == routeConstruction || info.state == routeDestruction || info.state == routeDeteriorated {
				info.state = routeIdle
			}
			toStop = append(toStop, info)
		}
	}
	e.started = false
	e.mu.Unlock()

	for _, info := range toStop {
		if info.route.Source != nil {
			e.cfg.Manager.Unobserve(endpointID(info.route.Source))
			e.cfg.Manager.Reset(endpointID(info.route.Source))
		}
		if info.route.Sink != nil {
			e.cfg.Manager.Unobserve(endpointID(info.route.Sink))
			e.cfg.Manager.Reset(endpointID(info.route.Sink))
		}
		e.mu.Lock()
		info.srcObserverInit = false
		info.sinkObserverInit = false
		e.mu.Unlock()
		e.report(model.RouteProcessStop, info.route)
	}

	e.cfg.Scheduler.CancelTimer(tickTimerName)
}

func (e *Engine) report(code model.RouteReportCode, route *model.Route) {
	if e.cfg.Report != nil {
		e.cfg.Report(code, route)
	}
}
