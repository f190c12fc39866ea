// SPDX-License-Identifier: GPL-3.0-or-later

package routemgr

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bassosimone/ucsmgr/internal/epm"
	"github.com/bassosimone/ucsmgr/internal/sched"
	"github.com/bassosimone/ucsmgr/model"
	"github.com/bassosimone/ucsmgr/routemgr/atd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportRecord struct {
	code  model.RouteReportCode
	route *model.Route
}

type reportRecorder struct {
	mu      sync.Mutex
	records []reportRecord
}

func (r *reportRecorder) record(code model.RouteReportCode, route *model.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, reportRecord{code: code, route: route})
}

func (r *reportRecorder) countOfCode(code model.RouteReportCode) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.code == code {
			n++
		}
	}
	return n
}

type testHarness struct {
	engine    *Engine
	scheduler *sched.Scheduler
	clock     *sched.FakeClock
	manager   *epm.FakeManager
	prober    *atd.FakeProber
	reports   *reportRecorder
	cancel    context.CancelFunc
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	clock := sched.NewFakeClock(time.Unix(0, 0))
	scheduler := sched.New(clock)
	manager := &epm.FakeManager{}
	prober := &atd.FakeProber{}
	reports := &reportRecorder{}

	cfg := NewConfig()
	cfg.Manager = manager
	cfg.ATD = prober
	cfg.Report = reports.record
	cfg.Scheduler = scheduler
	cfg.TickInterval = time.Millisecond

	engine := NewEngine(cfg)
	engine.nwAvailable = true

	ctx, cancel := context.WithCancel(context.Background())
	go scheduler.Run(ctx)
	t.Cleanup(cancel)

	return &testHarness{
		engine:    engine,
		scheduler: scheduler,
		clock:     clock,
		manager:   manager,
		prober:    prober,
		reports:   reports,
		cancel:    cancel,
	}
}

// tick advances the fake clock past one tick interval and waits for the
// scheduler to drain whatever that tick enqueues.
func (h *testHarness) tick() {
	h.clock.Advance(2 * time.Millisecond)
	time.Sleep(5 * time.Millisecond)
}

func newActiveRoute(id string) *model.Route {
	node := model.NewNode(model.Signature{NodeAddress: 0x0210, NodePositionAddress: 0x0210})
	node.Available = true
	return &model.Route{
		ID:     id,
		Source: model.NewEndpoint(model.EndpointSource, node),
		Sink:   model.NewEndpoint(model.EndpointSink, node),
		Active: true,
	}
}

func TestEngineStartProcessRejectsEmptyOrMalformedRoutes(t *testing.T) {
	h := newTestHarness(t)
	assert.ErrorIs(t, h.engine.StartProcess(nil), model.ErrParam)
	assert.ErrorIs(t, h.engine.StartProcess([]*model.Route{{}}), model.ErrParam)
}

func TestEngineStartProcessTwiceFailsAPILocked(t *testing.T) {
	h := newTestHarness(t)
	r := newActiveRoute("r1")
	require.NoError(t, h.engine.StartProcess([]*model.Route{r}))
	assert.ErrorIs(t, h.engine.StartProcess([]*model.Route{r}), model.ErrAPILocked)
}

func TestEngineBuildsActiveRouteEndToEnd(t *testing.T) {
	h := newTestHarness(t)
	r := newActiveRoute("r1")
	require.NoError(t, h.engine.StartProcess([]*model.Route{r}))
	h.tick()

	require.Eventually(t, func() bool {
		return h.manager.Observing(endpointID(r.Source))
	}, time.Second, time.Millisecond)
	h.manager.Notify(endpointID(r.Source), epm.Result{Code: epm.ResultSuccessBuild})
	h.tick()

	require.Eventually(t, func() bool {
		return h.manager.Observing(endpointID(r.Sink))
	}, time.Second, time.Millisecond)
	h.manager.Notify(endpointID(r.Sink), epm.Result{Code: epm.ResultSuccessBuild})
	h.tick()

	require.Eventually(t, func() bool {
		return h.reports.countOfCode(model.RouteBuilt) == 1
	}, time.Second, time.Millisecond)

	label, err := h.engine.GetConnectionLabel(r)
	require.NoError(t, err)
	assert.Equal(t, r.Sink.ConnectionLabel, label)
}

func TestEngineDeactivateDestroysBuiltRoute(t *testing.T) {
	h := newTestHarness(t)
	r := newActiveRoute("r1")
	require.NoError(t, h.engine.StartProcess([]*model.Route{r}))
	h.tick()

	require.Eventually(t, func() bool { return h.manager.Observing(endpointID(r.Source)) }, time.Second, time.Millisecond)
	h.manager.Notify(endpointID(r.Source), epm.Result{Code: epm.ResultSuccessBuild})
	h.tick()
	require.Eventually(t, func() bool { return h.manager.Observing(endpointID(r.Sink)) }, time.Second, time.Millisecond)
	h.manager.Notify(endpointID(r.Sink), epm.Result{Code: epm.ResultSuccessBuild})
	h.tick()
	require.Eventually(t, func() bool { return h.reports.countOfCode(model.RouteBuilt) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.engine.DeactivateRoute(r))
	h.tick()

	require.Eventually(t, func() bool { return r.Sink.State == model.EndpointXRMProcessing }, time.Second, time.Millisecond)
	h.manager.Notify(endpointID(r.Sink), epm.Result{Code: epm.ResultSuccessDestroy})
	h.tick()
	require.Eventually(t, func() bool { return r.Source.State == model.EndpointXRMProcessing }, time.Second, time.Millisecond)
	h.manager.Notify(endpointID(r.Source), epm.Result{Code: epm.ResultSuccessDestroy})
	h.tick()

	require.Eventually(t, func() bool { return h.reports.countOfCode(model.RouteDestroyed) == 1 }, time.Second, time.Millisecond)
}

func TestEngineCriticalBuildErrorSuspendsRoute(t *testing.T) {
	h := newTestHarness(t)
	r := newActiveRoute("r1")
	require.NoError(t, h.engine.StartProcess([]*model.Route{r}))
	h.tick()

	require.Eventually(t, func() bool { return h.manager.Observing(endpointID(r.Source)) }, time.Second, time.Millisecond)
	h.manager.Notify(endpointID(r.Source), epm.Result{Code: epm.ResultErrConfig})
	h.tick()

	require.Eventually(t, func() bool { return h.reports.countOfCode(model.RouteSuspended) == 1 }, time.Second, time.Millisecond)
}

func TestEngineTransientBuildErrorRetriesWithoutSuspending(t *testing.T) {
	h := newTestHarness(t)
	r := newActiveRoute("r1")
	require.NoError(t, h.engine.StartProcess([]*model.Route{r}))
	h.tick()

	require.Eventually(t, func() bool { return h.manager.Observing(endpointID(r.Source)) }, time.Second, time.Millisecond)
	h.manager.Notify(endpointID(r.Source), epm.Result{
		Code: epm.ResultErrBuild, ResultType: epm.ResultTypeTX, TX: epm.TXErrorTimeout,
	})
	h.tick()

	require.Eventually(t, func() bool { return r.Source.RetryCount == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, h.reports.countOfCode(model.RouteSuspended))
}

func TestEngineSetNodeAvailableFalseReleasesSuspendedRoute(t *testing.T) {
	h := newTestHarness(t)
	r := newActiveRoute("r1")
	require.NoError(t, h.engine.StartProcess([]*model.Route{r}))
	h.tick()

	require.Eventually(t, func() bool { return h.manager.Observing(endpointID(r.Source)) }, time.Second, time.Millisecond)
	h.manager.Notify(endpointID(r.Source), epm.Result{Code: epm.ResultErrConfig})
	h.tick()
	require.Eventually(t, func() bool { return h.reports.countOfCode(model.RouteSuspended) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.engine.SetNodeAvailable(r.Source.OwningNode, false))

	require.Eventually(t, func() bool {
		routes := h.engine.GetAttachedRoutes(r.Source)
		return len(routes) == 0
	}, time.Second, time.Millisecond)
}

func TestEngineATDRefreshesAfterRouteBuilt(t *testing.T) {
	h := newTestHarness(t)
	r := newActiveRoute("r1")
	r.ATD.Enabled = true
	require.NoError(t, h.engine.StartProcess([]*model.Route{r}))
	h.tick()

	require.Eventually(t, func() bool { return h.manager.Observing(endpointID(r.Source)) }, time.Second, time.Millisecond)
	h.manager.Notify(endpointID(r.Source), epm.Result{Code: epm.ResultSuccessBuild})
	h.tick()
	require.Eventually(t, func() bool { return h.manager.Observing(endpointID(r.Sink)) }, time.Second, time.Millisecond)
	h.manager.Notify(endpointID(r.Sink), epm.Result{Code: epm.ResultSuccessBuild})
	h.tick()

	require.Eventually(t, func() bool { return h.reports.countOfCode(model.RouteATDUpdate) == 1 }, time.Second, time.Millisecond)

	value, err := h.engine.GetATDValue(r)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), value)
}

func TestEngineTerminateStopsActiveUnbuiltRoutes(t *testing.T) {
	h := newTestHarness(t)
	r := newActiveRoute("r1")
	require.NoError(t, h.engine.StartProcess([]*model.Route{r}))
	h.tick()

	require.Eventually(t, func() bool { return h.manager.Observing(endpointID(r.Source)) }, time.Second, time.Millisecond)

	h.engine.Terminate()

	require.Eventually(t, func() bool { return h.reports.countOfCode(model.RouteProcessStop) == 1 }, time.Second, time.Millisecond)
}

func TestEngineActivateRouteRejectsUnknownAndRedundant(t *testing.T) {
	h := newTestHarness(t)
	r := newActiveRoute("r1")
	r.Active = false
	require.NoError(t, h.engine.StartProcess([]*model.Route{r}))

	assert.ErrorIs(t, h.engine.ActivateRoute(&model.Route{ID: "unknown"}), model.ErrParam)
	require.NoError(t, h.engine.ActivateRoute(r))
	assert.ErrorIs(t, h.engine.ActivateRoute(r), model.ErrAlreadySet)
}

func TestEngineBuildResourcesWithoutHookReturnsNotInitialized(t *testing.T) {
	h := newTestHarness(t)
	var gotErr error
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, h.engine.BuildResources(context.Background(), 0x0210, 0, func(err error) {
		gotErr = err
		wg.Done()
	}))
	wg.Wait()
	assert.ErrorIs(t, gotErr, model.ErrNotInitialized)
}
