// SPDX-License-Identifier: GPL-3.0-or-later

package ucsmgr

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bassosimone/ucsmgr/discovery"
	"github.com/bassosimone/ucsmgr/internal/epm"
	"github.com/bassosimone/ucsmgr/internal/eventbus"
	"github.com/bassosimone/ucsmgr/internal/sched"
	"github.com/bassosimone/ucsmgr/model"
	"github.com/bassosimone/ucsmgr/routemgr"
	"github.com/bassosimone/ucsmgr/routemgr/atd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopTransport struct{}

func (noopTransport) HelloGet(ctx context.Context, signatureVersion int) error { return nil }
func (noopTransport) WelcomeStartResult(ctx context.Context, targetAddress, dontCareAddress uint16, signatureVersion int) error {
	return nil
}
func (noopTransport) SignatureGet(ctx context.Context, nodeAddress uint16) error { return nil }
func (noopTransport) ExcInit(ctx context.Context, targetAddress uint16) error    { return nil }

func newTestSystem(t *testing.T) (*System, *sched.FakeClock) {
	t.Helper()
	clock := sched.NewFakeClock(time.Unix(0, 0))
	scheduler := sched.New(clock)

	dCfg := discovery.NewConfig()
	dCfg.Transport = noopTransport{}
	dCfg.Evaluator = discovery.EvaluatorFunc(func(model.Signature) model.EvaluatorDecision {
		return model.EvaluatorReject
	})
	dCfg.Scheduler = scheduler
	dCfg.Lock = &epm.ChannelLock{}

	rCfg := routemgr.NewConfig()
	rCfg.Manager = &epm.FakeManager{}
	rCfg.ATD = &atd.FakeProber{}
	rCfg.Scheduler = scheduler
	rCfg.TickInterval = time.Millisecond

	sys := NewSystem(dCfg, rCfg)

	ctx, cancel := context.WithCancel(context.Background())
	go scheduler.Run(ctx)
	t.Cleanup(cancel)

	return sys, clock
}

func TestNewSystemRebroadcastsDiscoveryReports(t *testing.T) {
	sys, _ := newTestSystem(t)

	var mu sync.Mutex
	var got []DiscoveryReportEvent
	sys.Bus.Subscribe(func(ev eventbus.Event) {
		if e, ok := ev.(DiscoveryReportEvent); ok {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		}
	})

	require.NoError(t, sys.Discovery.Start())
	require.Eventually(t, func() bool {
		return sys.Discovery.State() == discovery.StateCheckHello
	}, time.Second, time.Millisecond)

	sys.NotifyNetworkStatus(false, false)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range got {
			if e.Code == model.DiscoveryNetOff {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestNewSystemRoutesNetworkStatusToRouteMgr(t *testing.T) {
	sys, clock := newTestSystem(t)

	node := model.NewNode(model.Signature{NodeAddress: 0x0210, NodePositionAddress: 0x0210})
	node.Available = true
	r := &model.Route{
		ID:     "r1",
		Source: model.NewEndpoint(model.EndpointSource, node),
		Sink:   model.NewEndpoint(model.EndpointSink, node),
		Active: true,
	}
	r.ATD.Enabled = true
	require.NoError(t, sys.RouteMgr.StartProcess([]*model.Route{r}))

	sys.NotifyNetworkStatus(true, false)
	sys.NotifyNetworkStatus(false, false)

	clock.Advance(2 * time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	assert.False(t, node.Available)
}

func TestNewSystemRebroadcastsRouteReports(t *testing.T) {
	sys, clock := newTestSystem(t)

	node := model.NewNode(model.Signature{NodeAddress: 0x0210, NodePositionAddress: 0x0210})
	node.Available = true
	r := &model.Route{
		ID:     "r1",
		Source: model.NewEndpoint(model.EndpointSource, node),
		Sink:   model.NewEndpoint(model.EndpointSink, node),
		Active: true,
	}
	require.NoError(t, sys.RouteMgr.StartProcess([]*model.Route{r}))
	clock.Advance(2 * time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	var mu sync.Mutex
	var got []RouteReportEvent
	sys.Bus.Subscribe(func(ev eventbus.Event) {
		if e, ok := ev.(RouteReportEvent); ok {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		}
	})

	sys.RouteMgr.Terminate()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range got {
			if e.Code == model.RouteProcessStop {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}
