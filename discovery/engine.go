// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"context"
	"sync"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/ucsmgr/internal/fsm"
	"github.com/bassosimone/ucsmgr/model"
)

const serviceHolder = "discovery"

// eventsPending is the single bit this service ever latches on the
// scheduler: "the ND event queue is non-empty, go drain it." The queue
// itself — not the scheduler's bitmask — carries the actual ND events, so
// their relative order survives coalescing.
const eventsPending uint32 = 1

// Engine is the Node Discovery engine (spec §4.1).
//
// Engine registers itself as a [sched.Service] and must be driven by the
// scheduler's Run loop; its own exported methods (Start, Stop, InitAll,
// NotifyNetworkStatus) are safe to call from any goroutine.
type Engine struct {
	cfg     *Config
	machine *fsm.Machine
	handle  handle

	mu              sync.Mutex
	queue           []int
	currentSig      model.Signature
	stopRequest     bool
	helloMprRequest bool
	helloNetonReq   bool
	debounce        bool

	pool *Pool
}

// handle is the subset of [*sched.Handle] the engine needs, narrowed so
// tests can exercise the engine without spinning up a real scheduler.
type handle interface {
	Post(mask uint32)
}

// NewEngine returns a new [*Engine] in state idle, registered against
// cfg.Scheduler under priority cfg.Priority.
func NewEngine(cfg *Config) *Engine {
	runtimex.Assert(cfg.Transport != nil)
	runtimex.Assert(cfg.Evaluator != nil)
	runtimex.Assert(cfg.Report != nil)
	runtimex.Assert(cfg.Scheduler != nil)
	runtimex.Assert(cfg.Lock != nil)

	e := &Engine{
		cfg:  cfg,
		pool: NewPool(cfg.PoolCapacity),
	}
	e.machine = fsm.NewMachine(buildTable(e), StateIdle)
	e.handle = cfg.Scheduler.Register(e)
	return e
}

// Name implements [sched.Service].
func (e *Engine) Name() string { return "discovery" }

// Priority implements [sched.Service].
func (e *Engine) Priority() int { return e.cfg.Priority }

// Dispatch implements [sched.Service]: drains the ND event queue, firing
// the state machine once per queued event. An action that enqueues a
// further event (directly, or through a timer callback that has already
// run by the time this loop observes it) is serviced by a later iteration
// of this same loop — never re-entrantly from within the [fsm.Machine.Fire]
// call that enqueued it.
func (e *Engine) Dispatch(ctx context.Context, mask uint32) {
	for {
		ev, ok := e.dequeue()
		if !ok {
			return
		}
		if err := e.machine.Fire(ctx, ev); err != nil {
			e.cfg.Logger.Info("discovery fsm action failed", "event", ev, "error", err)
		}
	}
}

func (e *Engine) enqueue(ev int) {
	e.mu.Lock()
	e.queue = append(e.queue, ev)
	e.mu.Unlock()
	e.handle.Post(eventsPending)
}

func (e *Engine) dequeue() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return 0, false
	}
	ev := e.queue[0]
	e.queue = e.queue[1:]
	return ev, true
}

// State returns the engine's current FSM state, one of the State*
// constants.
func (e *Engine) State() int {
	return e.machine.State()
}

// Start begins the discovery sweep. Fails with [model.ErrAPILocked] if the
// INIC command channel lock is already held by a holder other than this
// engine.
func (e *Engine) Start() error {
	if !e.cfg.Lock.TryAcquire(serviceHolder) {
		return model.ErrAPILocked
	}
	e.enqueue(EventStart)
	return nil
}

// Stop requests a graceful stop. Fails with [model.ErrNotAvailable] if the
// engine was never started.
func (e *Engine) Stop() error {
	if e.machine.State() == StateIdle {
		return model.ErrNotAvailable
	}
	e.mu.Lock()
	e.stopRequest = true
	e.mu.Unlock()
	e.enqueue(EventCheck)
	return nil
}

// InitAll best-effort broadcasts Exc.Init to every node. Fire-and-forget:
// errors are logged, never returned.
func (e *Engine) InitAll(ctx context.Context) {
	if err := e.cfg.Transport.ExcInit(ctx, model.WelcomeDontCareNodeAddress); err != nil {
		e.cfg.Logger.Info("discovery init_all failed", "error", err, "errClass", e.cfg.ErrClassifier.Classify(err))
	}
}

// NotifyNetworkStatus delivers an INIC observer network-status
// transition. netOn is the new availability; nce reports whether a node
// change event accompanied this notification.
func (e *Engine) NotifyNetworkStatus(netOn bool, nce bool) {
	if !netOn {
		e.enqueue(EventNetOff)
		return
	}
	e.mu.Lock()
	e.helloNetonReq = true
	if nce {
		e.helloMprRequest = true
	}
	e.mu.Unlock()
	e.enqueue(EventCheck)
}

// NotifyHelloStatus delivers a Hello.Status reply from the wire: the
// signature is queued for evaluation and a check is requested so
// A_CheckConditions notices the new arrival.
func (e *Engine) NotifyHelloStatus(sig model.Signature) {
	if !e.pool.PushNew(sig) {
		e.cfg.Logger.Info("discovery node-slot pool exhausted, dropping Hello.Status", "signature", sig.String())
		return
	}
	e.enqueue(EventCheck)
}

// NotifyWelcomeResult delivers a Welcome.Result completion.
func (e *Engine) NotifyWelcomeResult(success bool) {
	if success {
		e.enqueue(EventWelcomeSuccess)
		return
	}
	e.enqueue(EventWelcomeNosuccess)
}

// NotifySignatureResult delivers a Signature.Get reply.
func (e *Engine) NotifySignatureResult() {
	e.enqueue(EventSignatureSuccess)
}

// NotifySignatureError delivers a severed command channel or spurious
// Signature.Error.
func (e *Engine) NotifySignatureError() {
	e.enqueue(EventSignatureError)
}
