// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"context"

	"github.com/bassosimone/ucsmgr/model"
)

const (
	timerPeriodic  = "discovery/periodic"
	timerDebounce  = "discovery/debounce"
	timerWelcome   = "discovery/welcome"
	timerSignature = "discovery/signature"
)

// actionCheckStart guards the idle state against stop/check/net_off
// arriving before Start: there is nothing to do, so this is a no-op.
func (e *Engine) actionCheckStart(ctx context.Context) error {
	return nil
}

// actionStart implements A_Start.
func (e *Engine) actionStart(ctx context.Context) error {
	e.pool.Reset()
	e.sendHelloGet(ctx)
	e.armPeriodic()
	e.armDebounce()

	e.mu.Lock()
	e.stopRequest = false
	e.helloMprRequest = false
	e.helloNetonReq = false
	e.mu.Unlock()
	return nil
}

// actionStop implements A_Stop.
func (e *Engine) actionStop(ctx context.Context) error {
	e.cancelPeriodic()
	e.cancelDebounce()
	e.cancelWelcome()
	e.cancelSignature()
	e.cfg.Lock.Release(serviceHolder)
	e.report(model.DiscoveryStopped, nil)

	e.mu.Lock()
	e.stopRequest = false
	e.mu.Unlock()
	return nil
}

// actionCheckConditions implements A_CheckConditions.
func (e *Engine) actionCheckConditions(ctx context.Context) error {
	e.mu.Lock()
	stop := e.stopRequest
	mpr := e.helloMprRequest
	neton := e.helloNetonReq
	debounce := e.debounce
	e.mu.Unlock()

	if stop {
		e.enqueue(EventStop)
		return nil
	}
	if mpr && !debounce {
		e.pool.Reset()
		e.sendHelloGet(ctx)
		e.armDebounce()
		e.mu.Lock()
		e.helloMprRequest = false
		e.mu.Unlock()
		return nil
	}
	if neton && !debounce {
		e.sendHelloGet(ctx)
		e.armDebounce()
		e.mu.Lock()
		e.helloNetonReq = false
		e.mu.Unlock()
		return nil
	}
	if !e.pool.NewListEmpty() {
		e.enqueue(EventHelloStatus)
		return nil
	}
	e.armPeriodic()
	return nil
}

// actionEvalHello implements A_EvalHello.
func (e *Engine) actionEvalHello(ctx context.Context) error {
	sig, ok := e.pool.PopNew()
	if !ok {
		return nil
	}
	e.mu.Lock()
	e.currentSig = sig
	e.mu.Unlock()

	switch e.cfg.Evaluator.Evaluate(sig.Clone()) {
	case model.EvaluatorWelcome:
		e.enqueue(EventResNodeOK)
	case model.EvaluatorUnique:
		e.enqueue(EventResCheckUnique)
	default:
		// Any out-of-range decision is treated as reject.
		e.enqueue(EventResUnknown)
	}
	return nil
}

// actionUnknown implements A_Unknown.
func (e *Engine) actionUnknown(ctx context.Context) error {
	e.enqueue(EventCheck)
	return nil
}

// actionWelcome implements A_Welcome.
func (e *Engine) actionWelcome(ctx context.Context) error {
	sig := e.getCurrentSig()
	target := welcomeTargetAddress(sig)
	if err := e.cfg.Transport.WelcomeStartResult(ctx, target, model.WelcomeDontCareNodeAddress, model.SignatureVersion); err != nil {
		e.cfg.Logger.Info("discovery welcome send failed", "error", err, "errClass", e.cfg.ErrClassifier.Classify(err))
	}
	e.armWelcome()
	return nil
}

// actionCheckUnique implements A_CheckUnique.
func (e *Engine) actionCheckUnique(ctx context.Context) error {
	sig := e.getCurrentSig()
	if err := e.cfg.Transport.SignatureGet(ctx, sig.NodeAddress); err != nil {
		e.cfg.Logger.Info("discovery signature.get send failed", "error", err, "errClass", e.cfg.ErrClassifier.Classify(err))
	}
	e.armSignature()
	return nil
}

// actionWelcomeOK implements A_WelcomeOk.
func (e *Engine) actionWelcomeOK(ctx context.Context) error {
	e.cancelWelcome()
	sig := e.getCurrentSig()
	e.report(model.DiscoveryWelcomeSuccess, &sig)
	if sig.IsLocalINIC() {
		e.sendHelloGet(ctx)
	}
	e.enqueue(EventCheck)
	return nil
}

// actionWelcomeBad implements A_WelcomeBad.
func (e *Engine) actionWelcomeBad(ctx context.Context) error {
	e.cancelWelcome()
	e.mu.Lock()
	e.helloMprRequest = true
	e.mu.Unlock()
	e.armDebounce()
	e.enqueue(EventCheck)
	return nil
}

// actionWelcomeTimeout implements A_WelcomeTimeout.
func (e *Engine) actionWelcomeTimeout(ctx context.Context) error {
	e.cancelWelcome()
	sig := e.getCurrentSig()
	target := welcomeTargetAddress(sig)
	if err := e.cfg.Transport.ExcInit(ctx, target); err != nil {
		e.cfg.Logger.Info("discovery exc.init send failed", "error", err, "errClass", e.cfg.ErrClassifier.Classify(err))
	}
	e.mu.Lock()
	e.helloMprRequest = true
	e.mu.Unlock()
	e.armDebounce()
	e.enqueue(EventCheck)
	return nil
}

// actionHelloTimeout implements A_HelloTimeout: the periodic 5s sweep
// timer fired while idly waiting in check_hello for replies.
func (e *Engine) actionHelloTimeout(ctx context.Context) error {
	e.sendHelloGet(ctx)
	e.armPeriodic()
	return nil
}

// actionSigOK implements A_SigOk: the Signature.Get probe replied,
// confirming the position-address collision.
func (e *Engine) actionSigOK(ctx context.Context) error {
	e.cancelSignature()
	sig := e.getCurrentSig()
	e.report(model.DiscoveryMulti, &sig)
	e.enqueue(EventCheck)
	return nil
}

// actionSigTimeout implements A_SigTimeout. Preserves the literal
// wait_ping --timeout--> wait_welcome transition (spec §9 Open Question
// (a)): a Signature.Get timeout retries Welcome rather than abandoning the
// exchange.
func (e *Engine) actionSigTimeout(ctx context.Context) error {
	e.cancelSignature()
	sig := e.getCurrentSig()
	target := welcomeTargetAddress(sig)
	if err := e.cfg.Transport.WelcomeStartResult(ctx, target, model.WelcomeDontCareNodeAddress, model.SignatureVersion); err != nil {
		e.cfg.Logger.Info("discovery welcome retry send failed", "error", err, "errClass", e.cfg.ErrClassifier.Classify(err))
	}
	e.armWelcome()
	return nil
}

// actionSigError implements A_SigError: a severed command channel or
// spurious Signature.Error. The only path from a running state back to
// idle via error; no automatic retry.
func (e *Engine) actionSigError(ctx context.Context) error {
	e.cancelSignature()
	e.cancelPeriodic()
	e.cancelDebounce()
	e.cfg.Lock.Release(serviceHolder)
	e.report(model.DiscoveryError, nil)
	return nil
}

// actionNetOff implements A_NetOff.
func (e *Engine) actionNetOff(ctx context.Context) error {
	e.pool.Reset()
	e.cancelPeriodic()
	e.report(model.DiscoveryNetOff, nil)
	e.enqueue(EventCheck)
	return nil
}

func welcomeTargetAddress(sig model.Signature) uint16 {
	if sig.IsLocalINIC() {
		return model.LocalINICTargetAddress
	}
	return sig.NodePositionAddress
}

func (e *Engine) getCurrentSig() model.Signature {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentSig
}

func (e *Engine) report(code model.DiscoveryReportCode, sig *model.Signature) {
	if e.cfg.Report == nil {
		return
	}
	e.cfg.Report(code, sig)
}

func (e *Engine) sendHelloGet(ctx context.Context) {
	if err := e.cfg.Transport.HelloGet(ctx, model.SignatureVersion); err != nil {
		e.cfg.Logger.Info("discovery hello.get send failed", "error", err, "errClass", e.cfg.ErrClassifier.Classify(err))
	}
}

func (e *Engine) armPeriodic() {
	e.cfg.Scheduler.ArmTimer(timerPeriodic, model.HelloPeriodicInterval, func() {
		e.enqueue(EventTimeout)
	})
}

func (e *Engine) cancelPeriodic() {
	e.cfg.Scheduler.CancelTimer(timerPeriodic)
}

func (e *Engine) armDebounce() {
	e.cfg.Scheduler.ArmTimer(timerDebounce, model.HelloDebounceInterval, func() {
		e.mu.Lock()
		e.debounce = false
		pending := e.helloMprRequest || e.helloNetonReq
		e.mu.Unlock()
		if pending {
			e.enqueue(EventCheck)
		}
	})
	e.mu.Lock()
	e.debounce = true
	e.mu.Unlock()
}

func (e *Engine) cancelDebounce() {
	e.cfg.Scheduler.CancelTimer(timerDebounce)
	e.mu.Lock()
	e.debounce = false
	e.mu.Unlock()
}

func (e *Engine) armWelcome() {
	e.cfg.Scheduler.ArmTimer(timerWelcome, model.WelcomeSupervisionTimeout, func() {
		e.enqueue(EventTimeout)
	})
}

func (e *Engine) cancelWelcome() {
	e.cfg.Scheduler.CancelTimer(timerWelcome)
}

func (e *Engine) armSignature() {
	e.cfg.Scheduler.ArmTimer(timerSignature, model.SignatureSupervisionTimeout, func() {
		e.enqueue(EventTimeout)
	})
}

func (e *Engine) cancelSignature() {
	e.cfg.Scheduler.CancelTimer(timerSignature)
}
