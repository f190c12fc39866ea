// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import "github.com/bassosimone/ucsmgr/internal/fsm"

// ND states.
const (
	StateIdle = iota
	StateCheckHello
	StateWaitEval
	StateWaitWelcome
	StateWaitPing
)

// ND events. EventNil never appears as a table cell target; it exists so
// the event space matches the spec's literal count of 14.
const (
	EventNil = iota
	EventStart
	EventStop
	EventCheck
	EventNetOff
	EventHelloStatus
	EventResNodeOK
	EventResUnknown
	EventResCheckUnique
	EventWelcomeSuccess
	EventWelcomeNosuccess
	EventSignatureSuccess
	EventTimeout
	EventSignatureError

	numEvents
)

// buildTable constructs the literal 5×14 state table from spec §4.1,
// bound to e's action methods. Built once per engine in [NewEngine]; the
// shape below must match the spec's table cell for cell — do not
// "simplify" blank cells away, they document that the event is ignored in
// that state.
func buildTable(e *Engine) fsm.Table {
	t := make(fsm.Table, 5)
	for i := range t {
		t[i] = make([]fsm.Transition, numEvents)
	}

	t[StateIdle][EventStart] = fsm.Transition{Action: e.actionStart, Next: StateCheckHello}
	t[StateIdle][EventStop] = fsm.Transition{Action: e.actionCheckStart, Next: StateIdle}
	t[StateIdle][EventCheck] = fsm.Transition{Action: e.actionCheckStart, Next: StateIdle}
	t[StateIdle][EventNetOff] = fsm.Transition{Action: e.actionCheckStart, Next: StateIdle}

	t[StateCheckHello][EventStop] = fsm.Transition{Action: e.actionStop, Next: StateIdle}
	t[StateCheckHello][EventCheck] = fsm.Transition{Action: e.actionCheckConditions, Next: StateCheckHello}
	t[StateCheckHello][EventNetOff] = fsm.Transition{Action: e.actionNetOff, Next: StateCheckHello}
	t[StateCheckHello][EventHelloStatus] = fsm.Transition{Action: e.actionEvalHello, Next: StateWaitEval}
	t[StateCheckHello][EventTimeout] = fsm.Transition{Action: e.actionHelloTimeout, Next: StateCheckHello}

	t[StateWaitEval][EventNetOff] = fsm.Transition{Action: e.actionNetOff, Next: StateCheckHello}
	t[StateWaitEval][EventResNodeOK] = fsm.Transition{Action: e.actionWelcome, Next: StateWaitWelcome}
	t[StateWaitEval][EventResUnknown] = fsm.Transition{Action: e.actionUnknown, Next: StateCheckHello}
	t[StateWaitEval][EventResCheckUnique] = fsm.Transition{Action: e.actionCheckUnique, Next: StateWaitPing}

	t[StateWaitWelcome][EventNetOff] = fsm.Transition{Action: e.actionNetOff, Next: StateCheckHello}
	t[StateWaitWelcome][EventWelcomeSuccess] = fsm.Transition{Action: e.actionWelcomeOK, Next: StateCheckHello}
	t[StateWaitWelcome][EventWelcomeNosuccess] = fsm.Transition{Action: e.actionWelcomeBad, Next: StateCheckHello}
	t[StateWaitWelcome][EventTimeout] = fsm.Transition{Action: e.actionWelcomeTimeout, Next: StateCheckHello}

	t[StateWaitPing][EventNetOff] = fsm.Transition{Action: e.actionNetOff, Next: StateCheckHello}
	t[StateWaitPing][EventSignatureSuccess] = fsm.Transition{Action: e.actionSigOK, Next: StateCheckHello}
	// Signature.Get timeout retries Welcome rather than returning to
	// check_hello. Spec §9 Open Question (a): ambiguous intent, preserved
	// literally.
	t[StateWaitPing][EventTimeout] = fsm.Transition{Action: e.actionSigTimeout, Next: StateWaitWelcome}
	t[StateWaitPing][EventSignatureError] = fsm.Transition{Action: e.actionSigError, Next: StateIdle}

	return t
}
