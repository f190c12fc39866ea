// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import "github.com/bassosimone/ucsmgr/model"

// Evaluator classifies a reporting node's signature. Any return value
// outside [model.EvaluatorDecision]'s defined range is treated as
// [model.EvaluatorReject], per the FSM's A_EvalHello action.
type Evaluator interface {
	Evaluate(sig model.Signature) model.EvaluatorDecision
}

// EvaluatorFunc adapts a plain function to [Evaluator].
type EvaluatorFunc func(sig model.Signature) model.EvaluatorDecision

// Evaluate implements [Evaluator].
func (f EvaluatorFunc) Evaluate(sig model.Signature) model.EvaluatorDecision {
	return f(sig)
}
