// SPDX-License-Identifier: GPL-3.0-or-later

// Package discovery implements the Node Discovery (ND) engine: the finite
// state machine that broadcasts Hello, classifies replies through an
// application-supplied evaluator, admits nodes via Welcome, and resolves
// position-address collisions via Signature.Get.
package discovery

import (
	"time"

	"github.com/bassosimone/ucsmgr/internal/epm"
	"github.com/bassosimone/ucsmgr/internal/sched"
	"github.com/bassosimone/ucsmgr/model"
)

// ReportFunc receives ND report codes. sig is nil when the report carries
// no associated signature (e.g. [model.DiscoveryStopped]).
type ReportFunc func(code model.DiscoveryReportCode, sig *model.Signature)

// Config holds ND engine configuration.
//
// Pass this to [NewEngine] to wire dependencies. All fields except
// Transport, Evaluator, Report, Scheduler, and Lock have sensible
// defaults set by [NewConfig]; those have no safe default and must be
// set by the caller.
type Config struct {
	// Transport sends Hello/Welcome/Signature/Init EXC commands.
	Transport Transport

	// Evaluator classifies each reporting node's signature.
	Evaluator Evaluator

	// Report delivers ND report codes to the embedding application.
	Report ReportFunc

	// Scheduler is the shared cooperative scheduler this engine registers
	// against. Required.
	Scheduler *sched.Scheduler

	// Lock is ND's own INIC command-channel mutex (spec's service_locked):
	// at most one Start/Stop session holds it at a time, acquired on Start
	// and released on Stop or a Signature.Error. The original firmware
	// scopes this flag to Node Discovery alone (ucs_nodedis.c); the Route
	// Management engine never reads or writes it. Required.
	Lock *epm.ChannelLock

	// Logger receives structured lifecycle/protocol span events.
	//
	// Set by [NewConfig] to [model.DefaultSLogger].
	Logger model.SLogger

	// ErrClassifier classifies Transport send errors for structured
	// logging.
	//
	// Set by [NewConfig] to [model.DefaultErrClassifier].
	ErrClassifier model.ErrClassifier

	// TimeNow returns the current time, used for span timing.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// PoolCapacity bounds the ND node-slot pool.
	//
	// Set by [NewConfig] to 64.
	PoolCapacity int

	// Priority is this service's scheduler dispatch priority; lower values
	// dispatch first.
	//
	// Set by [NewConfig] to 248, per spec.
	Priority int
}

// NewConfig returns a [*Config] with sensible defaults. Transport,
// Evaluator, Report, Scheduler, and Lock still need to be set before use.
func NewConfig() *Config {
	return &Config{
		Logger:        model.DefaultSLogger(),
		ErrClassifier: model.DefaultErrClassifier,
		TimeNow:       time.Now,
		PoolCapacity:  64,
		Priority:      248,
	}
}
