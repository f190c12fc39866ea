// SPDX-License-Identifier: GPL-3.0-or-later

// Package routemgr implements the Route Management (RTM) engine: a
// cooperative scheduler that walks a flat route table, builds and tears
// down source/sink endpoints through an Endpoint Manager, classifies XRM
// faults by severity, and periodically refreshes each built route's
// Arrival-Time-Delay value.
package routemgr

import (
	"context"
	"time"

	"github.com/bassosimone/ucsmgr/internal/epm"
	"github.com/bassosimone/ucsmgr/internal/sched"
	"github.com/bassosimone/ucsmgr/model"
	"github.com/bassosimone/ucsmgr/routemgr/atd"
)

// ReportFunc receives RTM report codes for a specific route. route is the
// affected route for every code, including [model.RouteProcessStop]
// reports emitted during termination.
type ReportFunc func(code model.RouteReportCode, route *model.Route)

// Config holds RTM engine configuration.
//
// Pass this to [NewEngine] to wire dependencies. All fields except
// Manager, Scheduler, and Report have sensible defaults set by
// [NewConfig]; those have no safe default and must be set by the caller.
type Config struct {
	// Manager builds and destroys endpoints on the route manager's
	// behalf. Required.
	Manager epm.Manager

	// ATD runs Arrival-Time-Delay probes against built routes. Required
	// only if any route has ATD enabled; a nil ATD with no ATD-enabled
	// routes is fine.
	ATD atd.Prober

	// Report delivers RTM report codes to the embedding application.
	Report ReportFunc

	// Scheduler is the shared cooperative scheduler this engine registers
	// against. Required.
	Scheduler *sched.Scheduler

	// SeverityClassifier classifies XRM results for build/destroy fault
	// handling.
	//
	// Set by [NewConfig] to [DefaultSeverityClassifier].
	SeverityClassifier SeverityClassifier

	// Logger receives structured lifecycle/protocol span events.
	//
	// Set by [NewConfig] to [model.DefaultSLogger].
	Logger model.SLogger

	// TimeNow returns the current time, used for span timing.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// TickInterval is the period of the route-tick timer that advances
	// the eligibility cursor through the route table.
	//
	// Set by [NewConfig] to [model.RouteTickInterval].
	TickInterval time.Duration

	// Priority is this service's scheduler dispatch priority; lower
	// values dispatch first.
	//
	// Set by [NewConfig] to 250, per spec.
	Priority int

	// BuildResourcesFunc, if set, backs [Engine.BuildResources]'s opaque
	// passthrough to the INIC resource-building command. Left nil by
	// [NewConfig]; callers of BuildResources receive
	// [model.ErrNotInitialized] until one is configured.
	BuildResourcesFunc func(ctx context.Context, nodeAddr uint16, index int, cb func(error)) error
}

// NewConfig returns a [*Config] with sensible defaults. Manager, Report,
// and Scheduler still need to be set before use.
func NewConfig() *Config {
	return &Config{
		SeverityClassifier: DefaultSeverityClassifier,
		Logger:             model.DefaultSLogger(),
		TimeNow:            time.Now,
		TickInterval:       model.RouteTickInterval,
		Priority:           250,
	}
}
