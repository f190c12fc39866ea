// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "github.com/bassosimone/ucsmgr/internal/epm"

// EndpointKind distinguishes the four endpoint roles a route can reference.
type EndpointKind int

const (
	// EndpointSource is a streaming source endpoint.
	EndpointSource EndpointKind = iota

	// EndpointSink is a streaming sink endpoint.
	EndpointSink

	// EndpointDCSource is a data-channel source endpoint.
	EndpointDCSource

	// EndpointDCSink is a data-channel sink endpoint.
	EndpointDCSink
)

// String implements [fmt.Stringer].
func (k EndpointKind) String() string {
	switch k {
	case EndpointSource:
		return "source"
	case EndpointSink:
		return "sink"
	case EndpointDCSource:
		return "dc_source"
	case EndpointDCSink:
		return "dc_sink"
	default:
		return "unknown"
	}
}

// EndpointState is the lifecycle state of an [Endpoint].
//
// Lifecycle: idle -> xrm_processing -> built, with built -> xrm_processing
// -> idle on destroy.
type EndpointState int

const (
	// EndpointIdle is the endpoint's resting state: not built, no EPM
	// operation outstanding.
	EndpointIdle EndpointState = iota

	// EndpointXRMProcessing means a build or destroy operation is
	// outstanding at the Endpoint Manager.
	EndpointXRMProcessing

	// EndpointBuilt means the endpoint's on-wire resources are allocated
	// and usable.
	EndpointBuilt
)

// String implements [fmt.Stringer].
func (s EndpointState) String() string {
	switch s {
	case EndpointIdle:
		return "idle"
	case EndpointXRMProcessing:
		return "xrm_processing"
	case EndpointBuilt:
		return "built"
	default:
		return "unknown"
	}
}

// Endpoint is an application-owned descriptor for a source or sink
// referenced by one or more [Route] entries.
//
// The core mutates State, ConnectionLabel (only when propagating a sink's
// label from its route's source during build), LastResult, RetryCount, and
// ObserverAttached; the application owns everything else for the process
// lifetime.
type Endpoint struct {
	// Kind is the endpoint's role.
	Kind EndpointKind

	// OwningNode is the node this endpoint is hosted on.
	OwningNode *Node

	// ConnectionLabel is the static or propagated connection label. Valid
	// range when non-zero: [0x800C, 0x817F] (see model.ConnectionLabelMin/Max).
	ConnectionLabel uint16

	// State is the endpoint's current lifecycle state.
	State EndpointState

	// ObserverAttached records whether a deterioration observer is
	// currently registered with the Endpoint Manager for this endpoint.
	// Guards idempotent attachment across reconnection, per spec's
	// observer-lifetime design note.
	ObserverAttached bool

	// LastResult is the last completion/fault code reported by the
	// Endpoint Manager for this endpoint. Feeds the severity classifier.
	LastResult epm.Result

	// RetryCount counts consecutive uncritical failures since the last
	// success. Saturates at 0xFF, at which point the severity classifier
	// re-classifies the error as critical.
	RetryCount uint8
}

// NewEndpoint returns an idle [*Endpoint] of the given kind on the given node.
func NewEndpoint(kind EndpointKind, node *Node) *Endpoint {
	return &Endpoint{Kind: kind, OwningNode: node}
}

// IsAvailable reports whether the endpoint's owning node is available.
func (e *Endpoint) IsAvailable() bool {
	return e.OwningNode != nil && e.OwningNode.Available
}
