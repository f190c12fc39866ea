// SPDX-License-Identifier: GPL-3.0-or-later

package epm

import "context"

// ResultCode is the completion/fault code for a single endpoint build or
// destroy operation, as reported by the Endpoint Manager (EPM) or the
// Extended Resource Manager (XRM) underneath it.
//
// This is a black-box boundary (see spec §1, Out of scope): the EPM/XRM
// internals are not modeled, only the result taxonomy the route manager's
// severity classifier needs to read.
type ResultCode int

const (
	// ResultSuccessBuild reports a successful endpoint build.
	ResultSuccessBuild ResultCode = iota

	// ResultSuccessDestroy reports a successful endpoint destroy.
	ResultSuccessDestroy

	// ResultErrBuild reports a build failure; see [Result.ResultType] and
	// the nested detail fields for classification.
	ResultErrBuild

	// ResultErrDestroy reports a destroy failure.
	ResultErrDestroy

	// ResultErrSync reports a resynchronization failure.
	ResultErrSync

	// ResultErrConfig reports a configuration error. Always critical.
	ResultErrConfig
)

// ResultType further categorizes an ResultErrBuild/ResultErrDestroy/
// ResultErrSync failure by the layer it originated from.
type ResultType int

const (
	// ResultTypeNone applies to non-error or non-(Build/Destroy/Sync) codes.
	ResultTypeNone ResultType = iota

	// ResultTypeTX is a transmission-layer error (message status code).
	ResultTypeTX

	// ResultTypeTarget is an INIC target error (result code + detail bytes).
	ResultTypeTarget

	// ResultTypeInternal is an internal (host-side) error.
	ResultTypeInternal
)

// TXError enumerates the transmission-layer error codes the severity
// classifier distinguishes.
type TXError int

const (
	TXErrorNone TXError = iota
	TXErrorCfgNoRcvr
	TXErrorFatalOA
	TXErrorUnknown
	TXErrorFatalWT
	TXErrorTimeout
	TXErrorBF
	TXErrorCRC
	TXErrorNATrans
	TXErrorACK
	TXErrorID
)

// TargetResourceKind identifies the XRM resource kind a target error
// pertains to; only [ResourceNWSocket] participates in the nw_socket
// special case.
type TargetResourceKind int

const (
	ResourceUnspecified TargetResourceKind = iota
	ResourceNWSocket
)

// TargetError enumerates the INIC target error codes the severity
// classifier distinguishes.
type TargetError int

const (
	TargetErrorNone TargetError = iota
	TargetErrorSystem
	TargetErrorConfiguration
	TargetErrorStandard
	TargetErrorBusy
	TargetErrorTimeout
	TargetErrorProcessing
)

// InternalError enumerates the host-side internal error codes the
// severity classifier distinguishes.
type InternalError int

const (
	InternalErrorNone InternalError = iota
	InternalErrorNotAvailable
	InternalErrorNotSupported
	InternalErrorParam
	InternalErrorNotInitialized
	InternalErrorBufferOverflow
	InternalErrorAPILocked
	InternalErrorInvalidShadow
)

// Result is the completion/fault outcome of a single endpoint build or
// destroy operation.
type Result struct {
	// Code is the top-level completion/fault code.
	Code ResultCode

	// ResultType further categorizes Code when it is one of
	// ResultErrBuild/ResultErrDestroy/ResultErrSync.
	ResultType ResultType

	// TX is populated when ResultType is [ResultTypeTX].
	TX TXError

	// Target is populated when ResultType is [ResultTypeTarget].
	Target TargetError

	// TargetErrorTail carries the two trailing INIC result-detail bytes,
	// used only to recognize the nw_socket-create race
	// ([TargetErrorSystem] + tail {0x04, 0x40} + [ResourceNWSocket]).
	TargetErrorTail [2]byte

	// Resource is populated when ResultType is [ResultTypeTarget].
	Resource TargetResourceKind

	// Internal is populated when ResultType is [ResultTypeInternal].
	Internal InternalError
}

// Manager is the Endpoint Manager (EPM) facade: a black-box builder and
// destroyer of a single endpoint at a time, notifying the caller of
// completion by passing a [Result] to the callback registered through
// [Manager.Observe].
//
// This is an injectable seam (mirroring the teacher's [Dialer] interface)
// so the route manager can be unit tested against a fake implementation
// without a real EPM/XRM stack.
type Manager interface {
	// Build starts building the given endpoint, identified opaquely by
	// endpointID. The supplied connectionLabel is applied if non-zero.
	// Completion is reported asynchronously via the notify callback
	// registered through [Manager.Observe].
	Build(ctx context.Context, endpointID string, connectionLabel uint16) error

	// Destroy starts tearing down the given endpoint. Completion is
	// reported asynchronously via the notify callback registered through
	// [Manager.Observe].
	Destroy(ctx context.Context, endpointID string) error

	// Reset forces the endpoint's internal state machine back to idle,
	// breaking a perceived deadlock without waiting for EPM completion.
	Reset(endpointID string)

	// Observe registers a completion callback for the given endpoint,
	// replacing any prior registration (idempotent attachment). The
	// callback fires on the scheduler goroutine and must not block.
	Observe(endpointID string, notify func(Result))

	// Unobserve removes any completion callback registered for the
	// endpoint.
	Unobserve(endpointID string)

	// Shutdown notifies the manager that the network is no longer
	// available; outstanding operations should be abandoned.
	Shutdown()
}
