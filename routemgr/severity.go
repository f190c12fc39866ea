// SPDX-License-Identifier: GPL-3.0-or-later

package routemgr

import "github.com/bassosimone/ucsmgr/internal/epm"

// Severity is the outcome of classifying an endpoint's last XRM result.
type Severity int

const (
	// SeverityNone means the result carries no fault (success, or a code
	// the classifier does not act on).
	SeverityNone Severity = iota

	// SeverityUncritical means the fault is transient: bump the
	// endpoint's retry count and let the next tick retry.
	SeverityUncritical

	// SeverityCritical means the route must be driven to deteriorated.
	SeverityCritical
)

// maxRetries is the retry-count saturation point (spec §4.2): once an
// endpoint has retried this many times, any further uncritical-by-rule
// result is re-classified as critical instead.
const maxRetries = 0xFF

// SeverityClassifier classifies an endpoint's XRM completion/fault result
// for the route manager's build/destroy and fault-recovery logic.
//
// Generalizes the teacher's [model.ErrClassifier] seam
// (Classify(error) string) to this domain's result taxonomy.
type SeverityClassifier interface {
	Classify(result epm.Result, retryCount uint8) Severity
}

// SeverityClassifierFunc adapts a function to the [SeverityClassifier]
// interface.
type SeverityClassifierFunc func(result epm.Result, retryCount uint8) Severity

var _ SeverityClassifier = SeverityClassifierFunc(nil)

// Classify implements [SeverityClassifier].
func (f SeverityClassifierFunc) Classify(result epm.Result, retryCount uint8) Severity {
	return f(result, retryCount)
}

// DefaultSeverityClassifier implements the exhaustive classification rules
// of spec §4.2, ported from the original firmware's
// Rtm_CheckEpResultSeverity (ucs_rtm.c).
var DefaultSeverityClassifier = SeverityClassifierFunc(classify)

func classify(result epm.Result, retryCount uint8) Severity {
	switch result.Code {
	case epm.ResultSuccessBuild, epm.ResultSuccessDestroy:
		return SeverityNone

	case epm.ResultErrConfig:
		return SeverityCritical

	case epm.ResultErrBuild, epm.ResultErrDestroy, epm.ResultErrSync:
		// The original treats ERR_BUILD/ERR_DESTROY/ERR_SYNC identically
		// (spec §9 Open Question (b)); preserved here.
		return classifyLayered(result, retryCount)

	default:
		return SeverityNone
	}
}

func classifyLayered(result epm.Result, retryCount uint8) Severity {
	saturated := retryCount == maxRetries

	switch result.ResultType {
	case epm.ResultTypeTX:
		return classifyTX(result.TX, saturated)
	case epm.ResultTypeTarget:
		return classifyTarget(result, saturated)
	case epm.ResultTypeInternal:
		return classifyInternal(result.Internal, saturated)
	default:
		return SeverityNone
	}
}

func classifyTX(tx epm.TXError, saturated bool) Severity {
	switch tx {
	case epm.TXErrorCfgNoRcvr, epm.TXErrorFatalOA:
		return SeverityCritical
	case epm.TXErrorUnknown, epm.TXErrorFatalWT, epm.TXErrorTimeout,
		epm.TXErrorBF, epm.TXErrorCRC, epm.TXErrorNATrans,
		epm.TXErrorACK, epm.TXErrorID:
		if saturated {
			return SeverityCritical
		}
		return SeverityUncritical
	default:
		return SeverityNone
	}
}

func classifyTarget(result epm.Result, saturated bool) Severity {
	// Exception: a NetworkSocketCreate race (ERR_SYSTEM + detail tail
	// {0x04, 0x40} on a nw_socket resource) is always uncritical, not the
	// generic ERR_SYSTEM critical case below — the original firmware does
	// not gate this exception on retry saturation either.
	if result.Target == epm.TargetErrorSystem &&
		result.Resource == epm.ResourceNWSocket &&
		result.TargetErrorTail == [2]byte{0x04, 0x40} {
		return SeverityUncritical
	}

	switch result.Target {
	case epm.TargetErrorConfiguration, epm.TargetErrorStandard, epm.TargetErrorSystem:
		return SeverityCritical
	case epm.TargetErrorBusy, epm.TargetErrorTimeout, epm.TargetErrorProcessing:
		if saturated {
			return SeverityCritical
		}
		return SeverityUncritical
	default:
		return SeverityNone
	}
}

func classifyInternal(internal epm.InternalError, saturated bool) Severity {
	switch internal {
	case epm.InternalErrorNotAvailable, epm.InternalErrorNotSupported,
		epm.InternalErrorParam, epm.InternalErrorNotInitialized:
		return SeverityCritical
	case epm.InternalErrorBufferOverflow, epm.InternalErrorAPILocked,
		epm.InternalErrorInvalidShadow:
		if saturated {
			return SeverityCritical
		}
		return SeverityUncritical
	default:
		return SeverityNone
	}
}
