// SPDX-License-Identifier: GPL-3.0-or-later

package routemgr

import (
	"testing"

	"github.com/bassosimone/ucsmgr/internal/epm"
	"github.com/stretchr/testify/assert"
)

func TestDefaultSeverityClassifierSuccess(t *testing.T) {
	assert.Equal(t, SeverityNone, DefaultSeverityClassifier.Classify(epm.Result{Code: epm.ResultSuccessBuild}, 0))
	assert.Equal(t, SeverityNone, DefaultSeverityClassifier.Classify(epm.Result{Code: epm.ResultSuccessDestroy}, 200))
}

func TestDefaultSeverityClassifierConfigErrorAlwaysCritical(t *testing.T) {
	assert.Equal(t, SeverityCritical, DefaultSeverityClassifier.Classify(epm.Result{Code: epm.ResultErrConfig}, 0))
}

func TestDefaultSeverityClassifierTXLayer(t *testing.T) {
	cases := []struct {
		name     string
		tx       epm.TXError
		retries  uint8
		expected Severity
	}{
		{"cfg_no_rcvr always critical", epm.TXErrorCfgNoRcvr, 0, SeverityCritical},
		{"fatal_oa always critical", epm.TXErrorFatalOA, 0, SeverityCritical},
		{"timeout uncritical below saturation", epm.TXErrorTimeout, 10, SeverityUncritical},
		{"timeout critical at saturation", epm.TXErrorTimeout, maxRetries, SeverityCritical},
		{"crc uncritical below saturation", epm.TXErrorCRC, 0, SeverityUncritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := epm.Result{Code: epm.ResultErrBuild, ResultType: epm.ResultTypeTX, TX: tc.tx}
			assert.Equal(t, tc.expected, DefaultSeverityClassifier.Classify(result, tc.retries))
		})
	}
}

func TestDefaultSeverityClassifierTargetLayer(t *testing.T) {
	cases := []struct {
		name     string
		target   epm.TargetError
		retries  uint8
		expected Severity
	}{
		{"configuration always critical", epm.TargetErrorConfiguration, 0, SeverityCritical},
		{"system always critical", epm.TargetErrorSystem, 0, SeverityCritical},
		{"busy uncritical below saturation", epm.TargetErrorBusy, 0, SeverityUncritical},
		{"busy critical at saturation", epm.TargetErrorBusy, maxRetries, SeverityCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := epm.Result{Code: epm.ResultErrDestroy, ResultType: epm.ResultTypeTarget, Target: tc.target}
			assert.Equal(t, tc.expected, DefaultSeverityClassifier.Classify(result, tc.retries))
		})
	}
}

func TestDefaultSeverityClassifierNWSocketRaceExceptionIgnoresSaturation(t *testing.T) {
	result := epm.Result{
		Code:            epm.ResultErrBuild,
		ResultType:      epm.ResultTypeTarget,
		Target:          epm.TargetErrorSystem,
		Resource:        epm.ResourceNWSocket,
		TargetErrorTail: [2]byte{0x04, 0x40},
	}
	assert.Equal(t, SeverityUncritical, DefaultSeverityClassifier.Classify(result, 0))
	assert.Equal(t, SeverityUncritical, DefaultSeverityClassifier.Classify(result, maxRetries))
}

func TestDefaultSeverityClassifierNWSocketOtherTailIsOrdinarySystemError(t *testing.T) {
	result := epm.Result{
		Code:            epm.ResultErrBuild,
		ResultType:      epm.ResultTypeTarget,
		Target:          epm.TargetErrorSystem,
		Resource:        epm.ResourceNWSocket,
		TargetErrorTail: [2]byte{0x01, 0x01},
	}
	assert.Equal(t, SeverityCritical, DefaultSeverityClassifier.Classify(result, 0))
}

func TestDefaultSeverityClassifierInternalLayer(t *testing.T) {
	cases := []struct {
		name     string
		internal epm.InternalError
		retries  uint8
		expected Severity
	}{
		{"param always critical", epm.InternalErrorParam, 0, SeverityCritical},
		{"not_initialized always critical", epm.InternalErrorNotInitialized, 0, SeverityCritical},
		{"invalid_shadow uncritical below saturation", epm.InternalErrorInvalidShadow, 0, SeverityUncritical},
		{"invalid_shadow critical at saturation", epm.InternalErrorInvalidShadow, maxRetries, SeverityCritical},
		{"api_locked uncritical below saturation", epm.InternalErrorAPILocked, 0, SeverityUncritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := epm.Result{Code: epm.ResultErrSync, ResultType: epm.ResultTypeInternal, Internal: tc.internal}
			assert.Equal(t, tc.expected, DefaultSeverityClassifier.Classify(result, tc.retries))
		})
	}
}
