// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// A span is a sequence of operations that can fail in a single, specific
// way. For example, a single Hello/Welcome exchange with one node, or a
// single ATD probe against one route.
//
// The span terminology is borrowed from OTel.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}

// NewRouteID returns a UUIDv7 suitable for identifying a route when the
// application does not supply a stable identifier of its own.
func NewRouteID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
