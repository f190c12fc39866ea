// SPDX-License-Identifier: GPL-3.0-or-later

package epm

import (
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
)

// SLogger is the subset of [model.SLogger] this package depends on. Defined
// locally to avoid an import cycle with the model package.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// LogBuildStart logs the start of an endpoint build operation. conn is an
// optional diagnostic connection (e.g. the transport carrying EXC frames to
// the INIC); it may be nil.
func LogBuildStart(logger SLogger, spanID, endpointID string, connectionLabel uint16, conn net.Conn, t0 time.Time) {
	logger.Info(
		"buildStart",
		slog.String("spanID", spanID),
		slog.String("endpointID", endpointID),
		slog.Uint64("connectionLabel", uint64(connectionLabel)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.Time("t", t0),
	)
}

// LogBuildDone logs the completion of an endpoint build operation.
func LogBuildDone(logger SLogger, spanID, endpointID string, result Result, conn net.Conn, t0 time.Time, now time.Time) {
	logger.Info(
		"buildDone",
		slog.String("spanID", spanID),
		slog.String("endpointID", endpointID),
		slog.Int("resultCode", int(result.Code)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.Time("t0", t0),
		slog.Time("t", now),
	)
}

// LogDestroyStart logs the start of an endpoint destroy operation.
func LogDestroyStart(logger SLogger, spanID, endpointID string, t0 time.Time) {
	logger.Info(
		"destroyStart",
		slog.String("spanID", spanID),
		slog.String("endpointID", endpointID),
		slog.Time("t", t0),
	)
}

// LogDestroyDone logs the completion of an endpoint destroy operation.
func LogDestroyDone(logger SLogger, spanID, endpointID string, result Result, t0 time.Time, now time.Time) {
	logger.Info(
		"destroyDone",
		slog.String("spanID", spanID),
		slog.String("endpointID", endpointID),
		slog.Int("resultCode", int(result.Code)),
		slog.Time("t0", t0),
		slog.Time("t", now),
	)
}
