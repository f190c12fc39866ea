// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import "context"

// Transport sends the EXC commands ND needs onto the INIC command channel.
// The wire encoding and the INIC layer itself are black boxes from this
// engine's point of view; Transport is the seam an embedder implements
// against its own driver.
type Transport interface {
	// HelloGet broadcasts Hello.Get at the given signature version.
	HelloGet(ctx context.Context, signatureVersion int) error

	// WelcomeStartResult sends Welcome.StartResult to targetAddress, with
	// dontCareAddress carried in the "don't care" node-address field.
	WelcomeStartResult(ctx context.Context, targetAddress, dontCareAddress uint16, signatureVersion int) error

	// SignatureGet sends Signature.Get to nodeAddress to resolve a
	// suspected position-address collision.
	SignatureGet(ctx context.Context, nodeAddress uint16) error

	// ExcInit sends Exc.Init to targetAddress.
	ExcInit(ctx context.Context, targetAddress uint16) error
}
