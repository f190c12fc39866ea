// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Node is an application-owned descriptor for a node discovered on the ring.
//
// The application allocates and owns Node values for the lifetime of the
// process and flips [Node.Available] in response to the reports the
// discovery engine emits (see the discovery package's report callback);
// the discovery engine itself never writes to a Node.
type Node struct {
	// Signature identifies the node. Set once, at admission time.
	Signature Signature

	// Available governs whether the route manager may attempt to build
	// routes touching this node. Flipped by the application based on
	// discovery reports (welcome_success / net_off / error).
	Available bool
}

// NewNode returns a [*Node] for the given signature, not yet available.
func NewNode(sig Signature) *Node {
	return &Node{Signature: sig}
}
