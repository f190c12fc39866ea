// SPDX-License-Identifier: GPL-3.0-or-later

package epm

import "sync"

// ChannelLock models exclusive ownership of the INIC command channel
// (spec's service_locked flag), replacing the bare boolean with a proper
// acquire/release primitive carrying a holder identity, per the redesign
// note in spec §9.
//
// At most one of the Node Discovery and Route Management engines may hold
// the channel at a time; ND acquires it on start and releases it on stop,
// a spurious Signature.Error, or termination.
type ChannelLock struct {
	mu     sync.Mutex
	holder string
}

// TryAcquire attempts to acquire the lock for holder. Returns true on
// success; false if already held by a different holder.
func (l *ChannelLock) TryAcquire(holder string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" && l.holder != holder {
		return false
	}
	l.holder = holder
	return true
}

// Release releases the lock if currently held by holder. Releasing a lock
// not held by holder is a no-op.
func (l *ChannelLock) Release(holder string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == holder {
		l.holder = ""
	}
}

// Locked reports whether the channel is currently held by anyone.
func (l *ChannelLock) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder != ""
}

// Holder returns the identity of the current holder, or "" if unlocked.
func (l *ChannelLock) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}
