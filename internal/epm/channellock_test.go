// SPDX-License-Identifier: GPL-3.0-or-later

package epm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelLockAcquireRelease(t *testing.T) {
	var lock ChannelLock
	require.False(t, lock.Locked())

	require.True(t, lock.TryAcquire("nd"))
	assert.True(t, lock.Locked())
	assert.Equal(t, "nd", lock.Holder())

	// A different holder cannot acquire while held.
	assert.False(t, lock.TryAcquire("rtm"))

	// The same holder can re-acquire (idempotent).
	assert.True(t, lock.TryAcquire("nd"))

	lock.Release("nd")
	assert.False(t, lock.Locked())
	assert.Equal(t, "", lock.Holder())
}

func TestChannelLockReleaseByWrongHolderIsNoop(t *testing.T) {
	var lock ChannelLock
	require.True(t, lock.TryAcquire("nd"))

	lock.Release("rtm")
	assert.True(t, lock.Locked(), "release from a non-holder must not release the lock")
}

func TestChannelLockAfterRelease(t *testing.T) {
	var lock ChannelLock
	require.True(t, lock.TryAcquire("nd"))
	lock.Release("nd")

	require.True(t, lock.TryAcquire("rtm"))
	assert.Equal(t, "rtm", lock.Holder())
}
