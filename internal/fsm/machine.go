// SPDX-License-Identifier: GPL-3.0-or-later

package fsm

import (
	"context"
	"sync"
)

// Machine evaluates a [Table] against a single current state.
//
// A transition's action runs to completion before the next state is
// installed; any events the action posts as a side effect are serviced by
// the caller on a later scheduler tick, never re-entrantly from within
// [Machine.Fire] itself — this matches the single-threaded cooperative
// scheduler's atomicity rule.
//
// Safe for concurrent use; [Machine.Fire] serializes against [Machine.State].
type Machine struct {
	table Table

	mu    sync.Mutex
	state int
}

// NewMachine returns a [*Machine] evaluating table, starting in state initial.
func NewMachine(table Table, initial int) *Machine {
	return &Machine{table: table, state: initial}
}

// State returns the machine's current state.
func (m *Machine) State() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire evaluates the table cell for the machine's current state and the
// given event. If the cell is blank (nil action), Fire is a no-op and
// returns nil. Otherwise the action runs, and on success the machine
// transitions to the cell's next state; on error the machine's state is
// left unchanged and the error is returned to the caller.
func (m *Machine) Fire(ctx context.Context, event int) error {
	m.mu.Lock()
	state := m.state
	cell := m.table[state][event]
	m.mu.Unlock()

	if cell.Action == nil {
		return nil
	}
	if err := cell.Action(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = cell.Next
	m.mu.Unlock()
	return nil
}

// SetState forcibly installs state, bypassing the table. Used by tests and
// by termination paths that must reset the machine without running a
// transition's action.
func (m *Machine) SetState(state int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}
