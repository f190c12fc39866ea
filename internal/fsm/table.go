// SPDX-License-Identifier: GPL-3.0-or-later

// Package fsm implements a dense state × event → (action, next_state) table
// evaluator, used by the node discovery engine.
//
// The table is data, not control flow: the engine fills in its [Table]
// cell by cell in one place so the transitions are inspectable and
// diffable against their authoritative state-table documentation, rather
// than scattered across a chain of if/switch statements.
package fsm

import "context"

// ActionFunc runs the side effect associated with one (state, event)
// transition. A nil ActionFunc models a blank table cell: no action, the
// machine stays in its current state.
type ActionFunc func(ctx context.Context) error

// Transition is one table cell: the action to run (nil for a blank cell)
// and the state to install once the action completes.
//
// For a blank cell (no action, stay), Next is conventionally the cell's own
// row index; it is never consulted because [Machine.Fire] skips state
// installation entirely when Action is nil.
type Transition struct {
	Action ActionFunc
	Next   int
}

// Table is a dense state × event transition table: Table[state][event].
//
// Built once per engine instance from a fixed list of cell assignments
// (see discovery/table.go), so it can be read alongside the state-table
// documentation it implements.
type Table [][]Transition
