// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import "github.com/bassosimone/ucsmgr/model"

const poolNil = -1

// poolSlot is one slab entry. next links slots within whichever of
// new_list/unused_list currently owns the slot; the slot's membership is
// never tracked separately from that link, so "every slot lies in exactly
// one list" holds by construction.
type poolSlot struct {
	sig  model.Signature
	next int
}

// Pool is the ND node-slot pool: a fixed-capacity slab of signature
// holders partitioned across two intrusive singly-linked lists, newList
// (pending evaluation, FIFO) and unusedList (free pool). No slot is ever
// heap-allocated individually; only the backing slab is.
type Pool struct {
	slots []poolSlot

	newHead, newTail int
	unusedHead       int
}

// NewPool returns a [*Pool] with capacity slots, all starting in the
// unused list.
func NewPool(capacity int) *Pool {
	p := &Pool{slots: make([]poolSlot, capacity)}
	p.Reset()
	return p
}

// Capacity returns the pool's fixed slot count.
func (p *Pool) Capacity() int {
	return len(p.slots)
}

// Reset moves every slot back to the unused list, discarding any pending
// evaluations. Used by A_Start and A_NetOff.
func (p *Pool) Reset() {
	n := len(p.slots)
	for i := range p.slots {
		if i == n-1 {
			p.slots[i].next = poolNil
		} else {
			p.slots[i].next = i + 1
		}
	}
	if n == 0 {
		p.unusedHead = poolNil
	} else {
		p.unusedHead = 0
	}
	p.newHead = poolNil
	p.newTail = poolNil
}

// PushNew records sig as newly reported, appending it to the tail of the
// new list. Returns false if the pool has no free slot, in which case the
// report is dropped — the pool is sized to the maximum node count the
// embedding application expects, so exhaustion indicates misconfiguration
// rather than a condition ND itself recovers from.
func (p *Pool) PushNew(sig model.Signature) bool {
	if p.unusedHead == poolNil {
		return false
	}

	idx := p.unusedHead
	p.unusedHead = p.slots[idx].next

	p.slots[idx].sig = sig
	p.slots[idx].next = poolNil

	if p.newTail == poolNil {
		p.newHead = idx
		p.newTail = idx
	} else {
		p.slots[p.newTail].next = idx
		p.newTail = idx
	}
	return true
}

// PopNew removes and returns the head of the new list, moving its slot to
// the unused list. Returns false if the new list is empty.
func (p *Pool) PopNew() (model.Signature, bool) {
	if p.newHead == poolNil {
		return model.Signature{}, false
	}

	idx := p.newHead
	sig := p.slots[idx].sig
	p.newHead = p.slots[idx].next
	if p.newHead == poolNil {
		p.newTail = poolNil
	}

	p.slots[idx].next = p.unusedHead
	p.unusedHead = idx

	return sig, true
}

// NewListEmpty reports whether the new list has no pending signatures.
func (p *Pool) NewListEmpty() bool {
	return p.newHead == poolNil
}

// NewLen returns the number of slots currently in the new list.
func (p *Pool) NewLen() int {
	return p.countFrom(p.newHead)
}

// UnusedLen returns the number of slots currently in the unused list.
func (p *Pool) UnusedLen() int {
	return p.countFrom(p.unusedHead)
}

func (p *Pool) countFrom(head int) int {
	n := 0
	for i := head; i != poolNil; i = p.slots[i].next {
		n++
	}
	return n
}
