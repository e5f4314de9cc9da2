package cpu

import (
	"iter"
)

// Trace is a bounded history of program counters.
type Trace struct {
	Limit int // Maximum history depth.

	data []uint32
	next int
}

// Push records a program counter, dropping the oldest if full.
func (t *Trace) Push(pc uint32) {
	if t.Limit <= 0 {
		return
	}

	if len(t.data) < t.Limit {
		t.data = append(t.data, pc)
		t.next = len(t.data) % t.Limit
		return
	}

	t.data[t.next] = pc
	t.next = (t.next + 1) % t.Limit
}

// Len returns the number of recorded program counters.
func (t *Trace) Len() int {
	return len(t.data)
}

// Last returns the most recent program counter.
func (t *Trace) Last() (pc uint32, ok bool) {
	if len(t.data) == 0 {
		return
	}

	n := (t.next + len(t.data) - 1) % len(t.data)
	return t.data[n], true
}

// All iterates from the oldest to the most recent program counter.
func (t *Trace) All() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		count := len(t.data)
		start := 0
		if count == t.Limit {
			start = t.next
		}
		for n := range count {
			if !yield(t.data[(start+n)%count]) {
				return
			}
		}
	}
}

// Reset empties the history.
func (t *Trace) Reset() {
	t.data = t.data[:0]
	t.next = 0
}
