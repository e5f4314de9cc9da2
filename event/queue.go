// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package event provides the time ordered callback queue shared by the
// CPU core and its peripherals.
package event

import (
	"fmt"
	"iter"
	"math"
)

// NEVER is the NextTime of an empty queue.
const NEVER = int64(math.MaxInt64)

// Func is the callback of an Event, called with the time it fired at.
type Func func(now int64)

// Event is a single-shot timed callback. An Event is owned by the
// peripheral that declares it, and is in at most one queue at a time.
type Event struct {
	Name string // Diagnostic name.
	Func Func   // Callback.

	time      int64
	scheduled bool
	queue     *Queue
	next      *Event
}

// NewEvent returns an event with a name and a callback.
func NewEvent(name string, fn Func) *Event {
	return &Event{Name: name, Func: fn}
}

// Time returns the trigger time of the last schedule of the event.
func (ev *Event) Time() int64 {
	return ev.time
}

// Scheduled returns true if the event is waiting in a queue.
func (ev *Event) Scheduled() bool {
	return ev.scheduled
}

// String returns the event's name and trigger time.
func (ev *Event) String() string {
	if !ev.scheduled {
		return fmt.Sprintf("%v@-", ev.Name)
	}
	return fmt.Sprintf("%v@%d", ev.Name, ev.time)
}

// Queue is a list of events sorted by trigger time.
// Events with equal trigger times stay in the order they were scheduled.
type Queue struct {
	Name     string // Diagnostic name.
	NextTime int64  // Trigger time of the earliest event, or NEVER.

	head  *Event
	count int
}

// NewQueue creates an empty queue.
func NewQueue(name string) (q *Queue) {
	q = &Queue{Name: name, NextTime: NEVER}
	return
}

// Len returns the number of scheduled events.
func (q *Queue) Len() int {
	return q.count
}

// Schedule inserts the event at an absolute time, removing it first
// if it is already scheduled. Times in the past are permitted, and
// fire on the next poll.
func (q *Queue) Schedule(ev *Event, time int64) {
	if ev.scheduled {
		ev.queue.remove(ev)
	}

	ev.time = time
	ev.scheduled = true
	ev.queue = q

	if q.head == nil || time < q.head.time {
		ev.next = q.head
		q.head = ev
	} else {
		prev := q.head
		for prev.next != nil && prev.next.time <= time {
			prev = prev.next
		}
		ev.next = prev.next
		prev.next = ev
	}

	q.count++
	q.NextTime = q.head.time
}

// Cancel removes the event. It returns false if the event was not in
// this queue.
func (q *Queue) Cancel(ev *Event) bool {
	if !ev.scheduled || ev.queue != q {
		return false
	}

	return q.remove(ev)
}

// remove unlinks an event and updates the next time cache.
func (q *Queue) remove(ev *Event) (ok bool) {
	var prev *Event
	for here := q.head; here != nil; here = here.next {
		if here == ev {
			if prev == nil {
				q.head = here.next
			} else {
				prev.next = here.next
			}
			ok = true
			break
		}
		prev = here
	}

	if ok {
		q.count--
		ev.scheduled = false
		ev.queue = nil
		ev.next = nil
	}

	q.update()

	return
}

// update recomputes the next time cache.
func (q *Queue) update() {
	if q.head == nil {
		q.NextTime = NEVER
	} else {
		q.NextTime = q.head.time
	}
}

// Peek returns the earliest event without removing it, or nil.
func (q *Queue) Peek() *Event {
	return q.head
}

// Pop removes and returns the earliest event, or nil if empty.
func (q *Queue) Pop() (ev *Event) {
	ev = q.head
	if ev == nil {
		return
	}

	q.head = ev.next
	q.count--
	ev.next = nil
	ev.scheduled = false
	ev.queue = nil

	q.update()

	return
}

// Clear unschedules every event.
func (q *Queue) Clear() {
	for q.head != nil {
		q.Pop()
	}
}

// All iterates over the scheduled events in firing order.
// The queue must not be modified during the iteration.
func (q *Queue) All() iter.Seq[*Event] {
	return func(yield func(*Event) bool) {
		for here := q.head; here != nil; here = here.next {
			if !yield(here) {
				return
			}
		}
	}
}
