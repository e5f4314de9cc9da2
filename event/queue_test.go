package event

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueEmpty(t *testing.T) {
	assert := assert.New(t)

	q := NewQueue("empty")
	assert.Equal(0, q.Len())
	assert.Equal(NEVER, q.NextTime)
	assert.Nil(q.Pop())
	assert.Nil(q.Peek())
	assert.False(q.Cancel(NewEvent("none", nil)))
}

func TestQueueOrder(t *testing.T) {
	assert := assert.New(t)

	q := NewQueue("order")

	rng := rand.New(rand.NewSource(1))
	var events []*Event
	for n := range 64 {
		ev := NewEvent("ev", nil)
		events = append(events, ev)
		q.Schedule(ev, int64(rng.Intn(1000))-int64(n))
	}
	assert.Equal(64, q.Len())

	last := int64(-1 << 62)
	for q.Len() > 0 {
		next := q.NextTime
		ev := q.Pop()
		assert.Equal(next, ev.Time())
		assert.LessOrEqual(last, ev.Time())
		assert.False(ev.Scheduled())
		last = ev.Time()
	}
	assert.Equal(NEVER, q.NextTime)
}

func TestQueueStableTies(t *testing.T) {
	assert := assert.New(t)

	q := NewQueue("ties")

	var fired []string
	mk := func(name string) *Event {
		return NewEvent(name, func(now int64) { fired = append(fired, name) })
	}

	q.Schedule(mk("a"), 10)
	q.Schedule(mk("b"), 10)
	q.Schedule(mk("early"), 5)
	q.Schedule(mk("c"), 10)

	for ev := q.Pop(); ev != nil; ev = q.Pop() {
		ev.Func(ev.Time())
	}

	assert.Equal([]string{"early", "a", "b", "c"}, fired)
}

func TestQueueReschedule(t *testing.T) {
	assert := assert.New(t)

	q := NewQueue("resched")

	a := NewEvent("a", nil)
	b := NewEvent("b", nil)
	c := NewEvent("c", nil)
	q.Schedule(a, 100)
	q.Schedule(b, 200)
	q.Schedule(c, 300)

	// Earlier reschedule.
	q.Schedule(c, 50)
	assert.Equal(3, q.Len())
	assert.Equal(int64(50), q.NextTime)
	assert.Equal(c, q.Peek())

	// Later reschedule.
	q.Schedule(c, 250)
	assert.Equal(3, q.Len())
	assert.Equal(int64(100), q.NextTime)

	var order []*Event
	for ev := range q.All() {
		order = append(order, ev)
	}
	assert.Equal([]*Event{a, b, c}, order)
}

func TestQueueCancel(t *testing.T) {
	assert := assert.New(t)

	q := NewQueue("cancel")
	a := NewEvent("a", nil)
	b := NewEvent("b", nil)

	q.Schedule(a, 10)
	q.Schedule(b, 20)

	assert.True(q.Cancel(a))
	assert.False(a.Scheduled())
	assert.Equal(int64(20), q.NextTime)
	assert.False(q.Cancel(a))

	assert.True(q.Cancel(b))
	assert.Equal(NEVER, q.NextTime)
	assert.Equal(0, q.Len())
}

func TestQueueMove(t *testing.T) {
	assert := assert.New(t)

	q1 := NewQueue("one")
	q2 := NewQueue("two")
	ev := NewEvent("mover", nil)

	q1.Schedule(ev, 10)
	q2.Schedule(ev, 20)

	assert.Equal(0, q1.Len())
	assert.Equal(NEVER, q1.NextTime)
	assert.Equal(1, q2.Len())
	assert.False(q1.Cancel(ev))
	assert.True(q2.Cancel(ev))
}

func TestQueuePast(t *testing.T) {
	assert := assert.New(t)

	q := NewQueue("past")
	q.Schedule(NewEvent("future", nil), 1000)
	q.Schedule(NewEvent("past", nil), -5)

	ev := q.Pop()
	assert.Equal("past", ev.Name)
	assert.Equal("past@-", ev.String())
}

func TestQueueClear(t *testing.T) {
	assert := assert.New(t)

	q := NewQueue("clear")
	events := []*Event{NewEvent("a", nil), NewEvent("b", nil)}
	for n, ev := range events {
		q.Schedule(ev, int64(n))
	}

	q.Clear()
	assert.Equal(0, q.Len())
	assert.Equal(NEVER, q.NextTime)
	assert.False(slices.ContainsFunc(events, (*Event).Scheduled))
}
