// Package capability implements the tokens that grant an operator the
// right to emit records at a given timestamp on a given output port.
package capability

import (
	"fmt"

	"github.com/jabolina/go-timely/pkg/timely/progress"
)

// Capability asserts that its holder may still emit records at Time() on a
// specific output port. Constructing one records +1 in the port's shared
// change batch; Drop records -1; Delayed records +1 at the new time and -1
// at the old time. The sum of live capability deltas at a port is exactly
// what the progress tracker reads to derive that port's frontier, so every
// mutation here must go through the shared batch -- never adjusted locally.
type Capability[T progress.Timestamp[T]] struct {
	time    T
	output  int
	batch   *progress.ChangeBatch[T]
	dropped bool
}

// New creates a capability for output at time t, recording +1 into batch.
// Matches builder_rc.rs's Capability::new call in build_reschedule: the
// operator builder hands one of these out per output port at T::minimum()
// before the operator's logic runs for the first time.
func New[T progress.Timestamp[T]](t T, output int, batch *progress.ChangeBatch[T]) Capability[T] {
	batch.Update(t, 1)
	return Capability[T]{time: t, output: output, batch: batch}
}

// Time returns the timestamp this capability is valid for.
func (c *Capability[T]) Time() T {
	return c.time
}

// Output returns the output port index this capability is bound to.
func (c *Capability[T]) Output() int {
	return c.output
}

// Clone records another +1 at the same time, returning an independent
// capability the caller can delay or drop separately from the receiver.
func (c *Capability[T]) Clone() Capability[T] {
	if c.dropped {
		panic("capability: cannot clone a dropped capability")
	}
	return New(c.time, c.output, c.batch)
}

// Delayed returns a new capability for the same output at newTime, which
// must be >= the receiver's time. Panics otherwise -- using a capability to
// claim a timestamp in its own past is the "capability used on the wrong
// output" class of invariant violation called out in spec's error design,
// a bug, not a recoverable condition. The receiver is consumed: it records
// its own -1 immediately and is marked dropped, so a later Drop call on it
// is a no-op rather than a second decrement.
func (c *Capability[T]) Delayed(newTime T) Capability[T] {
	if c.dropped {
		panic("capability: cannot delay a dropped capability")
	}
	if !c.time.LessEqual(newTime) {
		panic(fmt.Sprintf("capability: delayed time must be >= %v, got %v", c.time, newTime))
	}
	next := New(newTime, c.output, c.batch)
	c.batch.Update(c.time, -1)
	c.dropped = true
	return next
}

// Drop releases the capability, recording -1 into the shared batch. Safe
// to call more than once; only the first call has an effect.
func (c *Capability[T]) Drop() {
	if c.dropped {
		return
	}
	c.batch.Update(c.time, -1)
	c.dropped = true
}

// Dropped reports whether Drop has already been called.
func (c *Capability[T]) Dropped() bool {
	return c.dropped
}
