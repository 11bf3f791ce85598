package progress

// ChangeBatch accumulates a multiset of (timestamp, delta) pairs. Updates
// are appended into an "unclean" tail; Compact regroups the whole batch by
// timestamp (no sorting: T is only comparable), sums each group's deltas
// and discards zero counts, leaving timestamps in order of first appearance.
// Every public accessor compacts first; a compaction costs O(n) in the
// whole batch, not only its tail.
type ChangeBatch[T comparable] struct {
	updates []changeBatchEntry[T]
	clean   int
}

type changeBatchEntry[T comparable] struct {
	time  T
	delta int64
}

// NewChangeBatch returns an empty batch.
func NewChangeBatch[T comparable]() *ChangeBatch[T] {
	return &ChangeBatch[T]{}
}

// Update records a delta at the given timestamp.
func (c *ChangeBatch[T]) Update(t T, delta int64) {
	if delta == 0 {
		return
	}
	c.updates = append(c.updates, changeBatchEntry[T]{time: t, delta: delta})
}

// IsEmpty reports whether the batch, once compacted, has no nonzero
// entries.
func (c *ChangeBatch[T]) IsEmpty() bool {
	c.Compact()
	return len(c.updates) == 0
}

// Len returns the number of distinct (timestamp, nonzero-delta) entries
// after compaction.
func (c *ChangeBatch[T]) Len() int {
	c.Compact()
	return len(c.updates)
}

// Iter calls f once per compacted (timestamp, delta) entry. f must not
// mutate the batch.
func (c *ChangeBatch[T]) Iter(f func(t T, delta int64)) {
	c.Compact()
	for _, e := range c.updates {
		f(e.time, e.delta)
	}
}

// Clear discards all entries without returning them.
func (c *ChangeBatch[T]) Clear() {
	c.updates = c.updates[:0]
	c.clean = 0
}

// Drain removes and returns every compacted (timestamp, delta) entry.
func (c *ChangeBatch[T]) Drain() []Update[T] {
	c.Compact()
	out := make([]Update[T], len(c.updates))
	for i, e := range c.updates {
		out[i] = Update[T]{Time: e.time, Delta: e.delta}
	}
	c.Clear()
	return out
}

// DrainInto moves every compacted entry of c into other, leaving c empty.
func (c *ChangeBatch[T]) DrainInto(other *ChangeBatch[T]) {
	c.Compact()
	for _, e := range c.updates {
		other.Update(e.time, e.delta)
	}
	c.Clear()
}

// Compact groups every entry, clean prefix and unclean tail together, by
// timestamp, sums their deltas, and discards zero-sum groups. Once nothing
// new has been appended it returns immediately, so repeated calls are cheap.
func (c *ChangeBatch[T]) Compact() {
	if c.clean == len(c.updates) {
		return
	}

	totals := make(map[T]int64, len(c.updates))
	order := make([]T, 0, len(c.updates))
	for _, e := range c.updates {
		if _, seen := totals[e.time]; !seen {
			order = append(order, e.time)
		}
		totals[e.time] += e.delta
	}

	c.updates = c.updates[:0]
	for _, t := range order {
		if d := totals[t]; d != 0 {
			c.updates = append(c.updates, changeBatchEntry[T]{time: t, delta: d})
		}
	}
	c.clean = len(c.updates)
}
