package progress

import "sort"

// Update is a single signed delta applied to a timestamp's pending count.
type Update[T any] struct {
	Time  T
	Delta int64
}

// MutableAntichain tracks a multiset of (timestamp, count) pairs and
// re-derives, from the support of that multiset, the antichain of smallest
// elements with strictly positive count -- the frontier. It is the core
// data structure behind every input/output port's progress bookkeeping.
type MutableAntichain[T Timestamp[T]] struct {
	counts   map[T]int64
	frontier []T
	changes  []Update[T]
}

// NewMutableAntichain returns an empty tracker (frontier starts empty; the
// caller is expected to seed it with an initial capability/count).
func NewMutableAntichain[T Timestamp[T]]() *MutableAntichain[T] {
	return &MutableAntichain[T]{counts: make(map[T]int64)}
}

// Frontier returns the current frontier. The returned slice must not be
// mutated by the caller.
func (m *MutableAntichain[T]) Frontier() []T {
	return m.frontier
}

// FrontierAntichain returns the current frontier as an Antichain value.
func (m *MutableAntichain[T]) FrontierAntichain() Antichain[T] {
	return NewAntichain(m.frontier...)
}

// Empty reports whether the frontier has drained to empty -- no future
// timestamp is possible at this port.
func (m *MutableAntichain[T]) Empty() bool {
	return len(m.frontier) == 0
}

// Update applies a single signed delta and recomputes the frontier.
func (m *MutableAntichain[T]) Update(t T, delta int64) {
	m.UpdateIter([]Update[T]{{Time: t, Delta: delta}})
}

// UpdateIter applies a batch of signed deltas in one shot and recomputes the
// frontier once, appending any entered/left elements to the pending change
// list returned by FrontierChanges.
func (m *MutableAntichain[T]) UpdateIter(updates []Update[T]) {
	if len(updates) == 0 {
		return
	}
	for _, u := range updates {
		if u.Delta == 0 {
			continue
		}
		next := m.counts[u.Time] + u.Delta
		if next == 0 {
			delete(m.counts, u.Time)
		} else {
			m.counts[u.Time] = next
		}
	}

	newFrontier := minimalElements(m.counts)

	old := m.frontier
	m.frontier = newFrontier
	m.changes = append(m.changes, diffFrontiers(old, newFrontier)...)
}

// FrontierChanges drains and returns the elements that entered (+1) or left
// (-1) the frontier since the last call. Callers are expected to consume
// this once per scheduler step.
func (m *MutableAntichain[T]) FrontierChanges() []Update[T] {
	out := m.changes
	m.changes = nil
	return out
}

// minimalElements returns the antichain of elements with positive count
// that are not dominated by another element with positive count.
func minimalElements[T Timestamp[T]](counts map[T]int64) []T {
	candidates := make([]T, 0, len(counts))
	for t, c := range counts {
		if c > 0 {
			candidates = append(candidates, t)
		}
	}
	var a Antichain[T]
	// Insertion order does not affect the resulting set. Sorting fixes the
	// element order for totally ordered timestamps such as IntTime; mutually
	// incomparable elements keep an order that depends on map iteration.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LessEqual(candidates[j]) && !candidates[j].LessEqual(candidates[i])
	})
	for _, t := range candidates {
		a.Insert(t)
	}
	return a.elements
}

// diffFrontiers computes the +1/-1 updates needed to move from old to next.
func diffFrontiers[T Timestamp[T]](old, next []T) []Update[T] {
	oldSet := make(map[T]bool, len(old))
	for _, t := range old {
		oldSet[t] = true
	}
	nextSet := make(map[T]bool, len(next))
	for _, t := range next {
		nextSet[t] = true
	}

	var changes []Update[T]
	for _, t := range old {
		if !nextSet[t] {
			changes = append(changes, Update[T]{Time: t, Delta: -1})
		}
	}
	for _, t := range next {
		if !oldSet[t] {
			changes = append(changes, Update[T]{Time: t, Delta: 1})
		}
	}
	return changes
}
