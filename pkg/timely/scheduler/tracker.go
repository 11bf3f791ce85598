// Package scheduler implements the per-worker operator loop and the
// progress tracker that reduces change batches exchanged across the
// fleet into per-port frontiers. Grounded on the original's
// progress::reachability tracker and worker::Worker, and on go-mcast's
// core.Peer step/poll loop for the overall shape of a cooperative,
// single-threaded per-worker scheduler.
package scheduler

import (
	"github.com/jabolina/go-timely/pkg/timely/dataflow"
	"github.com/jabolina/go-timely/pkg/timely/progress"
)

// portKey identifies one port of one operator within a dataflow.
type portKey struct {
	op   int
	port int
}

// ProgressTracker reduces fleet-wide capability change batches (consumed and
// produced counts are not tracked) into the per-operator input and output
// frontiers, then
// forwards only the deltas into each downstream operator's own frontier
// cells (the same MutableAntichain pointers the operator's compiled step
// closure already reads from).
//
// Simplification: propagation runs as a single forward pass over operators
// in ascending (builder-assigned) index order, which is sound as long as
// the dataflow has no feedback edges -- a scope limitation recorded in
// this repository's design notes, since a full incremental reachability
// matrix over cyclic graphs is out of scope for this pass.
type ProgressTracker[T progress.Timestamp[T], S progress.Summary[S, T]] struct {
	ops          []*dataflow.Operator[T]
	connectivity [][]*dataflow.PortConnectivity[S] // connectivity[op][input]
	edgesFrom    map[portKey][]portKey             // src (op,output) -> dst (op,input) fan-out

	capability map[portKey]*progress.MutableAntichain[T] // fleet-wide capability frontier per (op, output)
	lastOutput map[portKey]progress.Antichain[T]          // previous Propagate snapshot per (op, output)
}

// NewProgressTracker builds a tracker for a fixed set of operators,
// per-operator per-input connectivity, and the edges connecting each
// output port to the input ports it feeds.
func NewProgressTracker[T progress.Timestamp[T], S progress.Summary[S, T]](
	ops []*dataflow.Operator[T],
	connectivity [][]*dataflow.PortConnectivity[S],
	edges map[portKey][]portKey,
) *ProgressTracker[T, S] {
	t := &ProgressTracker[T, S]{
		ops:          ops,
		connectivity: connectivity,
		edgesFrom:    edges,
		capability:   make(map[portKey]*progress.MutableAntichain[T]),
		lastOutput:   make(map[portKey]progress.Antichain[T]),
	}
	for opIdx, op := range ops {
		for o := range op.Internals {
			t.capability[portKey{opIdx, o}] = progress.NewMutableAntichain[T]()
		}
	}
	return t
}

// ApplyInternal applies a capability change batch received from the
// progress channel (from any worker, including the local one via
// loopback) to the fleet-wide capability frontier of (op, output).
func (t *ProgressTracker[T, S]) ApplyInternal(op, output int, updates []progress.Update[T]) {
	if mu, ok := t.capability[portKey{op, output}]; ok {
		mu.UpdateIter(updates)
	}
}

// Propagate recomputes every operator's output frontier from its current
// capability frontier and input frontiers (joined through the operator's
// declared summaries), then pushes only the delta since the last call
// into each downstream input's own frontier cell. Call once per scheduler
// step, after applying any progress messages received this step.
func (t *ProgressTracker[T, S]) Propagate() {
	for opIdx, op := range t.ops {
		numOutputs := len(op.Internals)
		numInputs := len(op.Frontiers)

		inputFrontiers := make([]progress.Antichain[T], numInputs)
		for i := 0; i < numInputs; i++ {
			inputFrontiers[i] = op.Frontiers[i].FrontierAntichain()
		}

		var conn []*dataflow.PortConnectivity[S]
		if opIdx < len(t.connectivity) {
			conn = t.connectivity[opIdx]
		}

		for o := 0; o < numOutputs; o++ {
			key := portKey{opIdx, o}
			acc := progress.NewAntichain[T]()
			if mu, ok := t.capability[key]; ok {
				for _, e := range mu.Frontier() {
					acc.Insert(e)
				}
			}
			for i := 0; i < numInputs && i < len(conn); i++ {
				if conn[i] == nil {
					continue
				}
				for _, s := range conn[i].Summaries(o).Elements() {
					for _, it := range inputFrontiers[i].Elements() {
						if res, ok := s.Apply(it); ok {
							acc.Insert(res)
						}
					}
				}
			}

			prev := t.lastOutput[key]
			delta := antichainDelta(prev, acc)
			t.lastOutput[key] = acc
			if len(delta) == 0 {
				continue
			}
			for _, dst := range t.edgesFrom[key] {
				dstOp := t.ops[dst.op]
				dstOp.Frontiers[dst.port].UpdateIter(delta)
			}
		}
	}
}

// OutputFrontier returns the most recently computed frontier for (op,
// output), as of the last Propagate call.
func (t *ProgressTracker[T, S]) OutputFrontier(op, output int) progress.Antichain[T] {
	return t.lastOutput[portKey{op, output}]
}

// CapabilityEmpty reports whether (op, output)'s fleet-wide capability
// frontier has fully drained.
func (t *ProgressTracker[T, S]) CapabilityEmpty(op, output int) bool {
	mu, ok := t.capability[portKey{op, output}]
	return !ok || mu.Empty()
}

// PortSnapshot is one row of a ProgressTracker.Snapshot diagnostic dump.
type PortSnapshot[T progress.Timestamp[T]] struct {
	Operator int
	Output   int
	Frontier progress.Antichain[T]
}

// Snapshot returns every tracked output port's current frontier, for
// diagnostics and metrics export. Ordering is unspecified.
func (t *ProgressTracker[T, S]) Snapshot() []PortSnapshot[T] {
	out := make([]PortSnapshot[T], 0, len(t.lastOutput))
	for key, front := range t.lastOutput {
		out = append(out, PortSnapshot[T]{Operator: key.op, Output: key.port, Frontier: front})
	}
	return out
}

// antichainDelta computes the signed frontier-entry/exit updates between
// two antichain snapshots, suitable for feeding straight into a
// MutableAntichain's UpdateIter.
func antichainDelta[T progress.Timestamp[T]](old, next progress.Antichain[T]) []progress.Update[T] {
	oldSet := make(map[T]bool)
	for _, e := range old.Elements() {
		oldSet[e] = true
	}
	nextSet := make(map[T]bool)
	for _, e := range next.Elements() {
		nextSet[e] = true
	}

	var updates []progress.Update[T]
	for e := range oldSet {
		if !nextSet[e] {
			updates = append(updates, progress.Update[T]{Time: e, Delta: -1})
		}
	}
	for e := range nextSet {
		if !oldSet[e] {
			updates = append(updates, progress.Update[T]{Time: e, Delta: 1})
		}
	}
	return updates
}
