package scheduler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jabolina/go-timely/pkg/timely/dataflow"
	"github.com/jabolina/go-timely/pkg/timely/progress"
)

// Dataflow holds one fully-built operator graph, its declared edges, and the
// progress tracker reducing change batches across it. A Worker may host
// several dataflows of different timestamp/summary types simultaneously,
// which is why Dataflow itself is hidden behind the DataflowHandle interface
// for storage in a Worker's dataflow table.
type Dataflow[T progress.Timestamp[T], S progress.Summary[S, T]] struct {
	name    string
	id      uuid.UUID
	ops     []*dataflow.Operator[T]
	tracker *ProgressTracker[T, S]
}

// ID returns the dataflow's process-unique identifier, minted once at
// Build and stable for its lifetime -- used in the worker's log lines and
// passed to its frontier observer, to tell this dataflow apart from any
// other one a worker hosts under the same name.
func (d *Dataflow[T, S]) ID() uuid.UUID {
	return d.id
}

// DataflowHandle is the type-erased surface a Worker drives every step,
// letting a single worker host dataflows over unrelated timestamp types.
type DataflowHandle interface {
	// Name identifies the dataflow for logging.
	Name() string
	// IDString is the dataflow's uuid, rendered once for logging and
	// metrics labels without forcing every caller to depend on
	// github.com/google/uuid directly.
	IDString() string
	// StepAll invokes every live operator once, returning whether any
	// operator asked to be rescheduled (still holds a capability or has
	// buffered work).
	StepAll() bool
	// Propagate recomputes every operator's output frontier from the
	// current capability and input frontiers, pushing deltas downstream.
	Propagate()
	// Drained reports whether every operator's capability and input
	// frontiers have emptied -- the dataflow has no further work, ever.
	Drained() bool
	// FrontierCounts reports, for every tracked output port, the number of
	// incomparable timestamps currently in its frontier, keyed by
	// "<operator>:<output>". Exists so a metrics observer can report
	// frontier cardinality without depending on this dataflow's concrete
	// timestamp type.
	FrontierCounts() map[string]int
}

// DataflowBuilder accumulates operators and the edges between their ports
// while a dataflow is under construction, in the same scope-local-index
// order the caller assigns to NewOperatorBuilder. Grounded on the original's
// Scope/SubgraphBuilder, which likewise accumulates children and edges
// before compiling a single Subgraph that the worker then steps.
type DataflowBuilder[T progress.Timestamp[T], S progress.Summary[S, T]] struct {
	name         string
	ops          []*dataflow.Operator[T]
	connectivity [][]*dataflow.PortConnectivity[S]
	edges        map[portKey][]portKey
}

// NewDataflowBuilder starts an empty dataflow under construction.
func NewDataflowBuilder[T progress.Timestamp[T], S progress.Summary[S, T]](name string) *DataflowBuilder[T, S] {
	return &DataflowBuilder[T, S]{
		name:  name,
		edges: make(map[portKey][]portKey),
	}
}

// AddOperator registers a compiled operator together with the builder it was
// compiled from (for its per-input connectivity). The operator's Shape.Index
// must equal its position in construction order -- the same convention
// NewOperatorBuilder's index argument already requires.
func (d *DataflowBuilder[T, S]) AddOperator(op *dataflow.Operator[T], b *dataflow.OperatorBuilder[T, S]) {
	for len(d.ops) <= op.Shape.Index {
		d.ops = append(d.ops, nil)
		d.connectivity = append(d.connectivity, nil)
	}
	d.ops[op.Shape.Index] = op
	d.connectivity[op.Shape.Index] = b.Connectivity()
}

// Connect records that the input declared by dst (obtained from NewInput)
// consumes the stream produced by src, so the tracker knows to forward
// frontier deltas from src's (operator, output) to dst's (operator, input).
func Connect[T progress.Timestamp[T], S progress.Summary[S, T], R any](
	d *DataflowBuilder[T, S], src *dataflow.Stream[T, R], dst *dataflow.InputHandle[T, R],
) {
	srcKey := portKey{op: src.Source.Index, port: src.Port}
	dstKey := portKey{op: dst.OperatorIndex(), port: dst.Port()}
	d.edges[srcKey] = append(d.edges[srcKey], dstKey)
}

// Build finalizes the dataflow: wires up its progress tracker from the
// accumulated operators, connectivity and edges.
func (d *DataflowBuilder[T, S]) Build() *Dataflow[T, S] {
	tracker := NewProgressTracker[T, S](d.ops, d.connectivity, d.edges)
	return &Dataflow[T, S]{name: d.name, id: uuid.New(), ops: d.ops, tracker: tracker}
}

// Name implements DataflowHandle.
func (d *Dataflow[T, S]) Name() string {
	return d.name
}

// IDString implements DataflowHandle.
func (d *Dataflow[T, S]) IDString() string {
	return d.id.String()
}

// StepAll implements DataflowHandle.
func (d *Dataflow[T, S]) StepAll() bool {
	active := false
	for _, op := range d.ops {
		if op == nil {
			continue
		}
		if op.Step() {
			active = true
		}
	}
	return active
}

// Propagate implements DataflowHandle.
func (d *Dataflow[T, S]) Propagate() {
	d.tracker.Propagate()
}

// Drained implements DataflowHandle.
func (d *Dataflow[T, S]) Drained() bool {
	for opIdx, op := range d.ops {
		if op == nil {
			continue
		}
		for o := range op.Internals {
			if !d.tracker.CapabilityEmpty(opIdx, o) {
				return false
			}
		}
		for _, f := range op.Frontiers {
			if !f.Empty() {
				return false
			}
		}
	}
	return true
}

// Snapshot exposes the tracker's current per-port frontiers for diagnostics
// and metrics export.
func (d *Dataflow[T, S]) Snapshot() []PortSnapshot[T] {
	return d.tracker.Snapshot()
}

// FrontierCounts implements DataflowHandle.
func (d *Dataflow[T, S]) FrontierCounts() map[string]int {
	snap := d.tracker.Snapshot()
	out := make(map[string]int, len(snap))
	for _, s := range snap {
		out[fmt.Sprintf("%d:%d", s.Operator, s.Output)] = len(s.Frontier.Elements())
	}
	return out
}

// ApplyInternal feeds a capability change batch received from the progress
// channel (from any worker, including via loopback from this one) into the
// dataflow's tracker.
func (d *Dataflow[T, S]) ApplyInternal(op, output int, updates []progress.Update[T]) {
	d.tracker.ApplyInternal(op, output, updates)
}

// DrainProgress collects and clears every operator's pending consumed,
// internal and produced change-batch updates, ready to be broadcast as
// progress messages. Grounded on the original's Worker::step, which drains
// exactly these three counters from every child after invoking it.
func (d *Dataflow[T, S]) DrainProgress() []OperatorProgress[T] {
	var out []OperatorProgress[T]
	for _, op := range d.ops {
		if op == nil {
			continue
		}
		p := OperatorProgress[T]{OpIndex: op.Shape.Index}
		for i, cb := range op.Consumeds {
			if u := cb.Drain(); len(u) > 0 {
				p.Consumed = append(p.Consumed, PortUpdates[T]{Port: i, Updates: u})
			}
		}
		for i, cb := range op.Internals {
			if u := cb.Drain(); len(u) > 0 {
				p.Internal = append(p.Internal, PortUpdates[T]{Port: i, Updates: u})
			}
		}
		for i, cb := range op.Produceds {
			if u := cb.Drain(); len(u) > 0 {
				p.Produced = append(p.Produced, PortUpdates[T]{Port: i, Updates: u})
			}
		}
		if len(p.Consumed) > 0 || len(p.Internal) > 0 || len(p.Produced) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// PortUpdates pairs a port index with the updates drained from it.
type PortUpdates[T progress.Timestamp[T]] struct {
	Port    int
	Updates []progress.Update[T]
}

// OperatorProgress is one operator's drained consumed/internal/produced
// updates for a single scheduler step, the payload a progress message
// carries across the fleet.
type OperatorProgress[T progress.Timestamp[T]] struct {
	OpIndex  int
	Consumed []PortUpdates[T]
	Internal []PortUpdates[T]
	Produced []PortUpdates[T]
}
