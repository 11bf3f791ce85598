package dataflow

import (
	"github.com/jabolina/go-timely/pkg/timely/capability"
	"github.com/jabolina/go-timely/pkg/timely/progress"
)

// OperatorBuilder accumulates an operator's ports and per-port progress
// bookkeeping before compiling them, together with a step closure, into an
// Operator the scheduler can drive. Grounded on the original's
// OperatorBuilder<G>, generalized from its Rc<RefCell<...>> interior
// mutability (needed there so new_input/new_output can be called through
// a shared borrow) into plain Go pointer receivers, since a builder is
// only ever touched by the single goroutine constructing the dataflow.
//
// T is the timestamp type; S is its summary type. Both input and output
// ports may carry any record type R, which is why NewInput/NewOutput are
// free functions rather than methods -- Go forbids a generic method from
// introducing a type parameter the receiver's type doesn't already bind.
type OperatorBuilder[T progress.Timestamp[T], S progress.Summary[S, T]] struct {
	shape        OperatorShape
	frontiers    []*progress.MutableAntichain[T]
	consumeds    []*progress.ChangeBatch[T]
	internals    []*progress.ChangeBatch[T]
	produceds    []*progress.ChangeBatch[T]
	connectivity []*PortConnectivity[S]
}

// NewOperatorBuilder starts a builder for an operator named name, taking
// its scope-local index.
func NewOperatorBuilder[T progress.Timestamp[T], S progress.Summary[S, T]](name string, index int) *OperatorBuilder[T, S] {
	return &OperatorBuilder[T, S]{shape: OperatorShape{Name: name, Index: index}}
}

// NewInput declares a new input port connected to stream via pact, with no
// promised summaries to any output. No default path is registered: the
// progress tracker treats the input as connected to no output, so its
// frontier does not hold back any output's frontier. Use
// NewInputConnection to declare paths.
func NewInput[T progress.Timestamp[T], S progress.Summary[S, T], R any](
	b *OperatorBuilder[T, S], stream *Stream[T, R], pact Pact[T, R],
) *InputHandle[T, R] {
	return NewInputConnection[T, S, R](b, stream, pact, nil)
}

// NewInputConnection declares a new input port, additionally recording
// that data arriving on it may reach output o with at least summary s, for
// every (o, s) pair in summaries. Grounded on the original's
// new_input_connection, whose `connection: Vec<Antichain<...>>` parameter
// plays the same role.
func NewInputConnection[T progress.Timestamp[T], S progress.Summary[S, T], R any](
	b *OperatorBuilder[T, S], stream *Stream[T, R], pact Pact[T, R], summaries map[int][]S,
) *InputHandle[T, R] {
	portIndex := b.shape.Inputs
	b.shape.Inputs++
	consumed := progress.NewChangeBatch[T]()
	b.consumeds = append(b.consumeds, consumed)
	b.frontiers = append(b.frontiers, progress.NewMutableAntichain[T]())

	conn := NewPortConnectivity[S]()
	for output, sums := range summaries {
		for _, s := range sums {
			conn.AddPath(output, s)
		}
	}
	b.connectivity = append(b.connectivity, conn)

	puller := pact.Connect(stream, DefaultBufferConfig())
	return newInputHandle(puller, NewCounter(consumed), b.shape.Index, portIndex)
}

// Shape returns a snapshot of the operator's port counts declared on this
// builder so far.
func (b *OperatorBuilder[T, S]) Shape() OperatorShape {
	return b.shape
}

// NewOutput declares a new output port, returning the handle the
// operator's logic writes through and the stream downstream operators
// connect to.
func NewOutput[T progress.Timestamp[T], S progress.Summary[S, T], R any](
	b *OperatorBuilder[T, S],
) (*OutputHandle[T, R], *Stream[T, R]) {
	outputIndex := b.shape.Outputs
	b.shape.Outputs++

	produced := progress.NewChangeBatch[T]()
	b.produceds = append(b.produceds, produced)
	internal := progress.NewChangeBatch[T]()
	b.internals = append(b.internals, internal)

	tee := NewTee[T, R]()
	stream := NewStream[T, R](b.shape, outputIndex, tee)
	handle := newOutputHandle[T, R](outputIndex, tee, NewCounter(produced), DefaultBufferConfig())
	return handle, stream
}

// Operator is the compiled result of a builder: the progress state the
// scheduler reads and drains each step, plus the step closure itself.
// Grounded on the original's boxed `Box<dyn Operate<T>>`, flattened here
// into one concrete generic type since Go operators are driven directly by
// the scheduler rather than through a further trait-object layer.
type Operator[T progress.Timestamp[T]] struct {
	Shape     OperatorShape
	Frontiers []*progress.MutableAntichain[T]
	Consumeds []*progress.ChangeBatch[T]
	Internals []*progress.ChangeBatch[T]
	Produceds []*progress.ChangeBatch[T]

	step func() bool
}

// Connectivity exposes the builder's per-input summary promises so the
// scheduler's progress tracker can be constructed after Build/BuildReschedule
// has compiled the operator.
func (b *OperatorBuilder[T, S]) Connectivity() []*PortConnectivity[S] {
	return b.connectivity
}

// Step invokes the operator's logic for one scheduler pass and returns the
// logic's result: true if the operator asked to be scheduled again. The
// scheduler invokes every operator of a live dataflow on every step
// whatever this returns; an operator is retired only with its dataflow.
func (op *Operator[T]) Step() bool {
	return op.step()
}

// Build compiles the builder into an Operator whose logic is invoked every
// step with the current input frontiers and the full, fixed set of
// capabilities held at construction time. Suitable for operators that
// never need to mint an output capability beyond what they started with.
func (b *OperatorBuilder[T, S]) Build(
	logic func(frontiers []progress.Antichain[T], caps []capability.Capability[T]) bool,
) *Operator[T] {
	return b.BuildReschedule(func(caps []capability.Capability[T]) func([]progress.Antichain[T]) bool {
		return func(frontiers []progress.Antichain[T]) bool {
			return logic(frontiers, caps)
		}
	})
}

// BuildReschedule compiles the builder into an Operator whose constructor
// runs once, given the initial per-output capabilities, and returns the
// per-step logic closure. The constructor phase lets the operator stash
// capabilities in mutable local state it can replace across steps (e.g.
// to hold back a different output over time). Grounded on the original's
// build_reschedule, whose four-phase raw_logic (drain incoming frontiers,
// run user logic, drain consumed/internal/produced counts) is reproduced
// here as: drain frontiers before calling logic, and let logic itself
// publish consumed/internal/produced counts through the handles it was
// already given by NewInput/NewOutput.
func (b *OperatorBuilder[T, S]) BuildReschedule(
	constructor func(initialCaps []capability.Capability[T]) func(frontiers []progress.Antichain[T]) bool,
) *Operator[T] {
	initialCaps := make([]capability.Capability[T], len(b.internals))
	for i, internal := range b.internals {
		initialCaps[i] = capability.New(progress.Minimum[T](), i, internal)
	}
	// The +1 each initial capability just recorded is left pending in its
	// output's internal batch rather than drained here: builder_rc.rs folds
	// a freshly-minted capability's delta into the same per-step drain path
	// as every later mutation, so the first DrainProgress call (at the end
	// of this operator's first scheduler step) is what actually announces
	// it. If constructor drops a capability before returning (a stateless
	// operator holding none of its outputs), the +1 and its matching -1
	// land in the same batch and cancel under Compact before anything ever
	// drains it, so no announcement goes out at all -- exactly as builder_rc.rs
	// never raises a child's initial frontier past Minimum when it never
	// holds the capability for one.
	logic := constructor(initialCaps)

	step := func() bool {
		frontiers := make([]progress.Antichain[T], len(b.frontiers))
		for i, f := range b.frontiers {
			frontiers[i] = f.FrontierAntichain()
		}
		return logic(frontiers)
	}

	return &Operator[T]{
		Shape:     b.shape,
		Frontiers: b.frontiers,
		Consumeds: b.consumeds,
		Internals: b.internals,
		Produceds: b.produceds,
		step:      step,
	}
}
