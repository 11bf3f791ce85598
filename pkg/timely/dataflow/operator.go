// Package dataflow implements the operator construction surface: ports,
// streams, channels and the builder that wires an operator's raw step
// closure together with the progress-tracking bookkeeping it must publish
// each step. Grounded on the original timely-dataflow source's
// dataflow::operators::generic::builder_rc::OperatorBuilder and on
// dataflow::channels, generalized to Go's generics.
package dataflow

import "github.com/jabolina/go-timely/pkg/timely/progress"

// OperatorShape is the static identity of an operator within its scope: a
// scope-local index, a human name for diagnostics, and the declared number
// of input and output ports.
type OperatorShape struct {
	Name    string
	Index   int
	Inputs  int
	Outputs int
}

// PortConnectivity records, for one input port, the summary an operator
// promises to apply to a capability held on that input before it can
// produce output on each of its output ports. The progress tracker uses
// this to propagate frontiers through the operator without waiting on it
// to actually run.
//
// Grounded on builder_rc.rs's `summaries: Rc<RefCell<Vec<Antichain<Vec<...>>>>>`
// field, one antichain-of-summaries per (input, output) pair.
type PortConnectivity[S progress.Timestamp[S]] struct {
	byOutput map[int]progress.Antichain[S]
}

// NewPortConnectivity returns connectivity with no promised summaries: the
// input reaches no output, and so holds back no output's frontier, until
// AddPath records a path.
func NewPortConnectivity[S progress.Timestamp[S]]() *PortConnectivity[S] {
	return &PortConnectivity[S]{byOutput: make(map[int]progress.Antichain[S])}
}

// AddPath records that data arriving on this input may reach output with at
// least the given summary applied.
func (p *PortConnectivity[S]) AddPath(output int, summary S) {
	existing, ok := p.byOutput[output]
	if !ok {
		existing = progress.NewAntichain[S]()
	}
	existing.Insert(summary)
	p.byOutput[output] = existing
}

// Summaries returns the antichain of summaries promised from this input to
// the given output. An empty antichain means no path is promised (the
// input cannot hold back that output's frontier).
func (p *PortConnectivity[S]) Summaries(output int) progress.Antichain[S] {
	return p.byOutput[output]
}

// Outputs reports every output index with at least one promised path.
func (p *PortConnectivity[S]) Outputs() []int {
	outs := make([]int, 0, len(p.byOutput))
	for o := range p.byOutput {
		outs = append(outs, o)
	}
	return outs
}
