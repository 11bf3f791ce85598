package scheduler

import (
	"testing"

	"github.com/jabolina/go-timely/pkg/timely/allocator"
	"github.com/jabolina/go-timely/pkg/timely/capability"
	"github.com/jabolina/go-timely/pkg/timely/dataflow"
	"github.com/jabolina/go-timely/pkg/timely/progress"
)

// buildCounterPipeline wires a two-operator dataflow: a source that emits
// one record per round at IntTime(round) for rounds rounds, then drops its
// capability, feeding a sink that tallies every record it receives into
// *received.
func buildCounterPipeline(t *testing.T, rounds int, received *int) *Dataflow[progress.IntTime, progress.IntSummary] {
	t.Helper()
	db := NewDataflowBuilder[progress.IntTime, progress.IntSummary]("counter")

	sourceBuilder := dataflow.NewOperatorBuilder[progress.IntTime, progress.IntSummary]("source", 0)
	out, stream := dataflow.NewOutput[progress.IntTime, progress.IntSummary, int](sourceBuilder)
	round := 0
	sourceOp := sourceBuilder.BuildReschedule(func(initialCaps []capability.Capability[progress.IntTime]) func([]progress.Antichain[progress.IntTime]) bool {
		tok := initialCaps[0]
		return func(_ []progress.Antichain[progress.IntTime]) bool {
			if round >= rounds {
				if !tok.Dropped() {
					tok.Drop()
				}
				return false
			}
			session := out.Session(tok.Time(), out.Port())
			session.Give(round)
			session.Flush()
			round++
			if round < rounds {
				tok = tok.Delayed(progress.IntTime(round))
			} else {
				tok.Drop()
			}
			return round < rounds
		}
	})
	db.AddOperator(sourceOp, sourceBuilder)

	sinkBuilder := dataflow.NewOperatorBuilder[progress.IntTime, progress.IntSummary]("sink", 1)
	in := dataflow.NewInput[progress.IntTime, progress.IntSummary, int](sinkBuilder, stream, dataflow.Pipeline[progress.IntTime, int]{})
	sinkOp := sinkBuilder.Build(func(_ []progress.Antichain[progress.IntTime], _ []capability.Capability[progress.IntTime]) bool {
		for {
			b, ok := in.Pull()
			if !ok {
				break
			}
			*received += len(b.Records)
		}
		return false
	})
	db.AddOperator(sinkOp, sinkBuilder)

	Connect[progress.IntTime, progress.IntSummary, int](db, stream, in)

	return db.Build()
}

func TestWorker_StepsUntilDataflowDrains(t *testing.T) {
	var received int
	df := buildCounterPipeline(t, 5, &received)

	w := NewWorker(allocator.NewThreadPeer(), nil)
	RegisterDataflow[progress.IntTime, progress.IntSummary](w, df, encodeIntTime, progress.IntTimeFromBytes)

	for i := 0; i < 50 && w.Active(); i++ {
		if err := w.Step(); err != nil {
			t.Fatalf("unexpected step error: %v", err)
		}
	}

	if w.Active() {
		t.Fatalf("expected dataflow to drain within 50 steps")
	}
	if received != 5 {
		t.Fatalf("expected sink to receive 5 records, got %d", received)
	}
}

func encodeIntTime(t progress.IntTime) []byte {
	return t.IntoBytes()
}
