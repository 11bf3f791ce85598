// Command timely-example runs a tiny input -> map -> capture dataflow
// across whatever fleet shape its flags describe, printing each worker's
// captured output once every worker has drained. Grounded on go-mcast's
// own flag-driven style (kingpin) carried through Config.FromArgs.
package main

import (
	"fmt"
	"os"

	timely "github.com/jabolina/go-timely"
	"github.com/jabolina/go-timely/pkg/timely/capability"
	"github.com/jabolina/go-timely/pkg/timely/dataflow"
	"github.com/jabolina/go-timely/pkg/timely/progress"
	"github.com/jabolina/go-timely/pkg/timely/scheduler"
)

const rounds = 10

func main() {
	cfg, err := timely.FromArgs("timely-example", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	guards, err := timely.Initialize[[]int](cfg, runWorker)
	if err != nil {
		fmt.Fprintln(os.Stderr, "timely-example:", err)
		os.Exit(1)
	}

	values, errs := guards.Join()
	for i, err := range errs {
		if err != nil {
			fmt.Fprintf(os.Stderr, "worker %d: %v\n", i, err)
			continue
		}
		fmt.Printf("worker %d captured: %v\n", i, values[i])
	}
}

func runWorker(w *scheduler.Worker, index int) ([]int, error) {
	db := scheduler.NewDataflowBuilder[progress.IntTime, progress.IntSummary]("example")

	sourceBuilder := dataflow.NewOperatorBuilder[progress.IntTime, progress.IntSummary]("input", 0)
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
			session.Give(round*10 + index)
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

	mapBuilder := dataflow.NewOperatorBuilder[progress.IntTime, progress.IntSummary]("map", 1)
	mapIn := dataflow.NewInputConnection[progress.IntTime, progress.IntSummary, int](
		mapBuilder, stream, dataflow.Pipeline[progress.IntTime, int]{},
		map[int][]progress.IntSummary{0: {progress.IntSummary(0)}},
	)
	mapOut, mapStream := dataflow.NewOutput[progress.IntTime, progress.IntSummary, int](mapBuilder)
	mapOp := mapBuilder.BuildReschedule(func(initialCaps []capability.Capability[progress.IntTime]) func([]progress.Antichain[progress.IntTime]) bool {
		initialCaps[0].Drop()
		return func(_ []progress.Antichain[progress.IntTime]) bool {
			for {
				batch, ok := mapIn.Pull()
				if !ok {
					break
				}
				session := mapOut.Session(batch.Time, mapOut.Port())
				for _, r := range batch.Records {
					session.Give(r + 1)
				}
				session.Flush()
			}
			return false
		}
	})
	db.AddOperator(mapOp, mapBuilder)
	scheduler.Connect[progress.IntTime, progress.IntSummary, int](db, stream, mapIn)

	captureBuilder := dataflow.NewOperatorBuilder[progress.IntTime, progress.IntSummary]("capture", 2)
	captureIn := dataflow.NewInput[progress.IntTime, progress.IntSummary, int](captureBuilder, mapStream, dataflow.Pipeline[progress.IntTime, int]{})
	var captured []int
	captureOp := captureBuilder.Build(func(_ []progress.Antichain[progress.IntTime], _ []capability.Capability[progress.IntTime]) bool {
		for {
			batch, ok := captureIn.Pull()
			if !ok {
				break
			}
			captured = append(captured, batch.Records...)
		}
		return false
	})
	db.AddOperator(captureOp, captureBuilder)
	scheduler.Connect[progress.IntTime, progress.IntSummary, int](db, mapStream, captureIn)

	df := db.Build()
	scheduler.RegisterDataflow[progress.IntTime, progress.IntSummary](w, df, func(t progress.IntTime) []byte {
		return t.IntoBytes()
	}, progress.IntTimeFromBytes)

	for w.Active() {
		if err := w.Step(); err != nil {
			return nil, err
		}
	}

	return captured, nil
}
