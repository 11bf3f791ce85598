package timely

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/jabolina/go-timely/internal/metrics"
	"github.com/jabolina/go-timely/pkg/timely/scheduler"
)

// WorkerFunc is the user computation driving one local worker. It receives
// a *scheduler.Worker already wrapping that worker's allocator.Peer and its
// own global index within the fleet, registers whatever dataflows it needs,
// and drives them to completion (typically by looping Worker.Step until
// Worker.Active reports false). Its return value becomes this worker's
// contribution to WorkerGuards.Join.
type WorkerFunc[T any] func(w *scheduler.Worker, index int) (T, error)

// workerResult carries one worker's outcome off its goroutine: either the
// value it returned, or an error -- including one synthesized from a
// recovered panic, so a single worker's bug never takes the others down
// with it.
type workerResult[T any] struct {
	value T
	err   error
}

// WorkerGuards is the handle Initialize returns: one goroutine is already
// running per local worker by the time the caller sees it. Grounded on the
// original's WorkerGuards, whose Join blocks for every thread to finish and
// turns a panic into the same Result::Err a normal failure would produce.
type WorkerGuards[T any] struct {
	results []chan workerResult[T]
	wg      sync.WaitGroup
}

// Initialize validates cfg, builds one allocator.Peer per local worker, and
// spawns one goroutine per worker running fn. It returns as soon as every
// goroutine has started; call Join on the result to wait for them to
// finish. A panic inside fn is recovered at the worker boundary and
// reported through Join rather than crashing the process, the same
// contract the original's initialize/WorkerGuards pair provides.
func Initialize[T any](cfg Config, fn WorkerFunc[T]) (*WorkerGuards[T], error) {
	builders, err := cfg.TryBuild()
	if err != nil {
		return nil, err
	}

	guards := &WorkerGuards[T]{
		results: make([]chan workerResult[T], len(builders)),
	}

	for i, build := range builders {
		i, build := i, build
		guards.results[i] = make(chan workerResult[T], 1)
		guards.wg.Add(1)
		go guards.runWorker(i, build, cfg.LogFn, cfg.Metrics, fn)
	}

	return guards, nil
}

func (g *WorkerGuards[T]) runWorker(index int, build allocatorBuilder, logFn func(int) Logger, reg *metrics.Registry, fn WorkerFunc[T]) {
	defer g.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			g.results[index] <- workerResult[T]{err: fmt.Errorf("timely: worker %d panicked: %v\n%s", index, r, debug.Stack())}
		}
	}()

	var log Logger
	if logFn != nil {
		log = logFn(index)
	} else {
		log = NewDefaultLogger(fmt.Sprintf("work-%d", index))
	}

	peer, err := build()
	if err != nil {
		g.results[index] <- workerResult[T]{err: fmt.Errorf("timely: worker %d: %w", index, err)}
		return
	}
	defer func() {
		if err := peer.Close(); err != nil {
			log.Warnf("closing peer: %v", err)
		}
	}()

	var opts []scheduler.WorkerOption
	if reg != nil {
		label := fmt.Sprintf("%d", index)
		opts = append(opts,
			scheduler.WithStepObserver(func(active int) {
				reg.Steps.WithLabelValues(label).Inc()
				reg.DataflowsActive.WithLabelValues(label).Set(float64(active))
			}),
			scheduler.WithFrontierObserver(func(dataflowName, _ string, counts map[string]int) {
				for portKey, n := range counts {
					op, output, ok := strings.Cut(portKey, ":")
					if !ok {
						continue
					}
					reg.FrontierSize.WithLabelValues(label, dataflowName, op, output).Set(float64(n))
				}
			}),
			scheduler.WithMessageObserver(func(direction string, channel int, count int) {
				channelLabel := fmt.Sprintf("%d", channel)
				if direction == "sent" {
					reg.MessagesSent.WithLabelValues(label, channelLabel).Add(float64(count))
				} else {
					reg.MessagesReceived.WithLabelValues(label, channelLabel).Add(float64(count))
				}
			}),
		)
	}

	w := scheduler.NewWorker(peer, log, opts...)
	value, err := fn(w, index)
	g.results[index] <- workerResult[T]{value: value, err: err}
}

// Join blocks until every worker has returned or panicked, in worker-index
// order, and reports each one's value alongside its error (nil on
// success). Safe to call exactly once; the underlying result channels are
// drained by this call.
func (g *WorkerGuards[T]) Join() ([]T, []error) {
	values := make([]T, len(g.results))
	errs := make([]error, len(g.results))
	for i, ch := range g.results {
		r := <-ch
		values[i] = r.value
		errs[i] = r.err
	}
	g.wg.Wait()
	return values, errs
}
