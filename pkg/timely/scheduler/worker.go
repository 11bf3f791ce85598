package scheduler

import (
	"context"
	"time"

	"github.com/joeycumines/go-longpoll"

	"github.com/jabolina/go-timely/pkg/timely/allocator"
	"github.com/jabolina/go-timely/pkg/timely/progress"
)

// Logger is the minimal logging contract a Worker needs: enough to report
// step errors and dataflow lifecycle events without this package importing
// the root module's fuller Logger interface (which would create an import
// cycle, since the root package constructs a Worker). Any Logger satisfying
// the root package's interface satisfies this one too.
type Logger interface {
	Infof(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

// registeredDataflow pairs a DataflowHandle with the closures that move its
// progress messages on and off the wire, since those closures close over the
// dataflow's concrete timestamp type while the handle itself is erased.
type registeredDataflow struct {
	handle  DataflowHandle
	drain   func()
	publish func() error
}

// Worker drives every dataflow registered on it through one cooperative
// step loop, built atop a single allocator.Peer. Grounded on go-mcast's
// core.Peer poll loop (receive, process, reply) and on the original's
// worker::Worker::step, which likewise interleaves draining inbound
// progress, propagating frontiers, invoking every operator once, and
// publishing whatever progress that step produced.
type Worker struct {
	peer       allocator.Peer
	dataflows  []*registeredDataflow
	nextChanID int
	log        Logger
	wake       chan struct{}
	onStep     func(activeDataflows int)
	onFrontier func(dataflowName, dataflowID string, counts map[string]int)
	onMessage  func(direction string, channel int, count int)
}

// WorkerOption configures optional Worker behavior not every caller needs.
type WorkerOption func(*Worker)

// WithStepObserver registers a callback invoked at the end of every Step
// with the number of dataflows still active, letting a caller mirror that
// count into a metrics collector without this package depending on one.
func WithStepObserver(observe func(activeDataflows int)) WorkerOption {
	return func(w *Worker) { w.onStep = observe }
}

// WithFrontierObserver registers a callback invoked once per registered
// dataflow at the end of every Step, reporting that dataflow's current
// per-port frontier cardinalities.
func WithFrontierObserver(observe func(dataflowName, dataflowID string, counts map[string]int)) WorkerOption {
	return func(w *Worker) { w.onFrontier = observe }
}

// WithMessageObserver registers a callback invoked whenever progress
// messages cross a dataflow's wire channel, reporting the direction
// ("sent" or "received"), the channel identifier RegisterDataflow assigned,
// and a count: for "sent", the number of operators whose drained progress
// was broadcast; for "received", the number of progress messages drained
// (one per operator, port and kind, from each sender).
func WithMessageObserver(observe func(direction string, channel int, count int)) WorkerOption {
	return func(w *Worker) { w.onMessage = observe }
}

// NewWorker wraps peer (already allocated for this worker's fleet and
// index) into a scheduler able to host any number of dataflows. A nil log
// falls back to a no-op Logger.
func NewWorker(peer allocator.Peer, log Logger, opts ...WorkerOption) *Worker {
	if log == nil {
		log = noopLogger{}
	}
	w := &Worker{peer: peer, nextChanID: -1, log: log, wake: make(chan struct{}, 64)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RegisterDataflow attaches df to the worker, opening its dedicated
// progress-message channel. Every worker in the fleet must register the
// same dataflows, in the same order, so each one's channel identifier lines
// up across the fleet -- the same convention allocator.Peer.Allocate
// already requires of its caller. Progress channels are allocated on
// negative identifiers, a namespace disjoint from the non-negative ids
// user dataflows use for their own Exchange channels, so the two never
// collide on the same Peer.
func RegisterDataflow[T progress.Timestamp[T], S progress.Summary[S, T]](
	w *Worker, df *Dataflow[T, S], encodeTime func(T) []byte, decodeTime func([]byte) T,
) {
	id := w.nextChanID
	w.nextChanID--
	ch := openProgressChannel[T](w.peer, id, encodeTime, decodeTime)

	w.dataflows = append(w.dataflows, &registeredDataflow{
		handle: df,
		drain: func() {
			received := 0
			ch.Drain(func(opIndex, port int, kind byte, updates []progress.Update[T]) {
				received++
				if kind != progressKindInternal {
					return
				}
				df.ApplyInternal(opIndex, port, updates)
			})
			if received > 0 && w.onMessage != nil {
				w.onMessage("received", id, received)
			}
		},
		publish: func() error {
			sent := 0
			for _, p := range df.DrainProgress() {
				if err := ch.Broadcast(p); err != nil {
					return err
				}
				sent++
			}
			if sent > 0 && w.onMessage != nil {
				w.onMessage("sent", id, sent)
			}
			return nil
		},
	})
}

// Step runs one cooperative scheduling pass over every registered dataflow:
// drain inbound progress messages, recompute frontiers, invoke every
// operator once, then broadcast whatever progress this step produced.
// Finally it drains the progress channels once more and retires every
// dataflow that has drained. It returns only a publishing error; Active
// reports whether any dataflow remains to be stepped.
func (w *Worker) Step() error {
	w.peer.Receive()

	for _, rd := range w.dataflows {
		rd.drain()
	}

	for _, rd := range w.dataflows {
		rd.handle.Propagate()
		rd.handle.StepAll()
	}

	for _, rd := range w.dataflows {
		if err := rd.publish(); err != nil {
			w.log.Errorf("publishing progress for %q (%s): %v", rd.handle.Name(), rd.handle.IDString(), err)
			return err
		}
	}

	w.peer.Release()

	if w.onFrontier != nil {
		for _, rd := range w.dataflows {
			w.onFrontier(rd.handle.Name(), rd.handle.IDString(), rd.handle.FrontierCounts())
		}
	}

	var live []*registeredDataflow
	for _, rd := range w.dataflows {
		// Apply the progress this step just published (delivered back to
		// this worker by loopback) before judging drainage; until then the
		// tracker has not seen the dataflow's capabilities at all.
		rd.drain()
		if rd.handle.Drained() {
			w.log.Infof("dataflow %q (%s) drained", rd.handle.Name(), rd.handle.IDString())
			continue
		}
		live = append(live, rd)
	}
	w.dataflows = live

	if w.onStep != nil {
		w.onStep(len(w.dataflows))
	}

	return nil
}

// Active reports whether the worker still hosts any undrained dataflow.
func (w *Worker) Active() bool {
	return len(w.dataflows) > 0
}

// DataflowCount reports how many dataflows this worker currently hosts, for
// leak-checking a long-running worker that repeatedly registers and drains
// dataflows.
func (w *Worker) DataflowCount() int {
	return len(w.dataflows)
}

// Wake unparks a goroutine blocked in Park. Safe to call from any
// goroutine, including another worker delivering a message this one should
// react to; never blocks.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Park blocks until Wake is called at least once, draining and collapsing
// any further wakes that arrive within the same burst, or until ctx is
// done. Lets a worker with no ready work suspend instead of busy-looping
// Step, grounded on go-longpoll's batched channel receive.
func (w *Worker) Park(ctx context.Context) error {
	cfg := longpoll.ChannelConfig{MaxSize: -1, MinSize: 1, PartialTimeout: 5 * time.Millisecond}
	return longpoll.Channel(ctx, &cfg, w.wake, func(struct{}) error { return nil })
}

// Close tears down the underlying peer.
func (w *Worker) Close() error {
	return w.peer.Close()
}
