package dataflow

import "github.com/jabolina/go-timely/pkg/timely/progress"

// InputHandle is how an operator's step closure reads from one of its
// declared inputs. Grounded on the original's InputHandleCore, trimmed of
// its auto-derived-capability sugar: this port only tracks consumed counts
// for the progress tracker, leaving capability management to the
// operator's own step logic (held via OutputHandle.Session instead).
type InputHandle[T progress.Timestamp[T], R any] struct {
	opIndex int
	port    int
	puller  Puller[T, R]
	counter *Counter[T]
}

// newInputHandle wraps a connected Puller with consumed-count tracking.
func newInputHandle[T progress.Timestamp[T], R any](puller Puller[T, R], counter *Counter[T], opIndex, port int) *InputHandle[T, R] {
	return &InputHandle[T, R]{opIndex: opIndex, port: port, puller: puller, counter: counter}
}

// Port returns this input's port index within its operator.
func (h *InputHandle[T, R]) Port() int {
	return h.port
}

// OperatorIndex returns the scope-local index of the operator this input was
// declared on, so a dataflow builder can record the edge feeding it without
// threading that index through separately.
func (h *InputHandle[T, R]) OperatorIndex() int {
	return h.opIndex
}

// Pull returns the next available batch on this input, recording its size
// against the consumed counter the builder registered for this port.
func (h *InputHandle[T, R]) Pull() (Batch[T, R], bool) {
	b, ok := h.puller.Pull()
	if ok {
		h.counter.Record(b.Time, int64(len(b.Records)))
	}
	return b, ok
}

// OutputHandle is how an operator's step closure writes to one of its
// declared output ports. Grounded on the original's OutputHandleCore,
// which likewise hands out a Session scoped to one capability at a time.
type OutputHandle[T progress.Timestamp[T], R any] struct {
	index    int
	tee      *Tee[T, R]
	counter  *Counter[T]
	bufCfg   BufferConfig
}

// newOutputHandle builds a handle for output port index, publishing
// produced counts into counter and fanning batches out through tee.
func newOutputHandle[T progress.Timestamp[T], R any](index int, tee *Tee[T, R], counter *Counter[T], cfg BufferConfig) *OutputHandle[T, R] {
	return &OutputHandle[T, R]{index: index, tee: tee, counter: counter, bufCfg: cfg}
}

// Port returns this output's port index within its operator.
func (o *OutputHandle[T, R]) Port() int {
	return o.index
}

// Session opens a buffered write session at capTime, the time of a held
// capability. capOutput, that capability's output port, must be this same
// output port; using a capability minted for
// a different port is a caller bug and panics immediately, the same way
// the original panics on a capability/output mismatch in build_reschedule.
func (o *OutputHandle[T, R]) Session(capTime T, capOutput int) *Session[T, R] {
	if capOutput != o.index {
		panic("dataflow: capability used on the wrong output port")
	}
	buf := NewBuffer[T, R](o.bufCfg, func(b Batch[T, R]) {
		o.counter.Record(b.Time, int64(len(b.Records)))
		o.tee.push(b)
	})
	return &Session[T, R]{time: capTime, buf: buf}
}

// Session is a single capability-scoped batch of writes to one output.
type Session[T progress.Timestamp[T], R any] struct {
	time T
	buf  *Buffer[T, R]
}

// Give buffers one record at the session's timestamp.
func (s *Session[T, R]) Give(r R) {
	s.buf.Give(s.time, r)
}

// GiveAll buffers every record in rs at the session's timestamp.
func (s *Session[T, R]) GiveAll(rs []R) {
	for _, r := range rs {
		s.buf.Give(s.time, r)
	}
}

// Flush forces out whatever this session has buffered so far, without
// waiting for MaxSize or a timestamp change.
func (s *Session[T, R]) Flush() {
	s.buf.Flush()
}
