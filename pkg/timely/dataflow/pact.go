package dataflow

import (
	"encoding/binary"

	"github.com/jabolina/go-timely/pkg/timely/allocator"
	"github.com/jabolina/go-timely/pkg/timely/progress"
)

// Puller is the operator-facing read side of a connected input: whatever a
// Pact produces to satisfy NewInput.
type Puller[T progress.Timestamp[T], R any] interface {
	Pull() (Batch[T, R], bool)
}

// Pact (parallelization contract) connects a Stream to a consuming
// operator, deciding how records are routed to worker instances of that
// operator. Grounded on the original's dataflow::channels::pact module,
// whose Pipeline and Exchange are reproduced here; ParallelizationContract
// there is exactly this Connect signature.
type Pact[T progress.Timestamp[T], R any] interface {
	// Connect attaches a fresh puller to stream, returning the Puller the
	// consuming operator will read from.
	Connect(stream *Stream[T, R], cfg BufferConfig) Puller[T, R]
}

// queue is a simple FIFO of batches, used as the local endpoint for both
// the Pipeline pact and an Exchange pact's per-peer self-route.
type queue[T progress.Timestamp[T], R any] struct {
	pending []Batch[T, R]
}

func (q *queue[T, R]) push(b Batch[T, R]) {
	q.pending = append(q.pending, b)
}

func (q *queue[T, R]) Pull() (Batch[T, R], bool) {
	if len(q.pending) == 0 {
		var zero Batch[T, R]
		return zero, false
	}
	b := q.pending[0]
	q.pending = q.pending[1:]
	return b, true
}

// Pipeline is the no-exchange pact: every record stays on the worker that
// produced it. Since both endpoints live in the same thread, no copy or
// serialization happens beyond the Tee's per-consumer clone. Grounded on
// the original's Pipeline unit struct, which documents the same "no
// communication" contract.
type Pipeline[T progress.Timestamp[T], R any] struct{}

// Connect implements Pact.
func (Pipeline[T, R]) Connect(stream *Stream[T, R], _ BufferConfig) Puller[T, R] {
	q := &queue[T, R]{}
	stream.Connect(q)
	return q
}

// RecordBytesable is the constraint an Exchange pact's record type must
// satisfy so batches can cross a process boundary -- the dataflow layer
// always hands the allocator a Bytesable payload and lets the backend
// decide whether that turns into an actual wire encode or a direct
// in-memory handoff.
type RecordBytesable = allocator.Bytesable

// wireBatch is the Bytesable wire form of a Batch crossing the allocator:
// an 8-byte length-prefixed timestamp, followed by one 8-byte
// length-prefixed record per entry. Grounded on the original's Message<T,D>
// wire encoding used by the binary and cluster allocators.
type wireBatch struct {
	timeBytes    []byte
	recordBytes  [][]byte
}

func (w wireBatch) IntoBytes() []byte {
	out := make([]byte, 0, w.LengthInBytes())
	out = appendLenPrefixed(out, w.timeBytes)
	for _, r := range w.recordBytes {
		out = appendLenPrefixed(out, r)
	}
	return out
}

func (w wireBatch) LengthInBytes() int {
	n := 8 + len(w.timeBytes)
	for _, r := range w.recordBytes {
		n += 8 + len(r)
	}
	return n
}

func appendLenPrefixed(out []byte, payload []byte) []byte {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	out = append(out, lenBuf[:]...)
	return append(out, payload...)
}

func decodeWireBatch(data []byte) (timeBytes []byte, recordBytes [][]byte) {
	readOne := func(buf []byte) (payload, rest []byte) {
		n := binary.LittleEndian.Uint64(buf[:8])
		return buf[8 : 8+n], buf[8+n:]
	}
	timeBytes, rest := readOne(data)
	for len(rest) > 0 {
		var rec []byte
		rec, rest = readOne(rest)
		recordBytes = append(recordBytes, rec)
	}
	return timeBytes, recordBytes
}

// ExchangeRouter computes, for one record, the index of the peer it should
// be routed to (modulo the fleet size). Grounded on the original's
// Exchange::new(F), which takes exactly this "hash the record" closure.
type ExchangeRouter[R any] func(r R) uint64

// Exchange is the pact that routes each record to a worker chosen by a
// router function, crossing the allocator when that worker isn't the
// local one. T and R must be Bytesable since records may cross a process
// boundary; decodeTime/decodeRecord reconstruct values received off the
// wire.
type Exchange[T interface {
	progress.Timestamp[T]
	allocator.Bytesable
}, R allocator.Bytesable] struct {
	Peer         allocator.Peer
	ChannelID    int
	Router       ExchangeRouter[R]
	DecodeTime   func([]byte) T
	DecodeRecord func([]byte) R
}

// exchangeInput is the local Puller side of an Exchange pact: it pulls
// self-routed batches straight from a queue and decodes remote batches
// arriving off the allocator.
type exchangeInput[T progress.Timestamp[T], R any] struct {
	local   *queue[T, R]
	raw     allocator.TypedReceiver[wireBatch]
	decodeT func([]byte) T
	decodeR func([]byte) R
}

func (e *exchangeInput[T, R]) push(b Batch[T, R]) {
	e.local.push(b)
}

func (e *exchangeInput[T, R]) Pull() (Batch[T, R], bool) {
	if b, ok := e.local.Pull(); ok {
		return b, true
	}
	wb, ok := e.raw.Recv()
	if !ok {
		var zero Batch[T, R]
		return zero, false
	}
	records := make([]R, len(wb.recordBytes))
	for i, rb := range wb.recordBytes {
		records[i] = e.decodeR(rb)
	}
	return Batch[T, R]{Time: e.decodeT(wb.timeBytes), Records: records}, true
}

// Connect implements Pact. Every worker in the fleet must call Connect for
// the same channel identifier with routers that agree on the target
// fleet size, or routing silently disagrees across workers.
func (ex Exchange[T, R]) Connect(stream *Stream[T, R], cfg BufferConfig) Puller[T, R] {
	senders, receiver := allocator.AllocateTyped[wireBatch](ex.Peer, ex.ChannelID, func(data []byte) wireBatch {
		timeBytes, recordBytes := decodeWireBatch(data)
		return wireBatch{timeBytes: timeBytes, recordBytes: recordBytes}
	})

	in := &exchangeInput[T, R]{
		local:   &queue[T, R]{},
		raw:     receiver,
		decodeT: ex.DecodeTime,
		decodeR: ex.DecodeRecord,
	}
	stream.Connect(&routed[T, R]{
		self:    ex.Peer.Index(),
		router:  ex.Router,
		senders: senders,
		cfg:     cfg,
		input:   in,
	})
	return in
}

// routed is the consumer a stream's tee pushes into for an Exchange pact:
// it splits an incoming batch by destination and either enqueues locally
// or buffers for a remote send. T and R carry the same Bytesable
// constraints as Exchange, since sendRemote encodes both onto the wire.
type routed[T interface {
	progress.Timestamp[T]
	allocator.Bytesable
}, R allocator.Bytesable] struct {
	self    int
	router  ExchangeRouter[R]
	senders []allocator.TypedSender[wireBatch]
	cfg     BufferConfig
	input   *exchangeInput[T, R]

	buffers map[int]*Buffer[T, R]
}

func (r *routed[T, R]) push(b Batch[T, R]) {
	if r.buffers == nil {
		r.buffers = make(map[int]*Buffer[T, R])
	}
	for _, rec := range b.Records {
		dest := int(r.router(rec) % uint64(len(r.senders)))
		if dest == r.self {
			r.input.push(Batch[T, R]{Time: b.Time, Records: []R{rec}})
			continue
		}
		buf, ok := r.buffers[dest]
		if !ok {
			d := dest
			buf = NewBuffer[T, R](r.cfg, func(flushed Batch[T, R]) {
				r.sendRemote(d, flushed)
			})
			r.buffers[dest] = buf
		}
		buf.Give(b.Time, rec)
	}
	for _, buf := range r.buffers {
		buf.Flush()
	}
}

func (r *routed[T, R]) sendRemote(dest int, b Batch[T, R]) {
	timeBytes := b.Time.IntoBytes()
	recordBytes := make([][]byte, len(b.Records))
	for i, rec := range b.Records {
		recordBytes[i] = rec.IntoBytes()
	}
	_ = r.senders[dest].Send(wireBatch{timeBytes: timeBytes, recordBytes: recordBytes})
}
