// Package allocator implements the channel allocation substrate the
// scheduler depends on: a uniform way for a worker to obtain per-worker
// pusher/puller pairs that may be intra-thread, intra-process, or
// cross-process. Grounded on go-mcast's pkg/mcast/core.Transport (a single
// narrow interface in front of several wire strategies) and on the
// communication::Allocate trait from the original timely-dataflow source.
package allocator

import "fmt"

// Bytesable is the contract the core asks of any message carried across a
// cross-process channel: it must know how to turn itself into bytes. The
// core never interprets the bytes; user code supplies the matching decode
// function per channel (see Peer.Allocate). This mirrors the spec's "user
// serialization of records" being out of scope for the core -- the core
// sees opaque containers that know how to bytes-ize themselves.
type Bytesable interface {
	// IntoBytes serializes the message.
	IntoBytes() []byte
	// LengthInBytes reports the serialized length, so the zero-copy
	// backend can size its slab allocation without a first encode pass.
	LengthInBytes() int
}

// DecodeFunc reconstructs a Bytesable from bytes received off the wire.
// Every worker must pass the same DecodeFunc shape (decoding the same
// concrete type) for a given channel identifier -- mismatched use is a
// fatal bug per the allocator's failure contract.
type DecodeFunc func(data []byte) Bytesable

// Pusher sends messages on one endpoint of an allocated channel -- one per
// peer, including self.
type Pusher interface {
	// Send enqueues a message. Returns an error only for backends that can
	// detect a broken transport synchronously (e.g. a closed process);
	// mid-run network errors are otherwise surfaced as a worker panic per
	// the spec's error-handling design.
	Send(m Bytesable) error
	// Done signals that no further sends will be issued at the currently
	// active timestamp, allowing buffering backends to flush.
	Done()
}

// Puller receives messages on the single local endpoint of an allocated
// channel, fed by every peer's corresponding Pusher.
type Puller interface {
	// Recv returns the next available message, or ok=false if none is
	// currently buffered. Never blocks.
	Recv() (Bytesable, bool)
}

// Peer is the per-worker handle onto the allocator substrate. Every worker
// holds exactly one.
type Peer interface {
	// Index returns this worker's id within the fleet.
	Index() int
	// Peers returns the total fleet size.
	Peers() int
	// Allocate returns one Pusher per peer (including self) and one local
	// Puller for the channel named by identifier. Every worker in the
	// fleet must call Allocate with the same identifier to mean the same
	// logical channel; mismatched identifiers across workers is a fatal
	// bug, not a recoverable error (ErrChannelIdentifierMismatch is raised
	// only for the in-process backends which can detect it directly).
	// Negative identifiers are reserved for the scheduler's own progress
	// channels (see scheduler.RegisterDataflow); user dataflows must use
	// non-negative identifiers to stay in a disjoint namespace.
	Allocate(identifier int, decode DecodeFunc) ([]Pusher, Puller)
	// Receive drains network/ipc input into local receivers. Cooperative
	// and bounded: called once per scheduler step.
	Receive()
	// Release flushes all pending outgoing batches.
	Release()
	// Close tears down any background goroutines and connections owned by
	// this peer. Called once, when the worker exits.
	Close() error
}

// ErrChannelIdentifierMismatch is wrapped in the panic a backend raises
// when it detects, locally, that two calls to Allocate used the same
// identifier for
// channels of incompatible shape (e.g. different numbers of expected
// senders). Cross-process mismatches cannot be detected this way and
// instead manifest as corrupted decodes -- a fatal bug per spec.
var ErrChannelIdentifierMismatch = fmt.Errorf("allocator: channel identifier reused with a different shape")
