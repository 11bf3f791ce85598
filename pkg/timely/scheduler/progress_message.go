package scheduler

import (
	"encoding/binary"

	"github.com/jabolina/go-timely/pkg/timely/allocator"
	"github.com/jabolina/go-timely/pkg/timely/progress"
)

// progressMessage is the wire envelope broadcast across the fleet (including
// back to the sender itself, via loopback) every scheduler step: one
// operator's drained updates of one kind (consumed, internal or produced)
// for one of its ports.
// Grounded on the original's Message<T>::Progress payload, which likewise
// ships exactly these three vectors of (location, timestamp, delta) triples
// between workers over the progress channel.
type progressMessage[T progress.Timestamp[T]] struct {
	opIndex int
	kind    byte // 0=consumed, 1=internal, 2=produced
	port    int
	updates []progress.Update[T]

	encodeTime func(T) []byte
	decodeTime func([]byte) T
}

const (
	progressKindConsumed byte = 0
	progressKindInternal byte = 1
	progressKindProduced byte = 2
)

// IntoBytes implements allocator.Bytesable. Layout: opIndex(8) kind(1)
// port(8) count(8) then count * (timeLen(8) timeBytes delta(8)).
func (m progressMessage[T]) IntoBytes() []byte {
	buf := make([]byte, 0, m.LengthInBytes())
	buf = appendUint64(buf, uint64(m.opIndex))
	buf = append(buf, m.kind)
	buf = appendUint64(buf, uint64(m.port))
	buf = appendUint64(buf, uint64(len(m.updates)))
	for _, u := range m.updates {
		tb := m.encodeTime(u.Time)
		buf = appendUint64(buf, uint64(len(tb)))
		buf = append(buf, tb...)
		buf = appendUint64(buf, uint64(u.Delta))
	}
	return buf
}

// LengthInBytes implements allocator.Bytesable.
func (m progressMessage[T]) LengthInBytes() int {
	n := 8 + 1 + 8 + 8
	for _, u := range m.updates {
		n += 8 + len(m.encodeTime(u.Time)) + 8
	}
	return n
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func readUint64(data []byte) (uint64, []byte) {
	return binary.LittleEndian.Uint64(data[:8]), data[8:]
}

// decodeProgressMessage reconstructs a progressMessage encoded by IntoBytes,
// using decodeTime to reconstruct each carried timestamp.
func decodeProgressMessage[T progress.Timestamp[T]](data []byte, decodeTime func([]byte) T) progressMessage[T] {
	opIndex, rest := readUint64(data)
	kind := rest[0]
	rest = rest[1:]
	port, rest := readUint64(rest)
	count, rest := readUint64(rest)

	updates := make([]progress.Update[T], 0, count)
	for i := uint64(0); i < count; i++ {
		tlen, r := readUint64(rest)
		tb := r[:tlen]
		r = r[tlen:]
		delta, r2 := readUint64(r)
		rest = r2
		updates = append(updates, progress.Update[T]{Time: decodeTime(tb), Delta: int64(delta)})
	}

	return progressMessage[T]{
		opIndex: int(opIndex),
		kind:    kind,
		port:    int(port),
		updates: updates,
		decodeTime: decodeTime,
	}
}

// progressChannel wraps the allocator channel carrying progressMessage
// values for one dataflow, with the encode/decode closures bound to the
// dataflow's concrete timestamp type.
type progressChannel[T progress.Timestamp[T]] struct {
	pushers    []allocator.Pusher
	puller     allocator.Puller
	encodeTime func(T) []byte
	decodeTime func([]byte) T
}

// openProgressChannel allocates the progress-message channel for a single
// dataflow, identified by a unique integer within the worker's peer.
func openProgressChannel[T progress.Timestamp[T]](
	peer allocator.Peer, identifier int, encodeTime func(T) []byte, decodeTime func([]byte) T,
) *progressChannel[T] {
	decode := func(data []byte) allocator.Bytesable {
		return decodeProgressMessage(data, decodeTime)
	}
	pushers, puller := peer.Allocate(identifier, decode)
	return &progressChannel[T]{pushers: pushers, puller: puller, encodeTime: encodeTime, decodeTime: decodeTime}
}

// Broadcast sends one progressMessage per drained port-update group in p to
// every worker in the fleet, including this one (loopback keeps the sender's
// own tracker in sync with a single code path).
func (c *progressChannel[T]) Broadcast(p OperatorProgress[T]) error {
	groups := []struct {
		kind  byte
		ports []PortUpdates[T]
	}{
		{progressKindConsumed, p.Consumed},
		{progressKindInternal, p.Internal},
		{progressKindProduced, p.Produced},
	}
	for _, g := range groups {
		for _, pu := range g.ports {
			msg := progressMessage[T]{
				opIndex:    p.OpIndex,
				kind:       g.kind,
				port:       pu.Port,
				updates:    pu.Updates,
				encodeTime: c.encodeTime,
			}
			for _, pusher := range c.pushers {
				if err := pusher.Send(msg); err != nil {
					return err
				}
			}
		}
	}
	for _, pusher := range c.pushers {
		pusher.Done()
	}
	return nil
}

// Drain pulls every progressMessage currently buffered off the wire and
// invokes apply once per message. Consumed and produced messages are
// delivered too, for callers that want to audit the conservation law
// (produced - consumed - pending == 0 per timestamp); this implementation's
// frontier computation only acts on internal (capability) updates, since
// output frontiers are derived from capability and input frontiers alone.
func (c *progressChannel[T]) Drain(apply func(opIndex, port int, kind byte, updates []progress.Update[T])) {
	for {
		raw, ok := c.puller.Recv()
		if !ok {
			return
		}
		msg, ok := raw.(progressMessage[T])
		if !ok {
			continue
		}
		apply(msg.opIndex, msg.port, msg.kind, msg.updates)
	}
}
