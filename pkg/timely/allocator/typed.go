package allocator

// TypedSender is a type-safe view of a Pusher for a concrete Bytesable
// message type M. Go cannot express a generic method on the Peer
// interface itself (interface methods may not introduce new type
// parameters), so typed access is layered on top as a free function,
// AllocateTyped, instead -- the idiomatic Go answer to the original's
// generic `allocate<M: Bytesable>`.
type TypedSender[M Bytesable] struct {
	inner Pusher
}

// Send serializes nothing extra -- M already knows how to bytes-ize
// itself -- and forwards to the underlying Pusher.
func (s TypedSender[M]) Send(m M) error {
	return s.inner.Send(m)
}

// Done forwards to the underlying Pusher.
func (s TypedSender[M]) Done() {
	s.inner.Done()
}

// TypedReceiver is a type-safe view of a Puller for a concrete message
// type M.
type TypedReceiver[M Bytesable] struct {
	inner Puller
}

// Recv returns the next available message of type M, or ok=false if none
// is currently buffered. Panics if the underlying Puller yields a value
// that does not assert to M -- this can only happen if some worker in the
// fleet allocated the same channel identifier for a different type, which
// is the fatal "mismatched ids" bug the spec calls out.
func (r TypedReceiver[M]) Recv() (M, bool) {
	raw, ok := r.inner.Recv()
	if !ok {
		var zero M
		return zero, false
	}
	typed, ok := raw.(M)
	if !ok {
		panic("allocator: channel identifier reused with a mismatched message type")
	}
	return typed, true
}

// AllocateTyped wraps Peer.Allocate with compile-time message typing. decode
// must reconstruct an M from bytes; it is only invoked by backends that
// cross a process boundary.
func AllocateTyped[M Bytesable](peer Peer, identifier int, decode func([]byte) M) ([]TypedSender[M], TypedReceiver[M]) {
	pushers, puller := peer.Allocate(identifier, func(data []byte) Bytesable { return decode(data) })
	senders := make([]TypedSender[M], len(pushers))
	for i, p := range pushers {
		senders[i] = TypedSender[M]{inner: p}
	}
	return senders, TypedReceiver[M]{inner: puller}
}
