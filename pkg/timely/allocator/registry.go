package allocator

import (
	"fmt"
	"sync"
)

// channelShape records what Allocate was first called with for a given
// identifier, so a same-process backend can catch a caller reusing a
// channel identifier for a different fleet size. Grounded on go-mcast's
// Peer.observers, a mutex-guarded per-identifier registry consulted on
// every request.
type channelShape struct {
	peers int
}

// channelRegistry is held by every backend (Thread, Process, ProcessBinary
// and Cluster) to share this bookkeeping; it checks only the allocations
// made within one process.
type channelRegistry struct {
	mu     sync.Mutex
	shapes map[int]channelShape
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{shapes: make(map[int]channelShape)}
}

// checkOrRegister records identifier's shape on first use, and panics if a
// later call disagrees -- a same-process shape mismatch is always a bug in
// the calling code, never a transient condition worth recovering from.
func (r *channelRegistry) checkOrRegister(identifier, peers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shape, ok := r.shapes[identifier]
	if !ok {
		r.shapes[identifier] = channelShape{peers: peers}
		return
	}
	if shape.peers != peers {
		panic(fmt.Errorf("%w: identifier %d first allocated for %d peers, now %d", ErrChannelIdentifierMismatch, identifier, shape.peers, peers))
	}
}
