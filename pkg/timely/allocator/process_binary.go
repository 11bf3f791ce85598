package allocator

import (
	"sync"
)

// slabPool recycles the byte buffers ProcessBinaryPeer encodes messages
// into, so steady-state traffic doesn't allocate a fresh buffer per send.
// Grounded on the original's communication::allocator::zero_copy::bytes_slab,
// simplified from its contiguous-slab-with-offsets design down to a plain
// sync.Pool of whole buffers, since Go's GC already compacts short-lived
// slices well and the zero-copy original's complexity bought mostly page
// reuse across a real socket, which ProcessBinary doesn't have.
type slabPool struct {
	pool sync.Pool
}

func newSlabPool() *slabPool {
	return &slabPool{pool: sync.Pool{New: func() any { return make([]byte, 0, 256) }}}
}

func (s *slabPool) get(n int) []byte {
	buf := s.pool.Get().([]byte)
	if cap(buf) < n {
		return make([]byte, 0, n)
	}
	return buf[:0]
}

func (s *slabPool) put(buf []byte) {
	s.pool.Put(buf) //nolint:staticcheck // intentionally returning a slice to the pool
}

// ProcessBinaryFleet is ProcessFleet's encode-on-send twin: every message
// is turned into bytes via IntoBytes and reconstructed via the caller's
// DecodeFunc, even though every worker shares an address space. This
// exercises the same code path the Cluster backend uses, so correctness
// bugs in a user's encoding surface locally instead of only across a real
// network. Grounded on the original's ProcessBinary allocator, which
// exists for exactly this testing purpose.
type ProcessBinaryFleet struct {
	peers    int
	registry *channelRegistry
	slabs    *slabPool

	mu       sync.Mutex
	channels map[int][]chan []byte
}

// NewProcessBinaryFleet prepares a fleet of peers workers.
func NewProcessBinaryFleet(peers int) *ProcessBinaryFleet {
	return &ProcessBinaryFleet{
		peers:    peers,
		registry: newChannelRegistry(),
		slabs:    newSlabPool(),
		channels: make(map[int][]chan []byte),
	}
}

// Peer returns the handle for worker index.
func (f *ProcessBinaryFleet) Peer(index int) *ProcessBinaryPeer {
	return &ProcessBinaryPeer{fleet: f, index: index}
}

func (f *ProcessBinaryFleet) channelsFor(identifier int) []chan []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry.checkOrRegister(identifier, f.peers)
	chans, ok := f.channels[identifier]
	if !ok {
		chans = make([]chan []byte, f.peers)
		for i := range chans {
			chans[i] = make(chan []byte, 1024)
		}
		f.channels[identifier] = chans
	}
	return chans
}

// ProcessBinaryPeer is one worker's view onto a ProcessBinaryFleet.
type ProcessBinaryPeer struct {
	fleet *ProcessBinaryFleet
	index int
}

// Index implements Peer.
func (p *ProcessBinaryPeer) Index() int { return p.index }

// Peers implements Peer.
func (p *ProcessBinaryPeer) Peers() int { return p.fleet.peers }

type binaryPusher struct {
	ch    chan []byte
	slabs *slabPool
}

// Send implements Pusher, encoding m into a recycled buffer before
// handing it across the channel.
func (s binaryPusher) Send(m Bytesable) error {
	buf := s.slabs.get(m.LengthInBytes())
	buf = append(buf, m.IntoBytes()...)
	s.ch <- buf
	return nil
}

func (s binaryPusher) Done() {}

type binaryPuller struct {
	ch     chan []byte
	decode DecodeFunc
	slabs  *slabPool
}

// Recv implements Puller, decoding the next buffered message and
// returning its backing buffer to the pool.
func (r binaryPuller) Recv() (Bytesable, bool) {
	select {
	case buf := <-r.ch:
		m := r.decode(buf)
		r.slabs.put(buf)
		return m, true
	default:
		return nil, false
	}
}

// Allocate implements Peer.
func (p *ProcessBinaryPeer) Allocate(identifier int, decode DecodeFunc) ([]Pusher, Puller) {
	chans := p.fleet.channelsFor(identifier)
	pushers := make([]Pusher, len(chans))
	for i, ch := range chans {
		pushers[i] = binaryPusher{ch: ch, slabs: p.fleet.slabs}
	}
	return pushers, binaryPuller{ch: chans[p.index], decode: decode, slabs: p.fleet.slabs}
}

// Receive implements Peer.
func (p *ProcessBinaryPeer) Receive() {}

// Release implements Peer.
func (p *ProcessBinaryPeer) Release() {}

// Close implements Peer.
func (p *ProcessBinaryPeer) Close() error { return nil }
