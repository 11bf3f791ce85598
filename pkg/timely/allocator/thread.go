package allocator

// ThreadPeer is the degenerate single-worker backend: Allocate always
// returns exactly one Pusher/Puller pair backed by an in-memory queue, and
// no bytes are ever produced -- decode is never invoked. Grounded on the
// original's Thread allocator, the "everything stays local" baseline every
// other backend is measured against.
type ThreadPeer struct {
	registry *channelRegistry
	channels map[int]*threadChannel
}

// NewThreadPeer returns a ready-to-use single-worker peer.
func NewThreadPeer() *ThreadPeer {
	return &ThreadPeer{registry: newChannelRegistry(), channels: make(map[int]*threadChannel)}
}

// Index implements Peer.
func (p *ThreadPeer) Index() int { return 0 }

// Peers implements Peer.
func (p *ThreadPeer) Peers() int { return 1 }

type threadChannel struct {
	pending []Bytesable
}

func (c *threadChannel) Send(m Bytesable) error { c.pending = append(c.pending, m); return nil }
func (c *threadChannel) Done()                  {}

func (c *threadChannel) Recv() (Bytesable, bool) {
	if len(c.pending) == 0 {
		return nil, false
	}
	m := c.pending[0]
	c.pending = c.pending[1:]
	return m, true
}

// Allocate implements Peer. Since Peers() is always 1, every channel has
// exactly one pusher, pointed straight back at the same queue a caller
// pulls from.
func (p *ThreadPeer) Allocate(identifier int, _ DecodeFunc) ([]Pusher, Puller) {
	p.registry.checkOrRegister(identifier, 1)
	ch, ok := p.channels[identifier]
	if !ok {
		ch = &threadChannel{}
		p.channels[identifier] = ch
	}
	return []Pusher{ch}, ch
}

// Receive implements Peer; there is nothing to drain from the network.
func (p *ThreadPeer) Receive() {}

// Release implements Peer; queues hold data directly, nothing to flush.
func (p *ThreadPeer) Release() {}

// Close implements Peer.
func (p *ThreadPeer) Close() error { return nil }
