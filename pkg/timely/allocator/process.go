package allocator

import "sync"

// ProcessFleet is the shared state behind every ProcessPeer in one OS
// process: one Go channel per (channel identifier, destination worker)
// pair, so workers exchange messages by passing the Bytesable value
// straight across a channel -- no encode/decode pass, since everyone
// shares an address space. Grounded on the original's Process allocator,
// built from a shared matrix of per-worker senders; go-mcast's
// ReliableTransport.producer channel is the same "channel as the wire"
// idiom at one-worker scale.
type ProcessFleet struct {
	peers    int
	registry *channelRegistry

	mu       sync.Mutex
	channels map[int][]chan Bytesable
}

// NewProcessFleet prepares a fleet of peers worker peers that all live in
// this process.
func NewProcessFleet(peers int) *ProcessFleet {
	return &ProcessFleet{
		peers:    peers,
		registry: newChannelRegistry(),
		channels: make(map[int][]chan Bytesable),
	}
}

// Peer returns the handle for worker index, 0 <= index < peers.
func (f *ProcessFleet) Peer(index int) *ProcessPeer {
	return &ProcessPeer{fleet: f, index: index}
}

func (f *ProcessFleet) channelsFor(identifier int) []chan Bytesable {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry.checkOrRegister(identifier, f.peers)
	chans, ok := f.channels[identifier]
	if !ok {
		chans = make([]chan Bytesable, f.peers)
		for i := range chans {
			chans[i] = make(chan Bytesable, 1024)
		}
		f.channels[identifier] = chans
	}
	return chans
}

// ProcessPeer is one worker's view onto a ProcessFleet.
type ProcessPeer struct {
	fleet *ProcessFleet
	index int
}

// Index implements Peer.
func (p *ProcessPeer) Index() int { return p.index }

// Peers implements Peer.
func (p *ProcessPeer) Peers() int { return p.fleet.peers }

type processPusher struct{ ch chan Bytesable }

// Send implements Pusher. The channel backpressures naturally once its
// buffer fills, which is the in-process analogue of a full socket buffer.
func (s processPusher) Send(m Bytesable) error {
	s.ch <- m
	return nil
}

func (s processPusher) Done() {}

type processPuller struct{ ch chan Bytesable }

// Recv implements Puller: never blocks, returns ok=false if nothing is
// currently queued.
func (r processPuller) Recv() (Bytesable, bool) {
	select {
	case m := <-r.ch:
		return m, true
	default:
		return nil, false
	}
}

// Allocate implements Peer: decode is accepted for interface symmetry with
// the cross-process backends but never called, since values cross this
// backend's channels unencoded.
func (p *ProcessPeer) Allocate(identifier int, _ DecodeFunc) ([]Pusher, Puller) {
	chans := p.fleet.channelsFor(identifier)
	pushers := make([]Pusher, len(chans))
	for i, ch := range chans {
		pushers[i] = processPusher{ch: ch}
	}
	return pushers, processPuller{ch: chans[p.index]}
}

// Receive implements Peer; delivery already happens synchronously through
// the Go channels, so there is nothing to pump.
func (p *ProcessPeer) Receive() {}

// Release implements Peer; Send already delivers immediately.
func (p *ProcessPeer) Release() {}

// Close implements Peer.
func (p *ProcessPeer) Close() error { return nil }
