package allocator

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ProtocolVersion is the wire protocol version this build advertises
// during the handshake. Bumped whenever frameHeader's shape changes.
const ProtocolVersion = "1.0.0"

// protocolConstraint is the range of peer protocol versions this build is
// willing to talk to. Grounded on the original's initialize.rs version
// check in try_build, generalized from an exact-match comparison into a
// semver range via hashicorp/go-version, the library go-mcast's go.mod
// already pulls in for the same purpose.
var protocolConstraint = mustConstraint("~> 1.0")

func mustConstraint(c string) version.Constraints {
	parsed, err := version.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return parsed
}

// ClusterConfig describes how to reach every peer in the fleet.
// Addresses[i] is the TCP listen address of worker i; every worker must
// be given the same Addresses slice. Workers with a lower index dial
// workers with a higher index, so exactly one connection exists per pair.
type ClusterConfig struct {
	Index     int
	Addresses []string
	// Logger receives connection lifecycle events. Nil disables logging.
	Logger *logrus.Logger
}

// ClusterPeer is the cross-process backend: every message for another
// worker is encoded with IntoBytes and shipped across a TCP connection
// framed per the wire protocol, decoded with the caller's DecodeFunc on
// arrival; a message a worker sends to itself is delivered unencoded. Grounded on
// go-mcast's ReliableTransport (a long-lived background poll goroutine
// feeding a local channel) and on the original's communication::initialize
// handshake-then-frame-loop structure.
type ClusterPeer struct {
	cfg      ClusterConfig
	registry *channelRegistry
	log      *logrus.Logger

	listener net.Listener
	conns    []*clusterConn // indexed by peer, nil at cfg.Index

	mu       sync.Mutex
	channels map[int]*clusterChannel
}

type clusterConn struct {
	peer int
	conn net.Conn
	mu   sync.Mutex // serializes writes from concurrent Send calls
}

type clusterChannel struct {
	inbound chan Bytesable
	decode  DecodeFunc
}

// Dial establishes this worker's connections to the rest of the fleet:
// dialing every higher-indexed peer, and accepting a connection from
// every lower-indexed one. Blocks until every connection in the fleet is
// established or ctx is cancelled.
func Dial(ctx context.Context, cfg ClusterConfig) (*ClusterPeer, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel) // effectively silent by default
	}

	listener, err := net.Listen("tcp", cfg.Addresses[cfg.Index])
	if err != nil {
		return nil, fmt.Errorf("allocator: listening on %s: %w", cfg.Addresses[cfg.Index], err)
	}

	p := &ClusterPeer{
		cfg:      cfg,
		registry: newChannelRegistry(),
		log:      log,
		listener: listener,
		conns:    make([]*clusterConn, len(cfg.Addresses)),
		channels: make(map[int]*clusterChannel),
	}

	accepted := make(chan *clusterConn, cfg.Index)
	var acceptErr error
	var acceptWG sync.WaitGroup
	acceptWG.Add(1)
	go func() {
		defer acceptWG.Done()
		for i := 0; i < cfg.Index; i++ {
			conn, err := listener.Accept()
			if err != nil {
				acceptErr = fmt.Errorf("allocator: accepting inbound connection: %w", err)
				return
			}
			peer, err := p.handshakeInbound(conn)
			if err != nil {
				acceptErr = err
				return
			}
			accepted <- &clusterConn{peer: peer, conn: conn}
		}
	}()

	group, gctx := errgroup.WithContext(ctx)
	for j := cfg.Index + 1; j < len(cfg.Addresses); j++ {
		j := j
		group.Go(func() error {
			dialer := net.Dialer{}
			conn, err := dialer.DialContext(gctx, "tcp", cfg.Addresses[j])
			if err != nil {
				return fmt.Errorf("allocator: dialing peer %d at %s: %w", j, cfg.Addresses[j], err)
			}
			if err := p.handshakeOutbound(conn); err != nil {
				return err
			}
			p.conns[j] = &clusterConn{peer: j, conn: conn}
			log.WithFields(logrus.Fields{"self": cfg.Index, "peer": j}).Info("allocator: connected")
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	acceptWG.Wait()
	close(accepted)
	if acceptErr != nil {
		return nil, acceptErr
	}
	for c := range accepted {
		p.conns[c.peer] = c
		log.WithFields(logrus.Fields{"self": cfg.Index, "peer": c.peer}).Info("allocator: accepted")
	}

	for j, c := range p.conns {
		if c != nil {
			go p.readLoop(j, c)
		}
	}

	return p, nil
}

func (p *ClusterPeer) handshakeOutbound(conn net.Conn) error {
	if err := writeHandshake(conn, p.cfg.Index, ProtocolVersion); err != nil {
		return err
	}
	_, peerVersion, err := readHandshake(conn)
	if err != nil {
		return err
	}
	return p.checkVersion(peerVersion)
}

// handshakeInbound reads the dialer's index off the wire -- accept order
// need not match dial order once several lower-indexed workers dial
// concurrently, so the index must travel explicitly rather than being
// inferred from acceptance order.
func (p *ClusterPeer) handshakeInbound(conn net.Conn) (int, error) {
	peerIndex, peerVersion, err := readHandshake(conn)
	if err != nil {
		return 0, err
	}
	if err := writeHandshake(conn, p.cfg.Index, ProtocolVersion); err != nil {
		return 0, err
	}
	if err := p.checkVersion(peerVersion); err != nil {
		return 0, err
	}
	return peerIndex, nil
}

func (p *ClusterPeer) checkVersion(peerVersion string) error {
	v, err := version.NewVersion(peerVersion)
	if err != nil {
		return fmt.Errorf("allocator: peer advertised an unparseable protocol version %q: %w", peerVersion, err)
	}
	if !protocolConstraint.Check(v) {
		return fmt.Errorf("allocator: peer protocol version %s does not satisfy %s", peerVersion, protocolConstraint)
	}
	return nil
}

func (p *ClusterPeer) readLoop(peer int, c *clusterConn) {
	for {
		h, payload, err := readFrame(c.conn)
		if err != nil {
			p.log.WithFields(logrus.Fields{"self": p.cfg.Index, "peer": peer, "error": err}).Warn("allocator: connection closed")
			return
		}
		p.mu.Lock()
		ch, ok := p.channels[h.ChannelID]
		p.mu.Unlock()
		if !ok {
			// A frame for a channel this worker hasn't allocated yet is a
			// fatal ordering bug: every channel must be allocated on every
			// worker before the dataflow starts stepping.
			panic(fmt.Errorf("allocator: received a frame for unregistered channel %d", h.ChannelID))
		}
		ch.inbound <- ch.decode(payload)
	}
}

// Index implements Peer.
func (p *ClusterPeer) Index() int { return p.cfg.Index }

// Peers implements Peer.
func (p *ClusterPeer) Peers() int { return len(p.cfg.Addresses) }

// Allocate implements Peer. Must be called with the same identifier, by
// every worker in the fleet, before any of them starts stepping.
func (p *ClusterPeer) Allocate(identifier int, decode DecodeFunc) ([]Pusher, Puller) {
	p.registry.checkOrRegister(identifier, len(p.cfg.Addresses))

	p.mu.Lock()
	ch, ok := p.channels[identifier]
	if !ok {
		ch = &clusterChannel{inbound: make(chan Bytesable, 1024), decode: decode}
		p.channels[identifier] = ch
	}
	p.mu.Unlock()

	pushers := make([]Pusher, len(p.cfg.Addresses))
	for i := range pushers {
		if i == p.cfg.Index {
			pushers[i] = localPusher{inbound: ch.inbound}
			continue
		}
		pushers[i] = clusterPusher{identifier: identifier, self: p.cfg.Index, target: i, conn: p.conns[i]}
	}
	return pushers, clusterPuller{ch: ch.inbound}
}

// Receive implements Peer; delivery happens continuously via background
// readLoop goroutines, so there is nothing to pump here.
func (p *ClusterPeer) Receive() {}

// Release implements Peer; Send writes synchronously, so nothing is
// buffered locally to flush.
func (p *ClusterPeer) Release() {}

// Close implements Peer, tearing down the listener and every connection.
func (p *ClusterPeer) Close() error {
	var firstErr error
	if err := p.listener.Close(); err != nil {
		firstErr = err
	}
	for _, c := range p.conns {
		if c == nil {
			continue
		}
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// localPusher delivers a self-addressed message straight into the local
// inbound queue, bypassing the network entirely.
type localPusher struct {
	inbound chan Bytesable
}

func (l localPusher) Send(m Bytesable) error { l.inbound <- m; return nil }
func (l localPusher) Done()                  {}

type clusterPusher struct {
	identifier int
	self       int
	target     int
	conn       *clusterConn
}

// Send implements Pusher, framing and writing m to the peer's connection.
func (c clusterPusher) Send(m Bytesable) error {
	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	h := frameHeader{ChannelID: c.identifier, Source: c.self, Target: c.target, Length: uint64(m.LengthInBytes())}
	return writeFrame(c.conn.conn, h, m.IntoBytes())
}

func (c clusterPusher) Done() {}

type clusterPuller struct {
	ch chan Bytesable
}

// Recv implements Puller: never blocks.
func (c clusterPuller) Recv() (Bytesable, bool) {
	select {
	case m := <-c.ch:
		return m, true
	default:
		return nil, false
	}
}
