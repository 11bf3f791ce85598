package allocator

import "testing"

func TestProcessFleet_RoutesToTheCorrectWorker(t *testing.T) {
	fleet := NewProcessFleet(3)
	p0, p1, p2 := fleet.Peer(0), fleet.Peer(1), fleet.Peer(2)

	pushers0, puller0 := p0.Allocate(1, decodeStringMsg)
	_, puller1 := p1.Allocate(1, decodeStringMsg)
	_, puller2 := p2.Allocate(1, decodeStringMsg)

	if err := pushers0[1].Send(stringMsg("to-one")); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if err := pushers0[2].Send(stringMsg("to-two")); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	if _, ok := puller0.Recv(); ok {
		t.Fatalf("worker 0 should not have received its own broadcast")
	}
	m1, ok := puller1.Recv()
	if !ok || m1.(stringMsg) != "to-one" {
		t.Fatalf("expected worker 1 to receive 'to-one', got %v ok=%v", m1, ok)
	}
	m2, ok := puller2.Recv()
	if !ok || m2.(stringMsg) != "to-two" {
		t.Fatalf("expected worker 2 to receive 'to-two', got %v ok=%v", m2, ok)
	}
}

func TestProcessBinaryFleet_RoundTripsThroughEncoding(t *testing.T) {
	fleet := NewProcessBinaryFleet(2)
	p0, p1 := fleet.Peer(0), fleet.Peer(1)

	pushers0, _ := p0.Allocate(1, decodeStringMsg)
	_, puller1 := p1.Allocate(1, decodeStringMsg)

	if err := pushers0[1].Send(stringMsg("encoded")); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	m, ok := puller1.Recv()
	if !ok || m.(stringMsg) != "encoded" {
		t.Fatalf("expected to decode 'encoded', got %v ok=%v", m, ok)
	}
}
