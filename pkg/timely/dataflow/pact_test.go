package dataflow

import (
	"testing"

	"github.com/jabolina/go-timely/pkg/timely/allocator"
	"github.com/jabolina/go-timely/pkg/timely/capability"
	"github.com/jabolina/go-timely/pkg/timely/progress"
)

// loopbackPeer is a single-worker allocator.Peer used to exercise the
// Exchange pact's wiring without a real transport -- every record it
// routes lands back on the only worker in the fleet.
type loopbackPeer struct{}

func (loopbackPeer) Index() int { return 0 }
func (loopbackPeer) Peers() int { return 1 }

func (loopbackPeer) Allocate(_ int, _ allocator.DecodeFunc) ([]allocator.Pusher, allocator.Puller) {
	ch := make(chan allocator.Bytesable, 16)
	return []allocator.Pusher{&loopbackPusher{ch: ch}}, &loopbackPuller{ch: ch}
}

func (loopbackPeer) Receive()     {}
func (loopbackPeer) Release()     {}
func (loopbackPeer) Close() error { return nil }

type loopbackPusher struct{ ch chan allocator.Bytesable }

func (p *loopbackPusher) Send(m allocator.Bytesable) error { p.ch <- m; return nil }
func (p *loopbackPusher) Done()                             {}

type loopbackPuller struct{ ch chan allocator.Bytesable }

func (p *loopbackPuller) Recv() (allocator.Bytesable, bool) {
	select {
	case m := <-p.ch:
		return m, true
	default:
		return nil, false
	}
}

// testRecord is a minimal Bytesable record type for exercising Exchange.
type testRecord string

func (r testRecord) IntoBytes() []byte { return []byte(r) }
func (r testRecord) LengthInBytes() int { return len(r) }

func TestExchange_SelfRoutedRecordsArriveLocally(t *testing.T) {
	producerBuilder := NewOperatorBuilder[progress.IntTime, progress.IntSummary]("producer", 0)
	out, stream := NewOutput[progress.IntTime, progress.IntSummary, testRecord](producerBuilder)

	done := false
	producer := producerBuilder.BuildReschedule(func(caps []capability.Capability[progress.IntTime]) func([]progress.Antichain[progress.IntTime]) bool {
		cap := caps[0]
		return func(_ []progress.Antichain[progress.IntTime]) bool {
			if done {
				cap.Drop()
				return false
			}
			sess := out.Session(cap.Time(), cap.Output())
			sess.GiveAll([]testRecord{"x", "y"})
			sess.Flush()
			done = true
			return true
		}
	})

	exchange := Exchange[progress.IntTime, testRecord]{
		Peer:      loopbackPeer{},
		ChannelID: 1,
		Router:    func(testRecord) uint64 { return 0 },
		DecodeTime: func(b []byte) progress.IntTime {
			return progress.IntTimeFromBytes(b)
		},
		DecodeRecord: func(b []byte) testRecord { return testRecord(b) },
	}

	consumerBuilder := NewOperatorBuilder[progress.IntTime, progress.IntSummary]("consumer", 1)
	in := NewInput[progress.IntTime, progress.IntSummary, testRecord](consumerBuilder, stream, exchange)

	var collected []testRecord
	consumer := consumerBuilder.Build(func(_ []progress.Antichain[progress.IntTime], _ []capability.Capability[progress.IntTime]) bool {
		for {
			b, ok := in.Pull()
			if !ok {
				break
			}
			collected = append(collected, b.Records...)
		}
		return true
	})

	for i := 0; i < 2; i++ {
		producer.Step()
		consumer.Step()
	}

	if len(collected) != 2 || collected[0] != "x" || collected[1] != "y" {
		t.Fatalf("expected [x y] collected in order, got %v", collected)
	}
}
