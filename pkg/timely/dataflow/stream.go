package dataflow

import "github.com/jabolina/go-timely/pkg/timely/progress"

// Batch is one timestamped group of records in flight along an edge of the
// dataflow graph -- the unit a Pusher/Puller pair exchanges. Grounded on the
// original's Content<D> / Message<T, D> pair, collapsed into one type since
// Go's generics make a separate "untimed content" layer unnecessary here.
type Batch[T progress.Timestamp[T], R any] struct {
	Time    T
	Records []R
}

// consumer is anything that can receive a pushed batch -- the thing an
// output's Tee fans out to. The Pipeline pact's queue and the Exchange
// pact's input and routing stage implement it.
type consumer[T progress.Timestamp[T], R any] interface {
	push(Batch[T, R])
}

// Tee fans a single output port's batches out to every registered
// consumer, cloning the record slice for every consumer but the last so
// downstream operators never alias each other's buffers. Grounded on the
// original's OutputPortFlattener, which the Rust source documents doing
// the same last-consumer-reuses-the-allocation trick.
type Tee[T progress.Timestamp[T], R any] struct {
	consumers []consumer[T, R]
}

// NewTee returns an empty fan-out point.
func NewTee[T progress.Timestamp[T], R any]() *Tee[T, R] {
	return &Tee[T, R]{}
}

// addConsumer registers one more destination for this tee's batches.
func (t *Tee[T, R]) addConsumer(c consumer[T, R]) {
	t.consumers = append(t.consumers, c)
}

// push fans a batch out to every registered consumer.
func (t *Tee[T, R]) push(b Batch[T, R]) {
	for i, c := range t.consumers {
		if i == len(t.consumers)-1 {
			c.push(b)
			continue
		}
		clone := make([]R, len(b.Records))
		copy(clone, b.Records)
		c.push(Batch[T, R]{Time: b.Time, Records: clone})
	}
}

// Stream is the logical edge produced by one operator's output port: a
// handle that downstream operators attach to via a Pact when they declare
// their inputs. It carries no data itself; it is resolved into a concrete
// Pusher/Puller pair at connect time.
type Stream[T progress.Timestamp[T], R any] struct {
	Source OperatorShape
	Port   int
	tee    *Tee[T, R]
}

// NewStream wires a stream to the tee that will fan its producer's output
// out to every consumer attached later via Connect.
func NewStream[T progress.Timestamp[T], R any](source OperatorShape, port int, tee *Tee[T, R]) *Stream[T, R] {
	return &Stream[T, R]{Source: source, Port: port, tee: tee}
}

// Connect attaches one more consumer to this stream's underlying tee. Used
// by a Pact when an operator declares an input over this stream.
func (s *Stream[T, R]) Connect(c consumer[T, R]) {
	s.tee.addConsumer(c)
}
