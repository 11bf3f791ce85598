// Package progress implements the algebra of partially ordered time used to
// track dataflow progress: timestamps, summaries, antichains and the
// compactible change batches used to ship progress deltas between workers.
package progress

import "encoding/binary"

// Timestamp is a partially ordered type used to stamp records flowing
// through a dataflow. Implementations must be cheap to copy and comparable,
// since timestamps are used as multiset keys inside ChangeBatch.
//
// T is the concrete implementing type (the usual curiously-recurring
// generic constraint), so that LessEqual can be expressed without an extra
// type parameter at every call site.
type Timestamp[T any] interface {
	comparable
	// LessEqual reports whether the receiver is less-than-or-equal to other
	// in the timestamp's partial order.
	LessEqual(other T) bool
}

// Summary is the monoid of path summaries associated with a Timestamp T.
// A summary describes the minimum offset applied when a record's timestamp
// crosses an operator or a channel. S is the concrete summary type.
type Summary[S any, T any] interface {
	Timestamp[S]
	// Apply advances t by this summary, returning the resulting timestamp
	// and whether such a timestamp exists (summaries may saturate).
	// Apply must be monotone in t.
	Apply(t T) (T, bool)
	// FollowedBy composes two summaries into the summary of applying the
	// receiver and then other, in that order.
	FollowedBy(other S) S
}

// Minimum returns the zero value of T, which generic code uses as the least
// timestamp. The concrete types here have no Minimum method of their own.
// For IntTime and IntSummary the zero value is the least element; a zero
// VectorTime has no coordinates and is not LessEqual to, nor greater than,
// any VectorTime of non-zero width.
func Minimum[T Timestamp[T]]() (zero T) {
	return zero
}

// IntTime is a totally ordered timestamp over the natural numbers, used by
// the simplest example dataflows (single round, batch-oriented computations).
type IntTime uint64

// LessEqual implements Timestamp[IntTime].
func (t IntTime) LessEqual(other IntTime) bool {
	return t <= other
}

// IntoBytes implements allocator.Bytesable, so IntTime can travel inside
// progress messages and record batches crossing a process boundary.
func (t IntTime) IntoBytes() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(t))
	return buf
}

// LengthInBytes implements allocator.Bytesable.
func (t IntTime) LengthInBytes() int {
	return 8
}

// IntTimeFromBytes reconstructs an IntTime encoded by IntoBytes.
func IntTimeFromBytes(data []byte) IntTime {
	return IntTime(binary.LittleEndian.Uint64(data))
}

// IntSummary is an additive offset over IntTime: applying it produces
// t+delta, or no timestamp (ok=false) on overflow; composing two summaries
// saturates instead of wrapping.
type IntSummary uint64

// LessEqual implements Timestamp[IntSummary]; smaller offsets are "less",
// since a smaller delay dominates a larger one when composing paths.
func (s IntSummary) LessEqual(other IntSummary) bool {
	return s <= other
}

// Apply implements Summary[IntSummary, IntTime].
func (s IntSummary) Apply(t IntTime) (IntTime, bool) {
	sum := uint64(t) + uint64(s)
	if sum < uint64(t) {
		// overflow: no timestamp exists that this summary can produce.
		return 0, false
	}
	return IntTime(sum), true
}

// FollowedBy implements Summary[IntSummary, IntTime].
func (s IntSummary) FollowedBy(other IntSummary) IntSummary {
	sum := s + other
	if sum < s {
		return ^IntSummary(0)
	}
	return sum
}

// VectorTime is a product-order timestamp over a fixed number of
// worker-indexed logical clocks, for dataflows where each worker advances
// its own coordinate independently.
type VectorTime struct {
	// coords is stored as a value-comparable fixed array via a backing
	// string so VectorTime itself remains comparable (usable as a map key
	// inside ChangeBatch) without resorting to slices.
	packed string
	width  int
}

// NewVectorTime builds a VectorTime from per-worker coordinates.
func NewVectorTime(coords []uint64) VectorTime {
	return VectorTime{packed: packUint64s(coords), width: len(coords)}
}

// Coords unpacks the vector timestamp back into per-worker coordinates.
func (t VectorTime) Coords() []uint64 {
	return unpackUint64s(t.packed, t.width)
}

// IntoBytes implements allocator.Bytesable.
func (t VectorTime) IntoBytes() []byte {
	return []byte(t.packed)
}

// LengthInBytes implements allocator.Bytesable.
func (t VectorTime) LengthInBytes() int {
	return len(t.packed)
}

// VectorTimeFromBytes reconstructs a VectorTime of the given width encoded
// by IntoBytes.
func VectorTimeFromBytes(data []byte, width int) VectorTime {
	return VectorTime{packed: string(data), width: width}
}

// LessEqual implements Timestamp[VectorTime]: the product order, true iff
// every coordinate of t is <= the matching coordinate of other.
func (t VectorTime) LessEqual(other VectorTime) bool {
	a, b := t.Coords(), other.Coords()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] > b[i] {
			return false
		}
	}
	return true
}

// VectorSummary is a non-negative per-coordinate delay applied to a
// VectorTime: every coordinate only ever advances, never retreats, so the
// summary algebra stays monotone as required by the Timestamp contract.
type VectorSummary struct {
	packed string
	width  int
}

// NewVectorSummary builds a VectorSummary from per-worker deltas.
func NewVectorSummary(deltas []uint64) VectorSummary {
	return VectorSummary{packed: packUint64s(deltas), width: len(deltas)}
}

func (s VectorSummary) deltas() []uint64 {
	return unpackUint64s(s.packed, s.width)
}

// LessEqual implements Timestamp[VectorSummary].
func (s VectorSummary) LessEqual(other VectorSummary) bool {
	a, b := s.deltas(), other.deltas()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] > b[i] {
			return false
		}
	}
	return true
}

// Apply implements Summary[VectorSummary, VectorTime].
func (s VectorSummary) Apply(t VectorTime) (VectorTime, bool) {
	deltas := s.deltas()
	coords := t.Coords()
	if len(deltas) != len(coords) {
		return VectorTime{}, false
	}
	out := make([]uint64, len(coords))
	for i := range coords {
		sum := coords[i] + deltas[i]
		if sum < coords[i] {
			return VectorTime{}, false
		}
		out[i] = sum
	}
	return NewVectorTime(out), true
}

// FollowedBy implements Summary[VectorSummary, VectorTime].
func (s VectorSummary) FollowedBy(other VectorSummary) VectorSummary {
	a, b := s.deltas(), other.deltas()
	out := make([]uint64, len(a))
	for i := range a {
		sum := a[i] + b[i]
		if sum < a[i] {
			sum = ^uint64(0)
		}
		out[i] = sum
	}
	return NewVectorSummary(out)
}
