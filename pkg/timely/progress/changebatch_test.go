package progress

import "testing"

func TestChangeBatch_CompactsAndDropsZeros(t *testing.T) {
	c := NewChangeBatch[IntTime]()
	c.Update(IntTime(1), 3)
	c.Update(IntTime(2), 5)
	c.Update(IntTime(1), -3)

	if c.Len() != 1 {
		t.Fatalf("expected 1 nonzero entry after compaction, got %d", c.Len())
	}

	var seen map[IntTime]int64 = make(map[IntTime]int64)
	c.Iter(func(t IntTime, delta int64) { seen[t] = delta })
	if seen[IntTime(2)] != 5 {
		t.Fatalf("expected {2: 5}, got %v", seen)
	}
	if _, ok := seen[IntTime(1)]; ok {
		t.Fatalf("zero-sum entry for 1 should have been discarded")
	}
}

func TestChangeBatch_DrainEmptiesTheBatch(t *testing.T) {
	c := NewChangeBatch[IntTime]()
	c.Update(IntTime(7), 2)
	drained := c.Drain()
	if len(drained) != 1 || drained[0].Time != IntTime(7) || drained[0].Delta != 2 {
		t.Fatalf("unexpected drain result: %v", drained)
	}
	if !c.IsEmpty() {
		t.Fatalf("batch should be empty after Drain")
	}
}

func TestChangeBatch_DrainIntoPreservesConservation(t *testing.T) {
	src := NewChangeBatch[IntTime]()
	src.Update(IntTime(1), 4)
	src.Update(IntTime(2), -4)

	dst := NewChangeBatch[IntTime]()
	dst.Update(IntTime(1), 1)

	src.DrainInto(dst)
	if !src.IsEmpty() {
		t.Fatalf("source should be empty after DrainInto")
	}

	var total int64
	dst.Iter(func(_ IntTime, delta int64) { total += delta })
	if total != 1 {
		t.Fatalf("expected net total 1, got %d", total)
	}
}

func TestChangeBatch_CompactIsIdempotent(t *testing.T) {
	c := NewChangeBatch[IntTime]()
	c.Update(IntTime(1), 1)
	c.Compact()
	first := c.Len()
	c.Compact()
	if c.Len() != first {
		t.Fatalf("repeated compaction must not change length")
	}
}
