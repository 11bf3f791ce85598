package capability

import (
	"testing"

	"github.com/jabolina/go-timely/pkg/timely/progress"
)

func TestCapability_NewRecordsPositiveDelta(t *testing.T) {
	batch := progress.NewChangeBatch[progress.IntTime]()
	cap1 := New(progress.IntTime(3), 0, batch)

	if cap1.Time() != progress.IntTime(3) {
		t.Fatalf("expected time 3, got %v", cap1.Time())
	}

	var total int64
	batch.Iter(func(_ progress.IntTime, delta int64) { total += delta })
	if total != 1 {
		t.Fatalf("expected one live capability recorded, got total %d", total)
	}
}

func TestCapability_DelayedMovesTheCount(t *testing.T) {
	batch := progress.NewChangeBatch[progress.IntTime]()
	cap1 := New(progress.IntTime(1), 0, batch)
	cap2 := cap1.Delayed(progress.IntTime(5))

	seen := make(map[progress.IntTime]int64)
	batch.Iter(func(t progress.IntTime, delta int64) { seen[t] = delta })

	if seen[progress.IntTime(1)] != 0 {
		t.Fatalf("expected time 1 to net to zero, got %v", seen)
	}
	if seen[progress.IntTime(5)] != 1 {
		t.Fatalf("expected time 5 to hold +1, got %v", seen)
	}
	if cap2.Time() != progress.IntTime(5) {
		t.Fatalf("expected delayed capability time 5, got %v", cap2.Time())
	}
}

func TestCapability_DelayedToEarlierTimePanics(t *testing.T) {
	batch := progress.NewChangeBatch[progress.IntTime]()
	cap1 := New(progress.IntTime(5), 0, batch)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic delaying to an earlier time")
		}
	}()
	cap1.Delayed(progress.IntTime(1))
}

func TestCapability_DropRecordsNegativeDelta(t *testing.T) {
	batch := progress.NewChangeBatch[progress.IntTime]()
	cap1 := New(progress.IntTime(2), 0, batch)
	cap1.Drop()

	if !batch.IsEmpty() {
		t.Fatalf("expected batch to net to empty after drop")
	}
	if !cap1.Dropped() {
		t.Fatalf("expected capability to report dropped")
	}

	// Dropping twice must not double-count.
	cap1.Drop()
	if !batch.IsEmpty() {
		t.Fatalf("double drop must not introduce a spurious delta")
	}
}

func TestCapability_CloneIsIndependent(t *testing.T) {
	batch := progress.NewChangeBatch[progress.IntTime]()
	cap1 := New(progress.IntTime(4), 0, batch)
	cap2 := cap1.Clone()

	cap1.Drop()
	var total int64
	batch.Iter(func(_ progress.IntTime, delta int64) { total += delta })
	if total != 1 {
		t.Fatalf("expected clone to still hold one live capability, got %d", total)
	}
	cap2.Drop()
}
