package progress

import "testing"

func TestAntichain_InsertDominatesSmaller(t *testing.T) {
	var a Antichain[IntTime]
	if !a.Insert(IntTime(5)) {
		t.Fatalf("expected insert of first element to change the antichain")
	}
	if a.Insert(IntTime(7)) {
		t.Fatalf("7 should be dominated by the existing 5")
	}
	if !a.Insert(IntTime(3)) {
		t.Fatalf("3 should displace 5")
	}
	if got := a.Elements(); len(got) != 1 || got[0] != IntTime(3) {
		t.Fatalf("expected antichain {3}, got %v", got)
	}
}

func TestAntichain_LessEqual(t *testing.T) {
	a := NewAntichain(IntTime(3), IntTime(3))
	if !a.LessEqual(IntTime(3)) {
		t.Fatalf("3 should be in the past of 3")
	}
	if a.LessEqual(IntTime(2)) {
		t.Fatalf("2 should not be reachable from frontier {3}")
	}
}

func TestAntichain_Empty(t *testing.T) {
	var a Antichain[IntTime]
	if !a.IsEmpty() {
		t.Fatalf("zero-value antichain should be empty")
	}
	a.Insert(IntTime(1))
	if a.IsEmpty() {
		t.Fatalf("antichain with one element should not be empty")
	}
}

func TestAntichain_VectorTimeProductOrder(t *testing.T) {
	var a Antichain[VectorTime]
	a.Insert(NewVectorTime([]uint64{1, 2}))
	a.Insert(NewVectorTime([]uint64{2, 1}))
	if len(a.Elements()) != 2 {
		t.Fatalf("incomparable vector times must both survive, got %d elements", len(a.Elements()))
	}
	if !a.LessEqual(NewVectorTime([]uint64{2, 2})) {
		t.Fatalf("(2,2) should be dominated by (1,2) or (2,1)")
	}
	if a.LessEqual(NewVectorTime([]uint64{1, 1})) {
		t.Fatalf("(1,1) should not be reachable from {(1,2),(2,1)}")
	}
}

func TestAntichain_LessEqualAntichain(t *testing.T) {
	old := NewAntichain(IntTime(2))
	newer := NewAntichain(IntTime(5))
	if !old.LessEqualAntichain(newer) {
		t.Fatalf("frontier should be monotone non-retreating from {2} to {5}")
	}
	if newer.LessEqualAntichain(old) {
		t.Fatalf("{5} must not be considered behind {2}")
	}
}
