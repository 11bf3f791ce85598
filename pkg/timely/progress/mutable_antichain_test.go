package progress

import "testing"

func changes(u []Update[IntTime]) map[IntTime]int64 {
	out := make(map[IntTime]int64, len(u))
	for _, c := range u {
		out[c.Time] += c.Delta
	}
	return out
}

func TestMutableAntichain_EntersOnFirstCount(t *testing.T) {
	m := NewMutableAntichain[IntTime]()
	m.Update(IntTime(0), 1)

	if m.Empty() {
		t.Fatalf("frontier should not be empty after a positive count")
	}
	if got := m.Frontier(); len(got) != 1 || got[0] != IntTime(0) {
		t.Fatalf("expected frontier {0}, got %v", got)
	}

	c := changes(m.FrontierChanges())
	if c[IntTime(0)] != 1 {
		t.Fatalf("expected +1 change at 0, got %v", c)
	}
}

func TestMutableAntichain_LeavesOnZeroCount(t *testing.T) {
	m := NewMutableAntichain[IntTime]()
	m.Update(IntTime(1), 1)
	m.FrontierChanges()

	m.Update(IntTime(1), -1)
	if !m.Empty() {
		t.Fatalf("frontier should be empty once count returns to zero")
	}
	c := changes(m.FrontierChanges())
	if c[IntTime(1)] != -1 {
		t.Fatalf("expected -1 change at 1, got %v", c)
	}
}

func TestMutableAntichain_SmallerElementDisplacesLarger(t *testing.T) {
	m := NewMutableAntichain[IntTime]()
	m.Update(IntTime(5), 1)
	m.FrontierChanges()

	// A smaller element enters and should displace 5 from the frontier,
	// even though 5's count is still positive (it returns to the multiset).
	m.Update(IntTime(2), 1)

	if got := m.Frontier(); len(got) != 1 || got[0] != IntTime(2) {
		t.Fatalf("expected frontier {2}, got %v", got)
	}
	c := changes(m.FrontierChanges())
	if c[IntTime(2)] != 1 || c[IntTime(5)] != -1 {
		t.Fatalf("expected 2 to enter and 5 to leave, got %v", c)
	}

	// 5 should reappear in the frontier once 2's count drops to zero.
	m.Update(IntTime(2), -1)
	if got := m.Frontier(); len(got) != 1 || got[0] != IntTime(5) {
		t.Fatalf("expected frontier {5} again, got %v", got)
	}
}

func TestMutableAntichain_BatchUpdateRecomputesOnce(t *testing.T) {
	m := NewMutableAntichain[IntTime]()
	m.UpdateIter([]Update[IntTime]{
		{Time: IntTime(3), Delta: 1},
		{Time: IntTime(1), Delta: 1},
		{Time: IntTime(1), Delta: -1},
	})
	if got := m.Frontier(); len(got) != 1 || got[0] != IntTime(3) {
		t.Fatalf("expected frontier {3} after net batch, got %v", got)
	}
}

func TestMutableAntichain_Monotonicity(t *testing.T) {
	// Holds a capability at every step so the frontier only ever advances
	// (via dominance) or stays put, never retreating -- it never fully
	// drains until the final release, which is the only legitimate case
	// where "empty" (all done) may follow a nonempty frontier.
	m := NewMutableAntichain[IntTime]()
	m.Update(IntTime(0), 1)
	var prev Antichain[IntTime] = m.FrontierAntichain()
	m.FrontierChanges()

	steps := []Update[IntTime]{
		{Time: IntTime(1), Delta: 1},
		{Time: IntTime(0), Delta: -1},
		{Time: IntTime(2), Delta: 1},
		{Time: IntTime(1), Delta: -1},
	}
	for _, s := range steps {
		m.Update(s.Time, s.Delta)
		cur := m.FrontierAntichain()
		if !prev.LessEqualAntichain(cur) {
			t.Fatalf("frontier retreated: prev=%v cur=%v", prev.Elements(), cur.Elements())
		}
		prev = cur
	}

	m.Update(IntTime(2), -1)
	if !m.Empty() {
		t.Fatalf("expected fully drained frontier at the end")
	}
}
