package idgen

import "testing"

func TestSequenceDeterministic(t *testing.T) {
	a := NewSequence("seed")
	b := NewSequence("seed")
	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		x, y := a.NextID(), b.NextID()
		if x != y {
			t.Fatalf("id %d differs: %s != %s", i, x, y)
		}
		if seen[x] {
			t.Fatalf("id %d repeated: %s", i, x)
		}
		seen[x] = true
	}
}

func TestSequenceSeedsDiffer(t *testing.T) {
	if NewSequence("a").NextID() == NewSequence("b").NextID() {
		t.Fatal("different seeds produced the same first id")
	}
}

func TestUUIDUnique(t *testing.T) {
	var g UUID
	if g.NextID() == g.NextID() {
		t.Fatal("expected distinct ids")
	}
}
