package export

import (
	"math"
	"math/rand"
	"testing"
)

// has reports membership. A lookup stops once it has travelled further than
// the resident it is looking at; Robin Hood order would have placed seq
// before it.
func (s *seqSet) has(seq uint32) bool {
	if seq == 0 {
		return s.zero
	}
	i := seq & s.mask
	dist := uint32(0)
	for {
		k := s.keys[i]
		if k == 0 {
			return false
		}
		if k == seq {
			return true
		}
		if (i+s.mask+1-(k&s.mask))&s.mask < dist {
			return false
		}
		i = (i + 1) & s.mask
		dist++
	}
}

func TestSeqSetZeroAndMax(t *testing.T) {
	s := newSeqSet(4)
	for _, seq := range []uint32{0, math.MaxUint32, 1} {
		if !s.add(seq) {
			t.Fatalf("first add(%d) reported duplicate", seq)
		}
		if s.add(seq) {
			t.Fatalf("second add(%d) reported new", seq)
		}
		if !s.has(seq) {
			t.Fatalf("has(%d) = false", seq)
		}
	}
	if s.len() != 3 {
		t.Fatalf("len = %d, want 3", s.len())
	}
	if s.has(2) {
		t.Fatal("has(2) on absent key")
	}
}

// TestSeqSetCollisions fills one home slot chain and a wrapped run.
func TestSeqSetCollisions(t *testing.T) {
	s := newSeqSet(8) // 16 slots
	keys := []uint32{15, 31, 47, 63, 1, 17, 33}
	for _, k := range keys {
		if !s.add(k) {
			t.Fatalf("add(%d) reported duplicate", k)
		}
	}
	for _, k := range keys {
		if !s.has(k) {
			t.Fatalf("lost %d after displacement", k)
		}
		if s.add(k) {
			t.Fatalf("re-add(%d) reported new", k)
		}
	}
	if s.has(79) {
		t.Fatal("has(79) on absent colliding key")
	}
}

func TestSeqSetMatchesMap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 50000
	s := newSeqSet(n)
	ref := make(map[uint32]struct{}, n)
	for i := 0; i < n; i++ {
		seq := uint32(rng.Intn(n / 2))
		_, dup := ref[seq]
		ref[seq] = struct{}{}
		if got := s.add(seq); got == dup {
			t.Fatalf("add(%d) = %v, map says dup=%v", seq, got, dup)
		}
	}
	if s.len() != len(ref) {
		t.Fatalf("len = %d, want %d", s.len(), len(ref))
	}
	for seq := uint32(0); seq < n; seq++ {
		_, want := ref[seq]
		if s.has(seq) != want {
			t.Fatalf("has(%d) = %v, want %v", seq, !want, want)
		}
	}
}

func BenchmarkSeqSetAdd(b *testing.B) {
	s := newSeqSet(b.N + 1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.add(uint32(i))
	}
}
