// ════════════════════════════════════════════════════════════════════════════
// SEQUENCE SET
// ────────────────────────────────────────────────────────────────────────────
// Fixed-capacity Robin Hood set of probe sequence numbers, sized once from
// the record count so it never grows. Used to tell first sightings from
// duplicates while a capture is summarized; a log of tens of millions of
// samples costs one uint32 slice instead of a map bucket per key.
//
//   - Power-of-two table, index = seq & mask
//   - Slot value 0 means empty, so sequence 0 is tracked by a flag
//   - An inserting key steals the slot of any resident closer to home
// ════════════════════════════════════════════════════════════════════════════

package export

type seqSet struct {
	keys []uint32
	mask uint32
	zero bool
	n    int
}

// newSeqSet sizes the table to at least twice capacity.
func newSeqSet(capacity int) *seqSet {
	size := uint32(2)
	for int(size) < capacity*2 {
		size <<= 1
	}
	return &seqSet{keys: make([]uint32, size), mask: size - 1}
}

// add inserts seq and reports whether it was absent. The set must never hold
// more than half its slots; newSeqSet guarantees that for capacity keys.
func (s *seqSet) add(seq uint32) bool {
	if seq == 0 {
		if s.zero {
			return false
		}
		s.zero = true
		s.n++
		return true
	}

	key := seq
	i := key & s.mask
	dist := uint32(0)
	for {
		k := s.keys[i]
		if k == 0 {
			s.keys[i] = key
			s.n++
			return true
		}
		if k == key {
			return false
		}
		// displacement of the resident from its home slot
		kDist := (i + s.mask + 1 - (k & s.mask)) & s.mask
		if kDist < dist {
			key, s.keys[i] = k, key
			dist = kDist
		}
		i = (i + 1) & s.mask
		dist++
	}
}

// len is the number of distinct sequences added.
func (s *seqSet) len() int { return s.n }
