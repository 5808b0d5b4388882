package fuse

import (
	"github.com/optable/fuse/internal/hash"
)

// positionGenerator maps keys to their three storage slots under
// one seed of a keyed hash function.
type positionGenerator struct {
	segmentLength      uint32
	segmentLengthMask  uint32
	segmentCountLength uint32
	seed               [hash.KeyLength]byte
	hasher             hash.Hasher
}

func newPositionGenerator(p Params, hasher hash.Hasher) *positionGenerator {
	return &positionGenerator{
		segmentLength:      uint32(p.SegmentLength()),
		segmentLengthMask:  uint32(p.SegmentLength() - 1),
		segmentCountLength: uint32(p.SegmentCountLength()),
		hasher:             hasher,
	}
}

// setSeed re-keys the hash function
func (g *positionGenerator) setSeed(seed [hash.KeyLength]byte) {
	g.seed = seed
	g.hasher.SetKey(seed)
}

// hash returns the raw 64-bit hash of key
func (g *positionGenerator) hash(key []byte) uint64 {
	return g.hasher.Hash64(key)
}

// positions returns the three storage slots of key
func (g *positionGenerator) positions(key []byte) [Arity]int {
	return g.positionsFromHash(g.hash(key))
}

// positionsFromHash returns the three storage slots of a raw hash.
// h0 picks the segment, h1 and h2 sit in the two segments that
// follow with their in-segment offset flipped by bits of the hash.
func (g *positionGenerator) positionsFromHash(raw uint64) (h [Arity]int) {
	h0 := reduce(uint32(raw>>32), g.segmentCountLength)
	h1 := h0 + g.segmentLength
	h2 := h1 + g.segmentLength
	h1 ^= uint32(raw>>18) & g.segmentLengthMask
	h2 ^= uint32(raw) & g.segmentLengthMask
	h[0], h[1], h[2] = int(h0), int(h1), int(h2)
	return
}

// basePositions returns the three slots of a raw hash before the
// in-segment offsets are randomized.
func (g *positionGenerator) basePositions(raw uint64) (h [Arity]int) {
	h0 := reduce(uint32(raw>>32), g.segmentCountLength)
	h[0] = int(h0)
	h[1] = int(h0 + g.segmentLength)
	h[2] = int(h0 + 2*g.segmentLength)
	return
}

// positionForRole returns slot role (0, 1 or 2) of a raw hash
// without computing the other two.
func (g *positionGenerator) positionForRole(raw uint64, role uint8) int {
	h := reduce(uint32(raw>>32), g.segmentCountLength)
	h += uint32(role) * g.segmentLength
	// role 0 shifts by 36 and keeps no bits of the low 36
	low := raw & (1<<36 - 1)
	h ^= uint32(low>>(36-18*uint64(role))) & g.segmentLengthMask
	return int(h)
}

// reduce maps a uniformly into [0, n) with a multiply and a shift
func reduce(a, n uint32) uint32 {
	return uint32((uint64(a) * uint64(n)) >> 32)
}
