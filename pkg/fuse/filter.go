package fuse

import (
	"fmt"

	"github.com/optable/fuse/internal/hash"
	"github.com/optable/fuse/internal/util"
)

// SeedLength is the length of the seed keying the position hash
const SeedLength = hash.KeyLength

const (
	HashSIP     = hash.SIP
	HashMurmur3 = hash.Murmur3
	HashMetro   = hash.Metro
	HashHighway = hash.Highway
	HashBlake3  = hash.Blake3
	HashBlake2b = hash.Blake2b

	// DefaultHashType is used when Build is not given a hasher
	DefaultHashType = HashSIP

	// customHash marks a filter built with a caller supplied Hasher
	customHash = -1
)

var (
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrCustomHasher    = fmt.Errorf("filter built with a custom hasher cannot be encoded")
)

// Hasher is the keyed hash function a filter computes its positions
// with. Implementations must be safe for concurrent Hash64 calls
// once keyed.
type Hasher = hash.Hasher

// Filter is an arity-3 fuse filter: an immutable map from a fixed
// set of keys to byte strings of a fixed length. Decoding a key
// sums its three storage slots bytewise modulo 256. Keys outside
// the construction set decode to arbitrary but stable values.
//
// A Filter is safe for concurrent use once built.
type Filter struct {
	params   Params
	gen      *positionGenerator
	hashType int
	// storage holds FilterLength slots of ValueByteLength bytes each
	storage  []byte
	poisoned bool
}

// Arity returns the number of slots summed per key, always 3
func (f *Filter) Arity() int {
	return Arity
}

// ValueByteLength returns the length of the decoded values
func (f *Filter) ValueByteLength() int {
	return f.params.valueByteLength
}

// FilterLength returns the number of storage slots
func (f *Filter) FilterLength() int {
	return f.params.filterLength
}

// Size returns the number of keys the filter was built over
func (f *Filter) Size() int {
	return f.params.size
}

// Params returns the derived layout
func (f *Filter) Params() Params {
	return f.params
}

// Seed returns the seed the positions are computed with. For a
// poisoned filter it is the last seed tried.
func (f *Filter) Seed() [SeedLength]byte {
	return f.gen.seed
}

// HashType returns the hash type of the filter, or -1 if it was built
// with a caller supplied Hasher.
func (f *Filter) HashType() int {
	return f.hashType
}

// Poisoned returns true if construction gave up after MaxAttempts.
// A poisoned filter has every storage byte set to 0xFF and its
// decoded values are meaningless.
func (f *Filter) Poisoned() bool {
	return f.poisoned
}

// Positions returns the three storage slots of key
func (f *Filter) Positions(key []byte) [Arity]int {
	return f.gen.positions(key)
}

// Decode returns the value stored for key in a newly allocated slice
func (f *Filter) Decode(key []byte) []byte {
	pos := f.gen.positions(key)
	dst := make([]byte, f.params.valueByteLength)
	for _, p := range pos {
		if err := util.InPlaceAddBytes(f.slot(p), dst); err != nil {
			// slots and dst are both valueByteLength long
			panic(err)
		}
	}
	return dst
}

// Storage returns a copy of the storage slots in slot order
func (f *Filter) Storage() [][]byte {
	l := f.params.valueByteLength
	flat := make([]byte, len(f.storage))
	copy(flat, f.storage)

	slots := make([][]byte, f.params.filterLength)
	for i := range slots {
		slots[i] = flat[i*l : (i+1)*l : (i+1)*l]
	}
	return slots
}

// slot returns a view on storage slot i
func (f *Filter) slot(i int) []byte {
	l := f.params.valueByteLength
	return f.storage[i*l : (i+1)*l : (i+1)*l]
}

// poison fills storage with the 0xFF sentinel
func (f *Filter) poison() {
	util.Fill(f.storage, 0xFF)
	f.poisoned = true
}
