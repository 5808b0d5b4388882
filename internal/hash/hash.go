package hash

import (
	"encoding/binary"
	"fmt"

	"github.com/dchest/siphash"
	"github.com/minio/highwayhash"
	"github.com/shivakar/metrohash"
	"github.com/twmb/murmur3"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

const (
	// KeyLength is the length of the key (seed) of every Hasher
	KeyLength = 16

	SIP = iota
	Murmur3
	Metro
	Highway
	Blake3
	Blake2b
)

// wideKeyContext is the blake3 key derivation context used to expand
// a KeyLength key for hashers that need 32 bytes of key material.
const wideKeyContext = "optable fuse 2022-03-01 wide hash key"

var (
	ErrUnknownHash = fmt.Errorf("cannot create a hasher of unknown hash type")
)

// Hasher is a keyed pseudorandom function from byte strings to 64-bit
// values. Hash64 must be safe to call from multiple goroutines once
// the key is set.
type Hasher interface {
	SetKey(key [KeyLength]byte)
	Hash64([]byte) uint64
}

// New creates an unkeyed hasher of type t. The returned hasher
// behaves as if keyed with the all zero key until SetKey is called.
func New(t int) (Hasher, error) {
	switch t {
	case SIP:
		return &sip64{}, nil
	case Murmur3:
		return &murmur64{}, nil
	case Metro:
		return &metro64{}, nil
	case Highway:
		h := &highway64{}
		h.SetKey([KeyLength]byte{})
		return h, nil
	case Blake3:
		h := &blake3Keyed{}
		h.SetKey([KeyLength]byte{})
		return h, nil
	case Blake2b:
		return &blake2b64{}, nil
	default:
		return nil, ErrUnknownHash
	}
}

// Name returns the short name of hash type t
func Name(t int) string {
	switch t {
	case SIP:
		return "sip"
	case Murmur3:
		return "murmur3"
	case Metro:
		return "metro"
	case Highway:
		return "highway"
	case Blake3:
		return "blake3"
	case Blake2b:
		return "blake2b"
	default:
		return "undefined"
	}
}

// Parse returns the hash type named s
func Parse(s string) (int, error) {
	for _, t := range []int{SIP, Murmur3, Metro, Highway, Blake3, Blake2b} {
		if Name(t) == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownHash, s)
}

// wideKey expands key to 32 bytes of key material
func wideKey(key [KeyLength]byte) (wide [32]byte) {
	blake3.DeriveKey(wideKeyContext, key[:], wide[:])
	return
}

// sipHash implementation of Hasher, keyed with both halves of key
type sip64 struct {
	key0, key1 uint64
}

func (s *sip64) SetKey(key [KeyLength]byte) {
	s.key0 = binary.BigEndian.Uint64(key[:KeyLength/2])
	s.key1 = binary.BigEndian.Uint64(key[KeyLength/2:])
}

func (s *sip64) Hash64(p []byte) uint64 {
	return siphash.Hash(s.key0, s.key1, p)
}

// murmur3 implementation of Hasher that uses the key as a prefix
// to the bytes being summed
type murmur64 struct {
	salt [KeyLength]byte
}

func (m *murmur64) SetKey(key [KeyLength]byte) {
	m.salt = key
}

func (m *murmur64) Hash64(p []byte) uint64 {
	// a fresh buffer per call, the salt is never appended to in place
	buf := make([]byte, 0, KeyLength+len(p))
	buf = append(buf, m.salt[:]...)
	return murmur3.Sum64(append(buf, p...))
}

// metro hash implementation of Hasher that uses the key as a
// prefix to the bytes being summed
type metro64 struct {
	salt [KeyLength]byte
}

func (m *metro64) SetKey(key [KeyLength]byte) {
	m.salt = key
}

func (m *metro64) Hash64(p []byte) uint64 {
	h := metrohash.NewMetroHash64()
	h.Write(m.salt[:])
	h.Write(p)
	return h.Sum64()
}

// highwayhash implementation of Hasher, keyed with the 32 byte
// expansion of the key
type highway64 struct {
	key [32]byte
}

func (h *highway64) SetKey(key [KeyLength]byte) {
	h.key = wideKey(key)
}

func (h *highway64) Hash64(p []byte) uint64 {
	return highwayhash.Sum64(p, h.key[:])
}

// blake3 keyed mode implementation of Hasher, keyed with the 32 byte
// expansion of the key
type blake3Keyed struct {
	key [32]byte
}

func (b *blake3Keyed) SetKey(key [KeyLength]byte) {
	b.key = wideKey(key)
}

func (b *blake3Keyed) Hash64(p []byte) uint64 {
	h, err := blake3.NewKeyed(b.key[:])
	if err != nil {
		// the key is always 32 bytes
		panic(err)
	}
	h.Write(p)

	var out [8]byte
	h.Digest().Read(out[:])
	return binary.LittleEndian.Uint64(out[:])
}

// blake2b keyed implementation of Hasher producing 8 byte digests
type blake2b64 struct {
	key [KeyLength]byte
}

func (b *blake2b64) SetKey(key [KeyLength]byte) {
	b.key = key
}

func (b *blake2b64) Hash64(p []byte) uint64 {
	h, err := blake2b.New(8, b.key[:])
	if err != nil {
		// size and key length are fixed and valid
		panic(err)
	}
	h.Write(p)
	return binary.LittleEndian.Uint64(h.Sum(nil))
}
