package fuse

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"
)

func TestMarshalBinary(t *testing.T) {
	prng := rand.New(rand.NewSource(43))
	entries := makeEntries(prng, 3000, 12)

	for _, ht := range []int{HashSIP, HashHighway, HashBlake2b} {
		f, err := Build(ctx, entries, prng, WithHashType(ht))
		if err != nil {
			t.Fatal(err)
		}

		b, err := f.MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary: %v", err)
		}
		if len(b) != headerLength+f.FilterLength()*f.ValueByteLength() {
			t.Fatalf("encoded %d bytes, want %d", len(b), headerLength+f.FilterLength()*f.ValueByteLength())
		}

		g, err := UnmarshalBinary(b)
		if err != nil {
			t.Fatalf("UnmarshalBinary: %v", err)
		}
		if g.Seed() != f.Seed() || g.HashType() != f.HashType() || g.Params() != f.Params() || g.Poisoned() {
			t.Fatalf("decoded filter header differs")
		}
		checkRoundTrip(t, g, entries)
	}
}

func TestWriteToReadFilter(t *testing.T) {
	entries := map[string][]byte{"x": {0x2A}}
	f, err := Build(ctx, entries, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if int(n) != buf.Len() {
		t.Fatalf("WriteTo reported %d bytes, wrote %d", n, buf.Len())
	}

	g, err := ReadFilter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	checkRoundTrip(t, g, entries)
}

func TestMarshalPoisoned(t *testing.T) {
	// a poisoned filter keeps its flag through encoding
	entries := makeEntries(rand.New(rand.NewSource(47)), 10, 2)
	f, _ := Build(ctx, entries, rand.New(rand.NewSource(1)), WithHasher(&constantHasher{}))
	if _, err := f.MarshalBinary(); err != ErrCustomHasher {
		t.Fatalf("want ErrCustomHasher, got %v", err)
	}

	f.hashType = HashSIP
	b, err := f.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	g, err := UnmarshalBinary(b)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Poisoned() {
		t.Fatalf("poisoned flag lost")
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	f, err := Build(ctx, map[string][]byte{"a": {1}, "b": {2}}, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatal(err)
	}
	good, _ := f.MarshalBinary()

	corrupt := func(i int, v byte) []byte {
		b := append([]byte{}, good...)
		b[i] = v
		return b
	}

	malformedTests := []struct {
		name string
		b    []byte
	}{
		{"empty", nil},
		{"short header", good[:headerLength-1]},
		{"short storage", good[:len(good)-1]},
		{"version", corrupt(0, 9)},
		{"hash type", corrupt(1, 200)},
		{"zero size", corrupt(3, 0)},
		{"segment length", corrupt(11, 3)},
		{"segment count", corrupt(15, 7)},
	}

	for _, tt := range malformedTests {
		if _, err := UnmarshalBinary(tt.b); !errors.Is(err, ErrBadEncoding) {
			t.Errorf("%s: want ErrBadEncoding, got %v", tt.name, err)
		}
	}
}

// encodedHeader encodes a filter header whose layout is consistent with the
// claimed size and value length
func encodedHeader(t *testing.T, size, valueByteLength int) []byte {
	p, err := NewParams(size, valueByteLength)
	if err != nil {
		t.Fatal(err)
	}
	b := make([]byte, headerLength)
	b[0] = encodingVersion
	b[1] = byte(HashSIP)
	binary.LittleEndian.PutUint32(b[3:], uint32(p.Size()))
	binary.LittleEndian.PutUint32(b[7:], uint32(p.ValueByteLength()))
	binary.LittleEndian.PutUint32(b[11:], uint32(p.SegmentLength()))
	binary.LittleEndian.PutUint32(b[15:], uint32(p.SegmentCount()))
	return b
}

func TestUnmarshalOversized(t *testing.T) {
	// a header alone claiming petabytes of storage
	b := encodedHeader(t, 1<<31-1, 1<<20)

	if _, err := UnmarshalBinary(b); !errors.Is(err, ErrBadEncoding) {
		t.Fatalf("UnmarshalBinary: want ErrBadEncoding, got %v", err)
	}
	if _, err := ReadFilter(bytes.NewReader(b)); !errors.Is(err, ErrBadEncoding) {
		t.Fatalf("ReadFilter: want ErrBadEncoding, got %v", err)
	}
}

func TestReadFilterTruncated(t *testing.T) {
	// storage below the limit but missing from the stream
	b := encodedHeader(t, 1<<20, 64)
	b = append(b, make([]byte, 1024)...)

	if _, err := ReadFilter(bytes.NewReader(b)); !errors.Is(err, ErrBadEncoding) {
		t.Fatalf("ReadFilter: want ErrBadEncoding, got %v", err)
	}
	if _, err := UnmarshalBinary(b); !errors.Is(err, ErrBadEncoding) {
		t.Fatalf("UnmarshalBinary: want ErrBadEncoding, got %v", err)
	}
}
