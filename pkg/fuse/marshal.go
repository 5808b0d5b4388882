package fuse

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/optable/fuse/internal/hash"
)

const (
	encodingVersion = 1
	// version, hash type, poisoned, size, value length,
	// segment length, segment count, seed
	headerLength = 3 + 4*4 + SeedLength

	// MaxStorageBytes bounds the storage of a decoded filter
	MaxStorageBytes = 1 << 34
)

var ErrBadEncoding = fmt.Errorf("malformed fuse filter encoding")

// MarshalBinary encodes the filter: a fixed header carrying the
// parameters and the seed followed by the storage slots in slot order.
func (f *Filter) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(headerLength + len(f.storage))
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the encoded filter to w
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	if f.hashType == customHash {
		return 0, ErrCustomHasher
	}

	var header [headerLength]byte
	header[0] = encodingVersion
	header[1] = byte(f.hashType)
	if f.poisoned {
		header[2] = 1
	}
	binary.LittleEndian.PutUint32(header[3:], uint32(f.params.size))
	binary.LittleEndian.PutUint32(header[7:], uint32(f.params.valueByteLength))
	binary.LittleEndian.PutUint32(header[11:], uint32(f.params.segmentLength))
	binary.LittleEndian.PutUint32(header[15:], uint32(f.params.segmentCount))
	seed := f.Seed()
	copy(header[19:], seed[:])

	n, err := w.Write(header[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(f.storage)
	return int64(n + m), err
}

// UnmarshalBinary decodes a filter encoded with MarshalBinary
func UnmarshalBinary(b []byte) (*Filter, error) {
	r := bytes.NewReader(b)
	f, storageLength, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if storageLength != uint64(r.Len()) {
		return nil, fmt.Errorf("%w: storage has %d bytes, want %d", ErrBadEncoding, r.Len(), storageLength)
	}

	f.storage = make([]byte, storageLength)
	copy(f.storage, b[headerLength:])
	return f, nil
}

// ReadFilter reads a filter encoded with WriteTo from r
func ReadFilter(r io.Reader) (*Filter, error) {
	f, storageLength, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	// storage grows with the bytes actually read, a header alone
	// cannot force a large allocation
	storage, err := io.ReadAll(io.LimitReader(r, int64(storageLength)))
	if err != nil {
		return nil, fmt.Errorf("%w: storage: %v", ErrBadEncoding, err)
	}
	if uint64(len(storage)) != storageLength {
		return nil, fmt.Errorf("%w: storage: %v", ErrBadEncoding, io.ErrUnexpectedEOF)
	}
	f.storage = storage
	return f, nil
}

// readHeader decodes and validates the header read from r. The returned
// filter has no storage yet, storageLength is the number of storage
// bytes that follow the header.
func readHeader(r io.Reader) (f *Filter, storageLength uint64, err error) {
	var header [headerLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: header: %v", ErrBadEncoding, err)
	}
	if header[0] != encodingVersion {
		return nil, 0, fmt.Errorf("%w: unknown version %d", ErrBadEncoding, header[0])
	}

	hashType := int(header[1])
	hasher, err := hash.New(hashType)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}

	size := int(binary.LittleEndian.Uint32(header[3:]))
	valueByteLength := int(binary.LittleEndian.Uint32(header[7:]))
	params, err := NewParams(size, valueByteLength)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	if params.segmentLength != int(binary.LittleEndian.Uint32(header[11:])) ||
		params.segmentCount != int(binary.LittleEndian.Uint32(header[15:])) {
		return nil, 0, fmt.Errorf("%w: layout does not match %s", ErrBadEncoding, params)
	}

	// both factors are below 2^32 so the product cannot overflow
	storageLength = uint64(params.filterLength) * uint64(valueByteLength)
	if storageLength > MaxStorageBytes {
		return nil, 0, fmt.Errorf("%w: %d storage bytes above the %d limit", ErrBadEncoding, storageLength, uint64(MaxStorageBytes))
	}

	var seed [SeedLength]byte
	copy(seed[:], header[19:])

	f = &Filter{
		params:   params,
		gen:      newPositionGenerator(params, hasher),
		hashType: hashType,
		poisoned: header[2] == 1,
	}
	f.gen.setSeed(seed)
	return f, storageLength, nil
}
