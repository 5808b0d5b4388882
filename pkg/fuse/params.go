package fuse

import (
	"fmt"
	"math"
)

const (
	// Arity is the number of storage slots summed to decode a key
	Arity = 3
	// MaxSegmentLength bounds the size of a segment
	MaxSegmentLength = 1 << 18
)

// Params holds the layout of a fuse filter derived from the number
// of keys and the byte length of the values.
type Params struct {
	size            int
	valueByteLength int
	segmentLength   int
	segmentCount    int
	filterLength    int
}

// NewParams derives the segment layout for size keys mapped to values
// of valueByteLength bytes.
func NewParams(size, valueByteLength int) (Params, error) {
	if size < 1 {
		return Params{}, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidArgument, size)
	}
	if valueByteLength < 1 {
		return Params{}, fmt.Errorf("%w: value byte length must be positive, got %d", ErrInvalidArgument, valueByteLength)
	}
	if uint64(valueByteLength) > math.MaxUint32 {
		return Params{}, fmt.Errorf("%w: value byte length %d does not fit 32 bits", ErrInvalidArgument, valueByteLength)
	}

	segmentLength := segmentLength(size)
	if segmentLength&(segmentLength-1) != 0 {
		panic(fmt.Errorf("segment length %d derived for %d keys is not a power of 2", segmentLength, size))
	}

	// ln(1) is 0 and the size factor is unbounded, a single key
	// gets the minimal layout
	var capacity int
	if size > 1 {
		capacity = int(math.Floor(float64(size) * sizeFactor(size)))
	}

	segmentCount := (capacity+segmentLength-1)/segmentLength - (Arity - 1)
	arrayLength := (segmentCount + Arity - 1) * segmentLength
	segmentCount = (arrayLength + segmentLength - 1) / segmentLength
	if segmentCount <= Arity-1 {
		segmentCount = 1
	} else {
		segmentCount -= Arity - 1
	}

	// positions are 32 bit and the encoding stores 32 bit fields
	filterLength := (segmentCount + Arity - 1) * segmentLength
	if uint64(filterLength) > math.MaxUint32 {
		return Params{}, fmt.Errorf("%w: %d keys need %d slots, more than 32 bit positions address", ErrInvalidArgument, size, filterLength)
	}

	return Params{
		size:            size,
		valueByteLength: valueByteLength,
		segmentLength:   segmentLength,
		segmentCount:    segmentCount,
		filterLength:    filterLength,
	}, nil
}

// segmentLength returns 2^floor(ln(n)/ln(3.33) + 2.11) capped at MaxSegmentLength
func segmentLength(n int) int {
	l := 1 << int(math.Floor(math.Log(float64(n))/math.Log(3.33)+2.11))
	if l > MaxSegmentLength {
		return MaxSegmentLength
	}
	return l
}

// sizeFactor returns the ratio of slots to keys, n must be greater than 1
func sizeFactor(n int) float64 {
	return math.Max(1.125, 0.875+0.25*math.Log(1e6)/math.Log(float64(n)))
}

// Size returns the number of keys
func (p Params) Size() int { return p.size }

// ValueByteLength returns the length in bytes of every value
func (p Params) ValueByteLength() int { return p.valueByteLength }

// SegmentLength returns the number of slots in a segment, always a power of 2
func (p Params) SegmentLength() int { return p.segmentLength }

// SegmentCount returns the number of segments a first position can fall in
func (p Params) SegmentCount() int { return p.segmentCount }

// SegmentCountLength returns SegmentCount * SegmentLength, the range of h0
func (p Params) SegmentCountLength() int { return p.segmentCount * p.segmentLength }

// FilterLength returns the total number of storage slots
func (p Params) FilterLength() int { return p.filterLength }

func (p Params) String() string {
	return fmt.Sprintf("size=%d valueByteLength=%d segmentLength=%d segmentCount=%d filterLength=%d",
		p.size, p.valueByteLength, p.segmentLength, p.segmentCount, p.filterLength)
}
