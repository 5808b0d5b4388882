package util

import (
	"fmt"
)

var ErrByteLengthMissMatch = fmt.Errorf("provided bytes do not have the same length for bytewise operations")

// InPlaceAddBytes adds each byte from a to dst modulo 256
// if a and dst are the same length
func InPlaceAddBytes(a, dst []byte) error {
	var n = len(dst)
	if n != len(a) {
		return ErrByteLengthMissMatch
	}

	for i := 0; i < n; i++ {
		dst[i] += a[i]
	}

	return nil
}

// InPlaceSubBytes subtracts each byte of a from dst modulo 256
// if a and dst are the same length
func InPlaceSubBytes(a, dst []byte) error {
	var n = len(dst)
	if n != len(a) {
		return ErrByteLengthMissMatch
	}

	for i := 0; i < n; i++ {
		dst[i] -= a[i]
	}

	return nil
}

// Fill sets every byte of dst to b
func Fill(dst []byte, b byte) {
	for i := range dst {
		dst[i] = b
	}
}

// AllBytesEqual returns true if every byte of src equals b
func AllBytesEqual(src []byte, b byte) bool {
	for _, v := range src {
		if v != b {
			return false
		}
	}
	return true
}
