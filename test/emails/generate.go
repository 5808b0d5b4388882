package emails

import (
	"crypto/rand"
	"encoding/hex"
	"log"
)

// identifiers look like hashed emails:
//
//  e:0e1f461bbefa6e07cc2ef06b9ee1ed25101e24d4345af266ed2f5a58bcd26c5e
//  e:59245d7c68b28404e068b15cba430082549b845ab412c4c3b31fb8632fd794e1
//
// random blobs of HashLen bytes expressed in hex and prefixed with Prefix

const (
	Prefix  = "e:"
	HashLen = 32
)

// Generate writes n fresh prefixed identifiers to a channel and then closes it
func Generate(n int) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for i := 0; i < n; i++ {
			b := make([]byte, HashLen)
			if _, err := rand.Read(b); err != nil {
				log.Fatalf("could not generate identifier %d of %d: %v", i, n, err)
			}
			out <- prefix(b)
		}
	}()
	return out
}

// Collect reads n identifiers from Generate into a set
func Collect(n int) map[string]struct{} {
	ids := make(map[string]struct{}, n)
	for id := range Generate(n) {
		ids[string(id)] = struct{}{}
	}
	return ids
}

// prefix a byte value with the local preset prefix
// after hex encoding it
func prefix(value []byte) []byte {
	out := make([]byte, len(Prefix)+hex.EncodedLen(len(value)))
	// copy the prefix first and then the
	// hex string
	copy(out, Prefix)
	hex.Encode(out[len(Prefix):], value)
	return out
}
