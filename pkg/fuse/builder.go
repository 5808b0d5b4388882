package fuse

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"io"
	"sort"

	"github.com/optable/fuse/internal/hash"
	"github.com/optable/fuse/internal/util"
	"github.com/optable/fuse/pkg/log"
)

// MaxAttempts is the number of seeds tried before the filter is poisoned
const MaxAttempts = 100

type config struct {
	hasher          Hasher
	hashType        int
	valueByteLength int
}

// Option configures Build
type Option func(*config)

// WithHasher builds the filter with h instead of one of the
// predefined hash types. Such a filter cannot be encoded.
func WithHasher(h Hasher) Option {
	return func(c *config) {
		c.hasher = h
	}
}

// WithHashType selects one of the predefined hash types
func WithHashType(t int) Option {
	return func(c *config) {
		c.hashType = t
	}
}

// WithValueByteLength requires every value to be l bytes long
func WithValueByteLength(l int) Option {
	return func(c *config) {
		c.valueByteLength = l
	}
}

// Build constructs a filter mapping every key of entries to its value.
// Seeds are drawn from random, crypto/rand when nil. If no seed out of
// MaxAttempts gives a peelable layout, the returned filter is poisoned
// and no error is returned, see Filter.Poisoned. Errors are returned
// for invalid entries and for failures to read from random.
//
// The logger is taken from ctx.
func Build(ctx context.Context, entries map[string][]byte, random io.Reader, opts ...Option) (*Filter, error) {
	cfg := config{hashType: DefaultHashType}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrInvalidArgument)
	}

	// sorted keys make the filter a function of the seeds only
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	valueByteLength := cfg.valueByteLength
	if valueByteLength == 0 {
		valueByteLength = len(entries[keys[0]])
	}
	values := make([][]byte, len(keys))
	for i, k := range keys {
		if len(entries[k]) != valueByteLength {
			return nil, fmt.Errorf("%w: value of key %q has %d bytes, want %d", ErrInvalidArgument, k, len(entries[k]), valueByteLength)
		}
		values[i] = entries[k]
	}

	params, err := NewParams(len(keys), valueByteLength)
	if err != nil {
		return nil, err
	}

	hashType := cfg.hashType
	hasher := cfg.hasher
	if hasher != nil {
		hashType = customHash
	} else if hasher, err = hash.New(hashType); err != nil {
		return nil, err
	}

	if random == nil {
		random = crand.Reader
	}

	logger := log.GetLoggerFromContextWithName(ctx, "fuse")
	logger.V(2).Info("deriving layout", "params", params.String(), "hash", hash.Name(hashType))

	f := &Filter{
		params:   params,
		gen:      newPositionGenerator(params, hasher),
		hashType: hashType,
		storage:  make([]byte, params.filterLength*valueByteLength),
	}

	b := newBuilder(params, f.gen)
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		var seed [SeedLength]byte
		if _, err := io.ReadFull(random, seed[:]); err != nil {
			return nil, fmt.Errorf("cannot draw seed for attempt %d: %w", attempt, err)
		}
		f.gen.setSeed(seed)

		for i, k := range keys {
			b.hashes[i] = f.gen.hash([]byte(k))
		}

		if err := b.peel(); err != nil {
			logger.V(1).Info("construction attempt failed", "attempt", attempt, "reason", err.Error())
			b.reset()
			continue
		}

		if err := b.solve(f, values); err != nil {
			return nil, fmt.Errorf("cannot assign storage on attempt %d: %w", attempt, err)
		}
		logger.V(1).Info("filter built", "attempt", attempt, "size", params.size, "filterLength", params.filterLength)
		return f, nil
	}

	logger.Info("construction failed, poisoning filter", "attempts", MaxAttempts, "size", params.size)
	f.poison()
	return f, nil
}

var (
	errOverflow   = fmt.Errorf("more than 63 keys on one slot")
	errUnpeelable = fmt.Errorf("keys left in the 2-core")
)

// builder holds the scratch state of the construction attempts of one
// filter. It is reset between attempts and dropped once the filter is
// built.
type builder struct {
	params Params
	gen    *positionGenerator
	// hashes holds the raw hash of every key in sorted key order
	hashes []uint64

	// bucketed ordering of hashes, n+1 long with a filled sentinel at n
	order    []uint64
	filled   []bool
	startPos []int

	// count holds, per slot, the number of keys in bits 2 to 7 and
	// the xor of their roles in bits 0 and 1
	count []uint8
	// acc holds, per slot, the xor of the hashes of its keys
	acc []uint64
	// alone is the stack of slots holding a single key
	alone []int

	// peeled and roles record the peeled keys in peeling order
	peeled []uint64
	roles  []uint8
}

func newBuilder(p Params, gen *positionGenerator) *builder {
	n := p.size
	return &builder{
		params:   p,
		gen:      gen,
		hashes:   make([]uint64, n),
		order:    make([]uint64, n+1),
		filled:   make([]bool, n+1),
		startPos: make([]int, nextPow2(p.segmentCount)),
		count:    make([]uint8, p.filterLength),
		acc:      make([]uint64, p.filterLength),
		alone:    make([]int, p.filterLength),
		peeled:   make([]uint64, 0, n),
		roles:    make([]uint8, 0, n),
	}
}

// reset clears the scratch state for the next attempt
func (b *builder) reset() {
	for i := range b.count {
		b.count[i] = 0
		b.acc[i] = 0
	}
	for i := range b.filled {
		b.filled[i] = false
	}
	b.peeled = b.peeled[:0]
	b.roles = b.roles[:0]
}

// bucketize writes the hashes into order grouped by their top bits so
// that the keys of neighbouring segments are visited together.
func (b *builder) bucketize() {
	n := b.params.size
	block := len(b.startPos)
	blockBits := uint(0)
	for 1<<blockBits < block {
		blockBits++
	}

	for i := range b.startPos {
		b.startPos[i] = (i * n) >> blockBits
	}
	b.filled[n] = true

	for _, h := range b.hashes {
		bucket := int(h >> (64 - blockBits))
		// linear probing across buckets, wraps around
		for b.filled[b.startPos[bucket]] {
			bucket = (bucket + 1) & (block - 1)
		}
		b.order[b.startPos[bucket]] = h
		b.filled[b.startPos[bucket]] = true
		b.startPos[bucket]++
	}
}

// peel runs one construction attempt on the current hashes. On success
// peeled holds every key.
func (b *builder) peel() error {
	n := b.params.size
	b.bucketize()

	for _, h := range b.order[:n] {
		pos := b.gen.positionsFromHash(h)
		for role, p := range pos {
			b.count[p] += 4
			b.count[p] ^= uint8(role)
			b.acc[p] ^= h
			if b.count[p] < 4 {
				return errOverflow
			}
		}
	}

	qsize := 0
	for i := range b.count {
		b.alone[qsize] = i
		if b.count[i]>>2 == 1 {
			qsize++
		}
	}

	for qsize > 0 {
		qsize--
		index := b.alone[qsize]
		// the key may have been peeled through another slot
		if b.count[index]>>2 != 1 {
			continue
		}

		h := b.acc[index]
		role := b.count[index] & 3
		b.peeled = append(b.peeled, h)
		b.roles = append(b.roles, role)

		for _, other := range [Arity - 1]uint8{(role + 1) % Arity, (role + 2) % Arity} {
			p := b.gen.positionForRole(h, other)
			b.alone[qsize] = p
			if b.count[p]>>2 == 2 {
				qsize++
			}
			b.count[p] -= 4
			b.count[p] ^= other
			b.acc[p] ^= h
		}
	}

	if len(b.peeled) != n {
		return errUnpeelable
	}
	return nil
}

// solve assigns storage in reverse peeling order. Each key's other
// two slots belong to keys peeled after it and are already set.
func (b *builder) solve(f *Filter, values [][]byte) error {
	// a successful peel implies the hashes are distinct
	byHash := make(map[uint64]int, len(b.hashes))
	for i, h := range b.hashes {
		byHash[h] = i
	}

	v := make([]byte, f.params.valueByteLength)
	for i := len(b.peeled) - 1; i >= 0; i-- {
		h := b.peeled[i]
		role := int(b.roles[i])
		pos := b.gen.positionsFromHash(h)

		value := values[byHash[h]]
		if len(value) != len(v) {
			return fmt.Errorf("value of hash %x has %d bytes, want %d: %w", h, len(value), len(v), util.ErrByteLengthMissMatch)
		}
		copy(v, value)
		if err := util.InPlaceSubBytes(f.slot(pos[(role+1)%Arity]), v); err != nil {
			return err
		}
		if err := util.InPlaceSubBytes(f.slot(pos[(role+2)%Arity]), v); err != nil {
			return err
		}
		copy(f.slot(pos[role]), v)
	}
	return nil
}

// nextPow2 returns the smallest power of 2 that is at least n and at least 2
func nextPow2(n int) int {
	p := 2
	for p < n {
		p <<= 1
	}
	return p
}
