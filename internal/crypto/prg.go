package crypto

import (
	"io"

	"github.com/zeebo/blake3"
)

// NewPRG returns a deterministic pseudorandom stream expanded from
// seed with the blake3 XOF. Two PRGs built from the same seed
// produce the same stream.
func NewPRG(seed []byte) io.Reader {
	h := blake3.New()
	h.Write(seed)
	return h.Digest()
}

// PseudorandomGenerate fills dst with the blake3 XOF of seed. h is reset
// first so it can be reused across calls.
func PseudorandomGenerate(dst []byte, seed []byte, h *blake3.Hasher) error {
	// reset internal state
	h.Reset()
	if _, err := h.Write(seed); err != nil {
		return err
	}

	_, err := h.Digest().Read(dst)
	return err
}
