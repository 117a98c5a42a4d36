// Package anonymize derives stable pseudonymous visitor identifiers.
//
// The transform is a keyed BLAKE3 hash of the raw identifier; the key is
// derived from a process-wide salt loaded once at startup. Without the salt
// the output is not invertible, and the raw identifier never leaves this
// package. Rotating the salt is the only way to "forget": the same visitor
// then maps to a new pseudonym and historical events stay under the old one.
package anonymize

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// defaultDigestLen is the number of digest bytes kept in the pseudonym.
const defaultDigestLen = 16

// Anonymizer computes pseudonymous identifiers for one salt lifetime.
type Anonymizer struct {
	key       [32]byte
	digestLen int
}

// New builds an Anonymizer keyed by salt.
func New(salt string, opts ...Option) *Anonymizer {
	a := &Anonymizer{
		// Stretch the configured salt to the fixed 32-byte key BLAKE3 expects.
		key:       blake3.Sum256([]byte(salt)),
		digestLen: defaultDigestLen,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Pseudonymize maps a raw visitor identifier to its stable pseudonym.
// Equal inputs yield equal outputs for the lifetime of the salt.
func (a *Anonymizer) Pseudonymize(rawIdentifier string) string {
	h, err := blake3.NewKeyed(a.key[:])
	if err != nil {
		// NewKeyed only fails on a wrong key length; the key is fixed at 32 bytes.
		panic(err)
	}
	_, _ = h.Write([]byte(rawIdentifier))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:a.digestLen])
}
