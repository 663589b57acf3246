// Package crypto provides the hash, MAC, KDF and randomness primitives the
// key exchange and session layers are built on.
//
// Primitives report failure through explicit errors. None of them
// returns a truncated buffer in place of an error.
package crypto

import (
	"crypto/sha256"
	"hash"
)

// SHA-256 constants.
const (
	// SHA256LenBits is the SHA-256 output length in bits.
	SHA256LenBits = 256

	// SHA256LenBytes is the SHA-256 output length in bytes.
	SHA256LenBytes = 32
)

// SHA256 computes the SHA-256 digest of a message.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}

// NewSHA256 returns a hash.Hash for computing SHA-256 digests incrementally.
// The PASE context hash is accumulated through one of these.
func NewSHA256() hash.Hash {
	return sha256.New()
}
