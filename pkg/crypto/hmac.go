package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// ErrEmptyKey is returned when a MAC is requested with an empty key.
var ErrEmptyKey = errors.New("crypto: empty MAC key")

// HMACSHA256 computes the HMAC-SHA256 of a message using the given key.
//
// Returns a 32-byte MAC.
func HMACSHA256(key, message []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	h := hmac.New(sha256.New, key)
	h.Write(message)
	return h.Sum(nil), nil
}

// IsBufferContentEqualConstantTime reports whether a and b hold the same
// bytes. The comparison time depends only on the lengths.
func IsBufferContentEqualConstantTime(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize overwrites b with zeros.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
