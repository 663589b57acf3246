package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 iteration limits.
const (
	PBKDF2IterationsMin = 1000
	PBKDF2IterationsMax = 100000
)

// HKDFMaxLength is the largest output HKDF-SHA256 can produce (255 * HashLen).
const HKDFMaxLength = 255 * SHA256LenBytes

// KDF errors.
var (
	ErrInvalidKeyLength  = errors.New("crypto: invalid derived key length")
	ErrInvalidIterations = errors.New("crypto: PBKDF2 iteration count out of range")
)

// HKDFSHA256 derives length bytes of key material using HKDF-SHA256 (RFC 5869).
//
// Parameters:
//   - inputKey: Input keying material (IKM)
//   - salt: Optional salt value (can be nil)
//   - info: Optional context info (can be nil)
//   - length: Number of bytes to derive, 1..HKDFMaxLength
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	if length <= 0 || length > HKDFMaxLength {
		return nil, ErrInvalidKeyLength
	}
	reader := hkdf.New(sha256.New, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, fmt.Errorf("crypto: hkdf expand: %w", err)
	}
	return result, nil
}

// PBKDF2SHA256 derives keyLen bytes from a password using PBKDF2-HMAC-SHA256.
func PBKDF2SHA256(password, salt []byte, iterations, keyLen int) ([]byte, error) {
	if iterations < PBKDF2IterationsMin || iterations > PBKDF2IterationsMax {
		return nil, ErrInvalidIterations
	}
	if keyLen <= 0 {
		return nil, ErrInvalidKeyLength
	}
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New), nil
}
