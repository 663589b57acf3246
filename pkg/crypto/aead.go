package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
)

// AEAD parameters for message protection (AES-128-GCM).
const (
	SymmetricKeySize = 16
	NonceSize        = 12
	TagSize          = 16
)

// ErrInvalidKeySize is returned for a symmetric key that is not 16 bytes.
var ErrInvalidKeySize = errors.New("crypto: invalid key size, must be 16 bytes")

// NewAEAD returns AES-128-GCM keyed with key.
func NewAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != SymmetricKeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// BuildNonce lays out counter (LE) || sourceNodeID (LE). A counter is never
// reused under one key, so the nonce is unique per message.
func BuildNonce(messageCounter uint32, sourceNodeID uint64) []byte {
	nonce := make([]byte, NonceSize)
	binary.LittleEndian.PutUint32(nonce[0:4], messageCounter)
	binary.LittleEndian.PutUint64(nonce[4:12], sourceNodeID)
	return nonce
}
