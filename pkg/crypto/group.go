package crypto

import (
	"encoding/binary"
	"errors"
)

// CompressedFabricIDSize is the length of the group key derivation salt.
const CompressedFabricIDSize = 8

var (
	groupKeyInfo     = []byte("GroupKey v1.0")
	groupKeyHashInfo = []byte("GroupKeyHash")
)

// Group key errors.
var (
	ErrInvalidEpochKeySize           = errors.New("group: invalid epoch key size, must be 16 bytes")
	ErrInvalidCompressedFabricIDSize = errors.New("group: invalid compressed fabric ID size, must be 8 bytes")
)

// GroupCredentials are the keys shared by every member of a group.
type GroupCredentials struct {
	EncryptionKey []byte
	SessionID     uint16
}

// DeriveGroupCredentials expands an epoch key into the group operational
// key and its session ID:
//
//	key = HKDF(epochKey, cfid, "GroupKey v1.0", 16)
//	id  = HKDF(key, nil, "GroupKeyHash", 2) as big-endian uint16
func DeriveGroupCredentials(epochKey, compressedFabricID []byte) (*GroupCredentials, error) {
	if len(epochKey) != SymmetricKeySize {
		return nil, ErrInvalidEpochKeySize
	}
	if len(compressedFabricID) != CompressedFabricIDSize {
		return nil, ErrInvalidCompressedFabricIDSize
	}

	key, err := HKDFSHA256(epochKey, compressedFabricID, groupKeyInfo, SymmetricKeySize)
	if err != nil {
		return nil, err
	}
	hash, err := HKDFSHA256(key, nil, groupKeyHashInfo, 2)
	if err != nil {
		return nil, err
	}
	return &GroupCredentials{
		EncryptionKey: key,
		SessionID:     binary.BigEndian.Uint16(hash),
	}, nil
}
