package fabric

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/backkem/matter-switch/pkg/crypto"
)

var compressedFabricInfo = []byte("CompressedFabric")

// Errors for compressed fabric ID computation.
var (
	// ErrInvalidRootPublicKey is returned when the root public key has invalid length.
	ErrInvalidRootPublicKey = errors.New("fabric: invalid root public key length")
	// ErrInvalidFabricID is returned when the fabric ID is invalid (zero).
	ErrInvalidFabricID = errors.New("fabric: invalid fabric ID")
)

// CompressedFabricID computes the 64-bit compressed fabric identifier.
//
// It names the fabric in DNS-SD operational records:
//
//	CompressedFabricIdentifier = Crypto_KDF(
//	    inputKey = TargetOperationalRootPublicKey (64 bytes, without 0x04 prefix),
//	    salt = TargetOperationalFabricID (8 bytes, big-endian),
//	    info = "CompressedFabric",
//	    len = 64 bits
//	)
//
// rootPublicKey may be the 64-byte X || Y form or the 65-byte SEC1 form.
func CompressedFabricID(rootPublicKey []byte, fabricID FabricID) ([CompressedFabricIDSize]byte, error) {
	var result [CompressedFabricIDSize]byte

	if !fabricID.IsValid() {
		return result, ErrInvalidFabricID
	}

	var keyBytes []byte
	switch len(rootPublicKey) {
	case 64:
		keyBytes = rootPublicKey
	case 65:
		if rootPublicKey[0] != 0x04 {
			return result, ErrInvalidRootPublicKey
		}
		keyBytes = rootPublicKey[1:]
	default:
		return result, ErrInvalidRootPublicKey
	}

	salt := make([]byte, 8)
	binary.BigEndian.PutUint64(salt, uint64(fabricID))

	derived, err := crypto.HKDFSHA256(keyBytes, salt, compressedFabricInfo, CompressedFabricIDSize)
	if err != nil {
		return result, err
	}

	copy(result[:], derived)
	return result, nil
}

// CompressedFabricIDString formats cfid as the 16-digit uppercase hex
// used in operational instance names.
func CompressedFabricIDString(cfid [CompressedFabricIDSize]byte) string {
	return fmt.Sprintf("%016X", binary.BigEndian.Uint64(cfid[:]))
}
