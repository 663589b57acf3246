package fabric

import (
	"encoding/hex"
	"errors"
	"testing"
)

const (
	vectorRootKeyHex = "044a9f42b1ca4840d37292bbc7f6a7e11e22200c976fc900dbc98a7a383a641cb8254a2e56d4e295a847943b4e3897c4a773e930277b4d9fbede8a052686bfacfa"
	vectorFabricID   = FabricID(0x2906C908D115D362)
	vectorCFIDHex    = "87e1b004e235a130"
)

func vectorRootKey(t *testing.T) [RootPublicKeySize]byte {
	t.Helper()
	b, err := hex.DecodeString(vectorRootKeyHex)
	if err != nil {
		t.Fatalf("failed to decode root public key: %v", err)
	}
	var key [RootPublicKeySize]byte
	copy(key[:], b)
	return key
}

func TestCompressedFabricIDVector(t *testing.T) {
	key := vectorRootKey(t)

	for _, in := range [][]byte{key[:], key[1:]} {
		result, err := CompressedFabricID(in, vectorFabricID)
		if err != nil {
			t.Fatalf("CompressedFabricID failed: %v", err)
		}
		if got := hex.EncodeToString(result[:]); got != vectorCFIDHex {
			t.Errorf("CompressedFabricID(%d-byte key) = %s, want %s", len(in), got, vectorCFIDHex)
		}
		if got := CompressedFabricIDString(result); got != "87E1B004E235A130" {
			t.Errorf("CompressedFabricIDString = %s", got)
		}
	}
}

func TestCompressedFabricIDInvalidInputs(t *testing.T) {
	validKey := make([]byte, 65)
	validKey[0] = 0x04

	tests := []struct {
		name      string
		key       []byte
		fabricID  FabricID
		wantError error
	}{
		{"zero fabric ID", validKey, FabricIDInvalid, ErrInvalidFabricID},
		{"key too short", make([]byte, 32), 1, ErrInvalidRootPublicKey},
		{"key too long", make([]byte, 128), 1, ErrInvalidRootPublicKey},
		{"wrong prefix", make([]byte, 65), 1, ErrInvalidRootPublicKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CompressedFabricID(tt.key, tt.fabricID); !errors.Is(err, tt.wantError) {
				t.Errorf("expected error %v, got %v", tt.wantError, err)
			}
		})
	}
}
