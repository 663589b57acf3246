package spake2p

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/matter-switch/pkg/crypto/p256"
)

// Test Set #01 of the Matter SDK PASE parameters.
var (
	testSpake2p01PinCode        = uint32(20202021)
	testSpake2p01IterationCount = uint32(1000)
	testSpake2p01Salt           = []byte("SPAKE2P Key Salt")

	testSpake2p01W0 = []byte{
		0xB9, 0x61, 0x70, 0xAA, 0xE8, 0x03, 0x34, 0x68, 0x84, 0x72, 0x4F, 0xE9, 0xA3, 0xB2, 0x87, 0xC3,
		0x03, 0x30, 0xC2, 0xA6, 0x60, 0x37, 0x5D, 0x17, 0xBB, 0x20, 0x5A, 0x8C, 0xF1, 0xAE, 0xCB, 0x35,
	}

	testSpake2p01L = []byte{
		0x04, 0x57, 0xF8, 0xAB, 0x79, 0xEE, 0x25, 0x3A, 0xB6, 0xA8, 0xE4, 0x6B, 0xB0, 0x9E, 0x54, 0x3A,
		0xE4, 0x22, 0x73, 0x6D, 0xE5, 0x01, 0xE3, 0xDB, 0x37, 0xD4, 0x41, 0xFE, 0x34, 0x49, 0x20, 0xD0,
		0x95, 0x48, 0xE4, 0xC1, 0x82, 0x40, 0x63, 0x0C, 0x4F, 0xF4, 0x91, 0x3C, 0x53, 0x51, 0x38, 0x39,
		0xB7, 0xC0, 0x7F, 0xCC, 0x06, 0x27, 0xA1, 0xB8, 0x57, 0x3A, 0x14, 0x9F, 0xCD, 0x1F, 0xA4, 0x66,
		0xCF,
	}
)

func TestGenerateVerifierWithTestVector(t *testing.T) {
	for _, b := range []p256.Backend{p256.NewSoftware(nil), p256.NewConstantTime(nil)} {
		t.Run(b.Name(), func(t *testing.T) {
			v, err := GenerateVerifier(b, testSpake2p01PinCode, testSpake2p01Salt, testSpake2p01IterationCount)
			if err != nil {
				t.Fatalf("GenerateVerifier failed: %v", err)
			}
			if !bytes.Equal(v.W0, testSpake2p01W0) {
				t.Errorf("W0 mismatch:\ngot:  %x\nwant: %x", v.W0, testSpake2p01W0)
			}
			if !bytes.Equal(v.L, testSpake2p01L) {
				t.Errorf("L mismatch:\ngot:  %x\nwant: %x", v.L, testSpake2p01L)
			}
		})
	}
}

func TestVerifierSerialization(t *testing.T) {
	v, err := GenerateVerifier(p256.NewSoftware(nil), testSpake2p01PinCode, testSpake2p01Salt, testSpake2p01IterationCount)
	if err != nil {
		t.Fatalf("GenerateVerifier failed: %v", err)
	}

	data := v.Serialize()
	if len(data) != VerifierSizeBytes {
		t.Fatalf("Serialized length = %d, want %d", len(data), VerifierSizeBytes)
	}
	got, err := DeserializeVerifier(data)
	if err != nil {
		t.Fatalf("DeserializeVerifier failed: %v", err)
	}
	if !bytes.Equal(got.W0, v.W0) || !bytes.Equal(got.L, v.L) {
		t.Error("verifier mismatch after deserialization")
	}

	if _, err := DeserializeVerifier(data[:96]); !errors.Is(err, ErrInvalidVerifier) {
		t.Errorf("expected ErrInvalidVerifier, got %v", err)
	}
}

func TestValidatePasscode(t *testing.T) {
	tests := []struct {
		name      string
		passcode  uint32
		wantError bool
	}{
		{"valid_20202021", 20202021, false},
		{"valid_12341234", 12341234, false},
		{"valid_minimum", 1, false},
		{"valid_maximum", 99999998, false},
		{"invalid_00000000", 0, true},
		{"invalid_11111111", 11111111, true},
		{"invalid_55555555", 55555555, true},
		{"invalid_99999999", 99999999, true},
		{"invalid_12345678", 12345678, true},
		{"invalid_87654321", 87654321, true},
		{"invalid_too_large", 100000000, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePasscode(tc.passcode)
			if tc.wantError && !errors.Is(err, ErrInvalidPasscode) {
				t.Errorf("ValidatePasscode(%d) = %v, want ErrInvalidPasscode", tc.passcode, err)
			}
			if !tc.wantError && err != nil {
				t.Errorf("ValidatePasscode(%d) = %v, want nil", tc.passcode, err)
			}
		})
	}
}

func TestGenerateVerifierInvalidParams(t *testing.T) {
	b := p256.NewSoftware(nil)
	salt := make([]byte, 32)

	tests := []struct {
		name       string
		passcode   uint32
		salt       []byte
		iterations uint32
		want       error
	}{
		{"invalid_passcode", 0, salt, 1000, ErrInvalidPasscode},
		{"salt_too_short", 20202021, make([]byte, 15), 1000, ErrInvalidSalt},
		{"salt_too_long", 20202021, make([]byte, 33), 1000, ErrInvalidSalt},
		{"iterations_too_low", 20202021, salt, 999, ErrInvalidIterations},
		{"iterations_too_high", 20202021, salt, 100001, ErrInvalidIterations},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := GenerateVerifier(b, tc.passcode, tc.salt, tc.iterations); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
