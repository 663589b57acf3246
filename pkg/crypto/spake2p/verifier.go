package spake2p

import (
	"encoding/binary"
	"errors"

	"github.com/backkem/matter-switch/pkg/crypto"
	"github.com/backkem/matter-switch/pkg/crypto/p256"
)

// PBKDF parameter bounds (Matter Specification Section 3.10).
const (
	PBKDFMinSaltLength = 16
	PBKDFMaxSaltLength = 32
	PBKDFMinIterations = crypto.PBKDF2IterationsMin
	PBKDFMaxIterations = crypto.PBKDF2IterationsMax

	// VerifierSizeBytes is the serialized size of a Verifier (W0 || L).
	VerifierSizeBytes = GroupSizeBytes + PointSizeBytes

	maxPasscode = 99999999
)

// Verifier errors.
var (
	ErrInvalidPasscode   = errors.New("spake2p: invalid passcode")
	ErrInvalidSalt       = errors.New("spake2p: salt must be 16-32 bytes")
	ErrInvalidIterations = errors.New("spake2p: iterations must be 1000-100000")
	ErrInvalidVerifier   = errors.New("spake2p: invalid verifier encoding")
)

// Verifier is the record the commissionee stores in place of the passcode.
type Verifier struct {
	W0 []byte // 32 bytes, w0s mod N
	L  []byte // 65 bytes, L = w1*P
}

// GenerateVerifier derives the verifier record for passcode:
//
//	ws = PBKDF2-SHA256(passcode_le, salt, iterations, 80)
//	w0 = ws[0:40] mod N, w1 = ws[40:80] mod N
//	L  = w1*P
func GenerateVerifier(b p256.Backend, passcode uint32, salt []byte, iterations uint32) (*Verifier, error) {
	if err := ValidatePasscode(passcode); err != nil {
		return nil, err
	}
	w0, w1, err := ComputeW0W1(b, passcode, salt, iterations)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(w1)

	var w1fe p256.FieldElement
	defer w1fe.Zero()
	if err := b.FELoad(&w1fe, w1); err != nil {
		return nil, internal(err)
	}
	L := make([]byte, PointSizeBytes)
	if err := b.ComputeL(L, &w1fe); err != nil {
		return nil, internal(err)
	}
	return &Verifier{W0: w0, L: L}, nil
}

// ComputeW0W1 derives the prover scalars w0 and w1 (32 bytes each).
func ComputeW0W1(b p256.Backend, passcode uint32, salt []byte, iterations uint32) (w0, w1 []byte, err error) {
	if err := validatePBKDFParams(salt, iterations); err != nil {
		return nil, nil, err
	}

	var pin [4]byte
	binary.LittleEndian.PutUint32(pin[:], passcode)

	ws, err := crypto.PBKDF2SHA256(pin[:], salt, int(iterations), 2*WsSizeBytes)
	if err != nil {
		return nil, nil, internal(err)
	}
	defer crypto.Zeroize(ws)

	w0, err = reduce(b, ws[:WsSizeBytes])
	if err != nil {
		return nil, nil, err
	}
	w1, err = reduce(b, ws[WsSizeBytes:])
	if err != nil {
		return nil, nil, err
	}
	return w0, w1, nil
}

func reduce(b p256.Backend, ws []byte) ([]byte, error) {
	var fe p256.FieldElement
	defer fe.Zero()
	if err := b.FELoad(&fe, ws); err != nil {
		return nil, internal(err)
	}
	out := make([]byte, GroupSizeBytes)
	if err := b.FEWrite(&fe, out); err != nil {
		return nil, internal(err)
	}
	return out, nil
}

// ValidatePasscode rejects passcodes the Matter specification forbids:
// more than 8 digits, all-same-digit values and 12345678/87654321.
func ValidatePasscode(passcode uint32) error {
	if passcode > maxPasscode {
		return ErrInvalidPasscode
	}
	switch passcode {
	case 0, 11111111, 22222222, 33333333, 44444444,
		55555555, 66666666, 77777777, 88888888, 99999999,
		12345678, 87654321:
		return ErrInvalidPasscode
	}
	return nil
}

func validatePBKDFParams(salt []byte, iterations uint32) error {
	if len(salt) < PBKDFMinSaltLength || len(salt) > PBKDFMaxSaltLength {
		return ErrInvalidSalt
	}
	if iterations < PBKDFMinIterations || iterations > PBKDFMaxIterations {
		return ErrInvalidIterations
	}
	return nil
}

// Serialize returns W0 || L.
func (v *Verifier) Serialize() []byte {
	out := make([]byte, VerifierSizeBytes)
	copy(out[:GroupSizeBytes], v.W0)
	copy(out[GroupSizeBytes:], v.L)
	return out
}

// DeserializeVerifier parses the output of Serialize.
func DeserializeVerifier(data []byte) (*Verifier, error) {
	if len(data) != VerifierSizeBytes {
		return nil, ErrInvalidVerifier
	}
	v := &Verifier{
		W0: make([]byte, GroupSizeBytes),
		L:  make([]byte, PointSizeBytes),
	}
	copy(v.W0, data[:GroupSizeBytes])
	copy(v.L, data[GroupSizeBytes:])
	return v, nil
}
