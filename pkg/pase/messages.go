package pase

import (
	"fmt"

	"github.com/backkem/matter-switch/pkg/wire"
)

// PBKDFParameters carries the verifier derivation inputs.
type PBKDFParameters struct {
	Iterations uint32 `cbor:"1,keyasint"`
	Salt       []byte `cbor:"2,keyasint"`
}

// PBKDFParamRequest opens the exchange (Initiator to Responder).
type PBKDFParamRequest struct {
	InitiatorRandom    []byte `cbor:"1,keyasint"`
	InitiatorSessionID uint16 `cbor:"2,keyasint"`
	PasscodeID         uint16 `cbor:"3,keyasint"`
	HasPBKDFParameters bool   `cbor:"4,keyasint"`
}

// PBKDFParamResponse answers with the responder random, session ID and,
// when the initiator lacks them, the PBKDF parameters.
type PBKDFParamResponse struct {
	InitiatorRandom    []byte           `cbor:"1,keyasint"`
	ResponderRandom    []byte           `cbor:"2,keyasint"`
	ResponderSessionID uint16           `cbor:"3,keyasint"`
	PBKDFParams        *PBKDFParameters `cbor:"4,keyasint,omitempty"`
}

// Pake1 carries the prover share X (pA).
type Pake1 struct {
	PA []byte `cbor:"1,keyasint"`
}

// Pake2 carries the verifier share Y (pB) and its confirmation cB.
type Pake2 struct {
	PB []byte `cbor:"1,keyasint"`
	CB []byte `cbor:"2,keyasint"`
}

// Pake3 carries the prover confirmation cA.
type Pake3 struct {
	CA []byte `cbor:"1,keyasint"`
}

// PakeFinished closes the exchange with a status.
type PakeFinished struct {
	Status Status `cbor:"1,keyasint"`
}

func encode(opcode uint8, body any) ([]byte, error) {
	return wire.Encode(opcode, body)
}

func decode(data []byte, opcode uint8, v any) error {
	if err := wire.Expect(data, opcode, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return nil
}
