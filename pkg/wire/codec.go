// Package wire is the CBOR codec shared by the handshake, interaction and
// persistence layers.
//
// Every protocol message travels inside an Envelope: a one-byte opcode and
// the CBOR-encoded body. Struct fields use integer keys.
package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrUnexpectedOpcode is returned when an envelope carries another message
// than the one expected.
var ErrUnexpectedOpcode = errors.New("wire: unexpected opcode")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Envelope frames a message body with its opcode.
type Envelope struct {
	Opcode uint8           `cbor:"1,keyasint"`
	Body   cbor.RawMessage `cbor:"2,keyasint,omitempty"`
}

// Encode marshals body and wraps it in an envelope.
func Encode(opcode uint8, body any) ([]byte, error) {
	env := Envelope{Opcode: opcode}
	if body != nil {
		b, err := Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("wire: encode opcode 0x%02x: %w", opcode, err)
		}
		env.Body = b
	}
	return Marshal(env)
}

// Decode parses an envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("wire: decode envelope: %w", err)
	}
	return env, nil
}

// DecodeBody decodes the envelope body into v.
func (e Envelope) DecodeBody(v any) error {
	if len(e.Body) == 0 {
		return fmt.Errorf("wire: opcode 0x%02x: empty body", e.Opcode)
	}
	if err := Unmarshal(e.Body, v); err != nil {
		return fmt.Errorf("wire: decode opcode 0x%02x: %w", e.Opcode, err)
	}
	return nil
}

// Expect decodes data, checks the opcode and decodes the body into v.
func Expect(data []byte, opcode uint8, v any) error {
	env, err := Decode(data)
	if err != nil {
		return err
	}
	if env.Opcode != opcode {
		return fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrUnexpectedOpcode, env.Opcode, opcode)
	}
	return env.DecodeBody(v)
}
