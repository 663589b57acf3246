// Package pase implements Passcode-Authenticated Session Establishment on
// top of the SPAKE2+ engine.
//
// PASE gives the switch and the light a shared set of session keys from
// the light's setup passcode. See Matter Specification Section 4.14.1.
//
// # Protocol Flow
//
//	Initiator (switch)                    Responder (light)
//	------------------                    -----------------
//	Start()                  --PBKDFReq-->  HandlePBKDFParamRequest()
//	HandlePBKDFParamResponse() <-PBKDFResp--
//	                         ---Pake1--->   HandlePake1()
//	HandlePake2()            <--Pake2----
//	                         ---Pake3--->   HandlePake3()
//	HandlePakeFinished()     <-Finished--
//
// RunInitiator and RunResponder drive a Session over a transport.Conn.
package pase

import (
	"errors"
	"fmt"

	"github.com/backkem/matter-switch/pkg/crypto/spake2p"
)

// Protocol constants.
const (
	// ContextPrefix is the context string for the SPAKE2+ transcript.
	ContextPrefix = "CHIP PAKE V1 Commissioning"

	// RandomSize is the size of random values in PBKDF messages.
	RandomSize = 32

	// DefaultPasscodeID is the only passcode ID in use.
	DefaultPasscodeID = 0

	// SessionKeySize is the size of the I2R and R2I keys.
	SessionKeySize = 16

	// AttestationChallengeSize is the size of the attestation challenge.
	AttestationChallengeSize = 16

	sessionKeysInfo = "SessionKeys"
)

// Message opcodes (Matter secure channel protocol).
const (
	OpcodePBKDFParamRequest  uint8 = 0x20
	OpcodePBKDFParamResponse uint8 = 0x21
	OpcodePake1              uint8 = 0x22
	OpcodePake2              uint8 = 0x23
	OpcodePake3              uint8 = 0x24
	OpcodePakeFinished       uint8 = 0x40
)

// Errors.
var (
	ErrInvalidState      = errors.New("pase: invalid protocol state")
	ErrInvalidMessage    = errors.New("pase: invalid message")
	ErrInvalidPasscodeID = errors.New("pase: invalid passcode ID")
	ErrRandomMismatch    = errors.New("pase: initiator random mismatch")
	ErrSessionNotReady   = errors.New("pase: session not ready")
)

// Status is the PakeFinished status code.
type Status uint16

const (
	StatusSuccess          Status = 0x0000
	StatusInvalidParameter Status = 0x0002
	StatusBusy             Status = 0x0004
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusInvalidParameter:
		return "InvalidParameter"
	case StatusBusy:
		return "Busy"
	default:
		return fmt.Sprintf("Status(0x%04x)", uint16(s))
	}
}

// SessionKeys contains the derived session encryption keys.
type SessionKeys struct {
	I2RKey               [SessionKeySize]byte           // Initiator-to-Responder key
	R2IKey               [SessionKeySize]byte           // Responder-to-Initiator key
	AttestationChallenge [AttestationChallengeSize]byte // For device attestation
}

// Zero wipes the keys.
func (k *SessionKeys) Zero() {
	clear(k.I2RKey[:])
	clear(k.R2IKey[:])
	clear(k.AttestationChallenge[:])
}

// StatusError reports a non-success PakeFinished sent by the peer.
// InvalidParameter is how the peer signals failed key confirmation, so it
// unwraps to spake2p.ErrAuthenticationFailed.
type StatusError struct {
	Status Status
}

func statusError(s Status) error {
	return &StatusError{Status: s}
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("pase: peer reported %s", e.Status)
}

// Unwrap implements errors.Unwrap.
func (e *StatusError) Unwrap() error {
	if e.Status == StatusInvalidParameter {
		return spake2p.ErrAuthenticationFailed
	}
	return nil
}
