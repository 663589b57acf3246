package session

import "errors"

// Session package errors.
var (
	// ErrInvalidKey is returned when an encryption key has invalid length.
	ErrInvalidKey = errors.New("session: invalid key length")

	// ErrInvalidSessionID is returned when a session ID is invalid (0).
	ErrInvalidSessionID = errors.New("session: invalid session ID")

	// ErrInvalidPeer is returned for a peer without a valid fabric index
	// or operational node ID.
	ErrInvalidPeer = errors.New("session: invalid peer")

	// ErrSessionNotFound is returned when a session lookup fails.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrSessionTableFull is returned when no more sessions can be allocated.
	ErrSessionTableFull = errors.New("session: session table full")

	// ErrSessionIDExhausted is returned when no more session IDs are available.
	ErrSessionIDExhausted = errors.New("session: session ID space exhausted")

	// ErrDuplicateSession is returned when adding a session with an existing ID.
	ErrDuplicateSession = errors.New("session: duplicate session ID")

	// ErrDefunct is returned when sealing on a session marked defunct.
	ErrDefunct = errors.New("session: session is defunct")

	// ErrCounterExhausted is returned when the message counter has wrapped.
	// The session must be re-established when this occurs.
	ErrCounterExhausted = errors.New("session: message counter exhausted")

	// ErrReplayDetected is returned when an incoming message counter indicates replay.
	ErrReplayDetected = errors.New("session: replay detected")

	// ErrDecryptionFailed is returned when message decryption fails.
	ErrDecryptionFailed = errors.New("session: decryption failed")

	// ErrFrameTooShort is returned for frames shorter than the header and tag.
	ErrFrameTooShort = errors.New("session: frame too short")
)
