package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed connection.
	ErrClosed = errors.New("transport: closed")

	// ErrMessageTooLarge is returned when a message exceeds the configured maximum size.
	ErrMessageTooLarge = errors.New("transport: message too large")

	// ErrUnsupportedNetwork is returned by Dial and Listen for networks other
	// than tcp and udp.
	ErrUnsupportedNetwork = errors.New("transport: unsupported network")
)
