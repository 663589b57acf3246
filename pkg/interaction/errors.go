package interaction

import "errors"

// Client errors.
var (
	// ErrTimeout is returned when no response arrives in time, or when the
	// session carrying the request is lost before it does. Both mean the
	// session may be stale.
	ErrTimeout = errors.New("interaction: request timeout")

	// ErrClosed is returned for requests started after Close.
	ErrClosed = errors.New("interaction: client closed")

	// ErrNoConnection is returned for a session handle without a connection.
	ErrNoConnection = errors.New("interaction: session has no connection")

	// ErrGroupNotFound is returned when sending to an unregistered group.
	ErrGroupNotFound = errors.New("interaction: group not registered")

	// ErrUnexpectedResponse is returned when the peer answers with another
	// message than the request calls for.
	ErrUnexpectedResponse = errors.New("interaction: unexpected response")
)
