package datamodel

import "errors"

// Errors returned by datamodel operations.
var (
	// ErrEndpointNotFound indicates the requested endpoint does not exist.
	ErrEndpointNotFound = errors.New("endpoint not found")

	// ErrClusterNotFound indicates the requested cluster does not exist.
	ErrClusterNotFound = errors.New("cluster not found")

	// ErrClusterExists indicates a cluster with the same ID already exists.
	ErrClusterExists = errors.New("cluster already exists")

	// ErrUnsupportedAttribute indicates the attribute is not supported by the cluster.
	ErrUnsupportedAttribute = errors.New("unsupported attribute")

	// ErrUnsupportedCommand indicates the command is not supported by the cluster.
	ErrUnsupportedCommand = errors.New("unsupported command")

	// ErrInvalidCommand indicates malformed command fields.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrConstraintError indicates a constraint violation.
	ErrConstraintError = errors.New("constraint error")

	// ErrInvalidInState indicates the operation is invalid in the current state.
	ErrInvalidInState = errors.New("invalid in current state")

	// ErrBusy indicates the resource is busy with another operation.
	ErrBusy = errors.New("resource busy")
)
