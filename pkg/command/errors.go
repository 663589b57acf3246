package command

import (
	"errors"

	"github.com/backkem/matter-switch/pkg/interaction"
)

// Dispatcher errors.
var (
	// ErrTimeout is the transport timeout. It is the only error that
	// triggers session recovery.
	ErrTimeout = interaction.ErrTimeout

	// ErrNoMemory is returned when the pending command pool is exhausted.
	ErrNoMemory = errors.New("command: pending command pool exhausted")

	// ErrNoMatchingBinding is returned when no binding on the local
	// endpoint covers the command's cluster.
	ErrNoMatchingBinding = errors.New("command: no matching binding")

	// ErrUnsupportedCluster is returned when a command for a cluster the
	// switch cannot drive matched only bindings it ignored.
	ErrUnsupportedCluster = errors.New("command: unsupported cluster")
)

// StatusError is an application-level rejection by the peer. It is
// reported as is and never retried.
type StatusError = interaction.StatusError
