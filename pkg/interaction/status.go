package interaction

import (
	"errors"
	"fmt"

	"github.com/backkem/matter-switch/pkg/datamodel"
)

// Status is an Interaction Model status code.
type Status uint8

const (
	StatusSuccess              Status = 0x00
	StatusFailure              Status = 0x01
	StatusUnsupportedEndpoint  Status = 0x7f
	StatusUnsupportedCommand   Status = 0x81
	StatusInvalidCommand       Status = 0x85
	StatusUnsupportedAttribute Status = 0x86
	StatusConstraintError      Status = 0x87
	StatusResourceExhausted    Status = 0x89
	StatusTimeout              Status = 0x94
	StatusBusy                 Status = 0x9c
	StatusUnsupportedCluster   Status = 0xc3
	StatusInvalidInState       Status = 0xcb
)

// String returns the name of the status code.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	case StatusUnsupportedEndpoint:
		return "UnsupportedEndpoint"
	case StatusUnsupportedCommand:
		return "UnsupportedCommand"
	case StatusInvalidCommand:
		return "InvalidCommand"
	case StatusUnsupportedAttribute:
		return "UnsupportedAttribute"
	case StatusConstraintError:
		return "ConstraintError"
	case StatusResourceExhausted:
		return "ResourceExhausted"
	case StatusTimeout:
		return "Timeout"
	case StatusBusy:
		return "Busy"
	case StatusUnsupportedCluster:
		return "UnsupportedCluster"
	case StatusInvalidInState:
		return "InvalidInState"
	default:
		return "Unknown"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// StatusError is a non-success status returned by the peer. It is an
// application-level rejection and is never retried.
type StatusError struct {
	Status        Status
	ClusterStatus *uint8
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.ClusterStatus != nil {
		return fmt.Sprintf("interaction: status %s (0x%02x), cluster status 0x%02x", e.Status, uint8(e.Status), *e.ClusterStatus)
	}
	return fmt.Sprintf("interaction: status %s (0x%02x)", e.Status, uint8(e.Status))
}

// ErrorToStatus maps a datamodel error to the status reported to the peer.
func ErrorToStatus(err error) Status {
	if err == nil {
		return StatusSuccess
	}

	switch {
	case errors.Is(err, datamodel.ErrEndpointNotFound):
		return StatusUnsupportedEndpoint
	case errors.Is(err, datamodel.ErrClusterNotFound):
		return StatusUnsupportedCluster
	case errors.Is(err, datamodel.ErrUnsupportedAttribute):
		return StatusUnsupportedAttribute
	case errors.Is(err, datamodel.ErrUnsupportedCommand):
		return StatusUnsupportedCommand
	case errors.Is(err, datamodel.ErrInvalidCommand):
		return StatusInvalidCommand
	case errors.Is(err, datamodel.ErrConstraintError):
		return StatusConstraintError
	case errors.Is(err, datamodel.ErrInvalidInState):
		return StatusInvalidInState
	case errors.Is(err, datamodel.ErrBusy):
		return StatusBusy
	default:
		return StatusFailure
	}
}
