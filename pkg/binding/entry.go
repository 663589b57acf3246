// Package binding holds the binding table and the manager that routes
// bound-cluster notifications to live sessions.
//
// A binding is a directed relationship from a local endpoint (and
// optionally one cluster) to either a unicast peer or a multicast group.
// Bindings do not own sessions: the manager resolves one through a
// SessionProvider each time a bound cluster changes.
package binding

import (
	"errors"
	"fmt"

	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/fabric"
	"github.com/backkem/matter-switch/pkg/session"
)

// Binding errors.
var (
	ErrInvalidEntry   = errors.New("binding: invalid entry")
	ErrTableFull      = errors.New("binding: table full")
	ErrNotFound       = errors.New("binding: entry not found")
	ErrDuplicate      = errors.New("binding: duplicate entry")
	ErrPendingFull    = errors.New("binding: pending notification map full")
	ErrBindingRemoved = errors.New("binding: entry removed while waiting for session")
	ErrFabricRemoved  = errors.New("binding: fabric removed while waiting for session")
)

// Type distinguishes unicast from multicast entries.
type Type uint8

const (
	TypeUnicast   Type = 1
	TypeMulticast Type = 2
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeUnicast:
		return "unicast"
	case TypeMulticast:
		return "multicast"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ClusterAny is the wildcard cluster of an entry that binds an endpoint as
// a whole.
const ClusterAny datamodel.ClusterID = 0

// Entry is one binding table row. It is a comparable value.
type Entry struct {
	Type          Type                 `cbor:"1,keyasint"`
	FabricIndex   fabric.FabricIndex   `cbor:"2,keyasint"`
	LocalEndpoint datamodel.EndpointID `cbor:"3,keyasint"`
	Cluster       datamodel.ClusterID  `cbor:"4,keyasint,omitempty"`

	// Unicast target.
	NodeID         fabric.NodeID        `cbor:"5,keyasint,omitempty"`
	RemoteEndpoint datamodel.EndpointID `cbor:"6,keyasint,omitempty"`

	// Multicast target.
	GroupID fabric.GroupID `cbor:"7,keyasint,omitempty"`
}

// Unicast returns a unicast entry.
func Unicast(fabricIndex fabric.FabricIndex, localEP datamodel.EndpointID, nodeID fabric.NodeID, remoteEP datamodel.EndpointID, cluster datamodel.ClusterID) Entry {
	return Entry{
		Type:           TypeUnicast,
		FabricIndex:    fabricIndex,
		LocalEndpoint:  localEP,
		Cluster:        cluster,
		NodeID:         nodeID,
		RemoteEndpoint: remoteEP,
	}
}

// Multicast returns a multicast entry.
func Multicast(fabricIndex fabric.FabricIndex, localEP datamodel.EndpointID, groupID fabric.GroupID, cluster datamodel.ClusterID) Entry {
	return Entry{
		Type:          TypeMulticast,
		FabricIndex:   fabricIndex,
		LocalEndpoint: localEP,
		Cluster:       cluster,
		GroupID:       groupID,
	}
}

// Validate checks that e is exactly one kind of binding with a valid
// target.
func (e Entry) Validate() error {
	if !e.FabricIndex.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidEntry, e.FabricIndex)
	}
	switch e.Type {
	case TypeUnicast:
		if !e.NodeID.IsOperational() {
			return fmt.Errorf("%w: node 0x%016X is not operational", ErrInvalidEntry, uint64(e.NodeID))
		}
		if e.GroupID != 0 {
			return fmt.Errorf("%w: unicast entry carries a group", ErrInvalidEntry)
		}
	case TypeMulticast:
		if !e.GroupID.IsValid() {
			return fmt.Errorf("%w: invalid group", ErrInvalidEntry)
		}
		if e.NodeID != 0 || e.RemoteEndpoint != 0 {
			return fmt.Errorf("%w: multicast entry carries a node", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidEntry, e.Type)
	}
	return nil
}

// IsUnicast reports whether e targets a single node.
func (e Entry) IsUnicast() bool { return e.Type == TypeUnicast }

// IsMulticast reports whether e targets a group.
func (e Entry) IsMulticast() bool { return e.Type == TypeMulticast }

// Peer returns the session scope of a unicast entry.
func (e Entry) Peer() session.ScopedNodeID {
	return session.ScopedNodeID{FabricIndex: e.FabricIndex, NodeID: e.NodeID}
}

// Matches reports whether e applies to cluster on the local endpoint.
func (e Entry) Matches(endpoint datamodel.EndpointID, cluster datamodel.ClusterID) bool {
	if e.LocalEndpoint != endpoint {
		return false
	}
	return e.Cluster == ClusterAny || e.Cluster == cluster
}

// String returns a compact description for logs and the shell.
func (e Entry) String() string {
	cluster := "any"
	if e.Cluster != ClusterAny {
		cluster = fmt.Sprintf("0x%04X", uint32(e.Cluster))
	}
	switch e.Type {
	case TypeUnicast:
		return fmt.Sprintf("unicast fabric=%d ep=%d cluster=%s -> node=0x%016X ep=%d",
			e.FabricIndex, e.LocalEndpoint, cluster, uint64(e.NodeID), e.RemoteEndpoint)
	case TypeMulticast:
		return fmt.Sprintf("multicast fabric=%d ep=%d cluster=%s -> group=0x%04X",
			e.FabricIndex, e.LocalEndpoint, cluster, uint16(e.GroupID))
	default:
		return fmt.Sprintf("invalid binding (%s)", e.Type)
	}
}
