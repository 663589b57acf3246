// Package session tracks the secure sessions bindings resolve to.
//
// A Handle is one established session: the peer it reaches, the session
// IDs on both sides and the AEAD state derived from the PASE keys. Handles
// live in a Directory keyed by local session ID and looked up by peer.
// The Connector sits in front of the Directory and establishes missing
// sessions asynchronously, delivering results on the event loop.
//
// Group traffic uses a GroupContext instead of a Handle.
package session

import (
	"fmt"

	"github.com/backkem/matter-switch/pkg/fabric"
)

// ScopedNodeID names a node within a fabric.
type ScopedNodeID struct {
	FabricIndex fabric.FabricIndex
	NodeID      fabric.NodeID
}

// IsValid reports whether both parts are usable.
func (s ScopedNodeID) IsValid() bool {
	return s.FabricIndex.IsValid() && s.NodeID.IsOperational()
}

// String returns "<fabric>:<node>" in hex.
func (s ScopedNodeID) String() string {
	return fmt.Sprintf("%d:%016X", uint8(s.FabricIndex), uint64(s.NodeID))
}
