// Package fabric holds the identifiers that scope bindings and sessions.
//
// A fabric is a security domain identified by a root public key and a
// 64-bit Fabric ID. A node tracks each fabric it belongs to by a local
// 8-bit Fabric Index, and bindings and sessions are keyed by that index.
//
// This package provides:
//   - Core types: FabricIndex, FabricID, NodeID, GroupID
//   - Compressed Fabric ID computation (for DNS-SD discovery)
//   - Info, the per-fabric record, and Table, the local fabric table
package fabric

import "fmt"

// FabricIndex is an 8-bit local index identifying a fabric on this node.
// Valid values are 1-254. The value 0 is invalid/unassigned.
type FabricIndex uint8

// FabricIndex constants.
const (
	// FabricIndexMin is the minimum valid fabric index.
	FabricIndexMin FabricIndex = 1
	// FabricIndexMax is the maximum valid fabric index.
	FabricIndexMax FabricIndex = 254
	// FabricIndexInvalid represents an invalid/unassigned fabric index.
	FabricIndexInvalid FabricIndex = 0
)

// IsValid returns true if the fabric index is in the valid range [1, 254].
func (f FabricIndex) IsValid() bool {
	return f >= FabricIndexMin && f <= FabricIndexMax
}

// String returns a string representation of the fabric index.
func (f FabricIndex) String() string {
	if f == FabricIndexInvalid {
		return "FabricIndex(invalid)"
	}
	return fmt.Sprintf("FabricIndex(%d)", f)
}

// FabricID is a 64-bit fabric identifier. The value 0 is reserved.
type FabricID uint64

// FabricIDInvalid is the reserved invalid fabric ID value.
const FabricIDInvalid FabricID = 0

// IsValid returns true if the fabric ID is non-zero.
func (f FabricID) IsValid() bool {
	return f != FabricIDInvalid
}

// String returns a string representation of the fabric ID.
func (f FabricID) String() string {
	return fmt.Sprintf("FabricID(0x%016X)", uint64(f))
}

// NodeID is a 64-bit node identifier.
// Operational Node IDs are in the range [0x0000_0000_0000_0001, 0xFFFF_FFFE_FFFF_FFFD].
type NodeID uint64

// NodeID range constants for operational nodes.
const (
	NodeIDUnspecified    NodeID = 0x0000_0000_0000_0000
	NodeIDMinOperational NodeID = 0x0000_0000_0000_0001
	NodeIDMaxOperational NodeID = 0xFFFF_FFFE_FFFF_FFFD
)

// IsOperational returns true if the node ID is a valid operational node ID.
func (n NodeID) IsOperational() bool {
	return n >= NodeIDMinOperational && n <= NodeIDMaxOperational
}

// String returns a string representation of the node ID.
func (n NodeID) String() string {
	return fmt.Sprintf("NodeID(0x%016X)", uint64(n))
}

// GroupID is a 16-bit group identifier used by multicast bindings.
// The value 0 is reserved.
type GroupID uint16

// IsValid returns true if the group ID is non-zero.
func (g GroupID) IsValid() bool {
	return g != 0
}

// String returns a string representation of the group ID.
func (g GroupID) String() string {
	return fmt.Sprintf("GroupID(0x%04X)", uint16(g))
}

// Size constants.
const (
	// CompressedFabricIDSize is the size of the compressed fabric ID in bytes.
	CompressedFabricIDSize = 8
	// RootPublicKeySize is the uncompressed P-256 public key size (65 bytes).
	RootPublicKeySize = 65
	// MaxLabelSize is the maximum fabric label size (32 bytes).
	MaxLabelSize = 32
)

// Fabric table limits.
const (
	MinSupportedFabrics     = 1
	MaxSupportedFabrics     = 254
	DefaultSupportedFabrics = 5
)
