package fabric

import (
	"errors"
	"fmt"
)

// Info errors.
var (
	// ErrInvalidLabel is returned when the label exceeds max length.
	ErrInvalidLabel = errors.New("fabric: label exceeds maximum length")
	// ErrInvalidNodeID is returned for a non-operational node ID.
	ErrInvalidNodeID = errors.New("fabric: invalid operational node ID")
)

// Info is one entry of the local fabric table.
type Info struct {
	// FabricIndex is the local 8-bit index for this fabric (1-254).
	FabricIndex FabricIndex

	// FabricID is the 64-bit fabric identifier.
	FabricID FabricID

	// NodeID is this node's operational ID on the fabric.
	NodeID NodeID

	// Label is a user-assigned label (max 32 UTF-8 bytes).
	Label string

	// RootPublicKey is the 65-byte uncompressed root public key.
	RootPublicKey [RootPublicKeySize]byte

	// CompressedFabricID is derived from RootPublicKey and FabricID.
	CompressedFabricID [CompressedFabricIDSize]byte
}

// NewInfo builds an Info and derives its compressed fabric ID.
func NewInfo(index FabricIndex, fabricID FabricID, nodeID NodeID, rootPublicKey [RootPublicKeySize]byte) (*Info, error) {
	if !index.IsValid() {
		return nil, fmt.Errorf("fabric: invalid index %d", index)
	}
	if !nodeID.IsOperational() {
		return nil, ErrInvalidNodeID
	}
	cfid, err := CompressedFabricID(rootPublicKey[:], fabricID)
	if err != nil {
		return nil, err
	}
	return &Info{
		FabricIndex:        index,
		FabricID:           fabricID,
		NodeID:             nodeID,
		RootPublicKey:      rootPublicKey,
		CompressedFabricID: cfid,
	}, nil
}

// SetLabel sets the label after checking its length.
func (f *Info) SetLabel(label string) error {
	if len(label) > MaxLabelSize {
		return ErrInvalidLabel
	}
	f.Label = label
	return nil
}

// Clone returns a copy of the entry.
func (f *Info) Clone() *Info {
	c := *f
	return &c
}

// String returns a short description.
func (f *Info) String() string {
	return fmt.Sprintf("Fabric{%s, %s, %s, CFID=%s}",
		f.FabricIndex, f.FabricID, f.NodeID, CompressedFabricIDString(f.CompressedFabricID))
}
