// Package colorcontrol implements the hue and saturation subset of the
// Color Control Cluster (0x0300).
package colorcontrol

import (
	"context"
	"sync"

	"github.com/backkem/matter-switch/pkg/clusters"
	"github.com/backkem/matter-switch/pkg/datamodel"
)

// Cluster constants.
const (
	ClusterID       datamodel.ClusterID = 0x0300
	ClusterRevision uint16              = 7
)

// Attribute IDs.
const (
	AttrCurrentHue        datamodel.AttributeID = 0x0000
	AttrCurrentSaturation datamodel.AttributeID = 0x0001
	AttrColorMode         datamodel.AttributeID = 0x0008
)

// Command IDs.
const (
	CmdMoveToHue              datamodel.CommandID = 0x00
	CmdMoveToSaturation       datamodel.CommandID = 0x03
	CmdMoveToHueAndSaturation datamodel.CommandID = 0x06
)

// FeatureHueSaturation is the HS feature bit.
const FeatureHueSaturation uint32 = 1 << 0

// MaxHue and MaxSaturation are the largest valid values.
const (
	MaxHue        uint8 = 254
	MaxSaturation uint8 = 254
)

// Direction selects the path MoveToHue takes around the hue circle.
type Direction uint8

const (
	DirectionShortest Direction = 0
	DirectionLongest  Direction = 1
	DirectionUp       Direction = 2
	DirectionDown     Direction = 3
)

// ParseDirection maps a direction name to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "shortest":
		return DirectionShortest, true
	case "longest":
		return DirectionLongest, true
	case "up":
		return DirectionUp, true
	case "down":
		return DirectionDown, true
	}
	return 0, false
}

// MoveToHueRequest holds the MoveToHue command fields.
type MoveToHueRequest struct {
	Hue            uint8     `cbor:"1,keyasint"`
	Direction      Direction `cbor:"2,keyasint"`
	TransitionTime uint16    `cbor:"3,keyasint,omitempty"`
}

// MoveToSaturationRequest holds the MoveToSaturation command fields.
type MoveToSaturationRequest struct {
	Saturation     uint8  `cbor:"1,keyasint"`
	TransitionTime uint16 `cbor:"2,keyasint,omitempty"`
}

// MoveToHueAndSaturationRequest holds the MoveToHueAndSaturation command
// fields.
type MoveToHueAndSaturationRequest struct {
	Hue            uint8  `cbor:"1,keyasint"`
	Saturation     uint8  `cbor:"2,keyasint"`
	TransitionTime uint16 `cbor:"3,keyasint,omitempty"`
}

// ColorChangeCallback is invoked when hue or saturation changes.
type ColorChangeCallback func(endpoint datamodel.EndpointID, hue, saturation uint8)

// Config configures the Color Control cluster.
type Config struct {
	EndpointID    datamodel.EndpointID
	OnColorChange ColorChangeCallback
}

// Cluster is the Color Control server.
type Cluster struct {
	*datamodel.ClusterBase
	config Config

	mu         sync.RWMutex
	hue        uint8
	saturation uint8

	attrList []datamodel.AttributeID
}

// New creates a new Color Control cluster.
func New(cfg Config) *Cluster {
	c := &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, cfg.EndpointID, ClusterRevision),
		config:      cfg,
	}
	c.SetFeatureMap(FeatureHueSaturation)
	c.attrList = datamodel.MergeAttributeLists([]datamodel.AttributeID{
		AttrCurrentHue, AttrCurrentSaturation, AttrColorMode,
	})
	return c
}

// AttributeList implements datamodel.Cluster.
func (c *Cluster) AttributeList() []datamodel.AttributeID {
	return c.attrList
}

// AcceptedCommandList implements datamodel.Cluster.
func (c *Cluster) AcceptedCommandList() []datamodel.CommandID {
	return []datamodel.CommandID{CmdMoveToHue, CmdMoveToSaturation, CmdMoveToHueAndSaturation}
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(ctx context.Context, attr datamodel.AttributeID) (any, error) {
	if v, ok := c.ReadGlobalAttribute(attr, c.attrList, c.AcceptedCommandList()); ok {
		return v, nil
	}
	hue, sat := c.HueSaturation()
	switch attr {
	case AttrCurrentHue:
		return hue, nil
	case AttrCurrentSaturation:
		return sat, nil
	case AttrColorMode:
		return uint8(0), nil // CurrentHueAndCurrentSaturation
	default:
		return nil, datamodel.ErrUnsupportedAttribute
	}
}

// InvokeCommand implements datamodel.Cluster.
func (c *Cluster) InvokeCommand(ctx context.Context, cmd datamodel.CommandID, fields []byte) (any, error) {
	hue, sat := c.HueSaturation()

	switch cmd {
	case CmdMoveToHue:
		var req MoveToHueRequest
		if err := clusters.DecodeFields(fields, &req); err != nil {
			return nil, err
		}
		if req.Hue > MaxHue || req.Direction > DirectionDown {
			return nil, datamodel.ErrConstraintError
		}
		hue = req.Hue
	case CmdMoveToSaturation:
		var req MoveToSaturationRequest
		if err := clusters.DecodeFields(fields, &req); err != nil {
			return nil, err
		}
		if req.Saturation > MaxSaturation {
			return nil, datamodel.ErrConstraintError
		}
		sat = req.Saturation
	case CmdMoveToHueAndSaturation:
		var req MoveToHueAndSaturationRequest
		if err := clusters.DecodeFields(fields, &req); err != nil {
			return nil, err
		}
		if req.Hue > MaxHue || req.Saturation > MaxSaturation {
			return nil, datamodel.ErrConstraintError
		}
		hue, sat = req.Hue, req.Saturation
	default:
		return nil, datamodel.ErrUnsupportedCommand
	}

	c.set(hue, sat)
	return nil, nil
}

func (c *Cluster) set(hue, sat uint8) {
	c.mu.Lock()
	changed := c.hue != hue || c.saturation != sat
	c.hue, c.saturation = hue, sat
	c.mu.Unlock()

	if !changed {
		return
	}
	c.IncrementDataVersion()
	if c.config.OnColorChange != nil {
		c.config.OnColorChange(c.config.EndpointID, hue, sat)
	}
}

// HueSaturation returns the current hue and saturation.
func (c *Cluster) HueSaturation() (hue, saturation uint8) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hue, c.saturation
}
