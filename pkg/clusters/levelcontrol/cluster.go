// Package levelcontrol implements the Level Control Cluster (0x0008).
package levelcontrol

import (
	"context"
	"sync"

	"github.com/backkem/matter-switch/pkg/clusters"
	"github.com/backkem/matter-switch/pkg/datamodel"
)

// Cluster constants.
const (
	ClusterID       datamodel.ClusterID = 0x0008
	ClusterRevision uint16              = 5
)

// Attribute IDs.
const (
	AttrCurrentLevel datamodel.AttributeID = 0x0000
	AttrMinLevel     datamodel.AttributeID = 0x0002
	AttrMaxLevel     datamodel.AttributeID = 0x0003
)

// Command IDs.
const (
	CmdMoveToLevel          datamodel.CommandID = 0x00
	CmdMoveToLevelWithOnOff datamodel.CommandID = 0x04
)

// Level limits.
const (
	DefaultMinLevel uint8 = 1
	DefaultMaxLevel uint8 = 254
)

// MoveToLevelRequest holds the MoveToLevel command fields.
type MoveToLevelRequest struct {
	Level           uint8  `cbor:"1,keyasint"`
	TransitionTime  uint16 `cbor:"2,keyasint,omitempty"` // tenths of a second
	OptionsMask     uint8  `cbor:"3,keyasint,omitempty"`
	OptionsOverride uint8  `cbor:"4,keyasint,omitempty"`
}

// LevelChangeCallback is invoked when the current level changes.
type LevelChangeCallback func(endpoint datamodel.EndpointID, level uint8, transitionTime uint16)

// Config configures the Level Control cluster.
type Config struct {
	EndpointID datamodel.EndpointID

	// MinLevel and MaxLevel bound CurrentLevel.
	// Default: DefaultMinLevel, DefaultMaxLevel
	MinLevel uint8
	MaxLevel uint8

	// InitialLevel defaults to MaxLevel.
	InitialLevel uint8

	// OnLevelChange is invoked after every change. Optional.
	OnLevelChange LevelChangeCallback

	// OnOff is switched on by MoveToLevelWithOnOff when the level rises
	// above MinLevel, and off when it reaches MinLevel. Optional.
	OnOff interface{ SetOnOff(bool) }
}

// Cluster is the Level Control server.
type Cluster struct {
	*datamodel.ClusterBase
	config Config

	mu    sync.RWMutex
	level uint8

	attrList []datamodel.AttributeID
}

// New creates a new Level Control cluster.
func New(cfg Config) *Cluster {
	if cfg.MinLevel == 0 {
		cfg.MinLevel = DefaultMinLevel
	}
	if cfg.MaxLevel == 0 || cfg.MaxLevel < cfg.MinLevel {
		cfg.MaxLevel = DefaultMaxLevel
	}
	level := cfg.InitialLevel
	if level == 0 {
		level = cfg.MaxLevel
	}

	c := &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, cfg.EndpointID, ClusterRevision),
		config:      cfg,
		level:       clamp(level, cfg.MinLevel, cfg.MaxLevel),
	}
	c.attrList = datamodel.MergeAttributeLists([]datamodel.AttributeID{
		AttrCurrentLevel, AttrMinLevel, AttrMaxLevel,
	})
	return c
}

// AttributeList implements datamodel.Cluster.
func (c *Cluster) AttributeList() []datamodel.AttributeID {
	return c.attrList
}

// AcceptedCommandList implements datamodel.Cluster.
func (c *Cluster) AcceptedCommandList() []datamodel.CommandID {
	return []datamodel.CommandID{CmdMoveToLevel, CmdMoveToLevelWithOnOff}
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(ctx context.Context, attr datamodel.AttributeID) (any, error) {
	if v, ok := c.ReadGlobalAttribute(attr, c.attrList, c.AcceptedCommandList()); ok {
		return v, nil
	}
	switch attr {
	case AttrCurrentLevel:
		return c.CurrentLevel(), nil
	case AttrMinLevel:
		return c.config.MinLevel, nil
	case AttrMaxLevel:
		return c.config.MaxLevel, nil
	default:
		return nil, datamodel.ErrUnsupportedAttribute
	}
}

// InvokeCommand implements datamodel.Cluster.
func (c *Cluster) InvokeCommand(ctx context.Context, cmd datamodel.CommandID, fields []byte) (any, error) {
	switch cmd {
	case CmdMoveToLevel, CmdMoveToLevelWithOnOff:
		var req MoveToLevelRequest
		if err := clusters.DecodeFields(fields, &req); err != nil {
			return nil, err
		}
		if req.Level > DefaultMaxLevel {
			return nil, datamodel.ErrConstraintError
		}
		level := c.setLevel(req.Level, req.TransitionTime)
		if cmd == CmdMoveToLevelWithOnOff && c.config.OnOff != nil {
			c.config.OnOff.SetOnOff(level > c.config.MinLevel)
		}
		return nil, nil
	default:
		return nil, datamodel.ErrUnsupportedCommand
	}
}

func (c *Cluster) setLevel(level uint8, transition uint16) uint8 {
	level = clamp(level, c.config.MinLevel, c.config.MaxLevel)

	c.mu.Lock()
	changed := c.level != level
	c.level = level
	c.mu.Unlock()

	if changed {
		c.IncrementDataVersion()
		if c.config.OnLevelChange != nil {
			c.config.OnLevelChange(c.config.EndpointID, level, transition)
		}
	}
	return level
}

// CurrentLevel returns the current level.
func (c *Cluster) CurrentLevel() uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.level
}

// clamp clamps v into [lo, hi].
func clamp(v, lo, hi uint8) uint8 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
