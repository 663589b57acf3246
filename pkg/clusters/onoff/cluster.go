// Package onoff implements the On/Off Cluster (0x0006).
//
// The On/Off cluster provides commands and attributes to control
// an on/off state, such as a light or power outlet.
package onoff

import (
	"context"
	"sync"

	"github.com/backkem/matter-switch/pkg/datamodel"
)

// Cluster constants.
const (
	ClusterID       datamodel.ClusterID = 0x0006
	ClusterRevision uint16              = 6
)

// Attribute IDs.
const (
	AttrOnOff              datamodel.AttributeID = 0x0000
	AttrGlobalSceneControl datamodel.AttributeID = 0x4000
	AttrOnTime             datamodel.AttributeID = 0x4001
	AttrOffWaitTime        datamodel.AttributeID = 0x4002
)

// Command IDs.
const (
	CmdOff    datamodel.CommandID = 0x00
	CmdOn     datamodel.CommandID = 0x01
	CmdToggle datamodel.CommandID = 0x02
)

// Feature bits.
type Feature uint32

const (
	// FeatureLighting enables the GlobalSceneControl, OnTime and
	// OffWaitTime attributes.
	FeatureLighting Feature = 1 << 0 // LT

	// FeatureOffOnly indicates the device can only be turned off, not on.
	FeatureOffOnly Feature = 1 << 2 // OFFONLY
)

// Storage persists the on/off state across restarts.
type Storage interface {
	Load(key string) ([]byte, error)
	Store(key string, value []byte) error
}

// StateChangeCallback is invoked when the on/off state changes.
type StateChangeCallback func(endpoint datamodel.EndpointID, newState bool)

// Config configures the On/Off cluster.
type Config struct {
	// EndpointID is the endpoint this cluster belongs to.
	EndpointID datamodel.EndpointID

	// FeatureMap specifies supported features.
	FeatureMap Feature

	// Storage persists the state. Optional.
	Storage Storage

	// OnStateChange is invoked after every state change. Optional.
	OnStateChange StateChangeCallback

	// InitialOnOff is the state used when nothing is stored.
	InitialOnOff bool
}

// Cluster is the On/Off server.
type Cluster struct {
	*datamodel.ClusterBase
	config Config

	mu                 sync.RWMutex
	onOff              bool
	globalSceneControl bool
	onTime             uint16
	offWaitTime        uint16

	attrList []datamodel.AttributeID
}

// New creates a new On/Off cluster.
func New(cfg Config) *Cluster {
	c := &Cluster{
		ClusterBase:        datamodel.NewClusterBase(ClusterID, cfg.EndpointID, ClusterRevision),
		config:             cfg,
		onOff:              cfg.InitialOnOff,
		globalSceneControl: true,
	}
	c.SetFeatureMap(uint32(cfg.FeatureMap))

	if cfg.Storage != nil {
		if data, err := cfg.Storage.Load("onoff"); err == nil && len(data) == 1 {
			c.onOff = data[0] != 0
		}
	}

	attrs := []datamodel.AttributeID{AttrOnOff}
	if cfg.FeatureMap&FeatureLighting != 0 {
		attrs = append(attrs, AttrGlobalSceneControl, AttrOnTime, AttrOffWaitTime)
	}
	c.attrList = datamodel.MergeAttributeLists(attrs)
	return c
}

// AttributeList implements datamodel.Cluster.
func (c *Cluster) AttributeList() []datamodel.AttributeID {
	return c.attrList
}

// AcceptedCommandList implements datamodel.Cluster.
func (c *Cluster) AcceptedCommandList() []datamodel.CommandID {
	if c.config.FeatureMap&FeatureOffOnly != 0 {
		return []datamodel.CommandID{CmdOff}
	}
	return []datamodel.CommandID{CmdOff, CmdOn, CmdToggle}
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(ctx context.Context, attr datamodel.AttributeID) (any, error) {
	if v, ok := c.ReadGlobalAttribute(attr, c.attrList, c.AcceptedCommandList()); ok {
		return v, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	lighting := c.config.FeatureMap&FeatureLighting != 0
	switch {
	case attr == AttrOnOff:
		return c.onOff, nil
	case attr == AttrGlobalSceneControl && lighting:
		return c.globalSceneControl, nil
	case attr == AttrOnTime && lighting:
		return c.onTime, nil
	case attr == AttrOffWaitTime && lighting:
		return c.offWaitTime, nil
	default:
		return nil, datamodel.ErrUnsupportedAttribute
	}
}

// InvokeCommand implements datamodel.Cluster. All commands are
// status-only.
func (c *Cluster) InvokeCommand(ctx context.Context, cmd datamodel.CommandID, fields []byte) (any, error) {
	switch cmd {
	case CmdOff:
		c.setOnOff(false)
		return nil, nil
	case CmdOn:
		return nil, c.handleOn()
	case CmdToggle:
		if c.GetOnOff() {
			c.setOnOff(false)
			return nil, nil
		}
		return nil, c.handleOn()
	default:
		return nil, datamodel.ErrUnsupportedCommand
	}
}

func (c *Cluster) handleOn() error {
	if c.config.FeatureMap&FeatureOffOnly != 0 {
		return datamodel.ErrUnsupportedCommand
	}
	c.setOnOff(true)

	if c.config.FeatureMap&FeatureLighting != 0 {
		c.mu.Lock()
		if c.onTime == 0 {
			c.offWaitTime = 0
		}
		c.globalSceneControl = true
		c.mu.Unlock()
	}
	return nil
}

// setOnOff sets the on/off state and triggers callbacks.
func (c *Cluster) setOnOff(newState bool) {
	c.mu.Lock()
	if c.onOff == newState {
		c.mu.Unlock()
		return
	}
	c.onOff = newState
	c.mu.Unlock()

	if c.config.Storage != nil {
		val := byte(0)
		if newState {
			val = 1
		}
		_ = c.config.Storage.Store("onoff", []byte{val})
	}
	c.IncrementDataVersion()

	if c.config.OnStateChange != nil {
		c.config.OnStateChange(c.config.EndpointID, newState)
	}
}

// GetOnOff returns the current on/off state.
func (c *Cluster) GetOnOff() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onOff
}

// SetOnOff sets the on/off state directly (for local control).
func (c *Cluster) SetOnOff(newState bool) {
	c.setOnOff(newState)
}
