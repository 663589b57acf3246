// Package opstate implements the Operational State Cluster (0x0060).
//
// Start, Stop, Pause and Resume move the device between Stopped, Running
// and Paused. Every command answers with an OperationalCommandResponse;
// a transition the current state does not allow is reported in the
// response as CommandInvalidInState rather than as an IM status.
package opstate

import (
	"context"
	"sync"

	"github.com/backkem/matter-switch/pkg/datamodel"
)

// Cluster constants.
const (
	ClusterID       datamodel.ClusterID = 0x0060
	ClusterRevision uint16              = 2
)

// Attribute IDs.
const (
	AttrPhaseList            datamodel.AttributeID = 0x0000
	AttrCurrentPhase         datamodel.AttributeID = 0x0001
	AttrOperationalStateList datamodel.AttributeID = 0x0003
	AttrOperationalState     datamodel.AttributeID = 0x0004
	AttrOperationalError     datamodel.AttributeID = 0x0005
)

// Command IDs.
const (
	CmdPause  datamodel.CommandID = 0x00
	CmdStop   datamodel.CommandID = 0x01
	CmdStart  datamodel.CommandID = 0x02
	CmdResume datamodel.CommandID = 0x03

	// CmdOperationalCommandResponse is the generated response command.
	CmdOperationalCommandResponse datamodel.CommandID = 0x04
)

// State is an operational state ID.
type State uint8

const (
	StateStopped State = 0x00
	StateRunning State = 0x01
	StatePaused  State = 0x02
	StateError   State = 0x03
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ErrorState is an operational error ID.
type ErrorState uint8

const (
	ErrorNoError               ErrorState = 0x00
	ErrorUnableToStartOrResume ErrorState = 0x01
	ErrorUnableToCompleteOp    ErrorState = 0x02
	ErrorCommandInvalidInState ErrorState = 0x03
)

// ErrorStateStruct reports an operational error.
type ErrorStateStruct struct {
	ErrorStateID ErrorState `cbor:"1,keyasint"`
}

// OperationalCommandResponse is returned by every command.
type OperationalCommandResponse struct {
	CommandResponseState ErrorStateStruct `cbor:"1,keyasint"`
}

// StateChangeCallback is invoked after every state change.
type StateChangeCallback func(endpoint datamodel.EndpointID, from, to State)

// Config configures the Operational State cluster.
type Config struct {
	EndpointID    datamodel.EndpointID
	OnStateChange StateChangeCallback
}

// Cluster is the Operational State server.
type Cluster struct {
	*datamodel.ClusterBase
	config Config

	mu    sync.RWMutex
	state State

	attrList []datamodel.AttributeID
}

// New creates a new Operational State cluster in the Stopped state.
func New(cfg Config) *Cluster {
	c := &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, cfg.EndpointID, ClusterRevision),
		config:      cfg,
		state:       StateStopped,
	}
	c.attrList = datamodel.MergeAttributeLists([]datamodel.AttributeID{
		AttrPhaseList, AttrCurrentPhase, AttrOperationalStateList,
		AttrOperationalState, AttrOperationalError,
	})
	return c
}

// AttributeList implements datamodel.Cluster.
func (c *Cluster) AttributeList() []datamodel.AttributeID {
	return c.attrList
}

// AcceptedCommandList implements datamodel.Cluster.
func (c *Cluster) AcceptedCommandList() []datamodel.CommandID {
	return []datamodel.CommandID{CmdPause, CmdStop, CmdStart, CmdResume}
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(ctx context.Context, attr datamodel.AttributeID) (any, error) {
	if attr == datamodel.GlobalAttrGeneratedCommandList {
		return []datamodel.CommandID{CmdOperationalCommandResponse}, nil
	}
	if v, ok := c.ReadGlobalAttribute(attr, c.attrList, c.AcceptedCommandList()); ok {
		return v, nil
	}
	switch attr {
	case AttrPhaseList, AttrCurrentPhase:
		return nil, nil
	case AttrOperationalStateList:
		return []State{StateStopped, StateRunning, StatePaused, StateError}, nil
	case AttrOperationalState:
		return c.State(), nil
	case AttrOperationalError:
		return ErrorStateStruct{ErrorStateID: ErrorNoError}, nil
	default:
		return nil, datamodel.ErrUnsupportedAttribute
	}
}

// InvokeCommand implements datamodel.Cluster.
func (c *Cluster) InvokeCommand(ctx context.Context, cmd datamodel.CommandID, fields []byte) (any, error) {
	var allowed func(State) bool
	var target State

	switch cmd {
	case CmdStart:
		allowed = func(s State) bool { return s == StateStopped || s == StateRunning }
		target = StateRunning
	case CmdStop:
		allowed = func(s State) bool { return s != StateError }
		target = StateStopped
	case CmdPause:
		allowed = func(s State) bool { return s == StateRunning || s == StatePaused }
		target = StatePaused
	case CmdResume:
		allowed = func(s State) bool { return s == StatePaused || s == StateRunning }
		target = StateRunning
	default:
		return nil, datamodel.ErrUnsupportedCommand
	}

	c.mu.Lock()
	from := c.state
	if !allowed(from) {
		c.mu.Unlock()
		return respond(ErrorCommandInvalidInState), nil
	}
	c.state = target
	c.mu.Unlock()

	if from != target {
		c.IncrementDataVersion()
		if c.config.OnStateChange != nil {
			c.config.OnStateChange(c.config.EndpointID, from, target)
		}
	}
	return respond(ErrorNoError), nil
}

// State returns the current operational state.
func (c *Cluster) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetError moves the device into the Error state, where every command is
// refused until ClearError.
func (c *Cluster) SetError() {
	c.setState(StateError)
}

// ClearError returns the device to Stopped.
func (c *Cluster) ClearError() {
	c.setState(StateStopped)
}

func (c *Cluster) setState(s State) {
	c.mu.Lock()
	from := c.state
	c.state = s
	c.mu.Unlock()
	if from != s {
		c.IncrementDataVersion()
		if c.config.OnStateChange != nil {
			c.config.OnStateChange(c.config.EndpointID, from, s)
		}
	}
}

func respond(e ErrorState) *OperationalCommandResponse {
	return &OperationalCommandResponse{CommandResponseState: ErrorStateStruct{ErrorStateID: e}}
}
