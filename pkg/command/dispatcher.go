package command

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/backkem/matter-switch/pkg/binding"
	"github.com/backkem/matter-switch/pkg/clusters/colorcontrol"
	"github.com/backkem/matter-switch/pkg/clusters/levelcontrol"
	"github.com/backkem/matter-switch/pkg/clusters/onoff"
	"github.com/backkem/matter-switch/pkg/clusters/opstate"
	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/eventloop"
	"github.com/backkem/matter-switch/pkg/fabric"
	"github.com/backkem/matter-switch/pkg/interaction"
	"github.com/backkem/matter-switch/pkg/session"
)

//go:generate mockgen -source=dispatcher.go -destination=mock_test.go -package=command

// DefaultMaxPendingCommands bounds the commands in flight at once.
const DefaultMaxPendingCommands = 16

// DefaultSupportedClusters are the clusters the switch drives.
var DefaultSupportedClusters = []datamodel.ClusterID{
	onoff.ClusterID,
	levelcontrol.ClusterID,
	colorcontrol.ClusterID,
	opstate.ClusterID,
}

// Notifier fans a command out to the matching bindings. binding.Manager
// implements it.
type Notifier interface {
	NotifyBoundClusterChanged(endpoint datamodel.EndpointID, cluster datamodel.ClusterID, context any) error
	RegisterBoundDeviceChangedHandler(h binding.BoundDeviceChangedHandler)
	RegisterBoundDeviceContextReleaseHandler(h binding.BoundDeviceContextReleaseHandler)
	RegisterConnectionFailureHandler(h binding.ConnectionFailureHandler)
}

// Interactor sends cluster requests. interaction.Client implements it.
type Interactor interface {
	Invoke(h *session.Handle, req interaction.InvokeRequest, onDone interaction.ResponseHandler)
	Read(h *session.Handle, req interaction.ReadRequest, onDone interaction.ResponseHandler)
	InvokeGroup(fabricIndex fabric.FabricIndex, groupID fabric.GroupID, req interaction.InvokeRequest) error
	ReadGroup(fabricIndex fabric.FabricIndex, groupID fabric.GroupID, req interaction.ReadRequest) error
}

// Evictor drops stale sessions. session.Connector implements it.
type Evictor interface {
	Evict(peer session.ScopedNodeID)
}

// RecoveryState is the per-peer session recovery state.
type RecoveryState int

const (
	// StateNormal means no recovery is in flight.
	StateNormal RecoveryState = iota
	// StateRecovering means one retry over a fresh session is in flight.
	StateRecovering
)

// String returns the state name.
func (s RecoveryState) String() string {
	if s == StateRecovering {
		return "RECOVERING"
	}
	return "NORMAL"
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Loop owns all dispatcher state. Required.
	Loop *eventloop.Loop

	// Bindings resolves commands to bindings. Required.
	Bindings Notifier

	// Client sends requests. Required.
	Client Interactor

	// Sessions evicts stale sessions before a retry. Required.
	Sessions Evictor

	// SupportedClusters lists the clusters commands may target.
	// Default: DefaultSupportedClusters
	SupportedClusters []datamodel.ClusterID

	// MaxPendingCommands bounds the commands in flight.
	// Default: DefaultMaxPendingCommands
	MaxPendingCommands int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// pending tracks one sent command until its outcome is reported. Each
// dispatch context and each unicast request in flight holds a reference.
type pending struct {
	cmd         *Command
	refs        int
	succeeded   bool
	finished    bool
	lastErr     error
	groupsSent  int
	unsupported bool
}

// dispatchContext is the context handed to the binding manager. A retry
// carries its own copy of the command and is limited to the entry that
// timed out.
type dispatchContext struct {
	p         *pending
	cmd       *Command
	target    *binding.Entry
	recovery  bool
	attempted bool
}

// AcceptsEntry implements binding.EntryFilter.
func (dc *dispatchContext) AcceptsEntry(e binding.Entry) bool {
	return dc.target == nil || e == *dc.target
}

// Dispatcher sends commands to bound devices and recovers stale sessions.
// Send may be called from any goroutine; every other method must be
// called on the loop.
type Dispatcher struct {
	loop       *eventloop.Loop
	bindings   Notifier
	client     Interactor
	sessions   Evictor
	supported  map[datamodel.ClusterID]bool
	maxPending int
	log        logging.LeveledLogger

	active   int
	recovery map[session.ScopedNodeID]RecoveryState
}

// NewDispatcher creates a Dispatcher and registers its handlers with the
// binding manager.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.Loop == nil || config.Bindings == nil || config.Client == nil || config.Sessions == nil {
		return nil, fmt.Errorf("command: dispatcher requires a loop, bindings, a client and sessions")
	}
	if len(config.SupportedClusters) == 0 {
		config.SupportedClusters = DefaultSupportedClusters
	}
	if config.MaxPendingCommands <= 0 {
		config.MaxPendingCommands = DefaultMaxPendingCommands
	}

	d := &Dispatcher{
		loop:       config.Loop,
		bindings:   config.Bindings,
		client:     config.Client,
		sessions:   config.Sessions,
		supported:  make(map[datamodel.ClusterID]bool),
		maxPending: config.MaxPendingCommands,
		recovery:   make(map[session.ScopedNodeID]RecoveryState),
	}
	for _, id := range config.SupportedClusters {
		d.supported[id] = true
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("command")
	}

	config.Bindings.RegisterBoundDeviceChangedHandler(d.Dispatch)
	config.Bindings.RegisterBoundDeviceContextReleaseHandler(d.release)
	config.Bindings.RegisterConnectionFailureHandler(d.connectionFailed)
	return d, nil
}

// Send schedules cmd on the loop. If the loop is closed, OnFailure runs
// before Send returns.
func (d *Dispatcher) Send(cmd *Command) {
	c := cmd.clone()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if err := d.loop.Post(func() { d.send(c) }); err != nil {
		if c.OnFailure != nil {
			c.OnFailure(err)
		}
	}
}

// Pending returns the number of commands in flight.
func (d *Dispatcher) Pending() int {
	d.loop.AssertOnLoop()
	return d.active
}

// RecoveryState returns the recovery state for peer.
func (d *Dispatcher) RecoveryState(peer session.ScopedNodeID) RecoveryState {
	d.loop.AssertOnLoop()
	return d.recovery[peer]
}

func (d *Dispatcher) send(cmd *Command) {
	if d.active >= d.maxPending {
		if d.log != nil {
			d.log.Warnf("%s: %v", cmd, ErrNoMemory)
		}
		if cmd.OnFailure != nil {
			cmd.OnFailure(ErrNoMemory)
		}
		return
	}
	d.active++

	p := &pending{cmd: cmd, refs: 1}
	if d.log != nil {
		d.log.Debugf("%s: cluster 0x%04X on endpoint %d", cmd, uint32(cmd.Cluster), cmd.LocalEndpoint)
	}
	d.notify(&dispatchContext{p: p, cmd: cmd})
	d.unref(p)
}

// notify hands dc to the binding manager. On success the manager releases
// dc exactly once.
func (d *Dispatcher) notify(dc *dispatchContext) bool {
	dc.p.refs++
	if err := d.bindings.NotifyBoundClusterChanged(dc.cmd.LocalEndpoint, dc.cmd.Cluster, dc); err != nil {
		dc.p.refs--
		dc.p.lastErr = err
		return false
	}
	return true
}

// Dispatch sends the command carried by context to one bound device. It is
// the binding manager's bound-device handler; peer is nil for multicast
// entries.
func (d *Dispatcher) Dispatch(entry binding.Entry, peer *session.Handle, context any) {
	d.loop.AssertOnLoop()

	dc, ok := context.(*dispatchContext)
	if !ok {
		return
	}
	if !dc.AcceptsEntry(entry) {
		return
	}
	cmd := dc.cmd
	if !d.supported[cmd.Cluster] {
		if d.log != nil {
			d.log.Warnf("%s: ignoring unsupported cluster 0x%04X on %s", cmd, uint32(cmd.Cluster), entry)
		}
		dc.p.unsupported = true
		return
	}

	switch {
	case entry.IsMulticast():
		d.sendGroup(entry, dc)
	case peer != nil:
		d.sendUnicast(entry, peer, dc)
	}
}

func (d *Dispatcher) sendGroup(entry binding.Entry, dc *dispatchContext) {
	cmd := dc.cmd
	var err error
	if cmd.IsRead {
		err = d.client.ReadGroup(entry.FabricIndex, entry.GroupID, cmd.readRequest(entry))
	} else {
		err = d.client.InvokeGroup(entry.FabricIndex, entry.GroupID, cmd.invokeRequest(entry))
	}
	dc.p.groupsSent++

	if d.log != nil {
		if err != nil {
			d.log.Warnf("%s: group 0x%04X: %v", cmd, uint16(entry.GroupID), err)
		} else {
			d.log.Debugf("%s: sent to group 0x%04X", cmd, uint16(entry.GroupID))
		}
	}
	if cmd.OnGroupSent != nil {
		cmd.OnGroupSent(entry.GroupID, err)
	}
}

func (d *Dispatcher) sendUnicast(entry binding.Entry, peer *session.Handle, dc *dispatchContext) {
	dc.attempted = true
	dc.p.refs++

	onDone := func(resp *interaction.Response, err error) {
		d.completed(entry, dc, resp, err)
	}
	if dc.cmd.IsRead {
		d.client.Read(peer, dc.cmd.readRequest(entry), onDone)
	} else {
		d.client.Invoke(peer, dc.cmd.invokeRequest(entry), onDone)
	}
}

func (d *Dispatcher) completed(entry binding.Entry, dc *dispatchContext, resp *interaction.Response, err error) {
	p := dc.p
	defer d.unref(p)
	target := entry.Peer()

	if err == nil {
		if dc.recovery {
			d.setRecovery(target, StateNormal)
			if d.log != nil {
				d.log.Infof("%s: recovered session to %s", dc.cmd, target)
			}
		}
		if !p.succeeded {
			p.succeeded = true
			if p.cmd.OnSuccess != nil {
				p.cmd.OnSuccess(Result{Entry: entry, Response: resp})
			}
		}
		return
	}

	p.lastErr = err
	if errors.Is(err, ErrTimeout) && !dc.recovery && !p.succeeded && d.recovery[target] == StateNormal {
		if d.recover(entry, dc) {
			return
		}
	}
	if dc.recovery {
		d.setRecovery(target, StateNormal)
	}
	if d.log != nil {
		d.log.Warnf("%s: %s failed: %v", dc.cmd, entry, err)
	}
}

// recover evicts the stale session and re-notifies a copy of the command
// for entry alone.
func (d *Dispatcher) recover(entry binding.Entry, dc *dispatchContext) bool {
	target := entry.Peer()
	if d.log != nil {
		d.log.Infof("%s: timeout on %s, retrying over a new session", dc.cmd, target)
	}
	d.setRecovery(target, StateRecovering)
	d.sessions.Evict(target)

	retry := &dispatchContext{
		p:        dc.p,
		cmd:      dc.cmd.clone(),
		target:   &entry,
		recovery: true,
	}
	if !d.notify(retry) {
		d.setRecovery(target, StateNormal)
		return false
	}
	return true
}

func (d *Dispatcher) connectionFailed(entry binding.Entry, err error, context any) {
	dc, ok := context.(*dispatchContext)
	if !ok {
		return
	}
	if !dc.AcceptsEntry(entry) {
		return
	}
	if dc.recovery {
		dc.attempted = true
		d.setRecovery(entry.Peer(), StateNormal)
	}
	dc.p.lastErr = err
	if d.log != nil {
		d.log.Warnf("%s: no session for %s: %v", dc.cmd, entry, err)
	}
}

func (d *Dispatcher) release(context any) {
	dc, ok := context.(*dispatchContext)
	if !ok {
		return
	}
	// The retried entry disappeared before it could be sent.
	if dc.recovery && !dc.attempted {
		d.setRecovery(dc.target.Peer(), StateNormal)
	}
	d.unref(dc.p)
}

func (d *Dispatcher) setRecovery(peer session.ScopedNodeID, s RecoveryState) {
	if s == StateNormal {
		delete(d.recovery, peer)
		return
	}
	d.recovery[peer] = s
}

func (d *Dispatcher) unref(p *pending) {
	p.refs--
	if p.refs > 0 || p.finished {
		return
	}
	p.finished = true
	d.active--

	if p.succeeded {
		return
	}
	var err error
	switch {
	case p.lastErr != nil:
		err = p.lastErr
	case p.unsupported:
		err = ErrUnsupportedCluster
	case p.groupsSent == 0:
		err = ErrNoMatchingBinding
	default:
		return
	}
	if d.log != nil {
		d.log.Warnf("%s: failed: %v", p.cmd, err)
	}
	if p.cmd.OnFailure != nil {
		p.cmd.OnFailure(err)
	}
}
