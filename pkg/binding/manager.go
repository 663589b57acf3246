package binding

import (
	"errors"
	"fmt"

	"github.com/pion/logging"

	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/eventloop"
	"github.com/backkem/matter-switch/pkg/fabric"
	"github.com/backkem/matter-switch/pkg/session"
)

// DefaultMaxPendingNotifications bounds the bindings that may wait for a
// session at the same time.
const DefaultMaxPendingNotifications = 2 * DefaultMaxBindings

// ErrNoHandler is returned by NotifyBoundClusterChanged when no
// bound-device handler is registered.
var ErrNoHandler = errors.New("binding: no bound device handler registered")

// SessionProvider resolves unicast peers to sessions. session.Connector
// implements it. All methods are called on the loop.
type SessionProvider interface {
	// Session returns an active handle without establishing one.
	Session(peer session.ScopedNodeID) (*session.Handle, bool)

	// Connect reports a handle to peer through exactly one callback.
	Connect(peer session.ScopedNodeID, onConnected func(*session.Handle), onFailure func(session.ScopedNodeID, error))

	// Evict drops every session to peer.
	Evict(peer session.ScopedNodeID)
}

// BoundDeviceChangedHandler is called once per matching entry. peer is nil
// for multicast entries.
type BoundDeviceChangedHandler func(entry Entry, peer *session.Handle, context any)

// BoundDeviceContextReleaseHandler is called exactly once per accepted
// notification, after every matching entry has been handled or failed.
type BoundDeviceContextReleaseHandler func(context any)

// EntryFilter may be implemented by a notification context to narrow the
// matching entries it is delivered to. Rejected entries are skipped before
// any session is looked up or established.
type EntryFilter interface {
	AcceptsEntry(e Entry) bool
}

// ConnectionFailureHandler is called for a unicast entry whose session
// could not be resolved.
type ConnectionFailureHandler func(entry Entry, err error, context any)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Loop owns all manager state. Required.
	Loop *eventloop.Loop

	// Table is the binding table. Required.
	Table *Table

	// Sessions resolves unicast entries. Required.
	Sessions SessionProvider

	// MaxPendingNotifications bounds entries waiting for a session.
	// Default: DefaultMaxPendingNotifications
	MaxPendingNotifications int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

type notification struct {
	context any
	refs    int
}

type pendingNotification struct {
	entry Entry
	n     *notification
}

// Manager fans bound-cluster changes out to the bindings that match them.
// All methods must be called on the loop.
type Manager struct {
	loop       *eventloop.Loop
	table      *Table
	sessions   SessionProvider
	maxPending int
	log        logging.LeveledLogger

	onChanged BoundDeviceChangedHandler
	onRelease BoundDeviceContextReleaseHandler
	onFailure ConnectionFailureHandler

	pending      map[session.ScopedNodeID][]pendingNotification
	pendingCount int
}

// NewManager creates a Manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Loop == nil || config.Table == nil || config.Sessions == nil {
		return nil, fmt.Errorf("binding: manager requires a loop, a table and a session provider")
	}
	if config.MaxPendingNotifications <= 0 {
		config.MaxPendingNotifications = DefaultMaxPendingNotifications
	}

	m := &Manager{
		loop:       config.Loop,
		table:      config.Table,
		sessions:   config.Sessions,
		maxPending: config.MaxPendingNotifications,
		pending:    make(map[session.ScopedNodeID][]pendingNotification),
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("binding")
	}
	return m, nil
}

// Table returns the binding table.
func (m *Manager) Table() *Table {
	return m.table
}

// RegisterBoundDeviceChangedHandler sets the handler for matching entries.
func (m *Manager) RegisterBoundDeviceChangedHandler(h BoundDeviceChangedHandler) {
	m.onChanged = h
}

// RegisterBoundDeviceContextReleaseHandler sets the handler that releases
// notification contexts.
func (m *Manager) RegisterBoundDeviceContextReleaseHandler(h BoundDeviceContextReleaseHandler) {
	m.onRelease = h
}

// RegisterConnectionFailureHandler sets the handler for unicast entries
// whose session could not be resolved.
func (m *Manager) RegisterConnectionFailureHandler(h ConnectionFailureHandler) {
	m.onFailure = h
}

// NotifyBoundClusterChanged calls the bound-device handler for every entry
// bound to cluster on endpoint. Unicast entries without an active session
// wait for one to be established. A context implementing EntryFilter only
// reaches the entries it accepts. Once accepted, context is handed to the
// release handler exactly once; on error the caller keeps it.
func (m *Manager) NotifyBoundClusterChanged(endpoint datamodel.EndpointID, cluster datamodel.ClusterID, context any) error {
	m.loop.AssertOnLoop()
	if m.onChanged == nil {
		return ErrNoHandler
	}

	filter, _ := context.(EntryFilter)
	n := &notification{context: context, refs: 1}
	for _, e := range m.table.Matching(endpoint, cluster) {
		if filter != nil && !filter.AcceptsEntry(e) {
			continue
		}
		if e.IsMulticast() {
			m.onChanged(e, nil, context)
			continue
		}

		peer := e.Peer()
		if h, ok := m.sessions.Session(peer); ok {
			m.onChanged(e, h, context)
			continue
		}
		if m.pendingCount >= m.maxPending {
			if m.log != nil {
				m.log.Warnf("dropping %s: %v", e, ErrPendingFull)
			}
			m.fail(e, ErrPendingFull, context)
			continue
		}

		_, inFlight := m.pending[peer]
		m.pending[peer] = append(m.pending[peer], pendingNotification{entry: e, n: n})
		m.pendingCount++
		n.refs++
		if !inFlight {
			m.sessions.Connect(peer, m.onConnected, m.onConnectFailed)
		}
	}
	m.unref(n)
	return nil
}

// RemoveBinding deletes the entry at index and drops its waiting
// notifications.
func (m *Manager) RemoveBinding(index int) (Entry, error) {
	m.loop.AssertOnLoop()
	e, err := m.table.Remove(index)
	if err != nil {
		return Entry{}, err
	}
	if e.IsUnicast() {
		m.UnicastBindingRemoved(e)
	}
	return e, nil
}

// UnicastBindingRemoved fails every notification still waiting on e.
func (m *Manager) UnicastBindingRemoved(e Entry) {
	m.loop.AssertOnLoop()
	m.dropPending(func(p pendingNotification) bool { return p.entry == e }, ErrBindingRemoved)
}

// FabricRemoved deletes the fabric's entries, fails their waiting
// notifications and evicts their sessions.
func (m *Manager) FabricRemoved(fabricIndex fabric.FabricIndex) error {
	m.loop.AssertOnLoop()

	removed, err := m.table.RemoveFabric(fabricIndex)
	m.dropPending(func(p pendingNotification) bool { return p.entry.FabricIndex == fabricIndex }, ErrFabricRemoved)

	evicted := make(map[session.ScopedNodeID]bool)
	for _, e := range removed {
		if e.IsUnicast() && !evicted[e.Peer()] {
			evicted[e.Peer()] = true
			m.sessions.Evict(e.Peer())
		}
	}
	if m.log != nil {
		m.log.Infof("fabric %d removed: %d bindings dropped", fabricIndex, len(removed))
	}
	return err
}

// Pending returns the number of entries waiting for a session.
func (m *Manager) Pending() int {
	m.loop.AssertOnLoop()
	return m.pendingCount
}

func (m *Manager) onConnected(h *session.Handle) {
	waiting := m.takePending(h.Peer())
	for _, p := range waiting {
		m.onChanged(p.entry, h, p.n.context)
		m.unref(p.n)
	}
}

func (m *Manager) onConnectFailed(peer session.ScopedNodeID, err error) {
	waiting := m.takePending(peer)
	if m.log != nil && len(waiting) > 0 {
		m.log.Warnf("no session to %s for %d bindings: %v", peer, len(waiting), err)
	}
	for _, p := range waiting {
		m.fail(p.entry, err, p.n.context)
		m.unref(p.n)
	}
}

func (m *Manager) takePending(peer session.ScopedNodeID) []pendingNotification {
	waiting := m.pending[peer]
	delete(m.pending, peer)
	m.pendingCount -= len(waiting)
	return waiting
}

func (m *Manager) dropPending(match func(pendingNotification) bool, reason error) {
	var dropped []pendingNotification
	for peer, waiting := range m.pending {
		kept := waiting[:0]
		for _, p := range waiting {
			if match(p) {
				dropped = append(dropped, p)
			} else {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(m.pending, peer)
		} else {
			m.pending[peer] = kept
		}
	}
	m.pendingCount -= len(dropped)

	for _, p := range dropped {
		m.fail(p.entry, reason, p.n.context)
		m.unref(p.n)
	}
}

func (m *Manager) fail(e Entry, err error, context any) {
	if m.onFailure != nil {
		m.onFailure(e, err, context)
	}
}

func (m *Manager) unref(n *notification) {
	n.refs--
	if n.refs == 0 && m.onRelease != nil {
		m.onRelease(n.context)
	}
}
