package binding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backkem/matter-switch/pkg/eventloop"
	"github.com/backkem/matter-switch/pkg/fabric"
	"github.com/backkem/matter-switch/pkg/session"
)

type connectCall struct {
	peer        session.ScopedNodeID
	onConnected func(*session.Handle)
	onFailure   func(session.ScopedNodeID, error)
}

// fakeSessions records Connect calls so tests can complete them.
type fakeSessions struct {
	active   map[session.ScopedNodeID]*session.Handle
	connects []connectCall
	evicted  []session.ScopedNodeID
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{active: make(map[session.ScopedNodeID]*session.Handle)}
}

func (f *fakeSessions) Session(peer session.ScopedNodeID) (*session.Handle, bool) {
	h, ok := f.active[peer]
	return h, ok
}

func (f *fakeSessions) Connect(peer session.ScopedNodeID, onConnected func(*session.Handle), onFailure func(session.ScopedNodeID, error)) {
	f.connects = append(f.connects, connectCall{peer: peer, onConnected: onConnected, onFailure: onFailure})
}

func (f *fakeSessions) Evict(peer session.ScopedNodeID) {
	f.evicted = append(f.evicted, peer)
	delete(f.active, peer)
}

func newHandle(t *testing.T, peer session.ScopedNodeID) *session.Handle {
	t.Helper()
	key := make([]byte, session.SessionKeySize)
	h, err := session.NewHandle(session.HandleConfig{
		Peer:           peer,
		LocalSessionID: 1,
		PeerSessionID:  2,
		I2RKey:         key,
		R2IKey:         key,
	})
	require.NoError(t, err)
	return h
}

type changedCall struct {
	entry   Entry
	peer    *session.Handle
	context any
}

type failedCall struct {
	entry   Entry
	err     error
	context any
}

type recorder struct {
	changed  []changedCall
	failed   []failedCall
	released []any
}

type managerFixture struct {
	loop     *eventloop.Loop
	sessions *fakeSessions
	manager  *Manager
	rec      *recorder
}

func newManagerFixture(t *testing.T, maxPending int, entries ...Entry) *managerFixture {
	t.Helper()
	loop := eventloop.New(eventloop.Config{Name: t.Name()})
	t.Cleanup(func() { loop.Close() })

	table, err := NewTable(TableConfig{})
	require.NoError(t, err)
	for _, e := range entries {
		_, err := table.Add(e)
		require.NoError(t, err)
	}

	sessions := newFakeSessions()
	m, err := NewManager(ManagerConfig{
		Loop:                    loop,
		Table:                   table,
		Sessions:                sessions,
		MaxPendingNotifications: maxPending,
	})
	require.NoError(t, err)

	rec := &recorder{}
	m.RegisterBoundDeviceChangedHandler(func(e Entry, peer *session.Handle, ctx any) {
		rec.changed = append(rec.changed, changedCall{e, peer, ctx})
	})
	m.RegisterConnectionFailureHandler(func(e Entry, err error, ctx any) {
		rec.failed = append(rec.failed, failedCall{e, err, ctx})
	})
	m.RegisterBoundDeviceContextReleaseHandler(func(ctx any) {
		rec.released = append(rec.released, ctx)
	})

	return &managerFixture{loop: loop, sessions: sessions, manager: m, rec: rec}
}

func (f *managerFixture) run(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, f.loop.RunSync(fn))
}

var (
	peerA     = session.ScopedNodeID{FabricIndex: 1, NodeID: 0x1111}
	peerB     = session.ScopedNodeID{FabricIndex: 1, NodeID: 0x2222}
	bindingA  = Unicast(1, 1, peerA.NodeID, 1, 0x0006)
	bindingB  = Unicast(1, 1, peerB.NodeID, 1, 0x0006)
	bindingGr = Multicast(1, 1, 0x0101, 0x0006)
)

func TestManagerRequiresConfig(t *testing.T) {
	_, err := NewManager(ManagerConfig{})
	assert.Error(t, err)
}

func TestNotifyWithoutHandler(t *testing.T) {
	loop := eventloop.New(eventloop.Config{})
	defer loop.Close()
	table, err := NewTable(TableConfig{})
	require.NoError(t, err)
	m, err := NewManager(ManagerConfig{Loop: loop, Table: table, Sessions: newFakeSessions()})
	require.NoError(t, err)

	_ = loop.RunSync(func() {
		assert.ErrorIs(t, m.NotifyBoundClusterChanged(1, 0x0006, "ctx"), ErrNoHandler)
	})
}

func TestNotifyActiveSessionAndGroup(t *testing.T) {
	f := newManagerFixture(t, 0, bindingA, bindingGr)
	h := newHandle(t, peerA)
	f.sessions.active[peerA] = h

	f.run(t, func() {
		assert.NoError(t, f.manager.NotifyBoundClusterChanged(1, 0x0006, "ctx"))
	})

	require.Len(t, f.rec.changed, 2)
	assert.Equal(t, bindingA, f.rec.changed[0].entry)
	assert.Same(t, h, f.rec.changed[0].peer)
	assert.Equal(t, bindingGr, f.rec.changed[1].entry)
	assert.Nil(t, f.rec.changed[1].peer)
	assert.Equal(t, []any{"ctx"}, f.rec.released)
	assert.Empty(t, f.sessions.connects)
}

func TestNotifyNoMatchReleasesImmediately(t *testing.T) {
	f := newManagerFixture(t, 0, bindingA)

	f.run(t, func() {
		assert.NoError(t, f.manager.NotifyBoundClusterChanged(1, 0x0300, "ctx"))
	})

	assert.Empty(t, f.rec.changed)
	assert.Equal(t, []any{"ctx"}, f.rec.released)
}

func TestNotifyWaitsForSession(t *testing.T) {
	f := newManagerFixture(t, 0, bindingA)

	f.run(t, func() {
		assert.NoError(t, f.manager.NotifyBoundClusterChanged(1, 0x0006, "first"))
		assert.NoError(t, f.manager.NotifyBoundClusterChanged(1, 0x0006, "second"))
		assert.Equal(t, 2, f.manager.Pending())
	})

	require.Len(t, f.sessions.connects, 1, "second notification must join the pending connect")
	assert.Empty(t, f.rec.changed)
	assert.Empty(t, f.rec.released)

	h := newHandle(t, peerA)
	f.run(t, func() {
		f.sessions.connects[0].onConnected(h)
		assert.Equal(t, 0, f.manager.Pending())
	})

	require.Len(t, f.rec.changed, 2)
	assert.Equal(t, "first", f.rec.changed[0].context)
	assert.Equal(t, "second", f.rec.changed[1].context)
	assert.Same(t, h, f.rec.changed[1].peer)
	assert.Equal(t, []any{"first", "second"}, f.rec.released)
}

func TestNotifyConnectFailure(t *testing.T) {
	f := newManagerFixture(t, 0, bindingA, bindingB)
	f.sessions.active[peerB] = newHandle(t, peerB)

	f.run(t, func() {
		assert.NoError(t, f.manager.NotifyBoundClusterChanged(1, 0x0006, "ctx"))
	})
	require.Len(t, f.rec.changed, 1)
	assert.Equal(t, bindingB, f.rec.changed[0].entry)
	assert.Empty(t, f.rec.released, "context must stay alive while peer A is pending")

	boom := errors.New("unreachable")
	f.run(t, func() {
		f.sessions.connects[0].onFailure(peerA, boom)
	})

	require.Len(t, f.rec.failed, 1)
	assert.Equal(t, bindingA, f.rec.failed[0].entry)
	assert.ErrorIs(t, f.rec.failed[0].err, boom)
	assert.Equal(t, []any{"ctx"}, f.rec.released)
}

func TestNotifyPendingLimit(t *testing.T) {
	f := newManagerFixture(t, 1, bindingA, bindingB)

	f.run(t, func() {
		assert.NoError(t, f.manager.NotifyBoundClusterChanged(1, 0x0006, "ctx"))
	})

	require.Len(t, f.rec.failed, 1)
	assert.Equal(t, bindingB, f.rec.failed[0].entry)
	assert.ErrorIs(t, f.rec.failed[0].err, ErrPendingFull)
	require.Len(t, f.sessions.connects, 1)
	assert.Equal(t, peerA, f.sessions.connects[0].peer)
}

// onlyEntry is a notification context that accepts a single entry.
type onlyEntry struct {
	entry Entry
}

func (o onlyEntry) AcceptsEntry(e Entry) bool { return e == o.entry }

func TestNotifyFilteredContext(t *testing.T) {
	f := newManagerFixture(t, 1, bindingA, bindingB, bindingGr)
	ctx := onlyEntry{entry: bindingB}

	f.run(t, func() {
		assert.NoError(t, f.manager.NotifyBoundClusterChanged(1, 0x0006, ctx))
		assert.Equal(t, 1, f.manager.Pending())
	})

	require.Len(t, f.sessions.connects, 1, "rejected entries must not open sessions")
	assert.Equal(t, peerB, f.sessions.connects[0].peer)
	assert.Empty(t, f.rec.failed, "rejected entries must not use pending slots")
	assert.Empty(t, f.rec.changed, "the group entry is rejected too")

	h := newHandle(t, peerB)
	f.run(t, func() {
		f.sessions.connects[0].onConnected(h)
	})
	require.Len(t, f.rec.changed, 1)
	assert.Equal(t, bindingB, f.rec.changed[0].entry)
	assert.Equal(t, []any{ctx}, f.rec.released)
}

func TestRemoveBindingDropsPending(t *testing.T) {
	f := newManagerFixture(t, 0, bindingA)

	f.run(t, func() {
		assert.NoError(t, f.manager.NotifyBoundClusterChanged(1, 0x0006, "ctx"))
		removed, err := f.manager.RemoveBinding(0)
		assert.NoError(t, err)
		assert.Equal(t, bindingA, removed)
		assert.Equal(t, 0, f.manager.Pending())
	})

	require.Len(t, f.rec.failed, 1)
	assert.ErrorIs(t, f.rec.failed[0].err, ErrBindingRemoved)
	assert.Equal(t, []any{"ctx"}, f.rec.released)

	// A late connect result has nothing left to deliver.
	late := newHandle(t, peerA)
	f.run(t, func() {
		f.sessions.connects[0].onConnected(late)
	})
	assert.Empty(t, f.rec.changed)
	assert.Len(t, f.rec.released, 1)
}

func TestFabricRemoved(t *testing.T) {
	other := Unicast(2, 1, 0x3333, 1, 0x0006)
	f := newManagerFixture(t, 0, bindingA, bindingGr, other)

	f.run(t, func() {
		assert.NoError(t, f.manager.NotifyBoundClusterChanged(1, 0x0006, "ctx"))
		assert.NoError(t, f.manager.FabricRemoved(fabric.FabricIndex(1)))
	})

	assert.Equal(t, []Entry{other}, f.manager.Table().Entries())
	assert.Equal(t, []session.ScopedNodeID{peerA}, f.sessions.evicted)

	require.Len(t, f.rec.failed, 1)
	assert.Equal(t, bindingA, f.rec.failed[0].entry)
	assert.ErrorIs(t, f.rec.failed[0].err, ErrFabricRemoved)
	assert.Empty(t, f.rec.released, "the fabric 2 binding is still pending")

	require.Len(t, f.sessions.connects, 2)
	otherPeer := other.Peer()
	assert.Equal(t, otherPeer, f.sessions.connects[1].peer)
	h := newHandle(t, otherPeer)
	f.run(t, func() {
		f.sessions.connects[1].onConnected(h)
	})

	require.Len(t, f.rec.changed, 2)
	assert.Equal(t, bindingGr, f.rec.changed[0].entry)
	assert.Equal(t, other, f.rec.changed[1].entry)
	assert.Equal(t, []any{"ctx"}, f.rec.released)
}
