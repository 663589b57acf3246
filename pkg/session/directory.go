package session

import (
	"sync"

	"github.com/backkem/matter-switch/pkg/fabric"
)

const (
	// MinSessionID is the smallest allocatable session ID.
	MinSessionID uint16 = 1

	// DefaultMaxSessions is the default directory capacity.
	DefaultMaxSessions = 16
)

// Directory holds the established sessions of this node.
// It is safe for concurrent use.
type Directory struct {
	sessions    map[uint16]*Handle
	maxSessions int
	nextID      uint16

	mu sync.RWMutex
}

// NewDirectory creates an empty directory. maxSessions <= 0 selects
// DefaultMaxSessions.
func NewDirectory(maxSessions int) *Directory {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Directory{
		sessions:    make(map[uint16]*Handle),
		maxSessions: maxSessions,
		nextID:      MinSessionID,
	}
}

// AllocateID returns an unused local session ID.
func (d *Directory) AllocateID() (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.sessions) >= d.maxSessions {
		return 0, ErrSessionTableFull
	}

	startID := d.nextID
	for {
		id := d.nextID
		d.nextID++
		if d.nextID == 0 {
			d.nextID = MinSessionID
		}
		if _, exists := d.sessions[id]; !exists {
			return id, nil
		}
		if d.nextID == startID {
			return 0, ErrSessionIDExhausted
		}
	}
}

// Add stores h under its local session ID.
func (d *Directory) Add(h *Handle) error {
	if h == nil || h.LocalSessionID() == 0 {
		return ErrInvalidSessionID
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.sessions) >= d.maxSessions {
		return ErrSessionTableFull
	}
	if _, exists := d.sessions[h.LocalSessionID()]; exists {
		return ErrDuplicateSession
	}
	d.sessions[h.LocalSessionID()] = h
	return nil
}

// FindByLocalID returns the handle using local session ID id.
func (d *Directory) FindByLocalID(id uint16) *Handle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sessions[id]
}

// Find returns the most recently established active handle to peer.
func (d *Directory) Find(peer ScopedNodeID) (*Handle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var best *Handle
	for _, h := range d.sessions {
		if h.Peer() != peer || !h.IsActive() {
			continue
		}
		if best == nil || h.Established().After(best.Established()) {
			best = h
		}
	}
	return best, best != nil
}

// MarkDefunct marks every handle to peer defunct and returns how many
// were marked. Defunct handles stay listed until removed.
func (d *Directory) MarkDefunct(peer ScopedNodeID) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, h := range d.sessions {
		if h.Peer() == peer && h.IsActive() {
			h.MarkDefunct()
			n++
		}
	}
	return n
}

// Remove deletes and closes the handle with local session ID id.
func (d *Directory) Remove(id uint16) {
	d.mu.Lock()
	h := d.sessions[id]
	delete(d.sessions, id)
	d.mu.Unlock()

	if h != nil {
		_ = h.Close()
	}
}

// RemovePeer deletes and closes every handle to peer.
func (d *Directory) RemovePeer(peer ScopedNodeID) {
	d.removeWhere(func(h *Handle) bool { return h.Peer() == peer })
}

// RemoveFabric deletes and closes every handle on fabric index.
func (d *Directory) RemoveFabric(index fabric.FabricIndex) {
	d.removeWhere(func(h *Handle) bool { return h.Peer().FabricIndex == index })
}

// Len returns the number of handles, defunct ones included.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

func (d *Directory) removeWhere(match func(*Handle) bool) {
	d.mu.Lock()
	var removed []*Handle
	for id, h := range d.sessions {
		if match(h) {
			removed = append(removed, h)
			delete(d.sessions, id)
		}
	}
	d.mu.Unlock()

	for _, h := range removed {
		_ = h.Close()
	}
}
