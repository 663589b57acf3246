package session

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/backkem/matter-switch/pkg/crypto"
	"github.com/backkem/matter-switch/pkg/pase"
	"github.com/backkem/matter-switch/pkg/transport"
)

const (
	// SessionKeySize is the size of the I2R and R2I keys.
	SessionKeySize = crypto.SymmetricKeySize

	// FrameHeaderSize is destination session ID (2) || message counter (4).
	FrameHeaderSize = 6
)

// Role selects which key a side encrypts with.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// String returns the role name.
func (r Role) String() string {
	if r == RoleInitiator {
		return "Initiator"
	}
	return "Responder"
}

// HandleConfig configures a Handle.
type HandleConfig struct {
	Peer           ScopedNodeID
	Role           Role
	LocalSessionID uint16
	PeerSessionID  uint16
	I2RKey         []byte
	R2IKey         []byte

	// Conn carries the session's frames. Optional.
	Conn *transport.Conn
}

// Handle is an established secure session to one peer.
//
// Frames are header || AES-GCM(payload) with the header as associated data.
// The initiator seals with I2R and opens with R2I; the responder the reverse.
type Handle struct {
	peer           ScopedNodeID
	role           Role
	localSessionID uint16
	peerSessionID  uint16
	conn           *transport.Conn
	established    time.Time

	mu       sync.Mutex
	sealer   cipher.AEAD
	opener   cipher.AEAD
	counter  *messageCounter
	received receptionState
	defunct  bool
}

// NewHandle builds a Handle from raw session keys.
func NewHandle(config HandleConfig) (*Handle, error) {
	if config.LocalSessionID == 0 {
		return nil, ErrInvalidSessionID
	}
	if len(config.I2RKey) != SessionKeySize || len(config.R2IKey) != SessionKeySize {
		return nil, ErrInvalidKey
	}

	sealKey, openKey := config.I2RKey, config.R2IKey
	if config.Role == RoleResponder {
		sealKey, openKey = openKey, sealKey
	}
	sealer, err := crypto.NewAEAD(sealKey)
	if err != nil {
		return nil, err
	}
	opener, err := crypto.NewAEAD(openKey)
	if err != nil {
		return nil, err
	}

	return &Handle{
		peer:           config.Peer,
		role:           config.Role,
		localSessionID: config.LocalSessionID,
		peerSessionID:  config.PeerSessionID,
		conn:           config.Conn,
		established:    time.Now(),
		sealer:         sealer,
		opener:         opener,
		counter:        newMessageCounter(),
	}, nil
}

// FromPASE builds a Handle from a completed PASE session.
func FromPASE(peer ScopedNodeID, s *pase.Session, conn *transport.Conn) (*Handle, error) {
	keys := s.SessionKeys()
	if keys == nil {
		return nil, pase.ErrSessionNotReady
	}
	defer keys.Zero()

	role := RoleInitiator
	if s.Role() == pase.RoleResponder {
		role = RoleResponder
	}
	return NewHandle(HandleConfig{
		Peer:           peer,
		Role:           role,
		LocalSessionID: s.LocalSessionID(),
		PeerSessionID:  s.PeerSessionID(),
		I2RKey:         keys.I2RKey[:],
		R2IKey:         keys.R2IKey[:],
		Conn:           conn,
	})
}

// Peer returns the node this session reaches.
func (h *Handle) Peer() ScopedNodeID { return h.peer }

// Role returns the local role.
func (h *Handle) Role() Role { return h.role }

// LocalSessionID returns the ID peers put in frames for us.
func (h *Handle) LocalSessionID() uint16 { return h.localSessionID }

// PeerSessionID returns the ID we put in frames for the peer.
func (h *Handle) PeerSessionID() uint16 { return h.peerSessionID }

// Conn returns the connection carrying this session, or nil.
func (h *Handle) Conn() *transport.Conn { return h.conn }

// Established returns when the handle was created.
func (h *Handle) Established() time.Time { return h.established }

// IsActive reports whether the handle may still carry traffic.
func (h *Handle) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.defunct
}

// MarkDefunct stops the handle from sealing new frames.
func (h *Handle) MarkDefunct() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defunct = true
}

// Seal protects payload for the peer.
func (h *Handle) Seal(payload []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.defunct {
		return nil, ErrDefunct
	}
	counter, err := h.counter.next()
	if err != nil {
		return nil, err
	}

	frame := make([]byte, FrameHeaderSize, FrameHeaderSize+len(payload)+crypto.TagSize)
	binary.LittleEndian.PutUint16(frame[0:2], h.peerSessionID)
	binary.LittleEndian.PutUint32(frame[2:6], counter)
	return h.sealer.Seal(frame, crypto.BuildNonce(counter, 0), payload, frame[:FrameHeaderSize]), nil
}

// Open authenticates and decrypts a frame from the peer.
func (h *Handle) Open(frame []byte) ([]byte, error) {
	if len(frame) < FrameHeaderSize+crypto.TagSize {
		return nil, ErrFrameTooShort
	}
	sessionID := binary.LittleEndian.Uint16(frame[0:2])
	counter := binary.LittleEndian.Uint32(frame[2:6])
	if sessionID != h.localSessionID {
		return nil, fmt.Errorf("%w: frame for session %d", ErrSessionNotFound, sessionID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	header := frame[:FrameHeaderSize]
	plaintext, err := h.opener.Open(nil, crypto.BuildNonce(counter, 0), frame[FrameHeaderSize:], header)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if !h.received.accept(counter) {
		return nil, ErrReplayDetected
	}
	return plaintext, nil
}

// Close marks the handle defunct and closes its connection.
func (h *Handle) Close() error {
	h.MarkDefunct()
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}

// String returns a short description.
func (h *Handle) String() string {
	return fmt.Sprintf("Session{%s, local=%d, peer=%d}", h.peer, h.localSessionID, h.peerSessionID)
}

// FrameSessionID returns the destination session ID of a sealed frame.
func FrameSessionID(frame []byte) (uint16, error) {
	if len(frame) < FrameHeaderSize {
		return 0, ErrFrameTooShort
	}
	return binary.LittleEndian.Uint16(frame[0:2]), nil
}
