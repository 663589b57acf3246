package session

import (
	"crypto/cipher"
	"encoding/binary"
	"sync"

	"github.com/backkem/matter-switch/pkg/crypto"
	"github.com/backkem/matter-switch/pkg/fabric"
)

// GroupHeaderSize is group session ID (2) || counter (4) || source node (8) || group ID (2).
const GroupHeaderSize = 16

// DefaultMaxGroupPeers bounds the replay state kept per GroupContext.
const DefaultMaxGroupPeers = 32

// GroupContextConfig configures a GroupContext.
type GroupContextConfig struct {
	FabricIndex        fabric.FabricIndex
	GroupID            fabric.GroupID
	SourceNodeID       fabric.NodeID
	EpochKey           []byte
	CompressedFabricID [fabric.CompressedFabricIDSize]byte
}

// GroupFrame is an opened group message.
type GroupFrame struct {
	SourceNodeID fabric.NodeID
	GroupID      fabric.GroupID
	Payload      []byte
}

// GroupContext seals and opens multicast frames for one group.
type GroupContext struct {
	fabricIndex  fabric.FabricIndex
	groupID      fabric.GroupID
	sourceNodeID fabric.NodeID
	sessionID    uint16
	aead         cipher.AEAD

	mu      sync.Mutex
	counter *messageCounter
	peers   map[fabric.NodeID]*receptionState
}

// NewGroupContext derives the group operational key from the epoch key.
func NewGroupContext(config GroupContextConfig) (*GroupContext, error) {
	creds, err := crypto.DeriveGroupCredentials(config.EpochKey, config.CompressedFabricID[:])
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(creds.EncryptionKey)

	aead, err := crypto.NewAEAD(creds.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return &GroupContext{
		fabricIndex:  config.FabricIndex,
		groupID:      config.GroupID,
		sourceNodeID: config.SourceNodeID,
		sessionID:    creds.SessionID,
		aead:         aead,
		counter:      newMessageCounter(),
		peers:        make(map[fabric.NodeID]*receptionState),
	}, nil
}

// FabricIndex returns the fabric the group belongs to.
func (g *GroupContext) FabricIndex() fabric.FabricIndex { return g.fabricIndex }

// GroupID returns the group this context protects.
func (g *GroupContext) GroupID() fabric.GroupID { return g.groupID }

// SessionID returns the derived group session ID.
func (g *GroupContext) SessionID() uint16 { return g.sessionID }

// Seal protects payload as a frame from this node to the group.
func (g *GroupContext) Seal(payload []byte) ([]byte, error) {
	g.mu.Lock()
	counter, err := g.counter.next()
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	frame := make([]byte, GroupHeaderSize, GroupHeaderSize+len(payload)+crypto.TagSize)
	binary.LittleEndian.PutUint16(frame[0:2], g.sessionID)
	binary.LittleEndian.PutUint32(frame[2:6], counter)
	binary.LittleEndian.PutUint64(frame[6:14], uint64(g.sourceNodeID))
	binary.LittleEndian.PutUint16(frame[14:16], uint16(g.groupID))
	nonce := crypto.BuildNonce(counter, uint64(g.sourceNodeID))
	return g.aead.Seal(frame, nonce, payload, frame[:GroupHeaderSize]), nil
}

// Open authenticates a group frame and rejects replays per source node.
func (g *GroupContext) Open(frame []byte) (*GroupFrame, error) {
	if len(frame) < GroupHeaderSize+crypto.TagSize {
		return nil, ErrFrameTooShort
	}
	if binary.LittleEndian.Uint16(frame[0:2]) != g.sessionID {
		return nil, ErrSessionNotFound
	}
	counter := binary.LittleEndian.Uint32(frame[2:6])
	source := fabric.NodeID(binary.LittleEndian.Uint64(frame[6:14]))
	groupID := fabric.GroupID(binary.LittleEndian.Uint16(frame[14:16]))
	if groupID != g.groupID {
		return nil, ErrSessionNotFound
	}

	header := frame[:GroupHeaderSize]
	plaintext, err := g.aead.Open(nil, crypto.BuildNonce(counter, uint64(source)), frame[GroupHeaderSize:], header)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.peers[source]
	if !ok {
		if len(g.peers) >= DefaultMaxGroupPeers {
			return nil, ErrSessionTableFull
		}
		state = &receptionState{}
		g.peers[source] = state
	}
	if !state.accept(counter) {
		return nil, ErrReplayDetected
	}
	return &GroupFrame{SourceNodeID: source, GroupID: groupID, Payload: plaintext}, nil
}
