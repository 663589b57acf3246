package session

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/matter-switch/pkg/fabric"
)

var testPeer = ScopedNodeID{FabricIndex: 1, NodeID: 0x1234}

func newHandlePair(t *testing.T) (*Handle, *Handle) {
	t.Helper()
	i2r := bytes.Repeat([]byte{0x11}, SessionKeySize)
	r2i := bytes.Repeat([]byte{0x22}, SessionKeySize)

	initiator, err := NewHandle(HandleConfig{
		Peer: testPeer, Role: RoleInitiator, LocalSessionID: 10, PeerSessionID: 20,
		I2RKey: i2r, R2IKey: r2i,
	})
	if err != nil {
		t.Fatalf("NewHandle failed: %v", err)
	}
	responder, err := NewHandle(HandleConfig{
		Peer: ScopedNodeID{FabricIndex: 1, NodeID: 0x1}, Role: RoleResponder, LocalSessionID: 20, PeerSessionID: 10,
		I2RKey: i2r, R2IKey: r2i,
	})
	if err != nil {
		t.Fatalf("NewHandle failed: %v", err)
	}
	return initiator, responder
}

func TestHandleSealOpen(t *testing.T) {
	initiator, responder := newHandlePair(t)

	frame, err := initiator.Seal([]byte("toggle"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if id, _ := FrameSessionID(frame); id != 20 {
		t.Errorf("frame session ID = %d, want 20", id)
	}
	got, err := responder.Open(frame)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if string(got) != "toggle" {
		t.Errorf("payload = %q", got)
	}

	if _, err := responder.Open(frame); !errors.Is(err, ErrReplayDetected) {
		t.Errorf("expected ErrReplayDetected, got %v", err)
	}

	reply, err := responder.Seal([]byte("ok"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if got, err := initiator.Open(reply); err != nil || string(got) != "ok" {
		t.Fatalf("Open reply = %q, %v", got, err)
	}
}

func TestHandleOpenRejects(t *testing.T) {
	initiator, responder := newHandlePair(t)

	frame, _ := initiator.Seal([]byte("on"))

	tampered := append([]byte(nil), frame...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := responder.Open(tampered); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("tampered: expected ErrDecryptionFailed, got %v", err)
	}

	if _, err := initiator.Open(frame); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("own frame: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := responder.Open(frame[:8]); !errors.Is(err, ErrFrameTooShort) {
		t.Errorf("short: expected ErrFrameTooShort, got %v", err)
	}

	// The tampered frame must not have consumed the counter.
	if _, err := responder.Open(frame); err != nil {
		t.Errorf("genuine frame after tampered copy: %v", err)
	}
}

func TestHandleDefunct(t *testing.T) {
	initiator, _ := newHandlePair(t)
	if !initiator.IsActive() {
		t.Fatal("new handle inactive")
	}
	initiator.MarkDefunct()
	if initiator.IsActive() {
		t.Error("defunct handle reported active")
	}
	if _, err := initiator.Seal([]byte("x")); !errors.Is(err, ErrDefunct) {
		t.Errorf("expected ErrDefunct, got %v", err)
	}
}

func TestNewHandleValidation(t *testing.T) {
	key := make([]byte, SessionKeySize)
	if _, err := NewHandle(HandleConfig{LocalSessionID: 0, I2RKey: key, R2IKey: key}); !errors.Is(err, ErrInvalidSessionID) {
		t.Errorf("expected ErrInvalidSessionID, got %v", err)
	}
	if _, err := NewHandle(HandleConfig{LocalSessionID: 1, I2RKey: key[:4], R2IKey: key}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestReceptionWindow(t *testing.T) {
	var r receptionState
	steps := []struct {
		counter uint32
		want    bool
	}{
		{100, true},
		{100, false},
		{101, true},
		{99, true},
		{99, false},
		{50, false},
		{140, true},
		{108, true},
		{107, false},
	}
	for i, s := range steps {
		if got := r.accept(s.counter); got != s.want {
			t.Errorf("step %d: accept(%d) = %v, want %v", i, s.counter, got, s.want)
		}
	}
}

func TestMessageCounterExhaustion(t *testing.T) {
	c := &messageCounter{value: 0xFFFFFFFF}
	if v, err := c.next(); err != nil || v != 0xFFFFFFFF {
		t.Fatalf("next = %d, %v", v, err)
	}
	if _, err := c.next(); !errors.Is(err, ErrCounterExhausted) {
		t.Errorf("expected ErrCounterExhausted, got %v", err)
	}
}

func TestScopedNodeID(t *testing.T) {
	if !testPeer.IsValid() {
		t.Error("testPeer invalid")
	}
	if (ScopedNodeID{FabricIndex: 0, NodeID: 1}).IsValid() {
		t.Error("fabric index 0 accepted")
	}
	if (ScopedNodeID{FabricIndex: 1, NodeID: fabric.NodeIDUnspecified}).IsValid() {
		t.Error("unspecified node accepted")
	}
	if testPeer.String() != "1:0000000000001234" {
		t.Errorf("String = %s", testPeer.String())
	}
}
