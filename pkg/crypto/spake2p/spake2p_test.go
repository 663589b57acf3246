package spake2p

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/matter-switch/pkg/crypto/p256"
)

var (
	testContext  = []byte("SPAKE2+-P256-SHA256-HKDF-SHA256-HMAC-SHA256 Test Vectors")
	testProverID = []byte("client")
	testVerifyID = []byte("server")
)

type pair struct {
	prover, verifier *Context
}

func newPair(t *testing.T, pb, vb p256.Backend, proverPIN, verifierPIN uint32) *pair {
	t.Helper()

	w0, w1, err := ComputeW0W1(pb, proverPIN, testSpake2p01Salt, testSpake2p01IterationCount)
	if err != nil {
		t.Fatalf("ComputeW0W1 failed: %v", err)
	}
	ver, err := GenerateVerifier(vb, verifierPIN, testSpake2p01Salt, testSpake2p01IterationCount)
	if err != nil {
		t.Fatalf("GenerateVerifier failed: %v", err)
	}

	p := &pair{
		prover:   New(Config{Suite: Suite{Backend: pb}}),
		verifier: New(Config{Suite: Suite{Backend: vb}}),
	}
	if err := p.prover.Init(testContext); err != nil {
		t.Fatalf("prover Init failed: %v", err)
	}
	if err := p.verifier.Init(testContext); err != nil {
		t.Fatalf("verifier Init failed: %v", err)
	}
	if err := p.prover.BeginProver(testProverID, testVerifyID, w0, w1); err != nil {
		t.Fatalf("BeginProver failed: %v", err)
	}
	if err := p.verifier.BeginVerifier(testProverID, testVerifyID, ver.W0, ver.L); err != nil {
		t.Fatalf("BeginVerifier failed: %v", err)
	}
	return p
}

// run drives the four-message exchange and returns the first error.
func (p *pair) run(t *testing.T) error {
	t.Helper()

	X, err := p.prover.ComputeRoundOne()
	if err != nil {
		return err
	}
	Y, err := p.verifier.ComputeRoundOne()
	if err != nil {
		return err
	}

	cB, err := p.verifier.ComputeRoundTwo(X)
	if err != nil {
		return err
	}
	cA, err := p.prover.ComputeRoundTwo(Y)
	if err != nil {
		return err
	}
	if err := p.prover.KeyConfirm(cB); err != nil {
		return err
	}
	return p.verifier.KeyConfirm(cA)
}

func backendPairs() []struct {
	name   string
	pb, vb p256.Backend
} {
	sw, ct := p256.NewSoftware(nil), p256.NewConstantTime(nil)
	return []struct {
		name   string
		pb, vb p256.Backend
	}{
		{"software", sw, sw},
		{"constant_time", ct, ct},
		{"mixed", sw, ct},
	}
}

func TestHandshake(t *testing.T) {
	for _, tc := range backendPairs() {
		t.Run(tc.name, func(t *testing.T) {
			p := newPair(t, tc.pb, tc.vb, testSpake2p01PinCode, testSpake2p01PinCode)
			if err := p.run(t); err != nil {
				t.Fatalf("handshake failed: %v", err)
			}

			if p.prover.State() != StateConfirmed || p.verifier.State() != StateConfirmed {
				t.Fatalf("states = %s/%s, want Confirmed", p.prover.State(), p.verifier.State())
			}
			keP, err := p.prover.Keys()
			if err != nil {
				t.Fatalf("prover Keys failed: %v", err)
			}
			keV, err := p.verifier.Keys()
			if err != nil {
				t.Fatalf("verifier Keys failed: %v", err)
			}
			if len(keP) != KeySizeBytes || !bytes.Equal(keP, keV) {
				t.Errorf("Ke mismatch:\nprover:   %x\nverifier: %x", keP, keV)
			}

			p.prover.Clear()
			p.verifier.Clear()
		})
	}
}

func TestHandshakeWrongPasscode(t *testing.T) {
	p := newPair(t, p256.NewConstantTime(nil), p256.NewConstantTime(nil), 20202022, testSpake2p01PinCode)

	err := p.run(t)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if errors.Is(err, ErrInternal) {
		t.Error("authentication failure must not be reported as internal")
	}
	if p.prover.State() != StatePreInit {
		t.Errorf("prover state = %s, want PreInit", p.prover.State())
	}
}

func TestComputeRoundTwoRejectsCorruptedShare(t *testing.T) {
	for _, tc := range backendPairs() {
		t.Run(tc.name, func(t *testing.T) {
			p := newPair(t, tc.pb, tc.vb, testSpake2p01PinCode, testSpake2p01PinCode)

			X, err := p.prover.ComputeRoundOne()
			if err != nil {
				t.Fatal(err)
			}
			Y, err := p.verifier.ComputeRoundOne()
			if err != nil {
				t.Fatal(err)
			}
			if _, err := p.verifier.ComputeRoundTwo(X); err != nil {
				t.Fatal(err)
			}

			Y[len(Y)-1] ^= 0x01
			if p.prover.State() != StateComputedFirstMessage {
				t.Fatalf("prover state = %s", p.prover.State())
			}
			if _, err := p.prover.ComputeRoundTwo(Y); !errors.Is(err, ErrInvalidPoint) {
				t.Fatalf("expected ErrInvalidPoint, got %v", err)
			}
			if p.prover.State() != StatePreInit {
				t.Errorf("prover state = %s, want PreInit", p.prover.State())
			}
			assertCleared(t, p.prover)
		})
	}
}

func TestComputeRoundTwoRejectsInfinityAndBadLength(t *testing.T) {
	tests := []struct {
		name  string
		share []byte
	}{
		{"infinity", make([]byte, PointSizeBytes)},
		{"short", make([]byte, 33)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newPair(t, p256.NewSoftware(nil), p256.NewSoftware(nil), testSpake2p01PinCode, testSpake2p01PinCode)
			if _, err := p.verifier.ComputeRoundOne(); err != nil {
				t.Fatal(err)
			}
			_, err := p.verifier.ComputeRoundTwo(tc.share)
			if !errors.Is(err, ErrInvalidPoint) || !errors.Is(err, ErrInternal) {
				t.Fatalf("expected ErrInvalidPoint, got %v", err)
			}
		})
	}
}

func TestMacSymmetry(t *testing.T) {
	c := New(Config{})
	key := bytes.Repeat([]byte{0x5a}, KeySizeBytes)
	msg := []byte("transcript")

	a, err := c.Mac(key, msg)
	if err != nil {
		t.Fatalf("Mac failed: %v", err)
	}
	b, err := New(Config{Suite: Suite{Backend: p256.NewSoftware(nil)}}).Mac(key, msg)
	if err != nil {
		t.Fatalf("Mac failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("independently computed MACs differ")
	}
	if err := c.MacVerify(key, a, msg); err != nil {
		t.Fatalf("MacVerify rejected a valid MAC: %v", err)
	}

	for bit := 0; bit < 8; bit++ {
		flipped := append([]byte(nil), a...)
		flipped[len(flipped)/2] ^= 1 << bit
		if err := c.MacVerify(key, flipped, msg); !errors.Is(err, ErrAuthenticationFailed) {
			t.Errorf("bit %d: expected ErrAuthenticationFailed, got %v", bit, err)
		}
	}
	if err := c.MacVerify(key, a[:HashSizeBytes-1], msg); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("truncated MAC: expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestKeyConfirmFlippedMac(t *testing.T) {
	p := newPair(t, p256.NewConstantTime(nil), p256.NewConstantTime(nil), testSpake2p01PinCode, testSpake2p01PinCode)

	X, _ := p.prover.ComputeRoundOne()
	Y, _ := p.verifier.ComputeRoundOne()
	cB, err := p.verifier.ComputeRoundTwo(X)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.prover.ComputeRoundTwo(Y); err != nil {
		t.Fatal(err)
	}

	cB[0] ^= 0x80
	if err := p.prover.KeyConfirm(cB); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	assertCleared(t, p.prover)
}

func assertCleared(t *testing.T, c *Context) {
	t.Helper()

	fields := map[string]*p256.FieldElement{"w0": &c.w0, "w1": &c.w1, "xy": &c.xy}
	for name, fe := range fields {
		if !bytes.Equal(fe.Bytes(), make([]byte, GroupSizeBytes)) {
			t.Errorf("%s not zeroed: %x", name, fe.Bytes())
		}
	}
	points := map[string]*p256.Point{
		"L": &c.l, "X": &c.shareX, "Y": &c.shareY, "Z": &c.z, "V": &c.v, "tmp": &c.tmp,
	}
	for name, pt := range points {
		if !pt.IsInfinity() {
			t.Errorf("%s not zeroed: %x", name, pt.Bytes())
		}
	}
	keys := map[string][]byte{"Ka": c.ka[:], "Ke": c.ke[:], "KcA": c.kcA[:], "KcB": c.kcB[:]}
	for name, k := range keys {
		if !bytes.Equal(k, make([]byte, KeySizeBytes)) {
			t.Errorf("%s not zeroed: %x", name, k)
		}
	}
	if len(c.tt) != 0 {
		t.Errorf("transcript length = %d after Clear, want 0", len(c.tt))
	}
	if raw := c.tt[:cap(c.tt)]; !bytes.Equal(raw, make([]byte, len(raw))) {
		t.Errorf("transcript buffer not zeroed: %x", raw)
	}
	if c.State() != StatePreInit {
		t.Errorf("state = %s, want PreInit", c.State())
	}
}

func TestClearZeroesSecrets(t *testing.T) {
	p := newPair(t, p256.NewConstantTime(nil), p256.NewConstantTime(nil), testSpake2p01PinCode, testSpake2p01PinCode)
	if err := p.run(t); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	if p.prover.ke == [KeySizeBytes]byte{} {
		t.Fatal("Ke unexpectedly zero before Clear")
	}
	w0 := append([]byte(nil), p.prover.w0.Bytes()...)
	transcript := p.prover.tt[:cap(p.prover.tt)]
	if !bytes.Contains(transcript, w0) {
		t.Fatal("transcript does not hold w0 before Clear")
	}

	p.prover.Clear()
	p.verifier.Clear()
	assertCleared(t, p.prover)
	assertCleared(t, p.verifier)
	if bytes.Contains(transcript, w0) {
		t.Error("w0 still present in transcript memory after Clear")
	}

	if _, err := p.prover.Keys(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Keys after Clear: expected ErrInvalidState, got %v", err)
	}
}

func TestContextReuseAfterClear(t *testing.T) {
	p := newPair(t, p256.NewSoftware(nil), p256.NewSoftware(nil), testSpake2p01PinCode, testSpake2p01PinCode)
	if err := p.run(t); err != nil {
		t.Fatal(err)
	}
	first, _ := p.prover.Keys()
	p.prover.Clear()
	p.verifier.Clear()

	w0, w1, err := ComputeW0W1(p.prover.Backend(), testSpake2p01PinCode, testSpake2p01Salt, testSpake2p01IterationCount)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.prover.Init(testContext); err != nil {
		t.Fatal(err)
	}
	if err := p.prover.BeginProver(testProverID, testVerifyID, w0, w1); err != nil {
		t.Fatal(err)
	}
	if err := p.verifier.Init(testContext); err != nil {
		t.Fatal(err)
	}
	if err := p.verifier.BeginVerifier(testProverID, testVerifyID, testSpake2p01W0, testSpake2p01L); err != nil {
		t.Fatal(err)
	}
	if err := p.run(t); err != nil {
		t.Fatalf("second handshake failed: %v", err)
	}
	second, _ := p.prover.Keys()
	if bytes.Equal(first, second) {
		t.Error("fresh randomness should yield a different Ke")
	}
}

func TestStateGuards(t *testing.T) {
	c := New(Config{})

	if _, err := c.ComputeRoundOne(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ComputeRoundOne in PreInit: got %v", err)
	}
	if err := c.BeginProver(nil, nil, make([]byte, 32), make([]byte, 32)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("BeginProver in PreInit: got %v", err)
	}
	if err := c.Init(nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Init(nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double Init: got %v", err)
	}
	if _, err := c.ComputeRoundOne(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ComputeRoundOne before Begin: got %v", err)
	}
	if _, err := c.ComputeRoundTwo(testSpake2p01L); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ComputeRoundTwo in Started: got %v", err)
	}
	if err := c.KeyConfirm(make([]byte, 32)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("KeyConfirm in Started: got %v", err)
	}
	if err := c.BeginProver(nil, nil, make([]byte, 31), make([]byte, 32)); !errors.Is(err, ErrInvalidW0Size) {
		t.Errorf("short w0: got %v", err)
	}
	if c.State() != StatePreInit {
		t.Errorf("state after failed Begin = %s, want PreInit", c.State())
	}
}

func TestBeginVerifierRejectsInvalidL(t *testing.T) {
	c := New(Config{})
	if err := c.Init(nil); err != nil {
		t.Fatal(err)
	}
	bad := append([]byte(nil), testSpake2p01L...)
	bad[10] ^= 0xff
	if err := c.BeginVerifier(nil, nil, testSpake2p01W0, bad); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestRandomFailureIsInternal(t *testing.T) {
	c := New(Config{Suite: Suite{Backend: p256.NewConstantTime(emptyReader{})}})
	if err := c.Init(testContext); err != nil {
		t.Fatal(err)
	}
	if err := c.BeginVerifier(nil, nil, testSpake2p01W0, testSpake2p01L); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ComputeRoundOne(); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	assertCleared(t, c)
}

func TestMacProviderFailureIsInternal(t *testing.T) {
	c := New(Config{Suite: Suite{
		MAC: func(key, message []byte) ([]byte, error) { return nil, errors.New("accelerator fault") },
	}})
	if _, err := c.Mac([]byte("k"), []byte("m")); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}

	short := New(Config{Suite: Suite{
		MAC: func(key, message []byte) ([]byte, error) { return make([]byte, 16), nil },
	}})
	if _, err := short.Mac([]byte("k"), []byte("m")); !errors.Is(err, ErrInternal) {
		t.Fatalf("truncated MAC: expected ErrInternal, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StatePreInit, "PreInit"},
		{StateStarted, "Started"},
		{StateComputedFirstMessage, "ComputedFirstMessage"},
		{StateComputedSharedSecret, "ComputedSharedSecret"},
		{StateComputedConfirmation, "ComputedConfirmation"},
		{StateConfirmed, "Confirmed"},
		{State(99), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
	if RoleVerifier.String() != "Verifier" {
		t.Errorf("RoleVerifier.String() = %q", RoleVerifier.String())
	}
}
