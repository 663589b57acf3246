// Package spake2p implements the SPAKE2+ Password-Authenticated Key Exchange
// protocol with the P256-SHA256-HKDF-HMAC ciphersuite.
//
// SPAKE2+ is an augmented PAKE: the Prover knows the passcode-derived
// scalars w0 and w1, while the Verifier only stores w0 and L = w1*P.
//
// This implementation follows:
//   - RFC 9383: SPAKE2+, an Augmented PAKE Protocol
//   - Matter Specification Section 3.10: Password-Authenticated Key Exchange (PAKE)
//
// All field and point arithmetic runs through a p256.Backend, so the same
// state machine drives the software and the constant-time implementations.
//
// Protocol flow:
//
//	Prover (Commissioner)                Verifier (Commissionee)
//	---------------------                -----------------------
//	Init(context)                        Init(context)
//	BeginProver(idP, idV, w0, w1)        BeginVerifier(idP, idV, w0, L)
//	X = ComputeRoundOne() ----X---->
//	                                     Y = ComputeRoundOne()
//	                      <---Y,cB--     cB = ComputeRoundTwo(X)
//	cA = ComputeRoundTwo(Y)
//	KeyConfirm(cB)
//	                      ---cA--->      KeyConfirm(cA)
//	Ke = Keys()                          Ke = Keys()
//
// A Context that fails at any step is cleared and returns to StatePreInit.
package spake2p

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pion/logging"

	"github.com/backkem/matter-switch/pkg/crypto"
	"github.com/backkem/matter-switch/pkg/crypto/p256"
)

// Protocol constants from Matter Specification Section 3.10.
const (
	// GroupSizeBytes is the size of a P-256 scalar.
	GroupSizeBytes = p256.GroupSizeBytes

	// PointSizeBytes is the size of an uncompressed P-256 point.
	PointSizeBytes = p256.PointSizeBytes

	// HashSizeBytes is the SHA-256 output size.
	HashSizeBytes = crypto.SHA256LenBytes

	// KeySizeBytes is the size of Ka, Ke, KcA and KcB.
	KeySizeBytes = HashSizeBytes / 2

	// WsSizeBytes is the size of w0s/w1s from PBKDF2 (32 + 8 for bias reduction).
	WsSizeBytes = 40
)

const confirmationKeysInfo = "ConfirmationKeys"

// transcriptCapacity fits the context hash, two short identities, the six
// points, w0 and the length prefixes without growing.
const transcriptCapacity = 10*8 + 2*HashSizeBytes + 6*PointSizeBytes + GroupSizeBytes + 64

// M and N are the SPAKE2+ generator points for P-256 (RFC 9383 Section 4).
var (
	pointMBytes = []byte{
		0x04, 0x88, 0x6e, 0x2f, 0x97, 0xac, 0xe4, 0x6e, 0x55, 0xba, 0x9d, 0xd7, 0x24, 0x25, 0x79, 0xf2, 0x99,
		0x3b, 0x64, 0xe1, 0x6e, 0xf3, 0xdc, 0xab, 0x95, 0xaf, 0xd4, 0x97, 0x33, 0x3d, 0x8f, 0xa1, 0x2f, 0x5f,
		0xf3, 0x55, 0x16, 0x3e, 0x43, 0xce, 0x22, 0x4e, 0x0b, 0x0e, 0x65, 0xff, 0x02, 0xac, 0x8e, 0x5c, 0x7b,
		0xe0, 0x94, 0x19, 0xc7, 0x85, 0xe0, 0xca, 0x54, 0x7d, 0x55, 0xa1, 0x2e, 0x2d, 0x20,
	}
	pointNBytes = []byte{
		0x04, 0xd8, 0xbb, 0xd6, 0xc6, 0x39, 0xc6, 0x29, 0x37, 0xb0, 0x4d, 0x99, 0x7f, 0x38, 0xc3, 0x77, 0x07,
		0x19, 0xc6, 0x29, 0xd7, 0x01, 0x4d, 0x49, 0xa2, 0x4b, 0x4f, 0x98, 0xba, 0xa1, 0x29, 0x2b, 0x49, 0x07,
		0xd6, 0x0a, 0xa6, 0xbf, 0xad, 0xe4, 0x50, 0x08, 0xa6, 0x36, 0x33, 0x7f, 0x51, 0x68, 0xc6, 0x4d, 0x9b,
		0xd3, 0x60, 0x34, 0x80, 0x8c, 0xd5, 0x64, 0x49, 0x0b, 0x1e, 0x65, 0x6e, 0xdb, 0xe7,
	}
)

// Errors.
var (
	// ErrInternal reports a primitive fault (RNG, backend, KDF, MAC).
	ErrInternal = errors.New("spake2p: internal error")

	// ErrAuthenticationFailed reports a confirmation MAC mismatch, which is
	// what a wrong passcode looks like to either side.
	ErrAuthenticationFailed = errors.New("spake2p: authentication failed")

	// ErrInvalidPoint reports a peer share rejected by PointIsValid.
	ErrInvalidPoint = fmt.Errorf("%w: invalid peer point", ErrInternal)

	ErrInvalidState  = errors.New("spake2p: invalid protocol state for this operation")
	ErrInvalidW0Size = errors.New("spake2p: w0 must be 32 bytes")
	ErrInvalidW1Size = errors.New("spake2p: w1 must be 32 bytes")
	ErrInvalidLSize  = errors.New("spake2p: L must be 65 bytes")
)

// Role is the SPAKE2+ participant role.
type Role int

const (
	// RoleProver is the commissioner/initiator that knows the passcode.
	RoleProver Role = iota
	// RoleVerifier is the commissionee/responder holding the verifier record.
	RoleVerifier
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleProver:
		return "Prover"
	case RoleVerifier:
		return "Verifier"
	default:
		return "Unknown"
	}
}

// State is the protocol state.
type State int

const (
	StatePreInit State = iota
	StateStarted
	StateComputedFirstMessage
	StateComputedSharedSecret
	StateComputedConfirmation
	StateConfirmed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StatePreInit:
		return "PreInit"
	case StateStarted:
		return "Started"
	case StateComputedFirstMessage:
		return "ComputedFirstMessage"
	case StateComputedSharedSecret:
		return "ComputedSharedSecret"
	case StateComputedConfirmation:
		return "ComputedConfirmation"
	case StateConfirmed:
		return "Confirmed"
	default:
		return "Unknown"
	}
}

// Suite bundles the primitives the engine consumes.
type Suite struct {
	// Backend performs field and point arithmetic.
	Backend p256.Backend

	// MAC computes a 32-byte HMAC-SHA256.
	MAC func(key, message []byte) ([]byte, error)

	// KDF derives length bytes with HKDF-SHA256.
	KDF func(inputKey, salt, info []byte, length int) ([]byte, error)
}

// DefaultSuite returns the constant-time backend with the stdlib-backed
// HMAC and HKDF primitives.
func DefaultSuite() Suite {
	return Suite{
		Backend: p256.NewConstantTime(nil),
		MAC:     crypto.HMACSHA256,
		KDF:     crypto.HKDFSHA256,
	}
}

// Config configures a Context.
type Config struct {
	// Suite selects the primitives. Nil fields take the DefaultSuite value.
	Suite Suite

	// LoggerFactory creates the engine logger. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// Context holds one SPAKE2+ handshake attempt.
//
// A Context is not safe for concurrent use. Call Clear on every exit path;
// every failing operation does so itself.
type Context struct {
	suite Suite
	log   logging.LeveledLogger

	state State
	role  Role
	begun bool

	// tt accumulates the transcript. It holds w0 once keys are derived.
	tt []byte

	// Secret registers.
	w0     p256.FieldElement
	w1     p256.FieldElement // prover only
	xy     p256.FieldElement // x (prover) or y (verifier)
	l      p256.Point        // verifier only
	shareX p256.Point
	shareY p256.Point
	z      p256.Point
	v      p256.Point
	tmp    p256.Point

	ka  [KeySizeBytes]byte
	ke  [KeySizeBytes]byte
	kcA [KeySizeBytes]byte
	kcB [KeySizeBytes]byte

	m p256.Point
	n p256.Point
}

// New creates a Context in StatePreInit.
func New(config Config) *Context {
	def := DefaultSuite()
	if config.Suite.Backend == nil {
		config.Suite.Backend = def.Backend
	}
	if config.Suite.MAC == nil {
		config.Suite.MAC = def.MAC
	}
	if config.Suite.KDF == nil {
		config.Suite.KDF = def.KDF
	}

	c := &Context{
		suite: config.Suite,
		tt:    make([]byte, 0, transcriptCapacity),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("spake2p")
	}
	return c
}

// State returns the current protocol state.
func (c *Context) State() State {
	return c.state
}

// Role returns the role fixed by BeginProver or BeginVerifier.
func (c *Context) Role() Role {
	return c.role
}

// Backend returns the arithmetic backend.
func (c *Context) Backend() p256.Backend {
	return c.suite.Backend
}

// Init starts a handshake and binds the protocol context (for Matter PASE
// this is the hash of the PBKDF parameter exchange).
func (c *Context) Init(context []byte) error {
	if c.state != StatePreInit {
		return ErrInvalidState
	}
	b := c.suite.Backend
	if err := b.PointLoad(&c.m, pointMBytes); err != nil {
		return c.fail(internal(err))
	}
	if err := b.PointLoad(&c.n, pointNBytes); err != nil {
		return c.fail(internal(err))
	}
	c.resetTT()
	c.appendTT(context)
	c.state = StateStarted
	return nil
}

// BeginProver fixes the prover role and loads w0 and w1.
func (c *Context) BeginProver(idProver, idVerifier, w0, w1 []byte) error {
	if c.state != StateStarted || c.begun {
		return ErrInvalidState
	}
	if len(w0) != GroupSizeBytes {
		return c.fail(ErrInvalidW0Size)
	}
	if len(w1) != GroupSizeBytes {
		return c.fail(ErrInvalidW1Size)
	}
	b := c.suite.Backend
	if err := b.FELoad(&c.w0, w0); err != nil {
		return c.fail(internal(err))
	}
	if err := b.FELoad(&c.w1, w1); err != nil {
		return c.fail(internal(err))
	}
	c.role = RoleProver
	c.begun = true
	c.beginTT(idProver, idVerifier)
	return nil
}

// BeginVerifier fixes the verifier role and loads w0 and L.
func (c *Context) BeginVerifier(idProver, idVerifier, w0, L []byte) error {
	if c.state != StateStarted || c.begun {
		return ErrInvalidState
	}
	if len(w0) != GroupSizeBytes {
		return c.fail(ErrInvalidW0Size)
	}
	if len(L) != PointSizeBytes {
		return c.fail(ErrInvalidLSize)
	}
	b := c.suite.Backend
	if err := b.FELoad(&c.w0, w0); err != nil {
		return c.fail(internal(err))
	}
	if err := b.PointLoad(&c.l, L); err != nil {
		return c.fail(internal(err))
	}
	if !b.PointIsValid(&c.l) {
		return c.fail(fmt.Errorf("%w: invalid verifier L", ErrInternal))
	}
	c.role = RoleVerifier
	c.begun = true
	c.beginTT(idProver, idVerifier)
	return nil
}

func (c *Context) beginTT(idProver, idVerifier []byte) {
	c.appendTT(idProver)
	c.appendTT(idVerifier)
	c.appendTT(pointMBytes)
	c.appendTT(pointNBytes)
}

// ComputeRoundOne generates this side's share.
// Prover: X = x*P + w0*M. Verifier: Y = y*P + w0*N.
func (c *Context) ComputeRoundOne() ([]byte, error) {
	if c.state != StateStarted || !c.begun {
		return nil, ErrInvalidState
	}
	b := c.suite.Backend
	if err := b.FEGenerate(&c.xy); err != nil {
		return nil, c.fail(internal(err))
	}

	g := p256.Generator()
	share, base := &c.shareX, &c.m
	if c.role == RoleVerifier {
		share, base = &c.shareY, &c.n
	}
	if err := b.PointAddMul(share, &g, &c.xy, base, &c.w0); err != nil {
		return nil, c.fail(internal(err))
	}

	c.state = StateComputedFirstMessage
	return share.Bytes(), nil
}

// ComputeRoundTwo processes the peer share, derives Z, V and the key
// schedule, and returns this side's confirmation MAC.
// Prover: Z = x*(Y - w0*N), V = w1*(Y - w0*N), cA = MAC(KcA, Y).
// Verifier: Z = y*(X - w0*M), V = y*L, cB = MAC(KcB, X).
func (c *Context) ComputeRoundTwo(peerShare []byte) ([]byte, error) {
	if c.state != StateComputedFirstMessage {
		return nil, ErrInvalidState
	}
	b := c.suite.Backend

	peer, base := &c.shareY, &c.n
	if c.role == RoleVerifier {
		peer, base = &c.shareX, &c.m
	}
	if err := b.PointLoad(peer, peerShare); err != nil {
		return nil, c.fail(ErrInvalidPoint)
	}
	if !b.PointIsValid(peer) {
		if c.log != nil {
			c.log.Warnf("%s rejected peer share", c.role)
		}
		return nil, c.fail(ErrInvalidPoint)
	}

	// tmp = peer - w0*base
	c.tmp = *base
	if err := b.PointInvert(&c.tmp); err != nil {
		return nil, c.fail(internal(err))
	}
	var one p256.FieldElement
	if err := b.FELoad(&one, []byte{1}); err != nil {
		return nil, c.fail(internal(err))
	}
	if err := b.PointAddMul(&c.tmp, peer, &one, &c.tmp, &c.w0); err != nil {
		return nil, c.fail(internal(err))
	}
	if err := b.PointCofactorMul(&c.tmp); err != nil {
		return nil, c.fail(internal(err))
	}

	if err := b.PointMul(&c.z, &c.tmp, &c.xy); err != nil {
		return nil, c.fail(internal(err))
	}
	if c.role == RoleProver {
		err := b.PointMul(&c.v, &c.tmp, &c.w1)
		if err != nil {
			return nil, c.fail(internal(err))
		}
	} else {
		err := b.PointMul(&c.v, &c.l, &c.xy)
		if err != nil {
			return nil, c.fail(internal(err))
		}
	}
	c.tmp.Zero()
	c.state = StateComputedSharedSecret

	if err := c.deriveKeys(); err != nil {
		return nil, c.fail(err)
	}
	c.state = StateComputedConfirmation

	var mac []byte
	var err error
	if c.role == RoleProver {
		mac, err = c.Mac(c.kcA[:], c.shareY.Bytes())
	} else {
		mac, err = c.Mac(c.kcB[:], c.shareX.Bytes())
	}
	if err != nil {
		return nil, c.fail(err)
	}
	return mac, nil
}

// deriveKeys hashes TT into Ka || Ke and expands
// KcA || KcB = HKDF(Ka, nil, "ConfirmationKeys", 32).
func (c *Context) deriveKeys() error {
	b := c.suite.Backend
	w0 := make([]byte, GroupSizeBytes)
	defer crypto.Zeroize(w0)
	if err := b.FEWrite(&c.w0, w0); err != nil {
		return internal(err)
	}

	c.appendTT(c.shareX.Bytes())
	c.appendTT(c.shareY.Bytes())
	c.appendTT(c.z.Bytes())
	c.appendTT(c.v.Bytes())
	c.appendTT(w0)

	sum := crypto.SHA256(c.tt)
	defer crypto.Zeroize(sum[:])
	copy(c.ka[:], sum[:KeySizeBytes])
	copy(c.ke[:], sum[KeySizeBytes:])

	kc, err := c.suite.KDF(c.ka[:], nil, []byte(confirmationKeysInfo), 2*KeySizeBytes)
	if err != nil {
		return internal(err)
	}
	defer crypto.Zeroize(kc)
	if len(kc) != 2*KeySizeBytes {
		return fmt.Errorf("%w: short confirmation keys", ErrInternal)
	}
	copy(c.kcA[:], kc[:KeySizeBytes])
	copy(c.kcB[:], kc[KeySizeBytes:])
	return nil
}

// KeyConfirm verifies the peer's confirmation MAC in constant time.
// Prover expects MAC(KcB, X); verifier expects MAC(KcA, Y).
func (c *Context) KeyConfirm(peerMac []byte) error {
	if c.state != StateComputedConfirmation {
		return ErrInvalidState
	}
	var err error
	if c.role == RoleProver {
		err = c.MacVerify(c.kcB[:], peerMac, c.shareX.Bytes())
	} else {
		err = c.MacVerify(c.kcA[:], peerMac, c.shareY.Bytes())
	}
	if err != nil {
		if c.log != nil {
			c.log.Warnf("%s key confirmation failed: %v", c.role, err)
		}
		return c.fail(err)
	}
	c.state = StateConfirmed
	return nil
}

// Keys returns a copy of the shared secret Ke. Only valid once confirmed.
func (c *Context) Keys() ([]byte, error) {
	if c.state != StateConfirmed {
		return nil, ErrInvalidState
	}
	out := make([]byte, KeySizeBytes)
	copy(out, c.ke[:])
	return out, nil
}

// Mac computes HMAC over message with key through the suite's MAC.
func (c *Context) Mac(key, message []byte) ([]byte, error) {
	mac, err := c.suite.MAC(key, message)
	if err != nil {
		return nil, internal(err)
	}
	if len(mac) != HashSizeBytes {
		return nil, fmt.Errorf("%w: MAC length %d", ErrInternal, len(mac))
	}
	return mac, nil
}

// MacVerify recomputes the MAC of message and compares it to mac in
// constant time.
func (c *Context) MacVerify(key, mac, message []byte) error {
	expected, err := c.Mac(key, message)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(expected)
	if !crypto.IsBufferContentEqualConstantTime(expected, mac) {
		return ErrAuthenticationFailed
	}
	return nil
}

// Clear zeroes every secret register and returns to StatePreInit.
func (c *Context) Clear() {
	c.w0.Zero()
	c.w1.Zero()
	c.xy.Zero()
	c.l.Zero()
	c.shareX.Zero()
	c.shareY.Zero()
	c.z.Zero()
	c.v.Zero()
	c.tmp.Zero()
	crypto.Zeroize(c.ka[:])
	crypto.Zeroize(c.ke[:])
	crypto.Zeroize(c.kcA[:])
	crypto.Zeroize(c.kcB[:])
	c.resetTT()
	c.role = RoleProver
	c.begun = false
	c.state = StatePreInit
}

func (c *Context) fail(err error) error {
	if c.log != nil {
		c.log.Debugf("handshake aborted in state %s: %v", c.state, err)
	}
	c.Clear()
	return err
}

// appendTT adds len(data) as 8 little-endian bytes followed by data. A
// transcript that outgrows its buffer moves to a larger one and the old
// one is wiped.
func (c *Context) appendTT(data []byte) {
	need := len(c.tt) + 8 + len(data)
	if need > cap(c.tt) {
		grown := make([]byte, len(c.tt), 2*need)
		copy(grown, c.tt)
		crypto.Zeroize(c.tt[:cap(c.tt)])
		c.tt = grown
	}
	c.tt = binary.LittleEndian.AppendUint64(c.tt, uint64(len(data)))
	c.tt = append(c.tt, data...)
}

func (c *Context) resetTT() {
	crypto.Zeroize(c.tt[:cap(c.tt)])
	c.tt = c.tt[:0]
}

func internal(err error) error {
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
