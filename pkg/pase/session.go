package pase

import (
	"crypto/subtle"
	"fmt"
	"io"
	"sync"

	"github.com/pion/logging"

	"github.com/backkem/matter-switch/pkg/crypto"
	"github.com/backkem/matter-switch/pkg/crypto/p256"
	"github.com/backkem/matter-switch/pkg/crypto/spake2p"
)

// Role represents the PASE participant role.
type Role int

const (
	// RoleInitiator knows the passcode.
	RoleInitiator Role = iota
	// RoleResponder holds the verifier.
	RoleResponder
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "Initiator"
	case RoleResponder:
		return "Responder"
	default:
		return "Unknown"
	}
}

// State represents the PASE protocol state machine.
type State int

const (
	StateInit                 State = iota
	StateWaitingPBKDFResponse       // Initiator: sent PBKDFParamRequest
	StateWaitingPake1               // Responder: sent PBKDFParamResponse
	StateWaitingPake2               // Initiator: sent Pake1
	StateWaitingPake3               // Responder: sent Pake2
	StateWaitingFinished            // Initiator: sent Pake3
	StateComplete                   // Session established
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateWaitingPBKDFResponse:
		return "WaitingPBKDFResponse"
	case StateWaitingPake1:
		return "WaitingPake1"
	case StateWaitingPake2:
		return "WaitingPake2"
	case StateWaitingPake3:
		return "WaitingPake3"
	case StateWaitingFinished:
		return "WaitingFinished"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Config configures a Session.
type Config struct {
	// Passcode is the setup passcode. Initiator only.
	Passcode uint32

	// Verifier is the stored verifier record. Responder only.
	Verifier *spake2p.Verifier

	// Salt and Iterations are the PBKDF parameters. Required for the
	// responder; an initiator that leaves them empty learns them from the
	// PBKDFParamResponse.
	Salt       []byte
	Iterations uint32

	// LocalSessionID is the session ID this side allocates.
	LocalSessionID uint16

	// Backend performs the SPAKE2+ arithmetic.
	// Default: p256.ConstantTime
	Backend p256.Backend

	// Rand is the source for the PBKDF exchange randoms.
	// Default: crypto/rand
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Session implements the PASE protocol state machine for one handshake.
type Session struct {
	role   Role
	state  State
	config Config
	log    logging.LeveledLogger

	peerSessionID uint16
	localRandom   []byte

	reqBytes  []byte
	respBytes []byte

	spake *spake2p.Context
	keys  *SessionKeys

	mu sync.Mutex
}

// NewInitiator creates the passcode-holding side.
func NewInitiator(config Config) (*Session, error) {
	if err := spake2p.ValidatePasscode(config.Passcode); err != nil {
		return nil, err
	}
	return newSession(RoleInitiator, config), nil
}

// NewResponder creates the verifier-holding side.
func NewResponder(config Config) (*Session, error) {
	if config.Verifier == nil {
		return nil, fmt.Errorf("%w: missing verifier", ErrInvalidMessage)
	}
	if len(config.Salt) < spake2p.PBKDFMinSaltLength || len(config.Salt) > spake2p.PBKDFMaxSaltLength {
		return nil, spake2p.ErrInvalidSalt
	}
	if config.Iterations < spake2p.PBKDFMinIterations || config.Iterations > spake2p.PBKDFMaxIterations {
		return nil, spake2p.ErrInvalidIterations
	}
	return newSession(RoleResponder, config), nil
}

func newSession(role Role, config Config) *Session {
	if config.Backend == nil {
		config.Backend = p256.NewConstantTime(nil)
	}
	s := &Session{
		role:   role,
		config: config,
		spake: spake2p.New(spake2p.Config{
			Suite:         spake2p.Suite{Backend: config.Backend},
			LoggerFactory: config.LoggerFactory,
		}),
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("pase")
	}
	return s
}

// Start builds the PBKDFParamRequest (Initiator only).
func (s *Session) Start() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleInitiator || s.state != StateInit {
		return nil, ErrInvalidState
	}

	random, err := crypto.RandomBytes(s.config.Rand, RandomSize)
	if err != nil {
		return nil, s.fail(err)
	}
	s.localRandom = random

	data, err := encode(OpcodePBKDFParamRequest, &PBKDFParamRequest{
		InitiatorRandom:    random,
		InitiatorSessionID: s.config.LocalSessionID,
		PasscodeID:         DefaultPasscodeID,
		HasPBKDFParameters: len(s.config.Salt) > 0 && s.config.Iterations > 0,
	})
	if err != nil {
		return nil, s.fail(err)
	}
	s.reqBytes = data
	s.state = StateWaitingPBKDFResponse
	return data, nil
}

// HandlePBKDFParamRequest answers with a PBKDFParamResponse (Responder only).
func (s *Session) HandlePBKDFParamRequest(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleResponder || s.state != StateInit {
		return nil, ErrInvalidState
	}

	var req PBKDFParamRequest
	if err := decode(data, OpcodePBKDFParamRequest, &req); err != nil {
		return nil, s.fail(err)
	}
	if req.PasscodeID != DefaultPasscodeID {
		return nil, s.fail(ErrInvalidPasscodeID)
	}
	if len(req.InitiatorRandom) != RandomSize {
		return nil, s.fail(fmt.Errorf("%w: initiator random length %d", ErrInvalidMessage, len(req.InitiatorRandom)))
	}
	s.peerSessionID = req.InitiatorSessionID

	random, err := crypto.RandomBytes(s.config.Rand, RandomSize)
	if err != nil {
		return nil, s.fail(err)
	}
	s.localRandom = random

	resp := &PBKDFParamResponse{
		InitiatorRandom:    req.InitiatorRandom,
		ResponderRandom:    random,
		ResponderSessionID: s.config.LocalSessionID,
	}
	if !req.HasPBKDFParameters {
		resp.PBKDFParams = &PBKDFParameters{Iterations: s.config.Iterations, Salt: s.config.Salt}
	}
	respData, err := encode(OpcodePBKDFParamResponse, resp)
	if err != nil {
		return nil, s.fail(err)
	}

	s.reqBytes = data
	s.respBytes = respData

	v := s.config.Verifier
	if err := s.spake.Init(s.context()); err != nil {
		return nil, s.fail(err)
	}
	if err := s.spake.BeginVerifier(nil, nil, v.W0, v.L); err != nil {
		return nil, s.fail(err)
	}

	s.state = StateWaitingPake1
	return respData, nil
}

// HandlePBKDFParamResponse derives w0/w1 and returns Pake1 (Initiator only).
func (s *Session) HandlePBKDFParamResponse(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleInitiator || s.state != StateWaitingPBKDFResponse {
		return nil, ErrInvalidState
	}

	var resp PBKDFParamResponse
	if err := decode(data, OpcodePBKDFParamResponse, &resp); err != nil {
		return nil, s.fail(err)
	}
	if subtle.ConstantTimeCompare(resp.InitiatorRandom, s.localRandom) != 1 {
		return nil, s.fail(ErrRandomMismatch)
	}
	s.peerSessionID = resp.ResponderSessionID
	s.respBytes = data

	if len(s.config.Salt) == 0 && resp.PBKDFParams != nil {
		s.config.Salt = resp.PBKDFParams.Salt
		s.config.Iterations = resp.PBKDFParams.Iterations
	}
	if len(s.config.Salt) == 0 || s.config.Iterations == 0 {
		return nil, s.fail(fmt.Errorf("%w: no PBKDF parameters", ErrInvalidMessage))
	}

	w0, w1, err := spake2p.ComputeW0W1(s.config.Backend, s.config.Passcode, s.config.Salt, s.config.Iterations)
	if err != nil {
		return nil, s.fail(err)
	}
	defer crypto.Zeroize(w0)
	defer crypto.Zeroize(w1)

	if err := s.spake.Init(s.context()); err != nil {
		return nil, s.fail(err)
	}
	if err := s.spake.BeginProver(nil, nil, w0, w1); err != nil {
		return nil, s.fail(err)
	}
	pA, err := s.spake.ComputeRoundOne()
	if err != nil {
		return nil, s.fail(err)
	}

	out, err := encode(OpcodePake1, &Pake1{PA: pA})
	if err != nil {
		return nil, s.fail(err)
	}
	s.state = StateWaitingPake2
	return out, nil
}

// HandlePake1 computes the verifier share and confirmation and returns
// Pake2 (Responder only).
func (s *Session) HandlePake1(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleResponder || s.state != StateWaitingPake1 {
		return nil, ErrInvalidState
	}

	var pake1 Pake1
	if err := decode(data, OpcodePake1, &pake1); err != nil {
		return nil, s.fail(err)
	}
	pB, err := s.spake.ComputeRoundOne()
	if err != nil {
		return nil, s.fail(err)
	}
	cB, err := s.spake.ComputeRoundTwo(pake1.PA)
	if err != nil {
		return nil, s.fail(err)
	}

	out, err := encode(OpcodePake2, &Pake2{PB: pB, CB: cB})
	if err != nil {
		return nil, s.fail(err)
	}
	s.state = StateWaitingPake3
	return out, nil
}

// HandlePake2 checks the verifier confirmation and returns Pake3
// (Initiator only). A wrong passcode surfaces here as
// spake2p.ErrAuthenticationFailed.
func (s *Session) HandlePake2(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleInitiator || s.state != StateWaitingPake2 {
		return nil, ErrInvalidState
	}

	var pake2 Pake2
	if err := decode(data, OpcodePake2, &pake2); err != nil {
		return nil, s.fail(err)
	}
	cA, err := s.spake.ComputeRoundTwo(pake2.PB)
	if err != nil {
		return nil, s.fail(err)
	}
	if err := s.spake.KeyConfirm(pake2.CB); err != nil {
		return nil, s.fail(err)
	}
	if err := s.deriveSessionKeys(); err != nil {
		return nil, s.fail(err)
	}

	out, err := encode(OpcodePake3, &Pake3{CA: cA})
	if err != nil {
		return nil, s.fail(err)
	}
	s.state = StateWaitingFinished
	return out, nil
}

// HandlePake3 checks the prover confirmation (Responder only). It always
// returns a PakeFinished message to send, reporting InvalidParameter when
// confirmation fails.
func (s *Session) HandlePake3(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleResponder || s.state != StateWaitingPake3 {
		return nil, ErrInvalidState
	}

	var pake3 Pake3
	if err := decode(data, OpcodePake3, &pake3); err != nil {
		return finished(StatusInvalidParameter), s.fail(err)
	}
	if err := s.spake.KeyConfirm(pake3.CA); err != nil {
		return finished(StatusInvalidParameter), s.fail(err)
	}
	if err := s.deriveSessionKeys(); err != nil {
		return finished(StatusInvalidParameter), s.fail(err)
	}

	s.spake.Clear()
	s.state = StateComplete
	if s.log != nil {
		s.log.Infof("PASE session established (local %d, peer %d)", s.config.LocalSessionID, s.peerSessionID)
	}
	return finished(StatusSuccess), nil
}

// HandlePakeFinished completes the handshake (Initiator only).
func (s *Session) HandlePakeFinished(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleInitiator || s.state != StateWaitingFinished {
		return ErrInvalidState
	}

	var msg PakeFinished
	if err := decode(data, OpcodePakeFinished, &msg); err != nil {
		return s.fail(err)
	}
	if msg.Status != StatusSuccess {
		return s.fail(statusError(msg.Status))
	}

	s.spake.Clear()
	s.state = StateComplete
	if s.log != nil {
		s.log.Infof("PASE session established (local %d, peer %d)", s.config.LocalSessionID, s.peerSessionID)
	}
	return nil
}

// Abort fails the session and returns a PakeFinished carrying status for
// the peer.
func (s *Session) Abort(status Status) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete && s.state != StateFailed {
		s.fail(ErrInvalidState)
	}
	return finished(status)
}

// context computes SHA256(ContextPrefix || PBKDFParamRequest || PBKDFParamResponse).
func (s *Session) context() []byte {
	h := crypto.NewSHA256()
	h.Write([]byte(ContextPrefix))
	h.Write(s.reqBytes)
	h.Write(s.respBytes)
	return h.Sum(nil)
}

// deriveSessionKeys expands Ke into I2R || R2I || AttestationChallenge.
func (s *Session) deriveSessionKeys() error {
	ke, err := s.spake.Keys()
	if err != nil {
		return err
	}
	defer crypto.Zeroize(ke)

	seKeys, err := crypto.HKDFSHA256(ke, nil, []byte(sessionKeysInfo), 2*SessionKeySize+AttestationChallengeSize)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(seKeys)

	keys := &SessionKeys{}
	copy(keys.I2RKey[:], seKeys[0:16])
	copy(keys.R2IKey[:], seKeys[16:32])
	copy(keys.AttestationChallenge[:], seKeys[32:48])
	s.keys = keys
	return nil
}

func (s *Session) fail(err error) error {
	if s.log != nil {
		s.log.Debugf("%s failed in state %s: %v", s.role, s.state, err)
	}
	s.spake.Clear()
	if s.keys != nil {
		s.keys.Zero()
		s.keys = nil
	}
	s.state = StateFailed
	return err
}

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Role returns the session role.
func (s *Session) Role() Role {
	return s.role
}

// SessionKeys returns the derived keys, or nil before completion.
func (s *Session) SessionKeys() *SessionKeys {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete || s.keys == nil {
		return nil
	}
	k := *s.keys
	return &k
}

// LocalSessionID returns the session ID allocated by this side.
func (s *Session) LocalSessionID() uint16 {
	return s.config.LocalSessionID
}

// PeerSessionID returns the session ID allocated by the peer.
func (s *Session) PeerSessionID() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerSessionID
}

func finished(status Status) []byte {
	// A fixed struct of one integer always encodes.
	data, _ := encode(OpcodePakeFinished, &PakeFinished{Status: status})
	return data
}
