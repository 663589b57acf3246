package shell

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/backkem/matter-switch/pkg/crypto/p256"
	"github.com/backkem/matter-switch/pkg/crypto/spake2p"
	"github.com/backkem/matter-switch/pkg/pase"
	"github.com/backkem/matter-switch/pkg/transport"
)

// Self-test defaults.
const (
	DefaultSelfTestPasscode   = 20202021
	DefaultSelfTestIterations = 1000
	DefaultSelfTestTimeout    = 5 * time.Second
)

// PakeConfig configures the "pake" command group.
type PakeConfig struct {
	// Passcode is the passcode the simulated device's verifier is built
	// from. Default: DefaultSelfTestPasscode
	Passcode uint32

	// Salt and Iterations are the PBKDF parameters. A nil salt is drawn
	// at random. Default iterations: DefaultSelfTestIterations
	Salt       []byte
	Iterations uint32

	// Backend performs the SPAKE2+ arithmetic.
	// Default: p256.ConstantTime
	Backend p256.Backend

	// Timeout bounds one handshake.
	// Default: DefaultSelfTestTimeout
	Timeout time.Duration
}

// RegisterPakeCommands adds the "pake" command group to r.
func RegisterPakeCommands(r *Registry, config PakeConfig) error {
	if config.Passcode == 0 {
		config.Passcode = DefaultSelfTestPasscode
	}
	if config.Iterations == 0 {
		config.Iterations = DefaultSelfTestIterations
	}
	if config.Backend == nil {
		config.Backend = p256.NewConstantTime(nil)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultSelfTestTimeout
	}

	g, err := r.Group("pake", "SPAKE2+ tools")
	if err != nil {
		return err
	}
	return g.Register(Command{
		Name:    "selftest",
		Usage:   "<passcode>",
		Help:    "Run a PASE handshake against a local verifier",
		MinArgs: 1,
		MaxArgs: 1,
		Handler: func(ctx context.Context, w io.Writer, args []string) error {
			passcode, err := parseUint("passcode", args[0], 32)
			if err != nil {
				return err
			}
			if err := SelfTest(ctx, config, uint32(passcode)); err != nil {
				if errors.Is(err, spake2p.ErrAuthenticationFailed) {
					fmt.Fprintln(w, "PASE self-test failed: passcode mismatch")
				}
				return err
			}
			fmt.Fprintln(w, "PASE self-test passed: session keys match")
			return nil
		},
	})
}

// SelfTest runs an initiator holding passcode against a responder holding
// the verifier for config.Passcode over an in-memory pipe.
func SelfTest(ctx context.Context, config PakeConfig, passcode uint32) error {
	salt := config.Salt
	if salt == nil {
		salt = make([]byte, spake2p.PBKDFMinSaltLength)
		if _, err := rand.Read(salt); err != nil {
			return err
		}
	}
	verifier, err := spake2p.GenerateVerifier(config.Backend, config.Passcode, salt, config.Iterations)
	if err != nil {
		return err
	}

	initiator, err := pase.NewInitiator(pase.Config{Passcode: passcode, LocalSessionID: 1, Backend: config.Backend})
	if err != nil {
		return err
	}
	responder, err := pase.NewResponder(pase.Config{
		Verifier:       verifier,
		Salt:           salt,
		Iterations:     config.Iterations,
		LocalSessionID: 2,
		Backend:        config.Backend,
	})
	if err != nil {
		return err
	}

	pipe := transport.NewPipe()
	defer pipe.Close()
	c0, c1 := pipe.Conns(transport.ConnConfig{})

	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	type result struct {
		keys *pase.SessionKeys
		err  error
	}
	respCh := make(chan result, 1)
	go func() {
		keys, err := pase.RunResponder(ctx, c1, responder)
		respCh <- result{keys, err}
	}()

	ikeys, ierr := pase.RunInitiator(ctx, c0, initiator)
	rr := <-respCh
	if ierr != nil {
		return ierr
	}
	if rr.err != nil {
		return rr.err
	}
	defer ikeys.Zero()
	defer rr.keys.Zero()
	if *ikeys != *rr.keys {
		return fmt.Errorf("pase: session keys differ")
	}
	return nil
}
