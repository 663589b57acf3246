package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/matter-switch/pkg/eventloop"
)

// DefaultEstablishTimeout bounds one session establishment attempt.
const DefaultEstablishTimeout = 10 * time.Second

// Establisher creates a new secure session to peer. It is called off the
// event loop and may block until ctx is done.
type Establisher interface {
	Establish(ctx context.Context, peer ScopedNodeID) (*Handle, error)
}

// EstablisherFunc adapts a function to Establisher.
type EstablisherFunc func(ctx context.Context, peer ScopedNodeID) (*Handle, error)

// Establish implements Establisher.
func (f EstablisherFunc) Establish(ctx context.Context, peer ScopedNodeID) (*Handle, error) {
	return f(ctx, peer)
}

// ConnectorConfig configures a Connector.
type ConnectorConfig struct {
	// Loop delivers every callback. Required.
	Loop *eventloop.Loop

	// Directory stores established handles.
	// Default: NewDirectory(DefaultMaxSessions)
	Directory *Directory

	// Establisher creates sessions that are not in Directory. Required.
	Establisher Establisher

	// Timeout bounds one establishment attempt.
	// Default: DefaultEstablishTimeout
	Timeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

type connectRequest struct {
	onConnected func(*Handle)
	onFailure   func(ScopedNodeID, error)
}

// Connector resolves peers to handles, establishing sessions on demand.
// Concurrent requests for the same peer share one establishment. All
// methods except Close must be called on the loop.
type Connector struct {
	loop        *eventloop.Loop
	directory   *Directory
	establisher Establisher
	timeout     time.Duration
	log         logging.LeveledLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending map[ScopedNodeID][]connectRequest
}

// NewConnector creates a Connector.
func NewConnector(config ConnectorConfig) (*Connector, error) {
	if config.Loop == nil || config.Establisher == nil {
		return nil, fmt.Errorf("session: connector requires a loop and an establisher")
	}
	if config.Directory == nil {
		config.Directory = NewDirectory(DefaultMaxSessions)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultEstablishTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connector{
		loop:        config.Loop,
		directory:   config.Directory,
		establisher: config.Establisher,
		timeout:     config.Timeout,
		ctx:         ctx,
		cancel:      cancel,
		pending:     make(map[ScopedNodeID][]connectRequest),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("session")
	}
	return c, nil
}

// Directory returns the backing directory.
func (c *Connector) Directory() *Directory {
	return c.directory
}

// Session returns an active handle to peer without establishing one.
func (c *Connector) Session(peer ScopedNodeID) (*Handle, bool) {
	c.loop.AssertOnLoop()
	return c.directory.Find(peer)
}

// Connect reports a handle to peer through exactly one of the callbacks.
// An active handle is reported before Connect returns; otherwise the
// result arrives in a later work item.
func (c *Connector) Connect(peer ScopedNodeID, onConnected func(*Handle), onFailure func(ScopedNodeID, error)) {
	c.loop.AssertOnLoop()

	if !peer.IsValid() {
		onFailure(peer, ErrInvalidPeer)
		return
	}
	if h, ok := c.directory.Find(peer); ok {
		onConnected(h)
		return
	}

	req := connectRequest{onConnected: onConnected, onFailure: onFailure}
	if waiting, ok := c.pending[peer]; ok {
		c.pending[peer] = append(waiting, req)
		return
	}
	c.pending[peer] = []connectRequest{req}

	if c.log != nil {
		c.log.Debugf("establishing session to %s", peer)
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
		defer cancel()

		h, err := c.establisher.Establish(ctx, peer)
		if perr := c.loop.Post(func() { c.complete(peer, h, err) }); perr != nil && h != nil {
			_ = h.Close()
		}
	}()
}

// Pending returns how many peers have an establishment in flight.
func (c *Connector) Pending() int {
	c.loop.AssertOnLoop()
	return len(c.pending)
}

// Evict drops every session to peer so the next Connect establishes a
// fresh one.
func (c *Connector) Evict(peer ScopedNodeID) {
	c.loop.AssertOnLoop()
	if c.log != nil {
		c.log.Debugf("evicting sessions to %s", peer)
	}
	c.directory.MarkDefunct(peer)
	c.directory.RemovePeer(peer)
}

// Close cancels establishments in flight and waits for them to return.
// Their callbacks still run if the loop is open.
func (c *Connector) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Connector) complete(peer ScopedNodeID, h *Handle, err error) {
	if err == nil && h == nil {
		err = ErrSessionNotFound
	}
	if err == nil {
		if addErr := c.directory.Add(h); addErr != nil {
			_ = h.Close()
			err = addErr
		}
	}

	waiting := c.pending[peer]
	delete(c.pending, peer)

	if err != nil {
		if c.log != nil {
			c.log.Warnf("session establishment to %s failed: %v", peer, err)
		}
		for _, req := range waiting {
			req.onFailure(peer, err)
		}
		return
	}

	if c.log != nil {
		c.log.Infof("session established: %s", h)
	}
	for _, req := range waiting {
		req.onConnected(h)
	}
}
