package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/pion/logging"
)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Listener is an optional pre-existing net.Listener to use.
	// If nil, a new TCP listener is created on ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":5540").
	// Ignored if Listener is provided.
	ListenAddr string

	// Conn configures accepted connections. Framing is forced to stream.
	Conn ConnConfig

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Listener accepts stream connections and hands each to a handler.
type Listener struct {
	ln       net.Listener
	connConf ConnConfig
	log      logging.LeveledLogger

	wg     sync.WaitGroup
	mu     sync.Mutex
	conns  map[*Conn]struct{}
	closed bool
}

// Listen creates a Listener.
func Listen(config ListenerConfig) (*Listener, error) {
	ln := config.Listener
	if ln == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		var err error
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
		}
	}

	l := &Listener{
		ln:       ln,
		connConf: config.Conn,
		conns:    make(map[*Conn]struct{}),
	}
	l.connConf.Framing = FramingStream
	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("transport")
	}
	return l, nil
}

// Addr returns the listening address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts connections until ctx is done or the listener is closed.
// Each accepted Conn is passed to handler on its own goroutine and closed
// when handler returns.
func (l *Listener) Serve(ctx context.Context, handler func(ctx context.Context, conn *Conn)) error {
	if l.log != nil {
		l.log.Infof("listening on %s", l.ln.Addr())
	}

	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	defer stop()

	for {
		nc, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		conn := NewConn(nc, l.connConf)
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			conn.Close()
			return nil
		}
		l.conns[conn] = struct{}{}
		l.mu.Unlock()

		if l.log != nil {
			l.log.Debugf("accepted %s", nc.RemoteAddr())
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer func() {
				conn.Close()
				l.mu.Lock()
				delete(l.conns, conn)
				l.mu.Unlock()
			}()
			handler(ctx, conn)
		}()
	}
}

// Close stops the listener, closes every accepted connection and waits for
// their handlers to return.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	conns := make([]*Conn, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	for _, c := range conns {
		c.Close()
	}
	l.wg.Wait()
	return err
}
