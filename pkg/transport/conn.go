// Package transport carries discrete messages between two peers.
//
// A Conn wraps a net.Conn and preserves message boundaries: packet
// transports (UDP, the in-memory Pipe) map one message to one datagram, and
// stream transports (TCP) prefix every message with its length as a 4-byte
// little-endian integer, as Matter does over TCP.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pion/logging"
)

// Framing selects how message boundaries are kept on the wire.
type Framing int

const (
	// FramingPacket sends one message per Write. Used for datagram conns.
	FramingPacket Framing = iota
	// FramingStream prefixes each message with a 4-byte little-endian length.
	FramingStream
)

// String returns the framing name.
func (f Framing) String() string {
	switch f {
	case FramingPacket:
		return "packet"
	case FramingStream:
		return "stream"
	default:
		return "unknown"
	}
}

const (
	// DefaultMaxMessageSize bounds a single message.
	DefaultMaxMessageSize = 64 * 1024

	// LengthPrefixSize is the stream framing header size.
	LengthPrefixSize = 4

	receiveQueueSize = 16
)

// ConnConfig configures a Conn.
type ConnConfig struct {
	// Framing selects packet or stream framing.
	Framing Framing

	// MaxMessageSize bounds messages in both directions.
	// Default: DefaultMaxMessageSize
	MaxMessageSize int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Conn is a message-oriented connection to a single peer.
//
// Send is safe for concurrent use. A background goroutine reads the
// underlying connection; Receive hands messages out in arrival order.
type Conn struct {
	nc      net.Conn
	framing Framing
	maxSize int
	log     logging.LeveledLogger

	writeMu sync.Mutex

	recvCh  chan []byte
	closeCh chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	readErr error
	closed  bool
}

// NewConn wraps nc and starts its read loop.
func NewConn(nc net.Conn, config ConnConfig) *Conn {
	c := &Conn{
		nc:      nc,
		framing: config.Framing,
		maxSize: config.MaxMessageSize,
		recvCh:  make(chan []byte, receiveQueueSize),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxMessageSize
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("transport")
	}

	go c.readLoop()
	return c
}

// Dial connects to address over network ("tcp" or "udp"). TCP conns use
// stream framing and UDP conns packet framing regardless of config.Framing.
func Dial(ctx context.Context, network, address string, config ConnConfig) (*Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
		config.Framing = FramingStream
	case "udp", "udp4", "udp6":
		config.Framing = FramingPacket
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, network)
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return NewConn(nc, config), nil
}

// Send writes one message.
func (c *Conn) Send(data []byte) error {
	if len(data) > c.maxSize {
		return ErrMessageTooLarge
	}
	if c.isClosed() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.framing == FramingStream {
		buf := make([]byte, LengthPrefixSize+len(data))
		binary.LittleEndian.PutUint32(buf, uint32(len(data)))
		copy(buf[LengthPrefixSize:], data)
		_, err := c.nc.Write(buf)
		return err
	}
	_, err := c.nc.Write(data)
	return err
}

// Receive returns the next message. It blocks until a message arrives, the
// connection fails, or ctx is done.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-c.recvCh:
		if !ok {
			return nil, c.err()
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed when the read loop stops.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection. Done reports when the read loop has stopped.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeCh)
	c.mu.Unlock()

	return c.nc.Close()
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.nc.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.readErr == nil {
		return ErrClosed
	}
	return c.readErr
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer close(c.recvCh)

	buf := make([]byte, c.maxSize)
	for {
		msg, err := c.readMessage(buf)
		if err != nil {
			c.mu.Lock()
			if !c.closed && !errors.Is(err, io.EOF) {
				c.readErr = err
				if c.log != nil {
					c.log.Debugf("read from %s failed: %v", c.nc.RemoteAddr(), err)
				}
			}
			c.mu.Unlock()
			return
		}

		select {
		case c.recvCh <- msg:
		case <-c.closeCh:
			return
		}
	}
}

func (c *Conn) readMessage(buf []byte) ([]byte, error) {
	if c.framing == FramingStream {
		var hdr [LengthPrefixSize]byte
		if _, err := io.ReadFull(c.nc, hdr[:]); err != nil {
			return nil, err
		}
		n := binary.LittleEndian.Uint32(hdr[:])
		if int(n) > c.maxSize {
			return nil, ErrMessageTooLarge
		}
		msg := make([]byte, n)
		if _, err := io.ReadFull(c.nc, msg); err != nil {
			return nil, err
		}
		return msg, nil
	}

	n, err := c.nc.Read(buf)
	if err != nil {
		return nil, err
	}
	msg := make([]byte, n)
	copy(msg, buf[:n])
	return msg, nil
}
