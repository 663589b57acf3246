package transport

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

const (
	processTimeout       = time.Second
	processRetryInterval = 100 * time.Microsecond
)

// NetworkCondition configures network behavior simulation on a Pipe.
type NetworkCondition struct {
	// DropRate is the probability of dropping a packet (0.0 - 1.0).
	DropRate float64

	// DelayMin is the minimum delay to add to each packet.
	DelayMin time.Duration

	// DelayMax is the maximum delay to add to each packet.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic message delivery in a background goroutine.
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers messages.
	// Default: 1ms
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe is a bidirectional in-memory packet link between two endpoints,
// built on pion's test.Bridge with loss and delay simulation.
//
// By default, Pipe delivers messages from a background goroutine. With
// AutoProcess disabled, call Tick or Process to move packets.
type Pipe struct {
	bridge *test.Bridge
	ends   [2]*pipeConn

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
	autoProcess     bool
}

// NewPipe creates a pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if p.processInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}
	p.ends[0] = &pipeConn{Conn: p.bridge.GetConn0(), pipe: p, local: PipeAddr{ID: 0}, remote: PipeAddr{ID: 1}}
	p.ends[1] = &pipeConn{Conn: p.bridge.GetConn1(), pipe: p, local: PipeAddr{ID: 1}, remote: PipeAddr{ID: 0}}

	if p.autoProcess {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pipe) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.processInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.bridge.Tick()
		}
	}
}

// SetCondition configures network condition simulation for both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Conn0 returns the raw connection for endpoint 0.
func (p *Pipe) Conn0() net.Conn {
	return p.ends[0]
}

// Conn1 returns the raw connection for endpoint 1.
func (p *Pipe) Conn1() net.Conn {
	return p.ends[1]
}

// Conns wraps both endpoints as packet-framed Conns.
func (p *Pipe) Conns(config ConnConfig) (*Conn, *Conn) {
	config.Framing = FramingPacket
	return NewConn(p.ends[0], config), NewConn(p.ends[1], config)
}

// Tick delivers one packet in each direction (if available).
// Returns the number of packets delivered.
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Pending returns the number of packets queued in both directions.
func (p *Pipe) Pending() int {
	return p.bridge.Len(0) + p.bridge.Len(1)
}

// Process delivers all queued packets and returns how many moved. A packet
// only moves once the receiving end is reading, so Process waits up to
// processTimeout for readers before giving up on the rest.
func (p *Pipe) Process() int {
	count := 0
	deadline := time.Now().Add(processTimeout)
	for p.Pending() > 0 {
		n := p.Tick()
		count += n
		if n == 0 {
			if time.Now().After(deadline) {
				break
			}
			time.Sleep(processRetryInterval)
		}
	}
	return count
}

// Close stops auto-processing and closes both endpoints.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.ends[0].Conn.Close()
	err1 := p.ends[1].Conn.Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// shouldDrop applies the configured condition to one outgoing packet and
// reports whether it is lost.
func (p *Pipe) shouldDrop() bool {
	p.mu.RLock()
	cond := p.condition
	p.mu.RUnlock()

	p.mu.Lock()
	drop := cond.DropRate > 0 && p.rng.Float64() < cond.DropRate
	var delay time.Duration
	if cond.DelayMax > 0 {
		delay = cond.DelayMin
		if cond.DelayMax > cond.DelayMin {
			delay += time.Duration(p.rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
		}
	}
	p.mu.Unlock()

	if drop {
		return true
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return false
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID int // Endpoint ID (0 or 1)
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d", a.ID) }

// pipeConn applies the pipe's network condition on write and reports pipe
// addresses.
type pipeConn struct {
	net.Conn
	pipe          *Pipe
	local, remote PipeAddr
}

func (c *pipeConn) Write(b []byte) (int, error) {
	if c.pipe.shouldDrop() {
		return len(b), nil
	}
	return c.Conn.Write(b)
}

func (c *pipeConn) LocalAddr() net.Addr  { return c.local }
func (c *pipeConn) RemoteAddr() net.Addr { return c.remote }
