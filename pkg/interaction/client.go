package interaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"
	"go.uber.org/atomic"

	"github.com/backkem/matter-switch/pkg/eventloop"
	"github.com/backkem/matter-switch/pkg/fabric"
	"github.com/backkem/matter-switch/pkg/session"
	"github.com/backkem/matter-switch/pkg/transport"
	"github.com/backkem/matter-switch/pkg/wire"
)

// DefaultRequestTimeout bounds how long a request waits for its response.
const DefaultRequestTimeout = 10 * time.Second

// ResponseHandler receives the outcome of a request. Exactly one of resp
// and err is non-nil.
type ResponseHandler func(resp *Response, err error)

// ClientConfig configures the Client.
type ClientConfig struct {
	// Loop runs every callback. Required.
	Loop *eventloop.Loop

	// Timeout for requests.
	// Default: DefaultRequestTimeout
	Timeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

type exchangeKey struct {
	handle *session.Handle
	id     uint16
}

type exchange struct {
	responseOpcode uint8
	timer          *time.Timer
	onDone         ResponseHandler
}

type groupKey struct {
	fabricIndex fabric.FabricIndex
	groupID     fabric.GroupID
}

type groupSender struct {
	context *session.GroupContext
	conn    *transport.Conn
}

// Client sends invoke and read requests over secure sessions and group
// commands over group contexts.
//
// All methods except Close must be called on the loop. Handlers always run
// in a later work item, never inside the call that started the request.
type Client struct {
	loop    *eventloop.Loop
	timeout time.Duration
	log     logging.LeveledLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	nextID    uint16
	exchanges map[exchangeKey]*exchange
	readers   map[*session.Handle]struct{}
	groups    map[groupKey]groupSender
}

// NewClient creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Loop == nil {
		return nil, fmt.Errorf("interaction: client requires a loop")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRequestTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		loop:      config.Loop,
		timeout:   config.Timeout,
		ctx:       ctx,
		cancel:    cancel,
		exchanges: make(map[exchangeKey]*exchange),
		readers:   make(map[*session.Handle]struct{}),
		groups:    make(map[groupKey]groupSender),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("interaction")
	}
	return c, nil
}

// Invoke sends req over h. The exchange ID is assigned by the client.
func (c *Client) Invoke(h *session.Handle, req InvokeRequest, onDone ResponseHandler) {
	c.loop.AssertOnLoop()
	req.ExchangeID = c.allocateID(h)
	req.SuppressResponse = false
	c.start(h, req.ExchangeID, OpcodeInvokeRequest, OpcodeInvokeResponse, &req, onDone)
}

// Read sends req over h.
func (c *Client) Read(h *session.Handle, req ReadRequest, onDone ResponseHandler) {
	c.loop.AssertOnLoop()
	req.ExchangeID = c.allocateID(h)
	c.start(h, req.ExchangeID, OpcodeReadRequest, OpcodeReportData, &req, onDone)
}

// Outstanding returns the number of requests awaiting a response.
func (c *Client) Outstanding() int {
	c.loop.AssertOnLoop()
	return len(c.exchanges)
}

// RegisterGroup makes group commands for g's group go out on conn.
func (c *Client) RegisterGroup(g *session.GroupContext, conn *transport.Conn) {
	c.loop.AssertOnLoop()
	c.groups[groupKey{g.FabricIndex(), g.GroupID()}] = groupSender{context: g, conn: conn}
}

// InvokeGroup multicasts req to every member of the group. Group commands
// are never answered.
func (c *Client) InvokeGroup(fabricIndex fabric.FabricIndex, groupID fabric.GroupID, req InvokeRequest) error {
	c.loop.AssertOnLoop()
	req.ExchangeID = c.allocateID(nil)
	req.SuppressResponse = true
	return c.sendGroup(groupKey{fabricIndex, groupID}, OpcodeInvokeRequest, &req)
}

// ReadGroup multicasts a read. Members evaluate it locally and send
// nothing back.
func (c *Client) ReadGroup(fabricIndex fabric.FabricIndex, groupID fabric.GroupID, req ReadRequest) error {
	c.loop.AssertOnLoop()
	req.ExchangeID = c.allocateID(nil)
	return c.sendGroup(groupKey{fabricIndex, groupID}, OpcodeReadRequest, &req)
}

// Close stops the session readers and ends every outstanding request with
// ErrClosed. Close the client before the loop; if the loop is already
// closed the handlers run on the calling goroutine.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	if err := c.loop.RunSync(c.failOutstanding); err != nil {
		<-c.loop.Done()
		c.failOutstanding()
	}
	return nil
}

func (c *Client) failOutstanding() {
	if c.log != nil && len(c.exchanges) > 0 {
		c.log.Debugf("closing with %d requests outstanding", len(c.exchanges))
	}
	for key := range c.exchanges {
		c.finish(key, nil, ErrClosed)
	}
}

func (c *Client) sendGroup(key groupKey, opcode uint8, body any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	g, ok := c.groups[key]
	if !ok {
		return fmt.Errorf("%w: fabric %d group 0x%04X", ErrGroupNotFound, key.fabricIndex, uint16(key.groupID))
	}
	payload, err := wire.Encode(opcode, body)
	if err != nil {
		return err
	}
	frame, err := g.context.Seal(payload)
	if err != nil {
		return err
	}
	return g.conn.Send(frame)
}

func (c *Client) allocateID(h *session.Handle) uint16 {
	for {
		c.nextID++
		if c.nextID == 0 {
			continue
		}
		if _, busy := c.exchanges[exchangeKey{h, c.nextID}]; !busy {
			return c.nextID
		}
	}
}

func (c *Client) start(h *session.Handle, id uint16, opcode, responseOpcode uint8, body any, onDone ResponseHandler) {
	if c.closed.Load() {
		c.post(onDone, nil, ErrClosed)
		return
	}
	if h.Conn() == nil {
		c.post(onDone, nil, ErrNoConnection)
		return
	}

	payload, err := wire.Encode(opcode, body)
	if err != nil {
		c.post(onDone, nil, err)
		return
	}
	// A defunct or exhausted session is as good as a silent peer.
	frame, err := h.Seal(payload)
	if err != nil {
		c.post(onDone, nil, fmt.Errorf("%w: %v", ErrTimeout, err))
		return
	}

	key := exchangeKey{h, id}
	ex := &exchange{responseOpcode: responseOpcode, onDone: onDone}
	ex.timer = c.loop.After(c.timeout, func() { c.expire(key, ex) })
	c.exchanges[key] = ex
	c.ensureReader(h)

	if err := h.Conn().Send(frame); err != nil {
		c.finish(key, nil, fmt.Errorf("%w: send: %v", ErrTimeout, err))
		return
	}
	if c.log != nil {
		c.log.Tracef("sent opcode 0x%02x exchange %d on %s", opcode, id, h)
	}
}

// post runs onDone in a later work item. Once the loop stops accepting
// work the handler runs inline, so it is never lost.
func (c *Client) post(onDone ResponseHandler, resp *Response, err error) {
	if perr := c.loop.Post(func() { onDone(resp, err) }); perr != nil {
		onDone(resp, err)
	}
}

func (c *Client) finish(key exchangeKey, resp *Response, err error) {
	ex, ok := c.exchanges[key]
	if !ok {
		return
	}
	delete(c.exchanges, key)
	ex.timer.Stop()
	c.post(ex.onDone, resp, err)
}

func (c *Client) expire(key exchangeKey, ex *exchange) {
	if c.exchanges[key] != ex {
		return
	}
	if c.log != nil {
		c.log.Debugf("exchange %d on %s timed out", key.id, key.handle)
	}
	c.finish(key, nil, ErrTimeout)
}

func (c *Client) ensureReader(h *session.Handle) {
	if _, ok := c.readers[h]; ok {
		return
	}
	c.readers[h] = struct{}{}

	conn := h.Conn()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			frame, err := conn.Receive(c.ctx)
			if err != nil {
				_ = c.loop.Post(func() { c.connectionLost(h, err) })
				return
			}
			payload, err := h.Open(frame)
			if err != nil {
				if c.log != nil {
					c.log.Debugf("dropping frame on %s: %v", h, err)
				}
				continue
			}
			env, err := wire.Decode(payload)
			if err != nil {
				if c.log != nil {
					c.log.Debugf("dropping message on %s: %v", h, err)
				}
				continue
			}
			_ = c.loop.Post(func() { c.deliver(h, env) })
		}
	}()
}

func (c *Client) connectionLost(h *session.Handle, cause error) {
	delete(c.readers, h)
	err := fmt.Errorf("%w: connection lost: %v", ErrTimeout, cause)
	if c.closed.Load() {
		err = ErrClosed
	}
	for key := range c.exchanges {
		if key.handle == h {
			c.finish(key, nil, err)
		}
	}
}

func (c *Client) deliver(h *session.Handle, env wire.Envelope) {
	var hdr exchangeHeader
	if err := env.DecodeBody(&hdr); err != nil {
		if c.log != nil {
			c.log.Debugf("undecodable response on %s: %v", h, err)
		}
		return
	}
	key := exchangeKey{h, hdr.ExchangeID}
	ex, ok := c.exchanges[key]
	if !ok {
		if c.log != nil {
			c.log.Debugf("response for unknown exchange %d on %s", hdr.ExchangeID, h)
		}
		return
	}

	resp, err := decodeResponse(env, ex.responseOpcode)
	c.finish(key, resp, err)
}

func decodeResponse(env wire.Envelope, want uint8) (*Response, error) {
	if env.Opcode == OpcodeStatusResponse {
		var sr StatusResponse
		if err := env.DecodeBody(&sr); err != nil {
			return nil, err
		}
		return nil, &StatusError{Status: sr.Status}
	}
	if env.Opcode != want {
		return nil, fmt.Errorf("%w: opcode 0x%02x, want 0x%02x", ErrUnexpectedResponse, env.Opcode, want)
	}

	switch env.Opcode {
	case OpcodeInvokeResponse:
		var r InvokeResponse
		if err := env.DecodeBody(&r); err != nil {
			return nil, err
		}
		if !r.Status.IsSuccess() {
			return nil, &StatusError{Status: r.Status, ClusterStatus: r.ClusterStatus}
		}
		return &Response{Data: r.Fields}, nil
	default:
		var r ReportData
		if err := env.DecodeBody(&r); err != nil {
			return nil, err
		}
		if !r.Status.IsSuccess() {
			return nil, &StatusError{Status: r.Status}
		}
		return &Response{Data: r.Value, DataVersion: r.DataVersion}, nil
	}
}
