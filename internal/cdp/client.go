// File: internal/cdp/client.go
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// jsonx is the frame codec. CDP is plain JSON; jsoniter keeps the hot
// decode path cheap without changing stdlib semantics.
var jsonx = jsoniter.ConfigCompatibleWithStandardLibrary

// Message is one protocol frame. Requests carry ID, Method and Params;
// responses carry ID and exactly one of Result or Error; events carry
// Method and Params with no ID.
type Message struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail is the error member of a response frame.
type ErrorDetail struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// transport is what the Client needs from a connection. *Conn satisfies
// it; tests substitute their own.
type transport interface {
	WriteMessage(data []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

// EventHandler receives protocol events. Handlers run on the read loop
// goroutine and must return quickly.
type EventHandler func(method string, params json.RawMessage)

// Options tune a Client.
type Options struct {
	Logger *zap.Logger
	// CallTimeout is the per-call default; CallWithTimeout overrides it.
	CallTimeout time.Duration
	// HandshakeTimeout bounds the websocket upgrade in Attach.
	HandshakeTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 15 * time.Second
	}
}

// Client multiplexes request/response pairs over one Conn. It owns the
// correlation-id counter and the pending-call table for that connection;
// neither is ever shared across connections.
type Client struct {
	conn        transport
	logger      *zap.Logger
	callTimeout time.Duration

	nextID int64

	mu          sync.Mutex
	pending     map[int64]chan *Message
	closed      bool
	closeReason error

	handlersMu sync.RWMutex
	handlers   map[string][]EventHandler

	readDone chan struct{}
}

// Attach dials a page's webSocketDebuggerUrl and starts a Client on it.
func Attach(ctx context.Context, wsURL string, opts Options) (*Client, error) {
	opts.withDefaults()
	conn, err := DialPage(ctx, wsURL, opts.HandshakeTimeout)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, opts), nil
}

// NewClient starts the read loop on an established transport and returns
// the multiplexer bound to it.
func NewClient(conn transport, opts Options) *Client {
	opts.withDefaults()
	c := &Client{
		conn:        conn,
		logger:      opts.Logger.Named("cdp"),
		callTimeout: opts.CallTimeout,
		pending:     make(map[int64]chan *Message),
		handlers:    make(map[string][]EventHandler),
		readDone:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close tears down the connection, rejects every outstanding call, and
// waits for the read loop to exit.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.readDone
	return err
}

// OnEvent registers a handler for a protocol event method. Events with no
// registered handler are discarded.
func (c *Client) OnEvent(method string, h EventHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[method] = append(c.handlers[method], h)
}

// Call issues one command and decodes its result into out (which may be
// nil). It settles exactly once: with the matching response, a
// *ProtocolError if the endpoint rejected the command, a *TimeoutError
// after the default call timeout, a *TransportError if the connection
// dies while the call is pending, or ctx's error.
func (c *Client) Call(ctx context.Context, method string, params, out interface{}) error {
	return c.call(ctx, method, params, out, c.callTimeout)
}

// CallWithTimeout is Call with a per-call timeout override.
func (c *Client) CallWithTimeout(ctx context.Context, method string, params, out interface{}, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.callTimeout
	}
	return c.call(ctx, method, params, out, timeout)
}

func (c *Client) call(ctx context.Context, method string, params, out interface{}, timeout time.Duration) error {
	if method == "" {
		return fmt.Errorf("cdp: empty method name")
	}

	var rawParams json.RawMessage
	if params != nil {
		b, err := jsonx.Marshal(params)
		if err != nil {
			return fmt.Errorf("cdp: marshal %s params: %w", method, err)
		}
		rawParams = b
	}

	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan *Message, 1)

	c.mu.Lock()
	if c.closed {
		reason := c.closeReason
		c.mu.Unlock()
		return &TransportError{Op: "call " + method, Err: reason}
	}
	c.pending[id] = ch
	c.mu.Unlock()

	frame, err := jsonx.Marshal(&Message{ID: id, Method: method, Params: rawParams})
	if err != nil {
		c.forget(id)
		return fmt.Errorf("cdp: marshal %s frame: %w", method, err)
	}
	if err := c.conn.WriteMessage(frame); err != nil {
		c.forget(id)
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-ch:
		if !ok {
			// The read loop closed the channel: connection gone.
			c.mu.Lock()
			reason := c.closeReason
			c.mu.Unlock()
			return &TransportError{Op: "await " + method, Err: reason}
		}
		if msg.Error != nil {
			return &ProtocolError{Method: method, Code: msg.Error.Code, Message: msg.Error.Message}
		}
		if out != nil && len(msg.Result) > 0 {
			if err := jsonx.Unmarshal(msg.Result, out); err != nil {
				return fmt.Errorf("cdp: unmarshal %s result: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		c.forget(id)
		return &TimeoutError{Method: method, Timeout: timeout}
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

// forget removes a pending entry so any eventual response is dropped.
func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop is the sole reader. It routes response frames to their pending
// call by correlation id, fans events out to handlers, and on a read
// failure rejects everything still pending before exiting.
func (c *Client) readLoop() {
	defer close(c.readDone)
	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}

		var msg Message
		if err := jsonx.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("Discarding malformed frame.", zap.Error(err))
			continue
		}

		if msg.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			if ok {
				delete(c.pending, msg.ID)
			}
			c.mu.Unlock()

			if ok {
				// Buffered; never blocks even if the caller already
				// timed out and walked away.
				ch <- &msg
			} else {
				c.logger.Debug("Dropping late or orphaned response.", zap.Int64("id", msg.ID))
			}
			continue
		}

		if msg.Method != "" {
			c.dispatchEvent(msg.Method, msg.Params)
		}
	}
}

// fail marks the client closed and rejects all outstanding calls at once
// so no caller is left blocked past the connection's end of life.
func (c *Client) fail(reason error) {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.closeReason = reason
	}
	orphaned := c.pending
	c.pending = make(map[int64]chan *Message)
	c.mu.Unlock()

	for _, ch := range orphaned {
		close(ch)
	}
	if len(orphaned) > 0 {
		c.logger.Debug("Rejected pending calls on connection loss.",
			zap.Int("count", len(orphaned)), zap.Error(reason))
	}
}

func (c *Client) dispatchEvent(method string, params json.RawMessage) {
	c.handlersMu.RLock()
	handlers := c.handlers[method]
	c.handlersMu.RUnlock()
	for _, h := range handlers {
		h(method, params)
	}
}
