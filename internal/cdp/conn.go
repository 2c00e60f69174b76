// File: internal/cdp/conn.go
package cdp

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// maxFrameSize raises the websocket read limit well past gorilla's default.
// CDP responses can carry entire serialized documents and screenshots.
const maxFrameSize = 64 << 20

// defaultHandshakeTimeout bounds the websocket upgrade.
const defaultHandshakeTimeout = 10 * time.Second

// Conn owns the single duplex websocket to one page's debugging endpoint.
// Reads are driven by exactly one goroutine (the Client's read loop);
// writes may come from any goroutine and are serialized here.
type Conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// DialPage opens the websocket for a page's webSocketDebuggerUrl.
func DialPage(ctx context.Context, wsURL string, handshakeTimeout time.Duration) (*Conn, error) {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &TransportError{Op: "dial " + wsURL, Err: err}
	}
	ws.SetReadLimit(maxFrameSize)
	return &Conn{ws: ws}, nil
}

// WriteMessage sends one text frame. Safe for concurrent use.
func (c *Conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// ReadMessage blocks for the next frame. Only the owning read loop may
// call it.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	return data, nil
}

// Close tears the socket down. Idempotent; the first error wins.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
