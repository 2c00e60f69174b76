// File: internal/resolve/scripted_test.go
package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/chromedp/cdproto/dom"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/internal/cdp"
)

// rpcCall is one recorded request seen by the scripted page.
type rpcCall struct {
	Method string
	Params json.RawMessage
}

// scriptedPage is a websocket endpoint that answers protocol calls from
// registered handlers and records every call it sees. Unhandled methods
// fail the way a real browser fails them.
type scriptedPage struct {
	t  *testing.T
	mu sync.Mutex

	handlers map[string]func(params json.RawMessage) (result string, rpcErr string)
	calls    []rpcCall

	server *httptest.Server
}

func newScriptedPage(t *testing.T) *scriptedPage {
	t.Helper()
	p := &scriptedPage{
		t:        t,
		handlers: map[string]func(json.RawMessage) (string, string){},
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			var req struct {
				ID     int64           `json:"id"`
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
			}
			if err := ws.ReadJSON(&req); err != nil {
				return
			}

			p.mu.Lock()
			p.calls = append(p.calls, rpcCall{Method: req.Method, Params: req.Params})
			handler := p.handlers[req.Method]
			p.mu.Unlock()

			var frame string
			if handler == nil {
				frame = fmt.Sprintf(`{"id":%d,"error":{"code":-32601,"message":"'%s' wasn't found"}}`, req.ID, req.Method)
			} else {
				result, rpcErr := handler(req.Params)
				switch {
				case rpcErr != "":
					frame = fmt.Sprintf(`{"id":%d,"error":{"code":-32000,"message":%q}}`, req.ID, rpcErr)
				case result != "":
					frame = fmt.Sprintf(`{"id":%d,"result":%s}`, req.ID, result)
				default:
					frame = fmt.Sprintf(`{"id":%d,"result":{}}`, req.ID)
				}
			}
			if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *scriptedPage) handle(method string, fn func(params json.RawMessage) (string, string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[method] = fn
}

// handleResult registers a fixed successful result.
func (p *scriptedPage) handleResult(method, result string) {
	p.handle(method, func(json.RawMessage) (string, string) { return result, "" })
}

// handleError registers a fixed protocol error.
func (p *scriptedPage) handleError(method, message string) {
	p.handle(method, func(json.RawMessage) (string, string) { return "", message })
}

func (p *scriptedPage) count(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// callsFor returns the recorded params of every call to one method, in
// arrival order.
func (p *scriptedPage) callsFor(method string) []json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []json.RawMessage
	for _, c := range p.calls {
		if c.Method == method {
			out = append(out, c.Params)
		}
	}
	return out
}

func (p *scriptedPage) wsURL() string {
	return "ws" + strings.TrimPrefix(p.server.URL, "http")
}

func (p *scriptedPage) attach(t *testing.T) *cdp.Client {
	t.Helper()
	client, err := cdp.Attach(context.Background(), p.wsURL(), cdp.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// boxModelJSON renders a DOM.getBoxModel result whose four quads all
// equal q.
func boxModelJSON(q dom.Quad) string {
	quad, _ := json.Marshal([]float64(q))
	return fmt.Sprintf(
		`{"model":{"content":%s,"padding":%s,"border":%s,"margin":%s,"width":%d,"height":%d}}`,
		quad, quad, quad, quad, int(q[2]-q[0]), int(q[5]-q[1]))
}
