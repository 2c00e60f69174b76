// File: internal/resolve/strategies_test.go
package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

const (
	nullHandleResult = `{"result":{"type":"object","subtype":"null","value":null}}`
	emptyAXResult    = `{"nodes":[]}`
	thrownEvalResult = `{"result":{"type":"undefined"},"exceptionDetails":{"text":"Uncaught","exception":{"description":"ReferenceError: q is not defined"}}}`
	sendButtonReport = `{"result":{"type":"object","value":{"tag":"button","text":"发送","clicked":false}}}`
)

func TestAXQueryStrategy(t *testing.T) {
	t.Run("should pick the largest visible accessibility match", func(t *testing.T) {
		page := newScriptedPage(t)
		page.handleResult("Accessibility.queryAXTree", `{"nodes":[
			{"nodeId":"1","ignored":true,"backendDOMNodeId":100},
			{"nodeId":"2","role":{"type":"role","value":"button"},"name":{"type":"computedString","value":"发送"},"backendDOMNodeId":101},
			{"nodeId":"3","role":{"type":"role","value":"button"},"name":{"type":"computedString","value":"发送"},"backendDOMNodeId":102},
			{"nodeId":"4","role":{"type":"role","value":"button"},"name":{"type":"computedString","value":"发送"},"backendDOMNodeId":103}
		]}`)
		page.handle("DOM.getBoxModel", func(params json.RawMessage) (string, string) {
			var p struct {
				BackendNodeID int64 `json:"backendNodeId"`
			}
			_ = json.Unmarshal(params, &p)
			switch p.BackendNodeID {
			case 101:
				return boxModelJSON(quadAt(0, 0, 10, 10)), ""
			case 102:
				return boxModelJSON(quadAt(5, 5, 80, 20)), ""
			case 103:
				return "", "Could not compute box model."
			}
			return "", fmt.Sprintf("unexpected node %d", p.BackendNodeID)
		})
		client := page.attach(t)

		res, err := (&AXQuery{}).Attempt(context.Background(), client, schemas.TargetSpec{
			Labels: []string{"发送"},
			Role:   "button",
		})
		require.NoError(t, err)
		assert.Equal(t, schemas.StrategyAXQuery, res.Strategy)
		assert.Equal(t, cdproto.BackendNodeID(102), res.BackendNodeID)
		assert.InDelta(t, 45.0, res.X, 0.001)
		assert.InDelta(t, 15.0, res.Y, 0.001)
		assert.InDelta(t, 1600.0, res.Area, 0.001)
		assert.Equal(t, 1, page.count("Accessibility.queryAXTree"))
	})

	t.Run("should fall through labels until one hits", func(t *testing.T) {
		page := newScriptedPage(t)
		page.handle("Accessibility.queryAXTree", func(params json.RawMessage) (string, string) {
			var p struct {
				AccessibleName string `json:"accessibleName"`
			}
			_ = json.Unmarshal(params, &p)
			if p.AccessibleName != "New chat" {
				return emptyAXResult, ""
			}
			return `{"nodes":[{"nodeId":"7","role":{"type":"role","value":"button"},"name":{"type":"computedString","value":"New chat"},"backendDOMNodeId":301}]}`, ""
		})
		page.handleResult("DOM.getBoxModel", boxModelJSON(quadAt(10, 10, 90, 30)))
		client := page.attach(t)

		res, err := (&AXQuery{}).Attempt(context.Background(), client, schemas.TargetSpec{
			Labels: []string{"新对话", "New chat"},
			Role:   "button",
		})
		require.NoError(t, err)
		assert.Equal(t, cdproto.BackendNodeID(301), res.BackendNodeID)
		assert.Equal(t, 2, page.count("Accessibility.queryAXTree"))
	})

	t.Run("should fail without querying when the spec has no labels", func(t *testing.T) {
		page := newScriptedPage(t)
		client := page.attach(t)

		_, err := (&AXQuery{}).Attempt(context.Background(), client, schemas.TargetSpec{Role: "textbox"})
		require.Error(t, err)
		assert.Equal(t, 0, page.count("Accessibility.queryAXTree"))
	})
}

func TestAXScanStrategy(t *testing.T) {
	fullTree := `{"nodes":[
		{"nodeId":"1","ignored":true,"backendDOMNodeId":10},
		{"nodeId":"2","role":{"type":"role","value":"InlineTextBox"},"name":{"type":"computedString","value":"删除"},"backendDOMNodeId":11},
		{"nodeId":"3","role":{"type":"role","value":"textbox"},"name":{"type":"computedString","value":"删除"},"backendDOMNodeId":12},
		{"nodeId":"4","role":{"type":"role","value":"button"},"name":{"type":"computedString","value":"删除对话"},"backendDOMNodeId":13}
	]}`

	t.Run("should filter the full tree by role and label", func(t *testing.T) {
		page := newScriptedPage(t)
		page.handleResult("Accessibility.getFullAXTree", fullTree)
		page.handleResult("DOM.getBoxModel", boxModelJSON(quadAt(200, 300, 60, 24)))
		client := page.attach(t)

		res, err := (&AXScan{}).Attempt(context.Background(), client, schemas.TargetSpec{
			Labels:    []string{"删除"},
			Role:      "button",
			Substring: true,
		})
		require.NoError(t, err)
		assert.Equal(t, schemas.StrategyAXScan, res.Strategy)
		assert.Equal(t, cdproto.BackendNodeID(13), res.BackendNodeID)
		assert.InDelta(t, 230.0, res.X, 0.001)
		assert.InDelta(t, 312.0, res.Y, 0.001)
		assert.Equal(t, 1, page.count("DOM.getBoxModel"), "filtered nodes must not be measured")
	})

	t.Run("should demand exact matches when substring is off", func(t *testing.T) {
		page := newScriptedPage(t)
		page.handleResult("Accessibility.getFullAXTree", fullTree)
		client := page.attach(t)

		_, err := (&AXScan{}).Attempt(context.Background(), client, schemas.TargetSpec{
			Labels: []string{"删除"},
			Role:   "button",
		})
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 0, page.count("DOM.getBoxModel"))
	})
}

func TestDOMScriptStrategy(t *testing.T) {
	t.Run("should resolve a single candidate at its centroid", func(t *testing.T) {
		// The accessibility strategies fail first: the direct query is
		// unsupported and the full tree is empty. The in-page scan then
		// finds one 50x50 control at (100,200).
		page := newScriptedPage(t)
		page.handleError("Accessibility.queryAXTree", "Accessibility.queryAXTree is not supported")
		page.handleResult("Accessibility.getFullAXTree", emptyAXResult)
		page.handleResult("Runtime.evaluate", `{"result":{"type":"object","subtype":"node","className":"HTMLButtonElement","objectId":"btn-1"}}`)
		page.handleResult("DOM.getBoxModel", boxModelJSON(quadAt(100, 200, 50, 50)))
		page.handleResult("Runtime.callFunctionOn", sendButtonReport)
		client := page.attach(t)

		chain := NewChain(zaptest.NewLogger(t))
		res, err := chain.Resolve(context.Background(), client, schemas.TargetSpec{
			Labels:    []string{"发送", "Send"},
			Role:      "button",
			Substring: true,
		})
		require.NoError(t, err)
		assert.Equal(t, schemas.StrategyDOMScript, res.Strategy)
		assert.Equal(t, runtime.RemoteObjectID("btn-1"), res.ObjectID)
		assert.InDelta(t, 125.0, res.X, 0.001)
		assert.InDelta(t, 225.0, res.Y, 0.001)
		assert.InDelta(t, 2500.0, res.Area, 0.001)
		assert.False(t, res.ActionPerformed)
		assert.Contains(t, res.Detail, "button")

		assert.Equal(t, 1, page.count("Accessibility.queryAXTree"))
		assert.Equal(t, 1, page.count("Accessibility.getFullAXTree"))
		assert.Equal(t, 1, page.count("Runtime.evaluate"))
		assert.Equal(t, 0, page.count("Page.getFrameTree"))
	})

	t.Run("should click in-page when the spec asks for it", func(t *testing.T) {
		page := newScriptedPage(t)
		page.handleResult("Runtime.evaluate", `{"result":{"type":"object","subtype":"node","objectId":"btn-2"}}`)
		page.handleResult("DOM.getBoxModel", boxModelJSON(quadAt(0, 0, 30, 30)))
		page.handle("Runtime.callFunctionOn", func(params json.RawMessage) (string, string) {
			var p struct {
				Arguments []struct {
					Value json.RawMessage `json:"value"`
				} `json:"arguments"`
			}
			_ = json.Unmarshal(params, &p)
			if len(p.Arguments) != 1 || string(p.Arguments[0].Value) != "true" {
				return "", "expected a doClick=true argument"
			}
			return `{"result":{"type":"object","value":{"tag":"button","text":"发送","clicked":true}}}`, ""
		})
		client := page.attach(t)

		res, err := (&DOMScript{}).Attempt(context.Background(), client, schemas.TargetSpec{
			Labels:         []string{"发送"},
			ClickOnResolve: true,
		})
		require.NoError(t, err)
		assert.True(t, res.ActionPerformed)
	})

	t.Run("should report not found on a null scan result", func(t *testing.T) {
		page := newScriptedPage(t)
		page.handleResult("Runtime.evaluate", nullHandleResult)
		client := page.attach(t)

		_, err := (&DOMScript{}).Attempt(context.Background(), client, schemas.TargetSpec{Labels: []string{"发送"}})
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 0, page.count("DOM.getBoxModel"))
	})

	t.Run("should release the handle when measurement fails", func(t *testing.T) {
		page := newScriptedPage(t)
		page.handleResult("Runtime.evaluate", `{"result":{"type":"object","subtype":"node","objectId":"btn-3"}}`)
		page.handleError("DOM.getBoxModel", "Could not compute box model.")
		page.handleResult("Runtime.releaseObject", "{}")
		client := page.attach(t)

		_, err := (&DOMScript{}).Attempt(context.Background(), client, schemas.TargetSpec{Labels: []string{"发送"}})
		require.Error(t, err)
		assert.Equal(t, 1, page.count("Runtime.releaseObject"))
	})
}

func TestFrameScanStrategy(t *testing.T) {
	t.Run("should find a control living only in the second frame", func(t *testing.T) {
		page := newScriptedPage(t)
		page.handleError("Accessibility.queryAXTree", "Accessibility.queryAXTree is not supported")
		page.handleResult("Accessibility.getFullAXTree", emptyAXResult)
		page.handleResult("Page.getFrameTree", `{"frameTree":{
			"frame":{"id":"FRAME-MAIN","url":"https://chat.example/"},
			"childFrames":[
				{"frame":{"id":"FRAME-A","url":"https://chat.example/sidebar"}},
				{"frame":{"id":"FRAME-B","url":"https://chat.example/widget"}}
			]}}`)
		worlds := map[string]int64{"FRAME-MAIN": 10, "FRAME-A": 11, "FRAME-B": 12}
		page.handle("Page.createIsolatedWorld", func(params json.RawMessage) (string, string) {
			var p struct {
				FrameID string `json:"frameId"`
			}
			_ = json.Unmarshal(params, &p)
			id, ok := worlds[p.FrameID]
			if !ok {
				return "", fmt.Sprintf("unknown frame %q", p.FrameID)
			}
			return fmt.Sprintf(`{"executionContextId":%d}`, id), ""
		})
		page.handle("Runtime.evaluate", func(params json.RawMessage) (string, string) {
			var p struct {
				ContextID int64 `json:"contextId"`
			}
			_ = json.Unmarshal(params, &p)
			if p.ContextID == 12 {
				return `{"result":{"type":"object","subtype":"node","objectId":"frame2-el"}}`, ""
			}
			return nullHandleResult, ""
		})
		page.handleResult("DOM.getBoxModel", boxModelJSON(quadAt(40, 60, 120, 30)))
		page.handleResult("Runtime.callFunctionOn", `{"result":{"type":"object","value":{"tag":"button","text":"Send","clicked":false}}}`)
		client := page.attach(t)

		chain := NewChain(zaptest.NewLogger(t))
		res, err := chain.Resolve(context.Background(), client, schemas.TargetSpec{
			Labels:    []string{"Send"},
			Role:      "button",
			Substring: true,
		})
		require.NoError(t, err)
		assert.Equal(t, schemas.StrategyFrameScan, res.Strategy)
		assert.Equal(t, cdproto.FrameID("FRAME-B"), res.FrameID)
		assert.Equal(t, runtime.ExecutionContextID(12), res.ContextID)
		assert.Equal(t, runtime.RemoteObjectID("frame2-el"), res.ObjectID)
		assert.InDelta(t, 100.0, res.X, 0.001)
		assert.InDelta(t, 75.0, res.Y, 0.001)

		// Frames are visited main-first, in tree order.
		var visited []string
		for _, raw := range page.callsFor("Page.createIsolatedWorld") {
			var p struct {
				FrameID string `json:"frameId"`
			}
			require.NoError(t, json.Unmarshal(raw, &p))
			visited = append(visited, p.FrameID)
		}
		assert.Equal(t, []string{"FRAME-MAIN", "FRAME-A", "FRAME-B"}, visited)

		// The world creation has to keep the protocol's historical
		// parameter spelling or older browsers reject it.
		first := page.callsFor("Page.createIsolatedWorld")[0]
		assert.Contains(t, string(first), `"grantUniveralAccess":true`)
	})
}

func TestChainExhaustion(t *testing.T) {
	t.Run("should run each strategy exactly once before reporting failure", func(t *testing.T) {
		page := newScriptedPage(t)
		page.handleResult("Accessibility.queryAXTree", emptyAXResult)
		page.handleResult("Accessibility.getFullAXTree", `{"nodes":[
			{"nodeId":"1","ignored":true,"backendDOMNodeId":5},
			{"nodeId":"2","role":{"type":"role","value":"InlineTextBox"},"name":{"type":"computedString","value":"删除"},"backendDOMNodeId":6}
		]}`)
		page.handle("Runtime.evaluate", func(params json.RawMessage) (string, string) {
			var p struct {
				ContextID int64 `json:"contextId"`
			}
			_ = json.Unmarshal(params, &p)
			if p.ContextID == 0 {
				return thrownEvalResult, ""
			}
			return nullHandleResult, ""
		})
		page.handleResult("Page.getFrameTree", `{"frameTree":{"frame":{"id":"ROOT","url":"https://chat.example/"}}}`)
		page.handleResult("Page.createIsolatedWorld", `{"executionContextId":10}`)
		client := page.attach(t)

		chain := NewChain(zaptest.NewLogger(t))
		res, err := chain.Resolve(context.Background(), client, schemas.TargetSpec{
			Labels:    []string{"删除", "Delete"},
			Role:      "button",
			Substring: true,
		})
		require.Nil(t, res)

		var unresolved *UnresolvedError
		require.ErrorAs(t, err, &unresolved)
		require.Len(t, unresolved.Failures, 4)
		for _, name := range []schemas.StrategyName{
			schemas.StrategyAXQuery, schemas.StrategyAXScan,
			schemas.StrategyDOMScript, schemas.StrategyFrameScan,
		} {
			assert.True(t, strings.Contains(err.Error(), string(name)),
				"failure report should mention %s", name)
		}

		assert.Equal(t, 2, page.count("Accessibility.queryAXTree"), "one query per label")
		assert.Equal(t, 1, page.count("Accessibility.getFullAXTree"))
		assert.Equal(t, 1, page.count("Page.getFrameTree"))
		assert.Equal(t, 1, page.count("Page.createIsolatedWorld"))
		assert.Equal(t, 2, page.count("Runtime.evaluate"), "main world plus the one frame world")
		assert.Equal(t, 0, page.count("Runtime.callFunctionOn"))
		assert.Equal(t, 0, page.count("DOM.getBoxModel"))
	})
}

func TestBuildFindExpression(t *testing.T) {
	t.Run("should embed arguments as JSON", func(t *testing.T) {
		expr, err := buildFindExpression(schemas.TargetSpec{
			Labels:    []string{`say "hi"`},
			Tags:      []string{"button"},
			Substring: true,
		})
		require.NoError(t, err)
		assert.Contains(t, expr, `["button"]`)
		assert.Contains(t, expr, `["say \"hi\""]`)
		assert.True(t, strings.HasSuffix(expr, ", true)"))
	})

	t.Run("should fall back to the default tag set", func(t *testing.T) {
		expr, err := buildFindExpression(schemas.TargetSpec{Labels: []string{"Send"}})
		require.NoError(t, err)
		assert.Contains(t, expr, `"button"`)
		assert.Contains(t, expr, `"textarea"`)
		assert.True(t, strings.HasSuffix(expr, ", false)"))
	})

	t.Run("should encode no labels as an empty array", func(t *testing.T) {
		expr, err := buildFindExpression(schemas.TargetSpec{})
		require.NoError(t, err)
		assert.Contains(t, expr, ", [], false)")
	})
}

func TestMatchesAnyLabel(t *testing.T) {
	labels := []string{"发送", "Send"}

	assert.True(t, matchesAnyLabel("Send", labels, false))
	assert.True(t, matchesAnyLabel("  send  ", labels, false))
	assert.True(t, matchesAnyLabel("发送", labels, false))
	assert.False(t, matchesAnyLabel("发送消息", labels, false))
	assert.True(t, matchesAnyLabel("发送消息", labels, true))
	assert.False(t, matchesAnyLabel("", labels, true))
	assert.False(t, matchesAnyLabel("Cancel", labels, true))
}
