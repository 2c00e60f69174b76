// File: internal/cdp/dom.go
package cdp

import (
	"context"
	"fmt"

	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
)

// Node is the slice of DOM.Node this client needs.
type Node struct {
	NodeID        cdproto.NodeID        `json:"nodeId"`
	BackendNodeID cdproto.BackendNodeID `json:"backendNodeId"`
	NodeName      string                `json:"nodeName,omitempty"`
}

type getDocumentResult struct {
	Root *Node `json:"root"`
}

// GetDocument returns the document root node. Depth -1 materializes the
// whole tree in the DOM agent, which later per-node calls rely on.
func (c *Client) GetDocument(ctx context.Context, depth int64) (*Node, error) {
	var res getDocumentResult
	if err := c.Call(ctx, "DOM.getDocument", map[string]interface{}{"depth": depth}, &res); err != nil {
		return nil, err
	}
	if res.Root == nil {
		return nil, fmt.Errorf("cdp: DOM.getDocument returned no root")
	}
	return res.Root, nil
}

// GetOuterHTML serializes a node; called with the document root it yields
// the full page markup.
func (c *Client) GetOuterHTML(ctx context.Context, nodeID cdproto.NodeID) (string, error) {
	var res struct {
		OuterHTML string `json:"outerHTML"`
	}
	if err := c.Call(ctx, "DOM.getOuterHTML", map[string]interface{}{"nodeId": nodeID}, &res); err != nil {
		return "", err
	}
	return res.OuterHTML, nil
}

// BoxModel is the layout geometry of one rendered node. Quads run
// clockwise from the top-left corner: x1,y1,x2,y2,x3,y3,x4,y4.
type BoxModel struct {
	Content dom.Quad `json:"content"`
	Padding dom.Quad `json:"padding"`
	Border  dom.Quad `json:"border"`
	Margin  dom.Quad `json:"margin"`
	Width   int64    `json:"width"`
	Height  int64    `json:"height"`
}

type getBoxModelResult struct {
	Model *BoxModel `json:"model"`
}

// GetBoxModelByBackendID fetches geometry for a backend node id, the id
// kind the accessibility tree hands out. Nodes without layout (display:
// none, detached) come back as a ProtocolError.
func (c *Client) GetBoxModelByBackendID(ctx context.Context, id cdproto.BackendNodeID) (*BoxModel, error) {
	var res getBoxModelResult
	if err := c.Call(ctx, "DOM.getBoxModel", map[string]interface{}{"backendNodeId": id}, &res); err != nil {
		return nil, err
	}
	if res.Model == nil {
		return nil, fmt.Errorf("cdp: node %d has no box model", id)
	}
	return res.Model, nil
}

// GetBoxModelByObjectID is the object-handle variant of the above.
func (c *Client) GetBoxModelByObjectID(ctx context.Context, id runtime.RemoteObjectID) (*BoxModel, error) {
	var res getBoxModelResult
	if err := c.Call(ctx, "DOM.getBoxModel", map[string]interface{}{"objectId": id}, &res); err != nil {
		return nil, err
	}
	if res.Model == nil {
		return nil, fmt.Errorf("cdp: object has no box model")
	}
	return res.Model, nil
}

// ResolveNode turns a backend node id into a live object handle in the
// page's main world.
func (c *Client) ResolveNode(ctx context.Context, id cdproto.BackendNodeID) (runtime.RemoteObjectID, error) {
	var res struct {
		Object *RemoteObject `json:"object"`
	}
	if err := c.Call(ctx, "DOM.resolveNode", map[string]interface{}{"backendNodeId": id}, &res); err != nil {
		return "", err
	}
	if res.Object == nil || res.Object.ObjectID == "" {
		return "", fmt.Errorf("cdp: DOM.resolveNode returned no object handle")
	}
	return res.Object.ObjectID, nil
}

// FocusNode gives a node keyboard focus ahead of text entry.
func (c *Client) FocusNode(ctx context.Context, id cdproto.BackendNodeID) error {
	return c.Call(ctx, "DOM.focus", map[string]interface{}{"backendNodeId": id}, nil)
}
