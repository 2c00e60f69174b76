// File: internal/cdp/ax.go
package cdp

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/accessibility"
	cdproto "github.com/chromedp/cdproto/cdp"
)

// AXValue is a lenient mirror of Accessibility.AXValue. The protocol's
// role and source enumerations gain values faster than generated
// bindings track them; decoding loosely keeps an unknown enum from
// failing the whole tree.
type AXValue struct {
	Type  string          `json:"type,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Str returns the string form of the value, or "" when it is absent or
// not a string.
func (v *AXValue) Str() string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := jsonx.Unmarshal(v.Value, &s); err != nil {
		return ""
	}
	return s
}

// AXProperty is one name/value property of an accessibility node.
type AXProperty struct {
	Name  string   `json:"name,omitempty"`
	Value *AXValue `json:"value,omitempty"`
}

// AXNode is a lenient mirror of Accessibility.AXNode.
type AXNode struct {
	NodeID           accessibility.NodeID   `json:"nodeId"`
	Ignored          bool                   `json:"ignored,omitempty"`
	Role             *AXValue               `json:"role,omitempty"`
	Name             *AXValue               `json:"name,omitempty"`
	Description      *AXValue               `json:"description,omitempty"`
	Properties       []AXProperty           `json:"properties,omitempty"`
	ParentID         accessibility.NodeID   `json:"parentId,omitempty"`
	ChildIDs         []accessibility.NodeID `json:"childIds,omitempty"`
	BackendDOMNodeID cdproto.BackendNodeID  `json:"backendDOMNodeId,omitempty"`
}

// RoleString returns the node's role, or "".
func (n *AXNode) RoleString() string { return n.Role.Str() }

// NameString returns the node's accessible name, or "".
func (n *AXNode) NameString() string { return n.Name.Str() }

type axNodesResult struct {
	Nodes []*AXNode `json:"nodes"`
}

// QueryAXTree asks the accessibility subsystem to filter nodes by
// accessible name (and role, when non-empty) directly. Cheapest and most
// semantically precise when the backend supports it.
func (c *Client) QueryAXTree(ctx context.Context, accessibleName, role string) ([]*AXNode, error) {
	params := map[string]interface{}{"accessibleName": accessibleName}
	if role != "" {
		params["role"] = role
	}
	var res axNodesResult
	if err := c.Call(ctx, "Accessibility.queryAXTree", params, &res); err != nil {
		return nil, err
	}
	return res.Nodes, nil
}

// GetFullAXTree downloads the entire accessibility tree for client-side
// filtering, the fallback when direct querying is unavailable or empty.
func (c *Client) GetFullAXTree(ctx context.Context) ([]*AXNode, error) {
	var res axNodesResult
	if err := c.Call(ctx, "Accessibility.getFullAXTree", nil, &res); err != nil {
		return nil, err
	}
	return res.Nodes, nil
}
