// File: internal/cdp/page.go
package cdp

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
)

// Frame identifies one frame in the page's frame tree.
type Frame struct {
	ID   cdproto.FrameID `json:"id"`
	URL  string          `json:"url,omitempty"`
	Name string          `json:"name,omitempty"`
}

// FrameTree mirrors Page.FrameTree.
type FrameTree struct {
	Frame       Frame        `json:"frame"`
	ChildFrames []*FrameTree `json:"childFrames,omitempty"`
}

// Flatten returns the frames in depth-first order, root first, nested
// children included.
func (t *FrameTree) Flatten() []Frame {
	if t == nil {
		return nil
	}
	frames := []Frame{t.Frame}
	for _, child := range t.ChildFrames {
		frames = append(frames, child.Flatten()...)
	}
	return frames
}

// GetFrameTree fetches the page's frame hierarchy.
func (c *Client) GetFrameTree(ctx context.Context) (*FrameTree, error) {
	var res struct {
		FrameTree *FrameTree `json:"frameTree"`
	}
	if err := c.Call(ctx, "Page.getFrameTree", nil, &res); err != nil {
		return nil, err
	}
	if res.FrameTree == nil {
		return nil, fmt.Errorf("cdp: Page.getFrameTree returned no tree")
	}
	return res.FrameTree, nil
}

// CreateIsolatedWorld creates a fresh execution context scoped to one
// frame. The access parameter keeps the protocol's historical spelling.
func (c *Client) CreateIsolatedWorld(ctx context.Context, frameID cdproto.FrameID, worldName string) (runtime.ExecutionContextID, error) {
	params := map[string]interface{}{
		"frameId":             frameID,
		"worldName":           worldName,
		"grantUniveralAccess": true,
	}
	var res struct {
		ExecutionContextID runtime.ExecutionContextID `json:"executionContextId"`
	}
	if err := c.Call(ctx, "Page.createIsolatedWorld", params, &res); err != nil {
		return 0, err
	}
	return res.ExecutionContextID, nil
}

// Navigate drives the page to a URL. It returns once the navigation is
// accepted, not when loading finishes.
func (c *Client) Navigate(ctx context.Context, url string) error {
	var res struct {
		FrameID   cdproto.FrameID `json:"frameId"`
		ErrorText string          `json:"errorText,omitempty"`
	}
	if err := c.Call(ctx, "Page.navigate", map[string]interface{}{"url": url}, &res); err != nil {
		return err
	}
	if res.ErrorText != "" {
		return fmt.Errorf("cdp: navigation failed: %s", res.ErrorText)
	}
	return nil
}

// CaptureScreenshot grabs the current viewport as PNG bytes. Screenshots
// of heavy pages take a while, so the call runs under a generous timeout.
func (c *Client) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var res struct {
		Data string `json:"data"`
	}
	params := map[string]interface{}{"format": "png"}
	if err := c.CallWithTimeout(ctx, "Page.captureScreenshot", params, &res, 30*time.Second); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(res.Data)
}

// EnableDomains switches on the protocol domains the resolution engine
// relies on. Safe to call more than once.
func (c *Client) EnableDomains(ctx context.Context) error {
	for _, method := range []string{"Page.enable", "DOM.enable", "Runtime.enable", "Accessibility.enable"} {
		if err := c.Call(ctx, method, nil, nil); err != nil {
			return fmt.Errorf("cdp: %s: %w", method, err)
		}
	}
	return nil
}
