// File: internal/cdp/input.go
package cdp

import (
	"context"

	"github.com/chromedp/cdproto/input"
)

// MouseEvent carries the Input.dispatchMouseEvent parameters this system
// uses.
type MouseEvent struct {
	Type       input.MouseType   `json:"type"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Button     input.MouseButton `json:"button,omitempty"`
	Buttons    int64             `json:"buttons,omitempty"`
	ClickCount int64             `json:"clickCount,omitempty"`
	DeltaX     float64           `json:"deltaX,omitempty"`
	DeltaY     float64           `json:"deltaY,omitempty"`
	Modifiers  input.Modifier    `json:"modifiers,omitempty"`
}

// DispatchMouseEvent sends one synthetic pointer event.
func (c *Client) DispatchMouseEvent(ctx context.Context, ev MouseEvent) error {
	return c.Call(ctx, "Input.dispatchMouseEvent", ev, nil)
}

// KeyEvent carries the Input.dispatchKeyEvent parameters this system
// uses.
type KeyEvent struct {
	Type                  input.KeyType  `json:"type"`
	Modifiers             input.Modifier `json:"modifiers,omitempty"`
	Text                  string         `json:"text,omitempty"`
	UnmodifiedText        string         `json:"unmodifiedText,omitempty"`
	Key                   string         `json:"key,omitempty"`
	Code                  string         `json:"code,omitempty"`
	WindowsVirtualKeyCode int64          `json:"windowsVirtualKeyCode,omitempty"`
	NativeVirtualKeyCode  int64          `json:"nativeVirtualKeyCode,omitempty"`
}

// DispatchKeyEvent sends one synthetic key event.
func (c *Client) DispatchKeyEvent(ctx context.Context, ev KeyEvent) error {
	return c.Call(ctx, "Input.dispatchKeyEvent", ev, nil)
}

// InsertText commits text into the focused element the way an IME does,
// without per-key events. Last-resort path for text entry.
func (c *Client) InsertText(ctx context.Context, text string) error {
	return c.Call(ctx, "Input.insertText", map[string]interface{}{"text": text}, nil)
}
