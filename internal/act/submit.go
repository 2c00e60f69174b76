// File: internal/act/submit.go

package act

import (
	"context"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
	"github.com/xkilldash9x/pagepilot/internal/resolve"
)

// Submitter triggers message submission. The localized send button is
// preferred because many chat UIs debounce or ignore a bare Enter; the
// synthetic Enter pair is the fallback when no button resolves.
type Submitter struct {
	chain  *resolve.Chain
	lex    *resolve.Lexicon
	exec   *Executor
	logger *zap.Logger
}

// NewSubmitter wires submission onto an executor and a resolution chain.
func NewSubmitter(chain *resolve.Chain, lex *resolve.Lexicon, exec *Executor, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{chain: chain, lex: lex, exec: exec, logger: logger.Named("submit")}
}

// Submit sends the composed message: resolve and click the send button,
// or press Enter on the input control when the button cannot be found.
// A transport loss aborts without the fallback.
func (s *Submitter) Submit(ctx context.Context, client *cdp.Client, inputRes *resolve.Resolution) (schemas.ActionOutcome, error) {
	res, err := s.chain.Resolve(ctx, client, s.lex.ButtonSpec(resolve.ActionSend))
	if err == nil {
		defer s.exec.ReleaseResolution(ctx, res)
		return s.exec.Click(ctx, res)
	}
	if cdp.IsTransport(err) {
		return schemas.ActionOutcome{}, err
	}
	if ctx.Err() != nil {
		return schemas.ActionOutcome{}, ctx.Err()
	}
	s.logger.Debug("No send button resolved; pressing Enter.", zap.Error(err))
	return s.exec.PressEnter(ctx, inputRes)
}

// PressEnter sends a synthetic Enter key pair to the page, focusing the
// given control first when one is known. The key data comes from the
// shared DOM key table so the pair matches what a physical keyboard
// produces.
func (e *Executor) PressEnter(ctx context.Context, res *resolve.Resolution) (schemas.ActionOutcome, error) {
	if res != nil {
		if err := e.focus(ctx, res); err != nil {
			if cdp.IsTransport(err) {
				return schemas.ActionOutcome{}, err
			}
			e.logger.Debug("Focus before Enter failed; pressing anyway.", zap.Error(err))
		}
	}

	enter := kb.Keys['\r']
	down := cdp.KeyEvent{
		Type:                  input.KeyDown,
		Text:                  enter.Text,
		UnmodifiedText:        enter.Unmodified,
		Key:                   enter.Key,
		Code:                  enter.Code,
		WindowsVirtualKeyCode: enter.Windows,
		NativeVirtualKeyCode:  enter.Native,
	}
	if err := e.client.DispatchKeyEvent(ctx, down); err != nil {
		return schemas.ActionOutcome{}, err
	}
	up := down
	up.Type = input.KeyUp
	up.Text = ""
	up.UnmodifiedText = ""
	if err := e.client.DispatchKeyEvent(ctx, up); err != nil {
		return schemas.ActionOutcome{}, err
	}
	return schemas.ActionOutcome{
		Success: true,
		Method:  schemas.MethodSyntheticKey,
		Detail:  "Enter",
	}, nil
}
