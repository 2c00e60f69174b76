// File: internal/act/executor.go

// Package act performs UI actions against resolved controls: clicking,
// text entry and submission. Every action prefers the element handle and
// degrades to synthetic input events when the handle path fails.
package act

import (
	"context"
	"errors"

	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
	"github.com/xkilldash9x/pagepilot/internal/resolve"
)

// protoClient is the protocol surface the executor needs. *cdp.Client
// satisfies it; tests substitute a recorder.
type protoClient interface {
	ResolveNode(ctx context.Context, id cdproto.BackendNodeID) (runtime.RemoteObjectID, error)
	CallFunctionOn(ctx context.Context, objectID runtime.RemoteObjectID, declaration string, args ...interface{}) (*cdp.RemoteObject, error)
	DispatchMouseEvent(ctx context.Context, ev cdp.MouseEvent) error
	DispatchKeyEvent(ctx context.Context, ev cdp.KeyEvent) error
	InsertText(ctx context.Context, text string) error
	FocusNode(ctx context.Context, id cdproto.BackendNodeID) error
	ReleaseObject(ctx context.Context, objectID runtime.RemoteObjectID) error
}

// clickFn activates the element the way its own handlers expect:
// scrolled into view first, then the native click entry point.
const clickFn = `function() {
  this.scrollIntoView({ block: 'center', inline: 'center' });
  if (typeof this.click === 'function') {
    this.click();
  } else {
    this.dispatchEvent(new MouseEvent('click', { bubbles: true, cancelable: true, view: window }));
  }
  return true;
}`

const focusFn = `function() { this.focus(); return true; }`

// Executor turns resolutions into page effects.
type Executor struct {
	client protoClient
	logger *zap.Logger
}

// NewExecutor binds an executor to one page connection.
func NewExecutor(client *cdp.Client, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{client: client, logger: logger.Named("act")}
}

// Click activates a resolved control. Controls already activated in-page
// during resolution are not clicked twice. Otherwise the native
// invocation through the element handle runs first, and synthetic
// pointer input at the centroid is the fallback; a transport loss aborts
// instead of falling back.
func (e *Executor) Click(ctx context.Context, res *resolve.Resolution) (schemas.ActionOutcome, error) {
	if res == nil {
		return schemas.ActionOutcome{}, errors.New("act: nil resolution")
	}
	if res.ActionPerformed {
		return schemas.ActionOutcome{
			Success: true,
			Method:  schemas.MethodInPage,
			X:       res.X,
			Y:       res.Y,
			Detail:  "activated during resolution",
		}, nil
	}

	outcome, err := e.nativeClick(ctx, res)
	if err == nil {
		return outcome, nil
	}
	if cdp.IsTransport(err) {
		return schemas.ActionOutcome{}, err
	}
	if ctx.Err() != nil {
		return schemas.ActionOutcome{}, ctx.Err()
	}
	e.logger.Debug("Native click failed; falling back to synthetic input.",
		zap.Float64("x", res.X), zap.Float64("y", res.Y), zap.Error(err))
	return e.syntheticClick(ctx, res)
}

func (e *Executor) nativeClick(ctx context.Context, res *resolve.Resolution) (schemas.ActionOutcome, error) {
	objectID, release, err := e.handleFor(ctx, res)
	if err != nil {
		return schemas.ActionOutcome{}, err
	}
	defer release()

	if _, err := e.client.CallFunctionOn(ctx, objectID, clickFn); err != nil {
		return schemas.ActionOutcome{}, err
	}
	return schemas.ActionOutcome{
		Success: true,
		Method:  schemas.MethodNativeInvoke,
		X:       res.X,
		Y:       res.Y,
	}, nil
}

func (e *Executor) syntheticClick(ctx context.Context, res *resolve.Resolution) (schemas.ActionOutcome, error) {
	events := []cdp.MouseEvent{
		{Type: input.MouseMoved, X: res.X, Y: res.Y},
		{Type: input.MousePressed, X: res.X, Y: res.Y, Button: input.Left, Buttons: 1, ClickCount: 1},
		{Type: input.MouseReleased, X: res.X, Y: res.Y, Button: input.Left, ClickCount: 1},
	}
	for _, ev := range events {
		if err := e.client.DispatchMouseEvent(ctx, ev); err != nil {
			return schemas.ActionOutcome{}, err
		}
	}
	return schemas.ActionOutcome{
		Success: true,
		Method:  schemas.MethodSyntheticPointer,
		X:       res.X,
		Y:       res.Y,
	}, nil
}

// handleFor returns a live object id for the resolution, resolving the
// backend node when the strategies produced no handle. The release func
// frees only handles created here; resolution-owned handles belong to
// the caller.
func (e *Executor) handleFor(ctx context.Context, res *resolve.Resolution) (runtime.RemoteObjectID, func(), error) {
	if res.ObjectID != "" {
		return res.ObjectID, func() {}, nil
	}
	if res.BackendNodeID == 0 {
		return "", nil, errors.New("resolution carries no element reference")
	}
	id, err := e.client.ResolveNode(ctx, res.BackendNodeID)
	if err != nil {
		return "", nil, err
	}
	return id, func() { _ = e.client.ReleaseObject(ctx, id) }, nil
}

// focus gives the resolved element keyboard focus, by handle when one
// exists, by backend node otherwise.
func (e *Executor) focus(ctx context.Context, res *resolve.Resolution) error {
	if res.ObjectID != "" {
		_, err := e.client.CallFunctionOn(ctx, res.ObjectID, focusFn)
		return err
	}
	if res.BackendNodeID != 0 {
		return e.client.FocusNode(ctx, res.BackendNodeID)
	}
	return errors.New("resolution carries no element reference")
}

// ReleaseResolution frees the strategy-owned handle, if any. Safe on nil
// and after connection loss.
func (e *Executor) ReleaseResolution(ctx context.Context, res *resolve.Resolution) {
	if res == nil || res.ObjectID == "" {
		return
	}
	_ = e.client.ReleaseObject(ctx, res.ObjectID)
}
