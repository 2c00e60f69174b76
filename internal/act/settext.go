// File: internal/act/settext.go

package act

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
	"github.com/xkilldash9x/pagepilot/internal/resolve"
)

// setTextFn injects text into form controls and contenteditable hosts.
// React-style frameworks shadow the value property with their own
// descriptor; writing through the native prototype setter and then
// dispatching input/change is what their change tracking listens for.
const setTextFn = `function(text) {
  const tag = this.tagName ? this.tagName.toLowerCase() : '';
  if (tag === 'textarea' || tag === 'input') {
    const proto = tag === 'textarea' ? window.HTMLTextAreaElement.prototype : window.HTMLInputElement.prototype;
    const desc = Object.getOwnPropertyDescriptor(proto, 'value');
    if (desc && desc.set) {
      desc.set.call(this, text);
    } else {
      this.value = text;
    }
    this.dispatchEvent(new Event('input', { bubbles: true }));
    this.dispatchEvent(new Event('change', { bubbles: true }));
    return { ok: true, mode: 'value' };
  }
  if (this.isContentEditable || this.getAttribute('contenteditable') !== null) {
    this.focus();
    this.textContent = text;
    this.dispatchEvent(new Event('input', { bubbles: true }));
    return { ok: true, mode: 'contenteditable' };
  }
  return { ok: false, mode: tag };
}`

type setTextReport struct {
	OK   bool   `json:"ok"`
	Mode string `json:"mode"`
}

// SetText writes text into a resolved input. The native injection path
// goes through the element handle and notifies the page's framework; if
// that fails the element is focused and the text committed through the
// browser's IME insertion, which needs no element cooperation.
func (e *Executor) SetText(ctx context.Context, res *resolve.Resolution, text string) (schemas.ActionOutcome, error) {
	if res == nil {
		return schemas.ActionOutcome{}, errors.New("act: nil resolution")
	}

	outcome, err := e.setTextNative(ctx, res, text)
	if err == nil {
		return outcome, nil
	}
	if cdp.IsTransport(err) {
		return schemas.ActionOutcome{}, err
	}
	if ctx.Err() != nil {
		return schemas.ActionOutcome{}, ctx.Err()
	}
	e.logger.Debug("Native text injection failed; falling back to insertText.", zap.Error(err))
	return e.insertTextFallback(ctx, res, text)
}

func (e *Executor) setTextNative(ctx context.Context, res *resolve.Resolution, text string) (schemas.ActionOutcome, error) {
	objectID, release, err := e.handleFor(ctx, res)
	if err != nil {
		return schemas.ActionOutcome{}, err
	}
	defer release()

	obj, err := e.client.CallFunctionOn(ctx, objectID, setTextFn, text)
	if err != nil {
		return schemas.ActionOutcome{}, err
	}
	var rep setTextReport
	if err := obj.DecodeValue(&rep); err != nil {
		return schemas.ActionOutcome{}, fmt.Errorf("decode injection report: %w", err)
	}
	if !rep.OK {
		return schemas.ActionOutcome{}, fmt.Errorf("element <%s> accepts no text", rep.Mode)
	}
	return schemas.ActionOutcome{
		Success: true,
		Method:  schemas.MethodPropertySetter,
		Detail:  rep.Mode,
	}, nil
}

func (e *Executor) insertTextFallback(ctx context.Context, res *resolve.Resolution, text string) (schemas.ActionOutcome, error) {
	if err := e.focus(ctx, res); err != nil {
		return schemas.ActionOutcome{}, err
	}
	if err := e.client.InsertText(ctx, text); err != nil {
		return schemas.ActionOutcome{}, err
	}
	return schemas.ActionOutcome{Success: true, Method: schemas.MethodInsertText}, nil
}
