// File: internal/engine/verifier.go
package engine

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
	"github.com/xkilldash9x/pagepilot/internal/resolve"
)

// inputProbeScript reports every visible editable control on the page
// without touching any of them. The verifier stays read-only so it can
// run before, between and after attempts with the same meaning.
const inputProbeScript = `(() => {
  const sels = ['textarea', '[contenteditable="true"]', '[contenteditable=""]', 'input[type="text"]'];
  const seen = new Set();
  const out = [];
  for (const sel of sels) {
    for (const el of document.querySelectorAll(sel)) {
      if (seen.has(el)) continue;
      seen.add(el);
      const r = el.getBoundingClientRect();
      if (r.width < 1 || r.height < 1) continue;
      const st = window.getComputedStyle(el);
      if (st.display === 'none' || st.visibility === 'hidden') continue;
      const value = el.value !== undefined ? el.value : el.textContent;
      out.push({
        tag: el.tagName.toLowerCase(),
        value: (value || '').trim().slice(0, 120),
        placeholder: el.getAttribute('placeholder') || el.getAttribute('aria-label') || el.getAttribute('data-placeholder') || '',
        disabled: !!el.disabled
      });
    }
  }
  return out;
})()`

type inputProbe struct {
	Tag         string `json:"tag"`
	Value       string `json:"value"`
	Placeholder string `json:"placeholder"`
	Disabled    bool   `json:"disabled"`
}

// evaluator is the protocol slice the verifier needs. *cdp.Client
// satisfies it; tests substitute a recorder.
type evaluator interface {
	Evaluate(ctx context.Context, expression string) (*cdp.RemoteObject, error)
	ReleaseObject(ctx context.Context, objectID runtime.RemoteObjectID) error
}

// Verifier answers whether the page already holds a desired end state.
// Both probes are pure reads: two consecutive calls with no intervening
// action agree.
type Verifier struct {
	client *cdp.Client
	eval   evaluator
	chain  *resolve.Chain
	lex    *resolve.Lexicon
	logger *zap.Logger
}

// NewVerifier builds a verifier over one page connection.
func NewVerifier(client *cdp.Client, chain *resolve.Chain, lex *resolve.Lexicon, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		client: client,
		eval:   client,
		chain:  chain,
		lex:    lex,
		logger: logger.Named("verify"),
	}
}

// InputReady reports whether an empty, enabled chat input is present.
// A control whose placeholder or aria-label matches the lexicon's
// placeholder patterns settles it; a control that declares no
// placeholder at all counts structurally. Controls that declare a
// placeholder matching nothing are assumed to belong to some other
// widget (search boxes, rename fields).
func (v *Verifier) InputReady(ctx context.Context) (bool, error) {
	obj, err := v.eval.Evaluate(ctx, inputProbeScript)
	if err != nil {
		return false, fmt.Errorf("input probe: %w", err)
	}
	var probes []inputProbe
	if err := obj.DecodeValue(&probes); err != nil {
		return false, fmt.Errorf("decode input probe: %w", err)
	}

	structural := false
	for _, p := range probes {
		if p.Disabled || p.Value != "" {
			continue
		}
		if p.Placeholder == "" {
			structural = true
			continue
		}
		if v.lex.MatchesPlaceholder(p.Placeholder) {
			v.logger.Debug("Chat input verified by placeholder.",
				zap.String("tag", p.Tag), zap.String("placeholder", p.Placeholder))
			return true, nil
		}
	}
	if structural {
		v.logger.Debug("Chat input verified structurally.", zap.Int("editables", len(probes)))
		return true, nil
	}
	v.logger.Debug("No ready chat input found.", zap.Int("editables", len(probes)))
	return false, nil
}

// Gone reports whether nothing on the page matches the spec anymore.
// Used after deletions. Resolution failures of any kind mean gone;
// transport loss and cancellation propagate.
func (v *Verifier) Gone(ctx context.Context, spec schemas.TargetSpec) (bool, error) {
	spec.ClickOnResolve = false
	res, err := v.chain.Resolve(ctx, v.client, spec)
	if err == nil {
		if res.ObjectID != "" {
			_ = v.eval.ReleaseObject(ctx, res.ObjectID)
		}
		v.logger.Debug("Target still present.",
			zap.String("target", spec.Describe()), zap.String("strategy", string(res.Strategy)))
		return false, nil
	}
	if cdp.IsTransport(err) {
		return false, err
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return true, nil
}
