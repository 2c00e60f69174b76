// File: internal/resolve/strategy_domscript.go

package resolve

import (
	"context"
	"fmt"
	"strconv"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
)

// findScript scans the document for the described control and returns
// the winning element, or null. Matching is exact-first on normalized
// text, aria-label and title, then substring when permitted; non
// interactive hits climb to their nearest interactive ancestor; the
// largest visible candidate wins, earliest on ties.
const findScript = `(function(tags, labels, allowSubstring) {
  const interactiveSel = 'button, a, [role="button"], [role="link"], [role="menuitem"], [role="tab"], input, textarea, select, summary, [contenteditable="true"], [contenteditable=""], [onclick]';
  const norm = function(t) { return (t || '').replace(/\s+/g, ' ').trim(); };
  const rectOf = function(el) {
    const r = el.getBoundingClientRect();
    if (r.width < 1 || r.height < 1) return null;
    const s = window.getComputedStyle(el);
    if (s.display === 'none' || s.visibility === 'hidden' || s.opacity === '0') return null;
    return r;
  };
  const seen = new Set();
  const picked = [];
  const consider = function(el) {
    let target = el;
    if (!target.matches(interactiveSel)) {
      const anc = target.closest(interactiveSel);
      if (anc) target = anc;
    }
    if (seen.has(target)) return;
    seen.add(target);
    const r = rectOf(target);
    if (!r) return;
    picked.push({ el: target, area: r.width * r.height });
  };
  const lower = labels.map(function(l) { return l.toLowerCase(); });
  const els = document.querySelectorAll(tags.join(','));
  if (labels.length === 0) {
    for (const el of els) consider(el);
  } else {
    for (const el of els) {
      const text = norm(el.textContent).toLowerCase();
      const aria = norm(el.getAttribute ? el.getAttribute('aria-label') : '').toLowerCase();
      const title = norm(el.getAttribute ? el.getAttribute('title') : '').toLowerCase();
      if (lower.some(function(l) { return l === text || l === aria || l === title; })) consider(el);
    }
    if (picked.length === 0 && allowSubstring) {
      for (const el of els) {
        const text = norm(el.textContent).toLowerCase();
        if (lower.some(function(l) { return l !== '' && text.indexOf(l) !== -1; })) consider(el);
      }
    }
  }
  if (picked.length === 0) return null;
  let best = picked[0];
  for (const c of picked) { if (c.area > best.area) best = c; }
  return best.el;
})(%s, %s, %s)`

// scanReportFn runs against the found element to describe it and
// optionally activate it in-page.
const scanReportFn = `function(doClick) {
  const norm = function(t) { return (t || '').replace(/\s+/g, ' ').trim(); };
  let clicked = false;
  if (doClick) {
    this.scrollIntoView({ block: 'center', inline: 'center' });
    this.click();
    clicked = true;
  }
  return {
    tag: this.tagName ? this.tagName.toLowerCase() : '',
    text: norm(this.textContent).slice(0, 80),
    clicked: clicked
  };
}`

var defaultScanTags = []string{
	"button", "a", `[role="button"]`, "div", "span", "input", "textarea", "summary",
}

type scanReport struct {
	Tag     string `json:"tag"`
	Text    string `json:"text"`
	Clicked bool   `json:"clicked"`
}

// buildFindExpression embeds the spec into findScript. Arguments are
// JSON-encoded so label text can never escape the script literal.
func buildFindExpression(spec schemas.TargetSpec) (string, error) {
	tags := spec.Tags
	if len(tags) == 0 {
		tags = defaultScanTags
	}
	tagsJSON, err := jsonx.MarshalToString(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	labels := spec.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := jsonx.MarshalToString(labels)
	if err != nil {
		return "", fmt.Errorf("encode labels: %w", err)
	}
	return fmt.Sprintf(findScript, tagsJSON, labelsJSON, strconv.FormatBool(spec.Substring)), nil
}

// DOMScript injects the scan into the page's main world. Unlike the
// accessibility strategies it sees framework-rendered controls that
// never made it into the AX tree, and it can activate the control while
// still inside the page.
type DOMScript struct{}

func (s *DOMScript) Name() schemas.StrategyName { return schemas.StrategyDOMScript }

func (s *DOMScript) Attempt(ctx context.Context, client *cdp.Client, spec schemas.TargetSpec) (*Resolution, error) {
	expr, err := buildFindExpression(spec)
	if err != nil {
		return nil, err
	}
	handle, err := client.EvaluateHandle(ctx, expr)
	if err != nil {
		return nil, err
	}
	return describeHandle(ctx, client, handle, spec, &Resolution{Strategy: s.Name()})
}

// describeHandle turns a find-script result into a full resolution:
// geometry from the box model (root-document coordinates, correct even
// inside frames), identity and optional in-page activation from the
// report call. The handle stays live on success and passes to the
// caller; every failure path releases it.
func describeHandle(ctx context.Context, client *cdp.Client, handle *cdp.RemoteObject, spec schemas.TargetSpec, res *Resolution) (*Resolution, error) {
	if handle == nil || handle.ObjectID == "" {
		return nil, ErrNotFound
	}
	release := func() { _ = client.ReleaseObject(ctx, handle.ObjectID) }

	bm, err := client.GetBoxModelByObjectID(ctx, handle.ObjectID)
	if err != nil {
		release()
		return nil, err
	}
	box, ok := BoxFromQuad(bm.Border)
	if !ok || !box.Visible() {
		release()
		return nil, fmt.Errorf("match lost visibility after selection: %w", ErrNotFound)
	}

	obj, err := client.CallFunctionOn(ctx, handle.ObjectID, scanReportFn, spec.ClickOnResolve)
	if err != nil {
		release()
		return nil, err
	}
	var rep scanReport
	if err := obj.DecodeValue(&rep); err != nil {
		release()
		return nil, fmt.Errorf("decode scan report: %w", err)
	}

	res.ObjectID = handle.ObjectID
	res.X = box.CenterX
	res.Y = box.CenterY
	res.Width = box.Width
	res.Height = box.Height
	res.Area = box.Area
	res.ActionPerformed = rep.Clicked
	res.Detail = fmt.Sprintf("<%s> %q", rep.Tag, rep.Text)
	return res, nil
}
