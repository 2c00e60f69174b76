// File: internal/resolve/strategy_axquery.go

package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
)

// AXQuery asks the accessibility subsystem to filter by accessible name
// directly. Cheapest and most precise, so it leads the chain.
type AXQuery struct{}

func (s *AXQuery) Name() schemas.StrategyName { return schemas.StrategyAXQuery }

// Attempt queries each label in priority order and keeps the hits of the
// first label that returns any. Ties between hits go to the largest
// visible box.
func (s *AXQuery) Attempt(ctx context.Context, client *cdp.Client, spec schemas.TargetSpec) (*Resolution, error) {
	if len(spec.Labels) == 0 {
		return nil, errors.New("no labels to query")
	}

	var matches []*cdp.AXNode
	for _, label := range spec.Labels {
		nodes, err := client.QueryAXTree(ctx, label, spec.Role)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if n.Ignored || n.BackendDOMNodeID == 0 {
				continue
			}
			matches = append(matches, n)
		}
		if len(matches) > 0 {
			break
		}
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}

	candidates, err := measureAXNodes(ctx, client, matches)
	if err != nil {
		return nil, err
	}
	best, box := PickLargestVisible(candidates)
	if best == nil {
		return nil, fmt.Errorf("%d accessibility matches, none visible: %w", len(matches), ErrNotFound)
	}
	return &Resolution{
		Strategy:      s.Name(),
		BackendNodeID: best.BackendNodeID,
		X:             box.CenterX,
		Y:             box.CenterY,
		Width:         box.Width,
		Height:        box.Height,
		Area:          box.Area,
		Detail:        best.Detail,
	}, nil
}

// measureAXNodes attaches border-box quads to accessibility matches.
// Nodes without a box model (display:none, detached) are skipped; a
// transport loss aborts the whole measurement.
func measureAXNodes(ctx context.Context, client *cdp.Client, nodes []*cdp.AXNode) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(nodes))
	for _, n := range nodes {
		box, err := client.GetBoxModelByBackendID(ctx, n.BackendDOMNodeID)
		if err != nil {
			if cdp.IsTransport(err) {
				return nil, err
			}
			continue
		}
		detail := fmt.Sprintf("role=%s name=%q", n.RoleString(), n.NameString())
		candidates = append(candidates, Candidate{
			BackendNodeID: n.BackendDOMNodeID,
			Quad:          box.Border,
			Detail:        detail,
		})
	}
	return candidates, nil
}

// matchesAnyLabel applies the scan matching rules: trimmed
// case-insensitive equality always, containment only when the spec
// allows substring matches.
func matchesAnyLabel(text string, labels []string, substring bool) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, l := range labels {
		if strings.EqualFold(trimmed, l) {
			return true
		}
	}
	if substring {
		for _, l := range labels {
			if l != "" && strings.Contains(trimmed, l) {
				return true
			}
		}
	}
	return false
}
