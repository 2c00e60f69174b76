// File: internal/resolve/strategy_axscan.go

package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
)

// AXScan downloads the whole accessibility tree and filters it client
// side. Fallback for pages where direct name queries come back empty,
// usually because the name is assembled from child text rather than an
// aria-label.
type AXScan struct{}

func (s *AXScan) Name() schemas.StrategyName { return schemas.StrategyAXScan }

func (s *AXScan) Attempt(ctx context.Context, client *cdp.Client, spec schemas.TargetSpec) (*Resolution, error) {
	nodes, err := client.GetFullAXTree(ctx)
	if err != nil {
		return nil, err
	}

	var matches []*cdp.AXNode
	for _, n := range nodes {
		if n.Ignored || n.BackendDOMNodeID == 0 {
			continue
		}
		role := n.RoleString()
		// Inline text boxes duplicate their parent's name at sub-element
		// granularity and are never the control itself.
		if role == "InlineTextBox" {
			continue
		}
		if spec.Role != "" && !strings.EqualFold(role, spec.Role) {
			continue
		}
		if len(spec.Labels) > 0 && !matchesAnyLabel(n.NameString(), spec.Labels, spec.Substring) {
			continue
		}
		matches = append(matches, n)
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
		return nil, fmt.Errorf("%d tree matches, none visible: %w", len(matches), ErrNotFound)
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
