// File: internal/resolve/strategy_framescan.go

package resolve

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
)

// isolatedWorldName labels the per-frame worlds this tool creates so
// they are recognizable in devtools.
const isolatedWorldName = "pagepilot_scan"

// FrameScan walks every frame in the page, creates an isolated world
// per frame, and reruns the find script scoped there. Isolated worlds
// see the frame's DOM but not its JavaScript, so page-level prototype
// tampering cannot hide elements from the scan. Broadest and most
// expensive, so it closes the chain.
type FrameScan struct{}

func (s *FrameScan) Name() schemas.StrategyName { return schemas.StrategyFrameScan }

func (s *FrameScan) Attempt(ctx context.Context, client *cdp.Client, spec schemas.TargetSpec) (*Resolution, error) {
	tree, err := client.GetFrameTree(ctx)
	if err != nil {
		return nil, err
	}
	frames := tree.Flatten()
	if len(frames) == 0 {
		return nil, ErrNotFound
	}
	expr, err := buildFindExpression(spec)
	if err != nil {
		return nil, err
	}

	// Frames are visited in tree order, main frame first, so a hit in
	// the top document still wins over identical controls in embeds.
	var lastErr error
	for _, frame := range frames {
		res, err := s.scanFrame(ctx, client, frame, expr, spec)
		if err != nil {
			if cdp.IsTransport(err) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("frame %s: %w", frame.ID, err)
			continue
		}
		return res, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNotFound
}

func (s *FrameScan) scanFrame(ctx context.Context, client *cdp.Client, frame cdp.Frame, expr string, spec schemas.TargetSpec) (*Resolution, error) {
	ctxID, err := client.CreateIsolatedWorld(ctx, frame.ID, isolatedWorldName)
	if err != nil {
		return nil, err
	}
	handle, err := client.EvaluateHandleInContext(ctx, ctxID, expr)
	if err != nil {
		return nil, err
	}
	return describeHandle(ctx, client, handle, spec, &Resolution{
		Strategy:  s.Name(),
		FrameID:   frame.ID,
		ContextID: ctxID,
	})
}
