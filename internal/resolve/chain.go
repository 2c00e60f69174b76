// File: internal/resolve/chain.go

// Package resolve locates semantically-described UI controls in a live
// page. An ordered chain of independent strategies is tried until one
// produces a usable candidate; multiple matches are disambiguated by
// visible area.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
)

var jsonx = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound marks a strategy that ran cleanly and matched nothing.
var ErrNotFound = errors.New("no matching element")

// Resolution is the outcome of one successful strategy attempt. Handles
// are scoped to the current attempt and must not be persisted.
type Resolution struct {
	Strategy schemas.StrategyName

	// ObjectID is a live handle to the element, set by the script-based
	// strategies. Valid in any frame's world.
	ObjectID runtime.RemoteObjectID
	// BackendNodeID identifies the element for DOM-domain calls, set by
	// the accessibility strategies.
	BackendNodeID cdproto.BackendNodeID

	// Centroid and extent in root-document coordinates.
	X, Y          float64
	Width, Height float64
	Area          float64

	// FrameID and ContextID are set when the element lives inside a
	// frame's isolated world.
	FrameID   cdproto.FrameID
	ContextID runtime.ExecutionContextID

	// ActionPerformed reports that the strategy already activated the
	// control in-page; the executor must not click again.
	ActionPerformed bool

	Detail string
}

// UnresolvedError reports that every strategy ran during one attempt and
// none produced a usable candidate.
type UnresolvedError struct {
	Target   string
	Failures []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("could not resolve %q: %s", e.Target, strings.Join(e.Failures, "; "))
}

// Strategy is one self-contained way of locating a target control.
// Implementations hold no cross-call state.
type Strategy interface {
	Name() schemas.StrategyName
	Attempt(ctx context.Context, client *cdp.Client, spec schemas.TargetSpec) (*Resolution, error)
}

// DefaultStrategies returns the standard priority order: direct
// accessibility query, full accessibility scan, in-page script, per-frame
// isolated script. Earlier entries are cheaper and less likely to
// produce false positives.
func DefaultStrategies() []Strategy {
	return []Strategy{&AXQuery{}, &AXScan{}, &DOMScript{}, &FrameScan{}}
}

// Chain tries strategies in order and keeps the first success.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain builds a chain; with no explicit strategies the default order
// is used.
func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Chain{strategies: strategies, logger: logger.Named("resolve")}
}

// Resolve runs the chain once. Each strategy runs at most once; the
// chain advances on any failure except a transport loss, which aborts
// the attempt immediately since no later strategy can succeed without a
// connection. The error is *UnresolvedError when every strategy failed.
func (c *Chain) Resolve(ctx context.Context, client *cdp.Client, spec schemas.TargetSpec) (*Resolution, error) {
	var failures []string
	for _, s := range c.strategies {
		res, err := s.Attempt(ctx, client, spec)
		if err == nil && res != nil {
			c.logger.Debug("Strategy succeeded.",
				zap.String("strategy", string(s.Name())),
				zap.String("target", spec.Describe()),
				zap.Float64("area", res.Area),
				zap.String("detail", res.Detail))
			return res, nil
		}
		if err == nil {
			err = ErrNotFound
		}
		if cdp.IsTransport(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		failures = append(failures, fmt.Sprintf("%s: %v", s.Name(), err))
		c.logger.Debug("Strategy failed; advancing.",
			zap.String("strategy", string(s.Name())), zap.Error(err))
	}
	return nil, &UnresolvedError{Target: spec.Describe(), Failures: failures}
}
