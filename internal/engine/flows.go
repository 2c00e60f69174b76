// File: internal/engine/flows.go

// Package engine drives the composite chat flows: locate a control
// through the resolution chain, act on it, verify the outcome, and
// retry under attempt and deadline bounds.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/act"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/resolve"
)

// menuSettle is how long transient menus get to finish animating
// between the more/delete/confirm steps.
const menuSettle = 300 * time.Millisecond

// The flow dependencies are interfaces so tests can script them; the
// concrete chain, executor, submitter and verifier satisfy them.
type resolver interface {
	Resolve(ctx context.Context, client *cdp.Client, spec schemas.TargetSpec) (*resolve.Resolution, error)
}

type actor interface {
	Click(ctx context.Context, res *resolve.Resolution) (schemas.ActionOutcome, error)
	SetText(ctx context.Context, res *resolve.Resolution, text string) (schemas.ActionOutcome, error)
	PressEnter(ctx context.Context, res *resolve.Resolution) (schemas.ActionOutcome, error)
	ReleaseResolution(ctx context.Context, res *resolve.Resolution)
}

type messageSubmitter interface {
	Submit(ctx context.Context, client *cdp.Client, inputRes *resolve.Resolution) (schemas.ActionOutcome, error)
}

type outcomeVerifier interface {
	InputReady(ctx context.Context) (bool, error)
	Gone(ctx context.Context, spec schemas.TargetSpec) (bool, error)
}

// Engine binds one page connection to the resolution chain, the action
// executor and the retry controller.
type Engine struct {
	client *cdp.Client
	chain  resolver
	lex    *resolve.Lexicon
	exec   actor
	submit messageSubmitter
	verify outcomeVerifier
	runner *Runner
	logger *zap.Logger
}

// New wires an engine for one page connection.
func New(client *cdp.Client, cfg config.EngineConfig, lex *resolve.Lexicon, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	chain := resolve.NewChain(logger)
	exec := act.NewExecutor(client, logger)
	return &Engine{
		client: client,
		chain:  chain,
		lex:    lex,
		exec:   exec,
		submit: act.NewSubmitter(chain, lex, exec, logger),
		verify: NewVerifier(client, chain, lex, logger),
		runner: NewRunner(cfg, logger),
		logger: logger.Named("engine"),
	}
}

// SendMessage types the text into the chat input and submits it. The
// run verifies by re-probing the input: a cleared, placeholder-bearing
// input means the page accepted the message.
func (e *Engine) SendMessage(ctx context.Context, text string) (*schemas.RunReport, error) {
	if text == "" {
		return nil, errors.New("engine: empty message")
	}
	task := Task{
		Flow:   schemas.FlowSendMessage,
		Target: truncate(text, 64),
		Attempt: func(ctx context.Context) (*AttemptResult, error) {
			res, err := e.chain.Resolve(ctx, e.client, e.lex.InputSpec())
			if err != nil {
				return nil, fmt.Errorf("resolve input: %w", err)
			}
			defer e.exec.ReleaseResolution(ctx, res)

			if _, err := e.exec.SetText(ctx, res, text); err != nil {
				return nil, fmt.Errorf("set text: %w", err)
			}
			out, err := e.submit.Submit(ctx, e.client, res)
			if err != nil {
				return nil, fmt.Errorf("submit: %w", err)
			}
			return &AttemptResult{Strategy: res.Strategy, Outcome: &out}, nil
		},
		Verify: e.verify.InputReady,
	}
	return e.runner.Run(ctx, task)
}

// NewChat starts a fresh conversation. Verification runs first: when a
// fresh empty input is already present there is nothing to click.
func (e *Engine) NewChat(ctx context.Context) (*schemas.RunReport, error) {
	task := Task{
		Flow:        schemas.FlowNewChat,
		Target:      "new chat",
		VerifyFirst: true,
		Attempt: func(ctx context.Context) (*AttemptResult, error) {
			res, out, err := e.clickAction(ctx, resolve.ActionNewChat, false)
			if err != nil {
				return nil, err
			}
			return &AttemptResult{Strategy: res.Strategy, Outcome: &out}, nil
		},
		Verify: e.verify.InputReady,
	}
	return e.runner.Run(ctx, task)
}

// DeleteConversation removes a conversation through the more → delete →
// confirm sequence. The menu steps resolve with in-page clicking so a
// transient menu cannot close between resolution and activation. With a
// title the run verifies the sidebar entry is gone; without one it
// falls back to the input probe.
func (e *Engine) DeleteConversation(ctx context.Context, title string) (*schemas.RunReport, error) {
	target := title
	if target == "" {
		target = "current conversation"
	}
	entrySpec := schemas.TargetSpec{Labels: []string{title}, Substring: true}

	task := Task{
		Flow:   schemas.FlowDeleteConversation,
		Target: target,
		Attempt: func(ctx context.Context) (*AttemptResult, error) {
			var winner schemas.StrategyName
			var last schemas.ActionOutcome

			if title != "" {
				res, err := e.chain.Resolve(ctx, e.client, entrySpec)
				if err != nil {
					return nil, fmt.Errorf("resolve conversation %q: %w", title, err)
				}
				winner = res.Strategy
				out, err := e.exec.Click(ctx, res)
				e.exec.ReleaseResolution(ctx, res)
				if err != nil {
					return nil, fmt.Errorf("select conversation: %w", err)
				}
				last = out
				if err := settle(ctx, menuSettle); err != nil {
					return nil, err
				}
			}

			for _, step := range []resolve.Action{resolve.ActionMore, resolve.ActionDelete, resolve.ActionConfirm} {
				res, out, err := e.clickAction(ctx, step, true)
				if err != nil {
					return nil, fmt.Errorf("step %s: %w", step, err)
				}
				if winner == schemas.StrategyNone {
					winner = res.Strategy
				}
				last = out
				if err := settle(ctx, menuSettle); err != nil {
					return nil, err
				}
			}
			return &AttemptResult{Strategy: winner, Outcome: &last}, nil
		},
	}
	if title != "" {
		task.Verify = func(ctx context.Context) (bool, error) {
			return e.verify.Gone(ctx, entrySpec)
		}
	} else {
		task.Verify = e.verify.InputReady
	}
	return e.runner.Run(ctx, task)
}

// VerifyReady surfaces the input probe as a flow of its own, retried
// like any other so a still-loading page gets time to settle.
func (e *Engine) VerifyReady(ctx context.Context) (*schemas.RunReport, error) {
	task := Task{
		Flow:   schemas.FlowVerifyReady,
		Target: "chat input",
		Attempt: func(ctx context.Context) (*AttemptResult, error) {
			ok, err := e.verify.InputReady(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errors.New("chat input not ready")
			}
			return &AttemptResult{}, nil
		},
		Verify: e.verify.InputReady,
	}
	return e.runner.Run(ctx, task)
}

// Click resolves an arbitrary labeled control and activates it. No
// verification: the caller knows what the click was for.
func (e *Engine) Click(ctx context.Context, labels []string, substring bool) (*schemas.RunReport, error) {
	if len(labels) == 0 {
		return nil, errors.New("engine: no labels to click")
	}
	spec := schemas.TargetSpec{Labels: labels, Substring: substring}
	task := Task{
		Flow:   schemas.FlowClick,
		Target: spec.Describe(),
		Attempt: func(ctx context.Context) (*AttemptResult, error) {
			res, err := e.chain.Resolve(ctx, e.client, spec)
			if err != nil {
				return nil, err
			}
			defer e.exec.ReleaseResolution(ctx, res)
			out, err := e.exec.Click(ctx, res)
			if err != nil {
				return nil, err
			}
			return &AttemptResult{Strategy: res.Strategy, Outcome: &out}, nil
		},
	}
	return e.runner.Run(ctx, task)
}

// clickAction resolves one lexicon action and activates it. Menu steps
// ask the in-page strategies to click at resolution time.
func (e *Engine) clickAction(ctx context.Context, action resolve.Action, inMenu bool) (*resolve.Resolution, schemas.ActionOutcome, error) {
	spec := e.lex.ButtonSpec(action)
	spec.ClickOnResolve = inMenu
	res, err := e.chain.Resolve(ctx, e.client, spec)
	if err != nil {
		return nil, schemas.ActionOutcome{}, fmt.Errorf("resolve %s: %w", action, err)
	}
	defer e.exec.ReleaseResolution(ctx, res)
	out, err := e.exec.Click(ctx, res)
	if err != nil {
		return nil, schemas.ActionOutcome{}, err
	}
	return res, out, nil
}

func settle(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
