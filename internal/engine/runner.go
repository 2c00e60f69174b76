// File: internal/engine/runner.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// runState tracks one run through its lifecycle.
type runState int

const (
	runIdle runState = iota
	runAttempting
	runSucceeded
	runExhausted
)

func (s runState) String() string {
	switch s {
	case runIdle:
		return "idle"
	case runAttempting:
		return "attempting"
	case runSucceeded:
		return "succeeded"
	case runExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// AttemptResult is what one successful attempt hands back for the report.
type AttemptResult struct {
	Strategy schemas.StrategyName
	Outcome  *schemas.ActionOutcome
}

// Task is one runnable unit: an attempt closure and an optional
// verification probe. Verify must be a pure read; the runner calls it
// before the first attempt (when VerifyFirst is set), after each
// successful attempt, and once more before declaring exhaustion.
type Task struct {
	Flow        schemas.FlowName
	Target      string
	Attempt     func(ctx context.Context) (*AttemptResult, error)
	Verify      func(ctx context.Context) (bool, error)
	VerifyFirst bool
}

// ExhaustedError is the terminal failure: every attempt failed and the
// final verification found the desired state absent.
type ExhaustedError struct {
	Flow     schemas.FlowName
	Target   string
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("%s exhausted after %d attempts on %q", e.Flow, e.Attempts, e.Target)
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Runner retries a task under two independent bounds: the attempt count
// and a wall-clock deadline. A burst of fast failures hits the attempt
// bound; a single slow attempt hits the deadline. Inter-attempt pacing
// goes through a rate limiter so retries cannot hammer the page.
type Runner struct {
	cfg     config.EngineConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRunner builds a runner from the engine configuration.
func NewRunner(cfg config.EngineConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		limiter: rate.NewLimiter(pacing(cfg.RetryInterval), 1),
		logger:  logger.Named("runner"),
	}
}

func pacing(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

// Run drives the task to a terminal state and always returns a report,
// also on failure, so the sinks can record what happened. The error is
// non-nil only for transport loss, cancellation, or exhaustion.
func (r *Runner) Run(ctx context.Context, task Task) (*schemas.RunReport, error) {
	report := &schemas.RunReport{
		RunID:     uuid.NewString(),
		Flow:      task.Flow,
		Target:    task.Target,
		StartedAt: time.Now(),
	}
	defer func() { report.Elapsed = time.Since(report.StartedAt) }()

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Deadline)
	defer cancel()

	state := runIdle
	log := r.logger.With(zap.String("run_id", report.RunID), zap.String("flow", string(task.Flow)))

	if task.VerifyFirst && task.Verify != nil {
		ok, err := task.Verify(runCtx)
		switch {
		case err != nil && cdp.IsTransport(err):
			report.Error = err.Error()
			return report, err
		case err != nil:
			log.Debug("Initial verification errored; attempting anyway.", zap.Error(err))
		case ok:
			state = r.transition(log, state, runSucceeded)
			report.Success = true
			report.Verified = true
			return report, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		if err := r.limiter.Wait(runCtx); err != nil {
			break
		}
		state = r.transition(log, state, runAttempting)
		report.Attempts = attempt

		res, err := task.Attempt(runCtx)
		if err != nil {
			lastErr = err
			if cdp.IsTransport(err) {
				state = r.transition(log, state, runExhausted)
				report.Error = err.Error()
				return report, err
			}
			if runCtx.Err() != nil {
				break
			}
			log.Debug("Attempt failed.", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if res == nil {
			res = &AttemptResult{}
		}
		report.Strategy = res.Strategy
		report.Outcome = res.Outcome

		if task.Verify == nil {
			state = r.transition(log, state, runSucceeded)
			report.Success = true
			return report, nil
		}
		ok, verr := task.Verify(runCtx)
		if verr != nil {
			if cdp.IsTransport(verr) {
				report.Error = verr.Error()
				return report, verr
			}
			// The action itself landed; a broken probe does not undo it.
			log.Warn("Verification errored after action.", zap.Error(verr))
			state = r.transition(log, state, runSucceeded)
			report.Success = true
			return report, nil
		}
		if ok {
			state = r.transition(log, state, runSucceeded)
			report.Success = true
			report.Verified = true
			return report, nil
		}
		lastErr = errors.New("action performed but page state unverified")
		log.Debug("Verification rejected the attempt; retrying.", zap.Int("attempt", attempt))
	}

	// The deadline may already be spent; the final probe gets its own
	// window off the caller's context.
	if task.Verify != nil {
		vctx, vcancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
		ok, verr := task.Verify(vctx)
		vcancel()
		if verr == nil && ok {
			state = r.transition(log, state, runSucceeded)
			report.Success = true
			report.Verified = true
			return report, nil
		}
	}

	if lastErr == nil && runCtx.Err() != nil {
		lastErr = runCtx.Err()
	}
	state = r.transition(log, state, runExhausted)
	exErr := &ExhaustedError{
		Flow:     task.Flow,
		Target:   task.Target,
		Attempts: report.Attempts,
		LastErr:  lastErr,
	}
	report.Error = exErr.Error()
	return report, exErr
}

func (r *Runner) transition(log *zap.Logger, from, to runState) runState {
	if from != to {
		log.Debug("Run state changed.", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	return to
}
