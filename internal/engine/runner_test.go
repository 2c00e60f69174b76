// File: internal/engine/runner_test.go
package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		Attempts:      3,
		Deadline:      5 * time.Second,
		CallTimeout:   time.Second,
		RetryInterval: 0,
	}
}

func TestRunnerBounds(t *testing.T) {
	ctx := context.Background()

	t.Run("should stop at the attempt bound", func(t *testing.T) {
		r := NewRunner(fastEngineConfig(), zaptest.NewLogger(t))
		calls := 0
		report, err := r.Run(ctx, Task{
			Flow:   schemas.FlowClick,
			Target: "Login",
			Attempt: func(context.Context) (*AttemptResult, error) {
				calls++
				return nil, errors.New("nothing matched")
			},
		})

		var exErr *ExhaustedError
		require.ErrorAs(t, err, &exErr)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 3, report.Attempts)
		assert.Equal(t, 3, exErr.Attempts)
		assert.False(t, report.Success)
		assert.Contains(t, report.Error, "exhausted")
	})

	t.Run("should stop at the deadline before the attempt bound", func(t *testing.T) {
		cfg := fastEngineConfig()
		cfg.Attempts = 100
		cfg.Deadline = 80 * time.Millisecond
		r := NewRunner(cfg, zaptest.NewLogger(t))

		calls := 0
		start := time.Now()
		_, err := r.Run(ctx, Task{
			Flow:   schemas.FlowClick,
			Target: "Login",
			Attempt: func(attemptCtx context.Context) (*AttemptResult, error) {
				calls++
				select {
				case <-time.After(30 * time.Millisecond):
					return nil, errors.New("slow failure")
				case <-attemptCtx.Done():
					return nil, attemptCtx.Err()
				}
			},
		})

		var exErr *ExhaustedError
		require.ErrorAs(t, err, &exErr)
		assert.Less(t, calls, 100)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("should pace retries through the limiter", func(t *testing.T) {
		cfg := fastEngineConfig()
		cfg.RetryInterval = 50 * time.Millisecond
		r := NewRunner(cfg, zaptest.NewLogger(t))

		start := time.Now()
		_, err := r.Run(ctx, Task{
			Flow:   schemas.FlowClick,
			Target: "Login",
			Attempt: func(context.Context) (*AttemptResult, error) {
				return nil, errors.New("nothing matched")
			},
		})

		require.Error(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	})
}

func TestRunnerVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("should short-circuit when the end state already holds", func(t *testing.T) {
		r := NewRunner(fastEngineConfig(), zaptest.NewLogger(t))
		attempts := 0
		report, err := r.Run(ctx, Task{
			Flow:        schemas.FlowNewChat,
			Target:      "new chat",
			VerifyFirst: true,
			Attempt: func(context.Context) (*AttemptResult, error) {
				attempts++
				return &AttemptResult{}, nil
			},
			Verify: func(context.Context) (bool, error) { return true, nil },
		})

		require.NoError(t, err)
		assert.Zero(t, attempts)
		assert.Zero(t, report.Attempts)
		assert.True(t, report.Success)
		assert.True(t, report.Verified)
	})

	t.Run("should verify after a successful attempt", func(t *testing.T) {
		r := NewRunner(fastEngineConfig(), zaptest.NewLogger(t))
		verifies := 0
		report, err := r.Run(ctx, Task{
			Flow:   schemas.FlowSendMessage,
			Target: "hello",
			Attempt: func(context.Context) (*AttemptResult, error) {
				return &AttemptResult{
					Strategy: schemas.StrategyDOMScript,
					Outcome:  &schemas.ActionOutcome{Success: true, Method: schemas.MethodInPage},
				}, nil
			},
			Verify: func(context.Context) (bool, error) { verifies++; return true, nil },
		})

		require.NoError(t, err)
		assert.Equal(t, 1, verifies)
		assert.Equal(t, 1, report.Attempts)
		assert.True(t, report.Verified)
		assert.Equal(t, schemas.StrategyDOMScript, report.Strategy)
		require.NotNil(t, report.Outcome)
		assert.Equal(t, schemas.MethodInPage, report.Outcome.Method)
	})

	t.Run("should retry when verification rejects the action", func(t *testing.T) {
		r := NewRunner(fastEngineConfig(), zaptest.NewLogger(t))
		verifies := 0
		report, err := r.Run(ctx, Task{
			Flow:   schemas.FlowSendMessage,
			Target: "hello",
			Attempt: func(context.Context) (*AttemptResult, error) {
				return &AttemptResult{}, nil
			},
			Verify: func(context.Context) (bool, error) {
				verifies++
				return verifies > 1, nil
			},
		})

		require.NoError(t, err)
		assert.Equal(t, 2, report.Attempts)
		assert.True(t, report.Success)
		assert.True(t, report.Verified)
	})

	t.Run("should pass on the final verification after failed attempts", func(t *testing.T) {
		r := NewRunner(fastEngineConfig(), zaptest.NewLogger(t))
		verifies := 0
		report, err := r.Run(ctx, Task{
			Flow:   schemas.FlowNewChat,
			Target: "new chat",
			Attempt: func(context.Context) (*AttemptResult, error) {
				return nil, errors.New("nothing matched")
			},
			Verify: func(context.Context) (bool, error) { verifies++; return true, nil },
		})

		require.NoError(t, err)
		assert.Equal(t, 1, verifies, "verify runs once, after exhaustion")
		assert.True(t, report.Success)
		assert.True(t, report.Verified)
		assert.Equal(t, 3, report.Attempts)
	})

	t.Run("should trust the action when the probe itself errors", func(t *testing.T) {
		r := NewRunner(fastEngineConfig(), zaptest.NewLogger(t))
		report, err := r.Run(ctx, Task{
			Flow:   schemas.FlowSendMessage,
			Target: "hello",
			Attempt: func(context.Context) (*AttemptResult, error) {
				return &AttemptResult{}, nil
			},
			Verify: func(context.Context) (bool, error) {
				return false, errors.New("probe script rejected")
			},
		})

		require.NoError(t, err)
		assert.True(t, report.Success)
		assert.False(t, report.Verified)
	})
}

func TestRunnerAborts(t *testing.T) {
	ctx := context.Background()

	t.Run("should abort on transport loss without retrying", func(t *testing.T) {
		r := NewRunner(fastEngineConfig(), zaptest.NewLogger(t))
		calls := 0
		report, err := r.Run(ctx, Task{
			Flow:   schemas.FlowClick,
			Target: "Login",
			Attempt: func(context.Context) (*AttemptResult, error) {
				calls++
				if calls == 2 {
					return nil, &cdp.TransportError{Op: "read", Err: errors.New("gone")}
				}
				return nil, errors.New("nothing matched")
			},
		})

		require.Error(t, err)
		assert.True(t, cdp.IsTransport(err))
		assert.Equal(t, 2, calls)
		assert.NotEmpty(t, report.Error)
	})

	t.Run("should stop when the caller cancels", func(t *testing.T) {
		r := NewRunner(fastEngineConfig(), zaptest.NewLogger(t))
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := r.Run(canceled, Task{
			Flow:   schemas.FlowClick,
			Target: "Login",
			Attempt: func(attemptCtx context.Context) (*AttemptResult, error) {
				return nil, attemptCtx.Err()
			},
		})

		var exErr *ExhaustedError
		require.ErrorAs(t, err, &exErr)
		assert.ErrorIs(t, exErr.LastErr, context.Canceled)
	})
}

func TestRunnerReport(t *testing.T) {
	r := NewRunner(fastEngineConfig(), zaptest.NewLogger(t))
	report, err := r.Run(context.Background(), Task{
		Flow:   schemas.FlowVerifyReady,
		Target: "chat input",
		Attempt: func(context.Context) (*AttemptResult, error) {
			return &AttemptResult{}, nil
		},
	})

	require.NoError(t, err)
	_, parseErr := uuid.Parse(report.RunID)
	require.NoError(t, parseErr, "run ids are uuids")
	assert.Equal(t, schemas.FlowVerifyReady, report.Flow)
	assert.Greater(t, report.Elapsed, time.Duration(0))
	assert.False(t, report.StartedAt.IsZero())
}

func TestExhaustedError(t *testing.T) {
	inner := errors.New("no send button")
	err := &ExhaustedError{
		Flow:     schemas.FlowSendMessage,
		Target:   "hello",
		Attempts: 3,
		LastErr:  inner,
	}

	assert.Contains(t, err.Error(), "send_message")
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Contains(t, err.Error(), "no send button")
	assert.ErrorIs(t, err, inner)

	bare := &ExhaustedError{Flow: schemas.FlowClick, Target: "Login", Attempts: 1}
	assert.NotContains(t, bare.Error(), "<nil>")
}