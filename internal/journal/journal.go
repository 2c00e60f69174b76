// File: internal/journal/journal.go

// Package journal persists run reports to Postgres. The sink is entirely
// optional: the CLI only opens one when a DSN is configured, and a nil
// Journal accepts reports as a no-op so call sites need no guards.
package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// DBPool abstracts the pgxpool.Pool surface the journal uses so tests
// can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS run_reports (
		run_id     UUID PRIMARY KEY,
		flow       TEXT NOT NULL,
		target     TEXT NOT NULL,
		page_url   TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		elapsed_ms BIGINT NOT NULL,
		attempts   INT NOT NULL,
		success    BOOLEAN NOT NULL,
		strategy   TEXT NOT NULL DEFAULT '',
		outcome    JSONB,
		verified   BOOLEAN NOT NULL,
		error      TEXT NOT NULL DEFAULT ''
	);`

const insertReportSQL = `
	INSERT INTO run_reports
		(run_id, flow, target, page_url, started_at, elapsed_ms,
		 attempts, success, strategy, outcome, verified, error)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

// Journal is an insert-only Postgres sink for run reports. Reports are
// never updated or deleted; each run appends exactly one row.
type Journal struct {
	pool DBPool
	log  *zap.Logger
}

// Open connects to the given DSN and prepares the journal table.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Journal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: connect: %w", err)
	}
	j, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

// New wires a journal over an established pool, verifies the connection
// and creates the table when it is missing.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("journal: ensure schema: %w", err)
	}
	return &Journal{pool: pool, log: logger.Named("journal")}, nil
}

// SaveReport appends one run report. Calling it on a nil journal is a
// no-op so disabled journaling needs no branching at call sites.
func (j *Journal) SaveReport(ctx context.Context, report *schemas.RunReport) error {
	if j == nil {
		return nil
	}
	if report == nil {
		return fmt.Errorf("journal: nil report")
	}

	var outcome []byte
	if report.Outcome != nil {
		b, err := json.Marshal(report.Outcome)
		if err != nil {
			return fmt.Errorf("journal: marshal outcome: %w", err)
		}
		outcome = b
	}

	// Timestamps go in as UTC so rows compare cleanly across hosts.
	_, err := j.pool.Exec(ctx, insertReportSQL,
		report.RunID,
		string(report.Flow),
		report.Target,
		report.PageURL,
		report.StartedAt.UTC(),
		report.Elapsed.Milliseconds(),
		report.Attempts,
		report.Success,
		string(report.Strategy),
		outcome,
		report.Verified,
		report.Error,
	)
	if err != nil {
		return fmt.Errorf("journal: insert report: %w", err)
	}
	j.log.Debug("Run report journaled.",
		zap.String("run_id", report.RunID), zap.String("flow", string(report.Flow)))
	return nil
}

// Close releases the underlying pool. Safe on nil.
func (j *Journal) Close() {
	if j == nil || j.pool == nil {
		return
	}
	j.pool.Close()
}
