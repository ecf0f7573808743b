package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/hotel-offers/internal/orchestrator"
)

const stepsTable = "orchestration_steps"

// Querier abstracts the subset of pgxpool.Pool used by Journal.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Journal persists orchestration steps in Postgres, one row per (run, step).
type Journal struct {
	q  Querier
	sq squirrel.StatementBuilderType
}

// NewJournal constructs a Journal backed by the given pool.
func NewJournal(pool *pgxpool.Pool) *Journal {
	return NewJournalWithQuerier(pool)
}

// NewJournalWithQuerier constructs a Journal with a custom Querier (for tests).
func NewJournalWithQuerier(q Querier) *Journal {
	return &Journal{
		q:  q,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Load decodes the payload recorded for step of runID into dst.
// Returns false, nil when nothing was recorded.
func (j *Journal) Load(ctx context.Context, runID, step string, dst any) (bool, error) {
	sql, args, err := j.sq.Select("payload").
		From(stepsTable).
		Where(squirrel.Eq{"run_id": runID, "step": step}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building step query: %w", err)
	}

	var payload []byte
	if err := j.q.QueryRow(ctx, sql, args...).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("querying step %s of run %s: %w", step, runID, err)
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("unmarshaling step %s of run %s: %w", step, runID, err)
	}
	return true, nil
}

// Record upserts the payload of step for runID.
func (j *Journal) Record(ctx context.Context, runID, step string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling step %s of run %s: %w", step, runID, err)
	}

	sql, args, err := j.sq.Insert(stepsTable).
		Columns("run_id", "step", "payload", "recorded_at").
		Values(runID, step, payload, squirrel.Expr("NOW()")).
		Suffix("ON CONFLICT (run_id, step) DO UPDATE SET payload = EXCLUDED.payload, recorded_at = EXCLUDED.recorded_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building step upsert: %w", err)
	}

	if _, err := j.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upserting step %s of run %s: %w", step, runID, err)
	}
	return nil
}

// Steps lists the recorded steps of runID, oldest first.
func (j *Journal) Steps(ctx context.Context, runID string) ([]orchestrator.Step, error) {
	sql, args, err := j.sq.Select("step", "payload", "recorded_at").
		From(stepsTable).
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("recorded_at", "step").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building steps query: %w", err)
	}

	rows, err := j.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying steps of run %s: %w", runID, err)
	}
	defer rows.Close()

	steps := make([]orchestrator.Step, 0)
	for rows.Next() {
		var (
			s          orchestrator.Step
			payload    []byte
			recordedAt time.Time
		)
		if err := rows.Scan(&s.Name, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning step row: %w", err)
		}
		s.Payload = payload
		s.RecordedAt = recordedAt
		steps = append(steps, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating step rows: %w", err)
	}

	return steps, nil
}

// Prune deletes every step recorded before cutoff and returns how many rows went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	sql, args, err := j.sq.Delete(stepsTable).
		Where(squirrel.Lt{"recorded_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building prune statement: %w", err)
	}

	tag, err := j.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("pruning steps before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
