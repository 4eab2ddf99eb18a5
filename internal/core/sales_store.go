package core

// sales_store.go persists cleaned sales rows and run summaries.
//
// Each row insert is isolated behind a savepoint so a single bad row
// (PostgreSQL aborts the whole transaction on any error otherwise) is
// skipped without losing the batch.

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warecross/wms/internal/ingest"
	"github.com/warecross/wms/internal/mapping"
)

// SalesStore persists the cleaned rows of a run and its final summary.
type SalesStore interface {
	// InsertRows writes one batch. rows[i] corresponds to results[i];
	// Invalid rows are skipped. Returns the number of rows written.
	InsertRows(ctx context.Context, run *ProcessingRun, rows []ingest.RowRecord, results []ProcessingResult) (int, error)

	// SaveRun records the final run summary.
	SaveRun(ctx context.Context, run *ProcessingRun) error

	// ListRuns returns the most recent run summaries, newest first.
	ListRuns(ctx context.Context, limit int) ([]ProcessingRun, error)
}

// PgSalesStore implements SalesStore on PostgreSQL.
type PgSalesStore struct {
	pool *pgxpool.Pool
}

func NewPgSalesStore(pool *pgxpool.Pool) *PgSalesStore {
	return &PgSalesStore{pool: pool}
}

const insertSalesRowSQL = `
	INSERT INTO sales_rows
		(run_id, marketplace, order_number, order_date, raw_sku, msku,
		 quantity, unit_price, total_price)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (s *PgSalesStore) InsertRows(ctx context.Context, run *ProcessingRun, rows []ingest.RowRecord, results []ProcessingResult) (int, error) {
	if len(rows) != len(results) {
		return 0, fmt.Errorf("rows/results length mismatch: %d != %d", len(rows), len(results))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for i, row := range rows {
		if results[i].Status == mapping.StatusInvalid {
			continue
		}

		// Savepoint per insert so one bad row does not poison the batch.
		savepointName := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, fmt.Sprintf("SAVEPOINT %s", savepointName)); err != nil {
			return inserted, fmt.Errorf("%w: create savepoint: %v", ErrPersistence, err)
		}

		_, err := tx.Exec(ctx, insertSalesRowSQL,
			run.RunID,
			run.Marketplace,
			row.OrderNumber,
			row.OrderDate,
			row.RawSKU,
			textOrNull(results[i].MSKU),
			row.Quantity,
			toPgNumeric(row.UnitPrice),
			toPgNumeric(row.TotalPrice),
		)
		if err != nil {
			if _, rbErr := tx.Exec(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", savepointName)); rbErr != nil {
				return inserted, fmt.Errorf("%w: rollback savepoint: %v", ErrPersistence, rbErr)
			}
			continue
		}

		if _, err := tx.Exec(ctx, fmt.Sprintf("RELEASE SAVEPOINT %s", savepointName)); err != nil {
			return inserted, fmt.Errorf("%w: release savepoint: %v", ErrPersistence, err)
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}
	return inserted, nil
}

func (s *PgSalesStore) SaveRun(ctx context.Context, run *ProcessingRun) error {
	const q = `
		INSERT INTO processing_runs
			(run_id, marketplace, file_name, total_rows, mapped, unmapped,
			 invalid, persisted, started_at, finished_at, failed, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (run_id) DO UPDATE SET
			total_rows = EXCLUDED.total_rows,
			mapped = EXCLUDED.mapped,
			unmapped = EXCLUDED.unmapped,
			invalid = EXCLUDED.invalid,
			persisted = EXCLUDED.persisted,
			finished_at = EXCLUDED.finished_at,
			failed = EXCLUDED.failed,
			error = EXCLUDED.error`

	_, err := s.pool.Exec(ctx, q,
		run.RunID, run.Marketplace, run.FileName,
		run.TotalRows, run.Mapped, run.Unmapped, run.Invalid, run.Persisted,
		run.StartedAt, run.FinishedAt, run.Failed, run.Error)
	if err != nil {
		return fmt.Errorf("%w: save run: %v", ErrPersistence, err)
	}
	return nil
}

func (s *PgSalesStore) ListRuns(ctx context.Context, limit int) ([]ProcessingRun, error) {
	if limit <= 0 {
		limit = 20
	}

	const q = `
		SELECT run_id, marketplace, file_name, total_rows, mapped, unmapped,
		       invalid, persisted, started_at, finished_at, failed, error
		FROM processing_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]ProcessingRun, 0, limit)
	for rows.Next() {
		var r ProcessingRun
		if err := rows.Scan(&r.RunID, &r.Marketplace, &r.FileName,
			&r.TotalRows, &r.Mapped, &r.Unmapped, &r.Invalid, &r.Persisted,
			&r.StartedAt, &r.FinishedAt, &r.Failed, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = r.FinishedAt.Sub(r.StartedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}
