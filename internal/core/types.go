// Package core provides the business logic for sales-data processing runs.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/warecross/wms/internal/mapping"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// RunPhase indicates the current stage of run processing.
type RunPhase string

const (
	PhaseStarting   RunPhase = "starting"
	PhaseMapping    RunPhase = "mapping"
	PhasePersisting RunPhase = "persisting"
	PhaseComplete   RunPhase = "complete"
	PhaseFailed     RunPhase = "failed"
	PhaseCancelled  RunPhase = "cancelled"
)

// ProcessingResult is the per-row outcome of a run, in input order.
type ProcessingResult struct {
	RowIndex   int            `json:"rowIndex"`
	LineNumber int            `json:"lineNumber"`
	RawSKU     string         `json:"rawSku"`
	MSKU       string         `json:"msku,omitempty"`
	Status     mapping.Status `json:"status"`
	Reason     string         `json:"reason,omitempty"`
}

// ProcessingRun is the aggregate summary of one run. The counts are a
// pure fold over the result sequence, never maintained independently.
type ProcessingRun struct {
	RunID       string        `json:"runId"`
	Marketplace string        `json:"marketplace"`
	FileName    string        `json:"fileName,omitempty"`
	TotalRows   int           `json:"totalRows"`
	Mapped      int           `json:"mapped"`
	Unmapped    int           `json:"unmapped"`
	Invalid     int           `json:"invalid"`
	Persisted   int           `json:"persisted"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
	Duration    time.Duration `json:"duration"`
	Failed      bool          `json:"failed"`
	Error       string        `json:"error,omitempty"`
}

// RunProgress represents the current state of a run.
type RunProgress struct {
	RunID       string   `json:"runId"`
	Marketplace string   `json:"marketplace"`
	Phase       RunPhase `json:"phase"`
	FileName    string   `json:"fileName,omitempty"`
	TotalRows   int      `json:"totalRows"`
	CurrentRow  int      `json:"currentRow"`
	Mapped      int      `json:"mapped"`
	Unmapped    int      `json:"unmapped"`
	Invalid     int      `json:"invalid"`
	Persisted   int      `json:"persisted"`
	Error       string   `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
}

// Percent returns the progress as a percentage (0-100).
func (p RunProgress) Percent() int {
	if p.TotalRows > 0 {
		return (p.CurrentRow * 100) / p.TotalRows
	}
	return 0
}

// FoldCounts aggregates per-row results into status counts.
func FoldCounts(results []ProcessingResult) (mapped, unmapped, invalid int) {
	for _, r := range results {
		switch r.Status {
		case mapping.StatusMapped:
			mapped++
		case mapping.StatusUnmapped:
			unmapped++
		case mapping.StatusInvalid:
			invalid++
		}
	}
	return mapped, unmapped, invalid
}
