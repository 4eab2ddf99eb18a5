// Package mapping resolves marketplace SKUs to canonical master SKUs (MSKUs).
//
// The Mapper validates a SKU against the configured rule set before ever
// consulting the lookup table: an invalid SKU short-circuits with
// StatusInvalid and never touches the store. Valid SKUs resolve to
// StatusMapped when the (marketplace, raw SKU) pair exists and
// StatusUnmapped otherwise; resolution never creates mappings implicitly.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warecross/wms/internal/rules"
)

// Status classifies the outcome of resolving a single SKU.
type Status string

const (
	StatusMapped   Status = "mapped"
	StatusUnmapped Status = "unmapped"
	StatusInvalid  Status = "invalid"
)

// Query is a single (SKU, marketplace) resolution request.
type Query struct {
	RawSKU      string `json:"rawSku"`
	Marketplace string `json:"marketplace"`
}

// Outcome is the result of resolving a single SKU.
type Outcome struct {
	Status Status `json:"status"`
	MSKU   string `json:"msku,omitempty"`
	Reason string `json:"reason,omitempty"` // rule failure reason when Status is invalid
}

// Mapper resolves raw SKUs against a Store, gated by a validation rule set.
// The rule set is immutable; the Mapper is safe for concurrent use as long
// as its Store is.
type Mapper struct {
	rules *rules.RuleSet
	store Store
}

// NewMapper creates a Mapper over the given rule set and store.
func NewMapper(rs *rules.RuleSet, store Store) *Mapper {
	return &Mapper{rules: rs, store: store}
}

// Rules returns the mapper's rule set.
func (m *Mapper) Rules() *rules.RuleSet { return m.rules }

// Store returns the underlying lookup table.
func (m *Mapper) Store() Store { return m.store }

// Resolve maps a raw marketplace SKU to its MSKU.
//
// Validation runs first: an invalid SKU returns StatusInvalid with the rule
// failure reason without consulting the store. The returned error is non-nil
// only when the store itself fails.
func (m *Mapper) Resolve(ctx context.Context, rawSKU, marketplace string) (Outcome, error) {
	if v := m.rules.Validate(rawSKU); !v.Valid {
		return Outcome{Status: StatusInvalid, Reason: v.Reason}, nil
	}

	msku, found, err := m.store.Lookup(ctx, marketplace, rawSKU)
	if err != nil {
		return Outcome{}, fmt.Errorf("lookup %q (%s): %w", rawSKU, marketplace, err)
	}
	if !found {
		return Outcome{Status: StatusUnmapped}, nil
	}
	return Outcome{Status: StatusMapped, MSKU: msku}, nil
}

// ResolveBatch resolves an ordered sequence of queries.
//
// The output has one outcome per input in input order; rows are independent
// of each other. Empty input returns an empty (non-nil) slice. A store
// failure aborts the batch and returns the error.
func (m *Mapper) ResolveBatch(ctx context.Context, queries []Query) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(queries))
	for i, q := range queries {
		o, err := m.Resolve(ctx, q.RawSKU, q.Marketplace)
		if err != nil {
			return nil, fmt.Errorf("batch row %d: %w", i, err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// AddMapping inserts a new raw-SKU to MSKU mapping.
//
// Both the raw SKU and the MSKU must satisfy the validation rules. Without
// overwrite, an existing (raw SKU, marketplace) pair fails with
// ErrDuplicateMapping.
func (m *Mapper) AddMapping(ctx context.Context, rawSKU, msku, marketplace string, overwrite bool) error {
	if v := m.rules.Validate(rawSKU); !v.Valid {
		return fmt.Errorf("%w: sku %q failed %s rule", ErrInvalidSKU, rawSKU, v.Reason)
	}
	if v := m.rules.Validate(msku); !v.Valid {
		return fmt.Errorf("%w: msku %q failed %s rule", ErrInvalidSKU, msku, v.Reason)
	}

	return m.store.Insert(ctx, Mapping{
		Marketplace: marketplace,
		RawSKU:      rawSKU,
		MSKU:        msku,
		CreatedAt:   time.Now().UTC(),
	}, overwrite)
}

// RemoveMapping deletes a mapping, failing with ErrNotFound when absent.
func (m *Mapper) RemoveMapping(ctx context.Context, rawSKU, marketplace string) error {
	return m.store.Delete(ctx, marketplace, rawSKU)
}

// MasterRecord is one row of an uploaded master-mapping file.
type MasterRecord struct {
	LineNumber int
	RawSKU     string
	MSKU       string
}

// LoadFailure describes a master-mapping row that was not loaded.
type LoadFailure struct {
	LineNumber int    `json:"lineNumber"`
	RawSKU     string `json:"rawSku"`
	Reason     string `json:"reason"`
}

// LoadReport summarizes a bulk master-mapping load.
type LoadReport struct {
	Total    int           `json:"total"`
	Loaded   int           `json:"loaded"`
	Skipped  int           `json:"skipped"`
	Failures []LoadFailure `json:"failures,omitempty"`
}

// LoadMaster bulk-loads mapping records from an uploaded mapping file.
//
// Each row is loaded independently: invalid or duplicate rows are recorded
// in the report and never abort the load. A store failure other than a
// duplicate aborts the remainder and returns the error alongside the
// partial report.
func (m *Mapper) LoadMaster(ctx context.Context, marketplace string, records []MasterRecord, overwrite bool) (LoadReport, error) {
	report := LoadReport{Total: len(records)}

	for _, rec := range records {
		err := m.AddMapping(ctx, rec.RawSKU, rec.MSKU, marketplace, overwrite)
		switch {
		case err == nil:
			report.Loaded++
		case isRowError(err):
			report.Skipped++
			report.Failures = append(report.Failures, LoadFailure{
				LineNumber: rec.LineNumber,
				RawSKU:     rec.RawSKU,
				Reason:     err.Error(),
			})
		default:
			return report, fmt.Errorf("load mapping line %d: %w", rec.LineNumber, err)
		}
	}

	return report, nil
}

// isRowError reports whether err is recoverable per row during a bulk load.
func isRowError(err error) bool {
	return errors.Is(err, ErrDuplicateMapping) || errors.Is(err, ErrInvalidSKU)
}
