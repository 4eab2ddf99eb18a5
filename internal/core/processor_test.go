package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/warecross/wms/internal/ingest"
	"github.com/warecross/wms/internal/mapping"
	"github.com/warecross/wms/internal/rules"
)

func testMapper(t *testing.T, skus map[string]string) *mapping.Mapper {
	t.Helper()
	m := mapping.NewMapper(rules.Default(), mapping.NewMemoryStore())
	for raw, msku := range skus {
		if err := m.AddMapping(context.Background(), raw, msku, "amazon", false); err != nil {
			t.Fatalf("AddMapping(%s) error = %v", raw, err)
		}
	}
	return m
}

func salesRows(n int) []ingest.RowRecord {
	rows := make([]ingest.RowRecord, n)
	for i := range rows {
		rows[i] = ingest.RowRecord{
			LineNumber: i + 2,
			RawSKU:     fmt.Sprintf("SKU-%03d", i),
			Quantity:   1,
		}
	}
	return rows
}

// ============================================================================
// Classify Tests
// ============================================================================

func TestClassify_MissingFieldDoesNotAbort(t *testing.T) {
	mapper := testMapper(t, map[string]string{
		"SKU-000": "MSKU-0", "SKU-001": "MSKU-1",
		"SKU-002": "MSKU-2", "SKU-004": "MSKU-4",
	})
	p := NewProcessor(mapper, 1)

	rows := salesRows(5)
	rows[3].RawSKU = ""
	rows[3].MissingField = "SKU"

	results, err := p.Classify(context.Background(), "amazon", 0, rows)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("Classify() results = %d, want 5", len(results))
	}

	missing := 0
	for i, r := range results {
		if r.RowIndex != i {
			t.Errorf("results[%d].RowIndex = %d, want %d", i, r.RowIndex, i)
		}
		if r.Reason == ReasonMissingField {
			missing++
			if i != 3 {
				t.Errorf("missing_field at index %d, want 3", i)
			}
			if r.Status != mapping.StatusInvalid {
				t.Errorf("missing_field status = %s, want invalid", r.Status)
			}
		}
	}
	if missing != 1 {
		t.Errorf("missing_field results = %d, want exactly 1", missing)
	}
}

func TestClassify_WorkerPoolPreservesOrder(t *testing.T) {
	skus := make(map[string]string, 50)
	for i := 0; i < 100; i += 2 {
		skus[fmt.Sprintf("SKU-%03d", i)] = fmt.Sprintf("MSKU-%03d", i)
	}
	p := NewProcessor(testMapper(t, skus), 8)

	results, err := p.Classify(context.Background(), "amazon", 0, salesRows(100))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(results) != 100 {
		t.Fatalf("results = %d, want 100", len(results))
	}

	for i, r := range results {
		if r.RowIndex != i {
			t.Fatalf("results[%d].RowIndex = %d, want %d", i, r.RowIndex, i)
		}
		wantStatus := mapping.StatusUnmapped
		if i%2 == 0 {
			wantStatus = mapping.StatusMapped
		}
		if r.Status != wantStatus {
			t.Errorf("results[%d].Status = %s, want %s", i, r.Status, wantStatus)
		}
	}
}

func TestClassify_BaseIndexOffsetsRows(t *testing.T) {
	p := NewProcessor(testMapper(t, nil), 1)

	results, err := p.Classify(context.Background(), "amazon", 40, salesRows(3))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	for i, r := range results {
		if r.RowIndex != 40+i {
			t.Errorf("results[%d].RowIndex = %d, want %d", i, r.RowIndex, 40+i)
		}
	}
}

func TestClassify_StoreErrorIsPersistence(t *testing.T) {
	storeErr := errors.New("connection refused")
	mapper := mapping.NewMapper(rules.Default(), &brokenStore{err: storeErr})

	for _, workers := range []int{1, 4} {
		p := NewProcessor(mapper, workers)
		_, err := p.Classify(context.Background(), "amazon", 0, salesRows(10))
		if !errors.Is(err, ErrPersistence) {
			t.Errorf("workers=%d: Classify() error = %v, want ErrPersistence", workers, err)
		}
	}
}

func TestClassify_Empty(t *testing.T) {
	p := NewProcessor(testMapper(t, nil), 4)
	results, err := p.Classify(context.Background(), "amazon", 0, nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestClassify_CancelledContext(t *testing.T) {
	p := NewProcessor(testMapper(t, nil), 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Classify(ctx, "amazon", 0, salesRows(10))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Classify() error = %v, want context.Canceled", err)
	}
}

// brokenStore fails every operation with a fixed error.
type brokenStore struct{ err error }

func (b *brokenStore) Lookup(context.Context, string, string) (string, bool, error) {
	return "", false, b.err
}
func (b *brokenStore) Insert(context.Context, mapping.Mapping, bool) error { return b.err }
func (b *brokenStore) Delete(context.Context, string, string) error       { return b.err }
func (b *brokenStore) List(context.Context, string) ([]mapping.Mapping, error) {
	return nil, b.err
}
func (b *brokenStore) Count(context.Context) (int64, error) { return 0, b.err }

// ============================================================================
// FoldCounts Tests
// ============================================================================

func TestFoldCounts(t *testing.T) {
	results := []ProcessingResult{
		{Status: mapping.StatusMapped},
		{Status: mapping.StatusUnmapped},
		{Status: mapping.StatusMapped},
		{Status: mapping.StatusInvalid},
		{Status: mapping.StatusMapped},
	}

	mapped, unmapped, invalid := FoldCounts(results)
	if mapped != 3 || unmapped != 1 || invalid != 1 {
		t.Errorf("FoldCounts() = %d/%d/%d, want 3/1/1", mapped, unmapped, invalid)
	}

	if m, u, i := FoldCounts(nil); m != 0 || u != 0 || i != 0 {
		t.Errorf("FoldCounts(nil) = %d/%d/%d, want zeros", m, u, i)
	}
}
