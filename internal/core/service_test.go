package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/warecross/wms/internal/ingest"
	"github.com/warecross/wms/internal/mapping"
)

// fakeSalesStore records inserts and can be told to fail on a given batch.
type fakeSalesStore struct {
	mu          sync.Mutex
	batches     int
	inserted    int
	savedRuns   []ProcessingRun
	failOnBatch int           // 1-based; 0 means never fail
	delay       time.Duration // per-batch sleep, honoring ctx
}

func (f *fakeSalesStore) InsertRows(ctx context.Context, run *ProcessingRun, rows []ingest.RowRecord, results []ProcessingResult) (int, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.failOnBatch > 0 && f.batches >= f.failOnBatch {
		return 0, errors.New("persistence failure: connection refused")
	}

	n := 0
	for _, r := range results {
		if r.Status != mapping.StatusInvalid {
			n++
		}
	}
	f.inserted += n
	return n, nil
}

func (f *fakeSalesStore) SaveRun(_ context.Context, run *ProcessingRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedRuns = append(f.savedRuns, *run)
	return nil
}

func (f *fakeSalesStore) ListRuns(context.Context, int) ([]ProcessingRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ProcessingRun(nil), f.savedRuns...), nil
}

func newTestService(t *testing.T, sales SalesStore, opts Options) *Service {
	t.Helper()
	mapper := testMapper(t, map[string]string{
		"SKU-000": "MSKU-0", "SKU-001": "MSKU-1", "SKU-002": "MSKU-2",
	})
	return NewService(mapper, sales, nil, opts)
}

// ============================================================================
// Run Lifecycle Tests
// ============================================================================

func TestStartRun_MissingFieldScenario(t *testing.T) {
	svc := newTestService(t, nil, Options{})

	rows := salesRows(5)
	rows[3].RawSKU = ""
	rows[3].MissingField = "SKU"

	runID, err := svc.StartRun(context.Background(), "amazon", "sales.csv", rows)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	run, results, err := svc.RunResult(runID)
	if err != nil {
		t.Fatalf("RunResult() error = %v", err)
	}
	if run.Failed {
		t.Fatalf("run failed unexpectedly: %s", run.Error)
	}
	if run.TotalRows != 5 || len(results) != 5 {
		t.Errorf("total = %d, results = %d, want 5/5", run.TotalRows, len(results))
	}
	if run.Mapped+run.Unmapped+run.Invalid != 5 {
		t.Errorf("counts %d/%d/%d do not fold to 5", run.Mapped, run.Unmapped, run.Invalid)
	}

	missing := 0
	for _, r := range results {
		if r.Reason == ReasonMissingField {
			missing++
			if r.RowIndex != 3 {
				t.Errorf("missing_field RowIndex = %d, want 3", r.RowIndex)
			}
		}
	}
	if missing != 1 {
		t.Errorf("missing_field results = %d, want 1", missing)
	}
}

func TestStartRun_UnknownMarketplace(t *testing.T) {
	svc := newTestService(t, nil, Options{})

	_, err := svc.StartRun(context.Background(), "etsy", "sales.csv", salesRows(1))
	if err == nil || !strings.Contains(err.Error(), "unknown marketplace") {
		t.Errorf("StartRun() error = %v, want unknown marketplace", err)
	}
}

func TestStartRun_PersistsCleanRows(t *testing.T) {
	store := &fakeSalesStore{}
	svc := newTestService(t, store, Options{BatchSize: 2})

	runID, err := svc.StartRun(context.Background(), "amazon", "sales.csv", salesRows(5))
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	run, _, err := svc.RunResult(runID)
	if err != nil {
		t.Fatalf("RunResult() error = %v", err)
	}

	if run.Persisted != 5 {
		t.Errorf("Persisted = %d, want 5", run.Persisted)
	}
	if store.inserted != 5 {
		t.Errorf("store inserted = %d, want 5", store.inserted)
	}
	if len(store.savedRuns) != 1 || store.savedRuns[0].RunID != runID {
		t.Errorf("savedRuns = %+v, want one entry for %s", store.savedRuns, runID)
	}
}

func TestStartRun_PersistenceErrorAbortsRemainder(t *testing.T) {
	store := &fakeSalesStore{failOnBatch: 2}
	svc := newTestService(t, store, Options{BatchSize: 2})

	runID, err := svc.StartRun(context.Background(), "amazon", "sales.csv", salesRows(6))
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	run, results, err := svc.RunResult(runID)
	if err != nil {
		t.Fatalf("RunResult() error = %v", err)
	}

	if !run.Failed {
		t.Fatal("run.Failed = false, want true")
	}
	if !strings.Contains(run.Error, "persistence failure") {
		t.Errorf("run.Error = %q, want persistence failure", run.Error)
	}
	// Two batches were classified before the second insert failed;
	// the third batch was never processed.
	if len(results) != 4 {
		t.Errorf("results = %d, want 4 (partial)", len(results))
	}
	if store.batches != 2 {
		t.Errorf("store batches = %d, want 2", store.batches)
	}
	// The failed run summary is still recorded.
	if len(store.savedRuns) != 1 || !store.savedRuns[0].Failed {
		t.Errorf("savedRuns = %+v, want one failed entry", store.savedRuns)
	}
}

func TestStartRun_TimeoutDiscardsPartialResults(t *testing.T) {
	store := &fakeSalesStore{delay: 200 * time.Millisecond}
	svc := newTestService(t, store, Options{BatchSize: 1, RunTimeout: 50 * time.Millisecond})

	runID, err := svc.StartRun(context.Background(), "amazon", "sales.csv", salesRows(10))
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	run, results, err := svc.RunResult(runID)
	if err != nil {
		t.Fatalf("RunResult() error = %v", err)
	}

	if !run.Failed {
		t.Fatal("run.Failed = false, want true")
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0 after timeout", len(results))
	}
	if run.Mapped+run.Unmapped+run.Invalid != 0 {
		t.Errorf("counts = %d/%d/%d, want zeros after timeout",
			run.Mapped, run.Unmapped, run.Invalid)
	}
}

func TestCancelRun(t *testing.T) {
	store := &fakeSalesStore{delay: time.Hour}
	svc := newTestService(t, store, Options{BatchSize: 1})

	runID, err := svc.StartRun(context.Background(), "amazon", "sales.csv", salesRows(3))
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	// Let the run reach the blocking insert, then cancel.
	time.Sleep(20 * time.Millisecond)
	if err := svc.CancelRun(runID); err != nil {
		t.Fatalf("CancelRun() error = %v", err)
	}

	run, _, err := svc.RunResult(runID)
	if err != nil {
		t.Fatalf("RunResult() error = %v", err)
	}
	if !run.Failed || run.Error != "run cancelled" {
		t.Errorf("run = %+v, want cancelled failure", run)
	}
}

func TestRunResult_UnknownRun(t *testing.T) {
	svc := newTestService(t, nil, Options{})

	_, _, err := svc.RunResult("no-such-run")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("RunResult() error = %v, want ErrRunNotFound", err)
	}
	if err := svc.CancelRun("no-such-run"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("CancelRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestSubscribeProgress_ReceivesTerminalPhase(t *testing.T) {
	svc := newTestService(t, nil, Options{})

	runID, err := svc.StartRun(context.Background(), "amazon", "sales.csv", salesRows(3))
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	ch, err := svc.SubscribeProgress(runID)
	if err != nil {
		t.Fatalf("SubscribeProgress() error = %v", err)
	}

	var last RunProgress
	for p := range ch {
		last = p
	}
	if last.Phase != PhaseComplete {
		t.Errorf("last phase = %s, want %s", last.Phase, PhaseComplete)
	}
	if last.CurrentRow != 3 {
		t.Errorf("last CurrentRow = %d, want 3", last.CurrentRow)
	}
}

// ============================================================================
// Error Mapping Tests
// ============================================================================

func TestMapError_KnownPatterns(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{mapping.ErrDuplicateMapping, "MAP001"},
		{errors.New("mapping not found"), "MAP002"},
		{errors.New(`invalid sku: sku "x" failed length rule`), "MAP003"},
		{errors.New("persistence failure: connection refused"), "DB004"},
		{errors.New("context deadline exceeded"), "RUN005"},
		{errors.New("too many concurrent runs"), "RUN002"},
		{errors.New("header not found: no row contains column"), "FILE002"},
		{errors.New("something novel"), "ERR000"},
	}
	for _, tt := range tests {
		if got := MapError(tt.err); got.Code != tt.code {
			t.Errorf("MapError(%q).Code = %s, want %s", tt.err, got.Code, tt.code)
		}
	}
}

func TestIsUserFacing(t *testing.T) {
	if !IsUserFacing(mapping.ErrDuplicateMapping) {
		t.Error("IsUserFacing(ErrDuplicateMapping) = false, want true")
	}
	if IsUserFacing(errors.New("totally unexpected")) {
		t.Error("IsUserFacing(unexpected) = true, want false")
	}
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true, want false")
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(mapping.ErrDuplicateMapping)
	if !strings.Contains(got, "MAP001") || !strings.Contains(got, "already exists") {
		t.Errorf("FormatUserError() = %q", got)
	}
}
