package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warecross/wms/internal/ingest"
	"github.com/warecross/wms/internal/mapping"
	"github.com/warecross/wms/internal/metrics"
)

// DefaultRunTimeout is the maximum duration for a processing run.
var DefaultRunTimeout = 10 * time.Minute

// DefaultBatchSize is how many rows are classified and persisted together.
var DefaultBatchSize = 1000

// retainFinished is how long finished runs stay queryable.
var retainFinished = 5 * time.Minute

// Options configures a Service.
type Options struct {
	Workers           int
	BatchSize         int
	RunTimeout        time.Duration
	MaxConcurrentRuns int
	MaxWaitTime       time.Duration
}

// Service orchestrates asynchronous processing runs over uploaded sales data.
type Service struct {
	mapper    *mapping.Mapper
	processor *Processor
	sales     SalesStore // nil disables persistence
	limiter   *RunLimiter
	logger    *slog.Logger

	batchSize  int
	runTimeout time.Duration

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID          string
	Marketplace string
	FileName    string
	Cancel      context.CancelFunc
	Progress    RunProgress
	Run         *ProcessingRun
	Results     []ProcessingResult
	Done        chan struct{}

	ListenerMu sync.Mutex
	Listeners  []chan RunProgress

	progressMu sync.RWMutex
}

// NewService creates a run service. sales may be nil when no database is
// configured; classification still works, rows are just not persisted.
func NewService(mapper *mapping.Mapper, sales SalesStore, logger *slog.Logger, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		mapper:     mapper,
		processor:  NewProcessor(mapper, opts.Workers),
		sales:      sales,
		limiter:    NewRunLimiter(opts.MaxConcurrentRuns, opts.MaxWaitTime),
		logger:     logger,
		batchSize:  opts.BatchSize,
		runTimeout: opts.RunTimeout,
		runs:       make(map[string]*activeRun),
	}
}

// Mapper returns the underlying SKU mapper.
func (s *Service) Mapper() *mapping.Mapper { return s.mapper }

// Limiter exposes the run limiter for monitoring and shutdown draining.
func (s *Service) Limiter() *RunLimiter { return s.limiter }

// SalesStore returns the configured sales store, or nil.
func (s *Service) SalesStore() SalesStore { return s.sales }

// StartRun begins an asynchronous processing run over the given rows.
// Returns the run ID immediately; use SubscribeProgress for updates.
// Fails with ErrTooManyRuns when no run slot frees up within the
// configured wait time.
func (s *Service) StartRun(ctx context.Context, marketplaceKey, fileName string, rows []ingest.RowRecord) (string, error) {
	if _, ok := ingest.Get(marketplaceKey); !ok {
		return "", fmt.Errorf("unknown marketplace: %s", marketplaceKey)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	runID := uuid.New().String()

	runCtx, cancel := context.WithTimeout(context.Background(), s.runTimeout)

	run := &activeRun{
		ID:          runID,
		Marketplace: marketplaceKey,
		FileName:    fileName,
		Cancel:      cancel,
		Progress: RunProgress{
			RunID:       runID,
			Marketplace: marketplaceKey,
			Phase:       PhaseStarting,
			FileName:    fileName,
			TotalRows:   len(rows),
		},
		Done: make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	go s.processRun(runCtx, run, rows)

	return runID, nil
}

// processRun drives one run to completion: classify in batches, persist the
// cleaned rows, fold the counts, record the summary.
func (s *Service) processRun(ctx context.Context, run *activeRun, rows []ingest.RowRecord) {
	startedAt := time.Now().UTC()

	defer func() {
		// Done closes before the listener channels so late subscribers
		// observe completion instead of waiting on a channel nobody owns.
		close(run.Done)
		run.closeListeners()
		s.limiter.Release()
		s.cleanup(run.ID, retainFinished)
	}()

	summary := &ProcessingRun{
		RunID:       run.ID,
		Marketplace: run.Marketplace,
		FileName:    run.FileName,
		TotalRows:   len(rows),
		StartedAt:   startedAt,
	}

	results := make([]ProcessingResult, 0, len(rows))
	persisted := 0

	fail := func(err error) {
		// A timed-out run keeps no partial results; everything else
		// reports the partial run.
		if ctx.Err() == context.DeadlineExceeded {
			results = nil
			persisted = 0
			err = ctx.Err()
		}

		summary.Mapped, summary.Unmapped, summary.Invalid = FoldCounts(results)
		summary.Persisted = persisted
		summary.Failed = true
		summary.Error = err.Error()
		summary.FinishedAt = time.Now().UTC()
		summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)

		phase := PhaseFailed
		if ctx.Err() == context.Canceled {
			phase = PhaseCancelled
			summary.Error = "run cancelled"
		}

		s.finishRun(run, summary, results, phase)
		s.logger.Error("run failed",
			"run_id", run.ID,
			"marketplace", run.Marketplace,
			"error", summary.Error,
			"rows_done", len(results))
		metrics.ObserveRun(run.Marketplace, metrics.ResultError, summary.Duration)
	}

	run.setPhase(PhaseMapping)
	run.notifyProgress()

	for offset := 0; offset < len(rows); offset += s.batchSize {
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}

		end := offset + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[offset:end]

		batchResults, err := s.processor.Classify(ctx, run.Marketplace, offset, batch)
		if err != nil {
			fail(err)
			return
		}
		results = append(results, batchResults...)

		if s.sales != nil {
			run.setPhase(PhasePersisting)
			n, err := s.sales.InsertRows(ctx, summary, batch, batchResults)
			persisted += n
			if err != nil {
				fail(err)
				return
			}
			run.setPhase(PhaseMapping)
		}

		run.updateProgress(len(results), persisted, results)
		run.notifyProgress()
	}

	summary.Mapped, summary.Unmapped, summary.Invalid = FoldCounts(results)
	summary.Persisted = persisted
	summary.FinishedAt = time.Now().UTC()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)

	s.finishRun(run, summary, results, PhaseComplete)
	s.logger.Info("run complete",
		"run_id", run.ID,
		"marketplace", run.Marketplace,
		"total", summary.TotalRows,
		"mapped", summary.Mapped,
		"unmapped", summary.Unmapped,
		"invalid", summary.Invalid,
		"persisted", summary.Persisted,
		"duration", summary.Duration)

	metrics.AddRowsProcessed(run.Marketplace, string(mapping.StatusMapped), summary.Mapped)
	metrics.AddRowsProcessed(run.Marketplace, string(mapping.StatusUnmapped), summary.Unmapped)
	metrics.AddRowsProcessed(run.Marketplace, string(mapping.StatusInvalid), summary.Invalid)
	metrics.ObserveRun(run.Marketplace, metrics.ResultSuccess, summary.Duration)
}

// finishRun stores the summary on the run handle and records it.
func (s *Service) finishRun(run *activeRun, summary *ProcessingRun, results []ProcessingResult, phase RunPhase) {
	run.progressMu.Lock()
	run.Run = summary
	run.Results = results
	run.Progress.Phase = phase
	run.Progress.CurrentRow = len(results)
	run.Progress.Mapped = summary.Mapped
	run.Progress.Unmapped = summary.Unmapped
	run.Progress.Invalid = summary.Invalid
	run.Progress.Persisted = summary.Persisted
	if summary.Failed {
		run.Progress.Error = summary.Error
	}
	run.progressMu.Unlock()

	run.notifyProgress()

	if s.sales != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.sales.SaveRun(saveCtx, summary); err != nil {
			s.logger.Error("save run summary", "run_id", summary.RunID, "error", err)
		}
	}
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the run completes.
func (s *Service) SubscribeProgress(runID string) (<-chan RunProgress, error) {
	run, ok := s.getRun(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	ch := make(chan RunProgress, 10)

	run.ListenerMu.Lock()
	select {
	case <-run.Done:
		// Already finished: deliver the final snapshot and close.
		ch <- run.snapshotProgress()
		close(ch)
		run.ListenerMu.Unlock()
		return ch, nil
	default:
	}
	run.Listeners = append(run.Listeners, ch)
	select {
	case ch <- run.snapshotProgress():
	default:
	}
	run.ListenerMu.Unlock()

	return ch, nil
}

// CancelRun cancels an in-progress run.
func (s *Service) CancelRun(runID string) error {
	run, ok := s.getRun(runID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	run.Cancel()
	return nil
}

// RunResult returns the final summary and per-row results of a run,
// blocking until the run completes if still in progress.
func (s *Service) RunResult(runID string) (*ProcessingRun, []ProcessingResult, error) {
	run, ok := s.getRun(runID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	<-run.Done

	run.progressMu.RLock()
	defer run.progressMu.RUnlock()
	return run.Run, run.Results, nil
}

// RunProgress returns the current progress without blocking.
func (s *Service) RunProgress(runID string) (RunProgress, error) {
	run, ok := s.getRun(runID)
	if !ok {
		return RunProgress{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run.snapshotProgress(), nil
}

// ActiveRunIDs returns the IDs of runs still being tracked.
func (s *Service) ActiveRunIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) getRun(runID string) (*activeRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	return run, ok
}

// cleanup removes the run from tracking after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

func (run *activeRun) setPhase(phase RunPhase) {
	run.progressMu.Lock()
	run.Progress.Phase = phase
	run.progressMu.Unlock()
}

func (run *activeRun) updateProgress(current, persisted int, results []ProcessingResult) {
	mapped, unmapped, invalid := FoldCounts(results)

	run.progressMu.Lock()
	run.Progress.CurrentRow = current
	run.Progress.Persisted = persisted
	run.Progress.Mapped = mapped
	run.Progress.Unmapped = unmapped
	run.Progress.Invalid = invalid
	run.progressMu.Unlock()
}

func (run *activeRun) snapshotProgress() RunProgress {
	run.progressMu.RLock()
	defer run.progressMu.RUnlock()
	return run.Progress
}

// notifyProgress sends progress updates to all listeners.
func (run *activeRun) notifyProgress() {
	snapshot := run.snapshotProgress()

	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	for _, ch := range run.Listeners {
		select {
		case ch <- snapshot:
		default:
			// Listener is slow, skip this update
		}
	}
}

// closeListeners closes all listener channels.
func (run *activeRun) closeListeners() {
	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	for _, ch := range run.Listeners {
		close(ch)
	}
	run.Listeners = nil
}
