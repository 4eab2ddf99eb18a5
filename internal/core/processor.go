package core

// processor.go classifies sales rows against the SKU mapper.
//
// Rows are independent: each one is validated and resolved on its own, and
// per-row problems (missing field, invalid SKU, no mapping) become statuses
// on the row's ProcessingResult rather than errors. Only storage-layer
// failures abort classification, surfaced as ErrPersistence.

import (
	"context"
	"fmt"
	"sync"

	"github.com/warecross/wms/internal/ingest"
	"github.com/warecross/wms/internal/mapping"
)

// ReasonMissingField is the result reason for rows lacking a required column.
const ReasonMissingField = "missing_field"

// Processor resolves row batches through the mapper, optionally spreading
// the work over a bounded worker pool. Output order always matches input
// order regardless of worker interleaving.
type Processor struct {
	mapper  *mapping.Mapper
	workers int
}

// NewProcessor creates a processor. workers <= 1 means sequential processing.
func NewProcessor(mapper *mapping.Mapper, workers int) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{mapper: mapper, workers: workers}
}

// Classify produces one ProcessingResult per input row, in input order.
// baseIndex is the row index of rows[0] within the whole run, so batches
// carry global indices. A storage failure aborts with ErrPersistence;
// everything row-local is recovered into the row's result.
func (p *Processor) Classify(ctx context.Context, marketplace string, baseIndex int, rows []ingest.RowRecord) ([]ProcessingResult, error) {
	results := make([]ProcessingResult, len(rows))
	if len(rows) == 0 {
		return results, nil
	}

	workers := p.workers
	if workers > len(rows) {
		workers = len(rows)
	}

	if workers == 1 {
		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := p.classifyRow(ctx, marketplace, baseIndex+i, row)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		errMu.Unlock()
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := p.classifyRow(workCtx, marketplace, baseIndex+i, rows[i])
				if err != nil {
					fail(err)
					return
				}
				results[i] = res
			}
		}()
	}

feed:
	for i := range rows {
		select {
		case jobs <- i:
		case <-workCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Processor) classifyRow(ctx context.Context, marketplace string, index int, row ingest.RowRecord) (ProcessingResult, error) {
	res := ProcessingResult{
		RowIndex:   index,
		LineNumber: row.LineNumber,
		RawSKU:     row.RawSKU,
	}

	if row.MissingField != "" {
		res.Status = mapping.StatusInvalid
		res.Reason = ReasonMissingField
		return res, nil
	}

	out, err := p.mapper.Resolve(ctx, row.RawSKU, marketplace)
	if err != nil {
		return res, fmt.Errorf("%w: row %d: %v", ErrPersistence, index, err)
	}

	res.Status = out.Status
	res.MSKU = out.MSKU
	res.Reason = out.Reason
	return res, nil
}
