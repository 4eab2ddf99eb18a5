package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRunLimiter_AcquireRelease(t *testing.T) {
	limiter := NewRunLimiter(2, time.Second)

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("initial ActiveCount = %d, want 0", got)
	}
	if got := limiter.Available(); got != 2 {
		t.Errorf("initial Available = %d, want 2", got)
	}

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}

	if got := limiter.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
	if got := limiter.Available(); got != 0 {
		t.Errorf("Available = %d, want 0", got)
	}

	limiter.Release()
	limiter.Release()

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("after releases, ActiveCount = %d, want 0", got)
	}
}

func TestRunLimiter_RejectsWhenFull(t *testing.T) {
	limiter := NewRunLimiter(1, 100*time.Millisecond)

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	start := time.Now()
	err := limiter.Acquire(ctx)
	elapsed := time.Since(start)

	if err != ErrTooManyRuns {
		t.Errorf("expected ErrTooManyRuns, got %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("timeout too fast: %v", elapsed)
	}

	limiter.Release()
}

func TestRunLimiter_TryAcquire(t *testing.T) {
	limiter := NewRunLimiter(1, time.Second)

	if !limiter.TryAcquire() {
		t.Fatal("first TryAcquire = false, want true")
	}
	if limiter.TryAcquire() {
		t.Fatal("second TryAcquire = true, want false")
	}

	limiter.Release()

	if !limiter.TryAcquire() {
		t.Error("TryAcquire after Release = false, want true")
	}
	limiter.Release()
}

func TestRunLimiter_NeverExceedsMax(t *testing.T) {
	const maxConcurrent = 3
	const totalRequests = 10

	limiter := NewRunLimiter(maxConcurrent, time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxObserved := 0

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			mu.Lock()
			if current := limiter.ActiveCount(); current > maxObserved {
				maxObserved = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)
		}()
	}
	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("observed %d concurrent runs, limit is %d", maxObserved, maxConcurrent)
	}
}

func TestRunLimiter_WaitForDrain(t *testing.T) {
	limiter := NewRunLimiter(2, time.Second)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(150 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain() error = %v", err)
	}
}

func TestRunLimiter_CancelledAcquire(t *testing.T) {
	limiter := NewRunLimiter(1, time.Minute)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := limiter.Acquire(ctx); err != context.Canceled {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}

	limiter.Release()
}
