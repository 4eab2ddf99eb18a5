package core

// run_limiter.go implements concurrency control for processing runs.
//
// The limiter uses a semaphore pattern to restrict parallel runs to a
// configurable maximum, preventing resource exhaustion under load. When all
// slots are occupied, new requests wait up to maxWait before failing with
// ErrTooManyRuns.
//
// The limiter also supports graceful shutdown via WaitForDrain, which blocks
// until all active runs complete.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRuns is returned when all run slots are occupied and the wait
// timeout expires. Clients should retry after a short delay.
var ErrTooManyRuns = errors.New("too many concurrent runs, please try again later")

// DefaultMaxConcurrentRuns is the default limit for parallel runs.
const DefaultMaxConcurrentRuns = 5

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// RunLimiter controls concurrent run processing using a semaphore pattern.
type RunLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewRunLimiter creates a limiter that allows at most maxConcurrent
// simultaneous runs. Requests that cannot acquire a slot within maxWait
// receive ErrTooManyRuns.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &RunLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire attempts to acquire a run slot.
// Returns nil on success, ErrTooManyRuns if the timeout expires.
// The caller MUST call Release() when the run completes (use defer).
func (l *RunLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRuns

	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire attempts to acquire a slot without blocking.
func (l *RunLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release releases a previously acquired slot.
// Must be called exactly once for each successful Acquire/TryAcquire.
func (l *RunLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of currently active runs.
func (l *RunLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the maximum allowed concurrent runs.
func (l *RunLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of available slots.
func (l *RunLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until all active runs complete or the context is
// cancelled. Used for graceful shutdown.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// RunLimiterStatus is a snapshot of the limiter's current state.
type RunLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring.
func (l *RunLimiter) Status() RunLimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return RunLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
