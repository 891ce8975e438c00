package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// WorkerPool bounds how many jobs run at once and optionally spaces their starts.
type WorkerPool struct {
	maxWorkers  int
	rateLimitMs int
	sem         *semaphore.Weighted
	mu          sync.Mutex
	lastRequest time.Time
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers:  maxWorkers,
		rateLimitMs: rateLimitMs,
		sem:         semaphore.NewWeighted(int64(maxWorkers)),
	}
}

// Size is the number of worker slots.
func (wp *WorkerPool) Size() int { return wp.maxWorkers }

// Submit blocks until a slot is free, then runs job in its own goroutine.
// It returns ctx.Err() if the context ends before a slot frees up.
func (wp *WorkerPool) Submit(ctx context.Context, job func()) error {
	if err := wp.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer wp.sem.Release(1)

		wp.enforceRateLimit()
		job()
	}()
	return nil
}

func (wp *WorkerPool) enforceRateLimit() {
	if wp.rateLimitMs <= 0 {
		return
	}
	wp.mu.Lock()
	defer wp.mu.Unlock()

	minInterval := time.Duration(wp.rateLimitMs) * time.Millisecond
	elapsed := time.Since(wp.lastRequest)
	if elapsed < minInterval {
		time.Sleep(minInterval - elapsed)
	}
	wp.lastRequest = time.Now()
}

// KeySet is a thread-safe set of strings used for first-seen deduplication.
type KeySet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}
