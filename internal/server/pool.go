package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"pdfsqueeze/internal/common"
	"pdfsqueeze/internal/compression"
)

// WorkerPool bounds how many compression requests run at once. Each worker
// handles one request to completion before taking the next.
type WorkerPool struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// NewWorkerPool creates a pool of size workers; size <= 0 picks
// common.DefaultWorkerCount.
func NewWorkerPool(size int, logger *slog.Logger) (*WorkerPool, error) {
	if size <= 0 {
		size = common.DefaultWorkerCount()
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &WorkerPool{pool: pool, logger: logger}, nil
}

// Run executes job on a worker and waits for it. Waiting for a free worker
// is bounded by ctx: a job still queued when ctx ends never runs and Run
// returns a transcode error. If ctx ends while the job runs Run returns
// ctx.Err(); the job keeps running until it observes ctx. A panicking job
// is reported as an error instead of killing the process.
func (wp *WorkerPool) Run(ctx context.Context, job func()) error {
	if err := ctx.Err(); err != nil {
		return queueError(err)
	}

	started := make(chan struct{})
	done := make(chan struct{})
	var panicErr error

	task := func() {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				wp.logger.Error("Worker panicked", "panic", p)
				panicErr = fmt.Errorf("worker panic: %v", p)
			}
		}()

		select {
		case <-ctx.Done():
			return
		default:
		}

		close(started)
		job()
	}

	// ants blocks in Submit until a worker is idle and does not watch ctx.
	submitted := make(chan error, 1)
	go func() {
		submitted <- wp.pool.Submit(task)
	}()

	select {
	case err := <-submitted:
		if err != nil {
			return fmt.Errorf("submit task: %w", err)
		}
	case <-ctx.Done():
		wp.logger.Warn("No worker became free before the deadline",
			"workers", wp.pool.Cap(), "error", ctx.Err())
		return queueError(ctx.Err())
	}

	select {
	case <-done:
		if panicErr != nil {
			return panicErr
		}
		if !isClosed(started) {
			return queueError(ctx.Err())
		}
		return nil
	case <-ctx.Done():
		if !isClosed(started) {
			return queueError(ctx.Err())
		}
		return ctx.Err()
	}
}

func queueError(err error) error {
	return &compression.Error{
		Kind:    compression.KindTranscode,
		Op:      "queue",
		Message: "no worker became free before the deadline",
		Err:     err,
		Timeout: errors.Is(err, context.DeadlineExceeded),
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Cap returns the number of workers.
func (wp *WorkerPool) Cap() int {
	return wp.pool.Cap()
}

// Running returns the number of busy workers.
func (wp *WorkerPool) Running() int {
	return wp.pool.Running()
}

// Release stops the pool after in-flight jobs finish.
func (wp *WorkerPool) Release() {
	wp.pool.Release()
}
