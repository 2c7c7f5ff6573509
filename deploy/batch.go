package deploy

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// BatchWidth is the fixed fan-out of concurrent sub-operations within
	// a phase.
	BatchWidth = 5

	// UploadAttempts is the per-item attempt budget for transfers.
	UploadAttempts = 3

	// RetryDelay is the fixed delay between attempts.
	RetryDelay = 500 * time.Millisecond
)

// BatchConfig parameterizes RunBatches. The zero value is completed with
// the package defaults.
type BatchConfig struct {
	Width    int
	Attempts int
	Delay    time.Duration

	// AfterBatch, when set, is called on the calling goroutine after each
	// batch joins, with the number of items completed so far and the total.
	AfterBatch func(done, total int)
}

func (c BatchConfig) withDefaults() BatchConfig {
	if c.Width <= 0 {
		c.Width = BatchWidth
	}
	if c.Attempts <= 0 {
		c.Attempts = UploadAttempts
	}
	if c.Delay <= 0 {
		c.Delay = RetryDelay
	}
	return c
}

// RunBatches processes items in fixed-size batches. Batches run strictly
// sequentially relative to each other; items within a batch run
// concurrently. Each item gets the configured number of attempts with a
// fixed delay between attempts; an item that exhausts its attempts fails
// the batch and aborts the run. The AfterBatch callback fires after each
// batch joins, which keeps emitted progress in batch-completion order
// rather than individual-item completion order.
func RunBatches[T any](ctx context.Context, items []T, cfg BatchConfig, fn func(context.Context, T) error) error {
	cfg = cfg.withDefaults()
	total := len(items)

	for start := 0; start < total; start += cfg.Width {
		end := start + cfg.Width
		if end > total {
			end = total
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, item := range items[start:end] {
			g.Go(func() error {
				return withRetry(gctx, cfg.Attempts, cfg.Delay, func() error {
					return fn(gctx, item)
				})
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if cfg.AfterBatch != nil {
			cfg.AfterBatch(end, total)
		}
	}
	return nil
}

// withRetry runs fn up to attempts times, sleeping delay between attempts.
// Context cancellation cuts the wait short and is returned as the error.
func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if i < attempts-1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("deploy: retry interrupted: %w", ctx.Err())
			}
		}
	}
	return lastErr
}
