package sheets

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
)

type retryingClient struct {
	inner      Client
	sem        *semaphore.Weighted
	maxElapsed time.Duration
}

// NewRetryingClient decorates a Client with bounded exponential retry and
// a concurrency cap, so a slow or flaky spreadsheet backend cannot pile
// up unbounded in-flight pushes.
func NewRetryingClient(inner Client, maxConcurrent int64, maxElapsed time.Duration) Client {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &retryingClient{
		inner:      inner,
		sem:        semaphore.NewWeighted(maxConcurrent),
		maxElapsed: maxElapsed,
	}
}

func (c *retryingClient) Push(ctx context.Context, entry Entry) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	// BackOff implementations are stateful; always use a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed

	return backoff.Retry(func() error {
		err := c.inner.Push(ctx, entry)
		if err != nil && isRetryable(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}
