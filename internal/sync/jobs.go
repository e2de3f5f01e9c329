package sync

import (
	"context"
	"fmt"

	"github.com/voyagen/streamvault/internal/cache"
	"github.com/voyagen/streamvault/internal/store"
	"github.com/voyagen/streamvault/internal/upstream"
)

// JobQueue is the hand-off contract for deferred series-detail enrichment.
// Enqueue splits the provider's series into batches of batchSize and returns
// how many jobs were created. Consuming the jobs is an external concern.
type JobQueue interface {
	Enqueue(ctx context.Context, providerID int64, batchSize int) (int, error)
}

// RedisJobs enqueues detail batches onto the shared Redis list queue.
type RedisJobs struct {
	Redis *cache.Redis
	Store store.Store
}

func (j *RedisJobs) Enqueue(ctx context.Context, providerID int64, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	n, err := j.Store.CountSeries(ctx, providerID)
	if err != nil {
		return 0, fmt.Errorf("count series: %w", err)
	}
	jobs := (n + batchSize - 1) / batchSize
	for i := 0; i < jobs; i++ {
		job := cache.DetailJob{ProviderID: providerID, Batch: i, BatchSize: batchSize}
		if err := cache.Enqueue(ctx, j.Redis, cache.DetailQueue, job); err != nil {
			return i, fmt.Errorf("enqueue batch %d: %w", i, err)
		}
	}
	return jobs, nil
}

// NoJobs rejects enqueue mode; wired when Redis is not configured.
type NoJobs struct{}

func (NoJobs) Enqueue(context.Context, int64, int) (int, error) {
	return 0, upstream.ErrNotConfigured
}
