package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/voyagen/streamvault/internal/cache"
	"github.com/voyagen/streamvault/internal/models"
)

// Cache TTLs for provider reads.
const (
	ttlProviders = 2 * time.Minute
	ttlProvider  = 5 * time.Minute
)

// CachedStore wraps a Store with a Redis caching layer over provider reads.
// Provider rows sit on every request path (sync gating, EPG scheduling,
// stream URL building); catalog and EPG tables are left to their own
// query-shaped caches. Write operations invalidate the relevant keys.
type CachedStore struct {
	Store
	cache *cache.Redis
	log   *logrus.Logger
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis, log *logrus.Logger) *CachedStore {
	return &CachedStore{Store: inner, cache: c, log: log}
}

// --- cached reads ---

func (c *CachedStore) ListProviders(ctx context.Context) ([]models.Provider, error) {
	const key = "providers:all"
	if v, err := cache.Get[[]models.Provider](ctx, c.cache, key); err == nil {
		return v, nil
	}
	providers, err := c.Store.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, providers, ttlProviders); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache set failed")
	}
	return providers, nil
}

func (c *CachedStore) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	key := fmt.Sprintf("provider:%d", id)
	if v, err := cache.Get[models.Provider](ctx, c.cache, key); err == nil {
		return &v, nil
	}
	p, err := c.Store.GetProvider(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, p, ttlProvider); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache set failed")
	}
	return p, nil
}

// --- writes with invalidation ---

func (c *CachedStore) CreateProvider(ctx context.Context, p *models.Provider) (int64, error) {
	id, err := c.Store.CreateProvider(ctx, p)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, "providers:all")
	return id, nil
}

func (c *CachedStore) DeleteProvider(ctx context.Context, id int64) error {
	if err := c.Store.DeleteProvider(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, "providers:all", fmt.Sprintf("provider:%d", id))
	return nil
}

func (c *CachedStore) SetProviderSyncStatus(ctx context.Context, id int64, status string) error {
	if err := c.Store.SetProviderSyncStatus(ctx, id, status); err != nil {
		return err
	}
	c.invalidate(ctx, "providers:all", fmt.Sprintf("provider:%d", id))
	return nil
}

func (c *CachedStore) SetProviderKindSynced(ctx context.Context, id int64, kind string, count int) error {
	if err := c.Store.SetProviderKindSynced(ctx, id, kind, count); err != nil {
		return err
	}
	c.invalidate(ctx, "providers:all", fmt.Sprintf("provider:%d", id))
	return nil
}

func (c *CachedStore) SetProviderEPGSynced(ctx context.Context, id int64) error {
	if err := c.Store.SetProviderEPGSynced(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, "providers:all", fmt.Sprintf("provider:%d", id))
	return nil
}

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil {
		c.log.WithError(err).Warn("cache invalidation failed")
	}
}
