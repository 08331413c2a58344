package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
)

const visibleListingKey = "projects:visible"

// CacheStore abstracts persistence for cached payloads.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ProjectCache keeps the visible project listing in Redis and drops it on
// any project mutation. Lookups degrade to the store on any cache error.
type ProjectCache struct {
	store   CacheStore
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewProjectCache constructs ProjectCache.
func NewProjectCache(store CacheStore, ttl time.Duration, logger *zap.Logger, enabled bool) *ProjectCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectCache{store: store, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (c *ProjectCache) Enabled() bool {
	return c != nil && c.enabled && c.store != nil
}

// GetListing returns the cached listing and whether the cache was hit.
func (c *ProjectCache) GetListing(ctx context.Context, key string) ([]models.ProjectDetail, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var projects []models.ProjectDetail
	if err := c.store.Get(ctx, key, &projects); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("project cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return projects, true
}

// SetListing stores the listing with the configured TTL.
func (c *ProjectCache) SetListing(ctx context.Context, key string, projects []models.ProjectDetail) {
	if !c.Enabled() {
		return
	}
	if err := c.store.Set(ctx, key, projects, c.ttl); err != nil {
		c.logger.Warn("project cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops all cached project listings.
func (c *ProjectCache) Invalidate(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	if err := c.store.DeleteByPattern(ctx, "projects:*"); err != nil {
		c.logger.Warn("project cache invalidate failed", zap.Error(err))
	}
}
