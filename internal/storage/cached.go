package storage

import (
	"context"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/pkg/logger"
	"github.com/wonny/leadscore/pkg/redis"
)

// Repository is a sink that can also serve what it stored
type Repository interface {
	contracts.FeatureWriter
	contracts.FeatureStore
}

// CachedFeatures fronts a Repository with Redis.
// Tables are cached per (config hash, run id) so a config change never
// serves a stale layout; the latest-run pointer is short-lived and dropped
// on every write.
type CachedFeatures struct {
	inner  Repository
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCachedFeatures wraps inner with cache
func NewCachedFeatures(inner Repository, cache *redis.Cache, log *logger.Logger) *CachedFeatures {
	return &CachedFeatures{
		inner:  inner,
		cache:  cache,
		logger: log.WithComponent("storage.cache"),
	}
}

// Write implements contracts.FeatureWriter
func (c *CachedFeatures) Write(ctx context.Context, report *contracts.RunReport, table *contracts.FeatureTable) error {
	if err := c.inner.Write(ctx, report, table); err != nil {
		return err
	}

	if err := c.cache.Delete(ctx, redis.LatestRunKey()); err != nil {
		c.logger.WithError(err).Warn("latest run cache invalidation failed")
	}
	if err := c.cache.Set(ctx, redis.FeatureTableKey(report.RunID, report.ConfigHash), table, 0); err != nil {
		c.logger.WithError(err).Warn("feature table cache warm failed")
	}
	return nil
}

// LatestRun implements contracts.FeatureStore
func (c *CachedFeatures) LatestRun(ctx context.Context) (*contracts.RunReport, error) {
	var report contracts.RunReport
	found, err := c.cache.Get(ctx, redis.LatestRunKey(), &report)
	if err != nil {
		c.logger.WithError(err).Warn("latest run cache read failed")
	}
	if found {
		return &report, nil
	}

	latest, err := c.inner.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, redis.LatestRunKey(), latest, redis.TTLShort); err != nil {
		c.logger.WithError(err).Warn("latest run cache write failed")
	}
	return latest, nil
}

// LatestTable implements contracts.FeatureStore
func (c *CachedFeatures) LatestTable(ctx context.Context) (*contracts.FeatureTable, error) {
	report, err := c.LatestRun(ctx)
	if err != nil {
		return nil, err
	}

	key := redis.FeatureTableKey(report.RunID, report.ConfigHash)
	var table contracts.FeatureTable
	found, err := c.cache.Get(ctx, key, &table)
	if err != nil {
		c.logger.WithError(err).Warn("feature table cache read failed")
	}
	if found {
		return &table, nil
	}

	latest, err := c.inner.LatestTable(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, latest, 0); err != nil {
		c.logger.WithError(err).Warn("feature table cache write failed")
	}
	return latest, nil
}
