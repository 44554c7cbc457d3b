// internal/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/models"
	"psychosocial-workers/internal/risk/criteria"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "risk:criteria"

// CachedCriteria is a read-through Redis cache in front of a criteria
// provider. Redis failures degrade to the underlying provider.
type CachedCriteria struct {
	next   criteria.Provider
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedCriteria(next criteria.Provider, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedCriteria {
	return &CachedCriteria{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "criteria-cache"}),
	}
}

func weightsKey(companyID string) string {
	return fmt.Sprintf("%s:weights:%s", cacheKeyPrefix, companyID)
}

func sectorKey(companyID, sectorID string) string {
	return fmt.Sprintf("%s:sector:%s:%s", cacheKeyPrefix, companyID, sectorID)
}

func (c *CachedCriteria) CategoryWeights(ctx context.Context, companyID string) ([]models.CategoryWeight, error) {
	key := weightsKey(companyID)

	var cached []models.CategoryWeight
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	weights, err := c.next.CategoryWeights(ctx, companyID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, weights)
	return weights, nil
}

// SectorProfile caches misses too, stored as JSON null.
func (c *CachedCriteria) SectorProfile(ctx context.Context, companyID, sectorID string) (*models.SectorRiskProfile, error) {
	key := sectorKey(companyID, sectorID)

	var cached *models.SectorRiskProfile
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	profile, err := c.next.SectorProfile(ctx, companyID, sectorID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, profile)
	return profile, nil
}

// Invalidate drops the cached weights of a company. Sector entries expire on TTL.
func (c *CachedCriteria) Invalidate(ctx context.Context, companyID string) error {
	return c.rdb.Del(ctx, weightsKey(companyID)).Err()
}

func (c *CachedCriteria) get(ctx context.Context, key string, dest interface{}) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err})
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("cache entry corrupt", map[string]interface{}{"key": key, "error": err})
		return false
	}
	return true
}

func (c *CachedCriteria) set(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}
