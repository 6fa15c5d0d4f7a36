// Package cache holds redis-backed implementations of outbound cache ports.
package cache

import (
	"context"
	"time"

	"triage_server/core/domain"
	"triage_server/pkg/cache"

	"github.com/google/uuid"
)

const limitsKeyPrefix = "plan_limits:"

// jsonStore is the subset of pkg/cache.RedisCache the adapter uses.
type jsonStore interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// LimitsCache implements out.LimitsCache.
type LimitsCache struct {
	store jsonStore
}

// NewLimitsCache wraps a redis JSON cache.
func NewLimitsCache(rc *cache.RedisCache) *LimitsCache {
	return &LimitsCache{store: rc}
}

func limitsKey(tenantID uuid.UUID) string {
	return limitsKeyPrefix + tenantID.String()
}

func (c *LimitsCache) Get(ctx context.Context, tenantID uuid.UUID) (*domain.PlanLimits, bool, error) {
	var limits domain.PlanLimits
	ok, err := c.store.GetJSON(ctx, limitsKey(tenantID), &limits)
	if err != nil || !ok {
		return nil, false, err
	}
	return &limits, true, nil
}

func (c *LimitsCache) Set(ctx context.Context, tenantID uuid.UUID, limits domain.PlanLimits, ttl time.Duration) error {
	return c.store.SetJSON(ctx, limitsKey(tenantID), limits, ttl)
}

func (c *LimitsCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	return c.store.Delete(ctx, limitsKey(tenantID))
}
