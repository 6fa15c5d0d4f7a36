// Package usage resolves plan limits, gates plan-limited actions and applies
// plan and billing-cycle changes.
package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
)

// Limits resolves a tenant's plan limits, reading through an optional cache.
// A tenant without a subscription row gets the FREE plan.
//
// Every Invalidate bumps the tenant's generation. Loads are deduplicated per
// generation and a load only writes the cache while its generation is still
// current, so a read that began before a plan change can neither be joined by
// later callers nor repopulate the cache with the old plan.
type Limits struct {
	subs  out.SubscriptionRepository
	cache out.LimitsCache
	ttl   time.Duration
	log   *logger.Logger
	group singleflight.Group

	mu  sync.Mutex
	gen map[uuid.UUID]uint64
}

func NewLimits(subs out.SubscriptionRepository, cache out.LimitsCache, ttl time.Duration, log *logger.Logger) *Limits {
	if log == nil {
		log = logger.Default()
	}
	return &Limits{
		subs:  subs,
		cache: cache,
		ttl:   ttl,
		log:   log.WithField("component", "plan_limits"),
		gen:   make(map[uuid.UUID]uint64),
	}
}

func (l *Limits) generation(tenantID uuid.UUID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen[tenantID]
}

func flightKey(tenantID uuid.UUID, gen uint64) string {
	return fmt.Sprintf("%s:%d", tenantID, gen)
}

// Resolve returns the limits in force for the tenant.
func (l *Limits) Resolve(ctx context.Context, tenantID uuid.UUID) (domain.PlanLimits, error) {
	if l.cache != nil {
		cached, ok, err := l.cache.Get(ctx, tenantID)
		if err != nil {
			l.log.WithField("tenant_id", tenantID).WithError(err).Warn("limits cache read failed")
		} else if ok {
			return *cached, nil
		}
	}

	gen := l.generation(tenantID)
	v, err, _ := l.group.Do(flightKey(tenantID, gen), func() (any, error) {
		return l.load(ctx, tenantID, gen)
	})
	if err != nil {
		return domain.PlanLimits{}, err
	}
	return v.(domain.PlanLimits), nil
}

// load reads the subscription and refills the cache when gen is still current.
func (l *Limits) load(ctx context.Context, tenantID uuid.UUID, gen uint64) (domain.PlanLimits, error) {
	limits := domain.PlanCatalog[domain.PlanFree]
	sub, err := l.subs.Get(ctx, tenantID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return domain.PlanLimits{}, fmt.Errorf("load subscription: %w", err)
	default:
		limits = domain.PlanLimits{FeedbackLimit: sub.FeedbackLimit, ProjectLimit: sub.ProjectLimit}
	}

	if l.cache == nil || l.generation(tenantID) != gen {
		return limits, nil
	}
	if err := l.cache.Set(ctx, tenantID, limits, l.ttl); err != nil {
		l.log.WithField("tenant_id", tenantID).WithError(err).Warn("limits cache write failed")
		return limits, nil
	}
	// an Invalidate that landed between the check and the write
	if l.generation(tenantID) != gen {
		l.dropCached(ctx, tenantID)
	}
	return limits, nil
}

// FeedbackLimit satisfies the ranker's limit lookup.
func (l *Limits) FeedbackLimit(ctx context.Context, tenantID uuid.UUID) (int, error) {
	limits, err := l.Resolve(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return limits.FeedbackLimit, nil
}

// Invalidate drops the cached limits and detaches any in-flight load.
// Cache failures are logged only.
func (l *Limits) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	l.mu.Lock()
	old := l.gen[tenantID]
	l.gen[tenantID] = old + 1
	l.mu.Unlock()
	l.group.Forget(flightKey(tenantID, old))

	l.dropCached(ctx, tenantID)
}

func (l *Limits) dropCached(ctx context.Context, tenantID uuid.UUID) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx, tenantID); err != nil {
		l.log.WithField("tenant_id", tenantID).WithError(err).Warn("limits cache invalidate failed")
	}
}

// subscriptionOrDefault returns the stored row or the unsaved FREE default.
func subscriptionOrDefault(ctx context.Context, subs out.SubscriptionRepository, tenantID uuid.UUID, now time.Time) (*domain.Subscription, error) {
	sub, err := subs.Get(ctx, tenantID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultSubscription(tenantID, now), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return sub, nil
}
