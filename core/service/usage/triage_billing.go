package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
)

// resetBatchSize caps how many expired subscriptions one scan picks up.
const resetBatchSize = 100

// Recomputer re-partitions a tenant's feedback for a known limit.
type Recomputer interface {
	RecomputeWithLimit(ctx context.Context, tenantID uuid.UUID, limit int) error
}

// Billing applies plan changes and billing-cycle resets. Each change ends
// with a full visibility recompute using the limit it just saved, never a
// cached one.
type Billing struct {
	subs      out.SubscriptionRepository
	limits    *Limits
	ranker    Recomputer
	publisher out.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

func NewBilling(subs out.SubscriptionRepository, limits *Limits, ranker Recomputer, publisher out.EventPublisher, log *logger.Logger) *Billing {
	if log == nil {
		log = logger.Default()
	}
	return &Billing{
		subs:      subs,
		limits:    limits,
		ranker:    ranker,
		publisher: publisher,
		log:       log.WithField("component", "billing"),
		now:       time.Now,
	}
}

var _ in.BillingService = (*Billing)(nil)

// ChangePlan moves the tenant to plan and re-partitions its feedback.
func (b *Billing) ChangePlan(ctx context.Context, tenantID uuid.UUID, plan domain.Plan) (*domain.Subscription, error) {
	limits, ok := domain.PlanCatalog[plan]
	if !ok {
		return nil, fmt.Errorf("plan %q: %w", plan, domain.ErrInvalidInput)
	}

	now := b.now()
	sub, err := subscriptionOrDefault(ctx, b.subs, tenantID, now)
	if err != nil {
		return nil, err
	}
	oldPlan := sub.Plan

	sub.Plan = plan
	sub.FeedbackLimit = limits.FeedbackLimit
	sub.ProjectLimit = limits.ProjectLimit
	sub.UpdatedAt = now
	if err := b.subs.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	b.limits.Invalidate(ctx, tenantID)

	b.log.WithFields(map[string]any{
		"tenant_id": tenantID,
		"old_plan":  oldPlan,
		"new_plan":  plan,
	}).Info("plan changed")

	b.recompute(ctx, tenantID, limits.FeedbackLimit, "plan change")
	b.publish(ctx, &domain.Event{
		Type:       domain.EventPlanChanged,
		TenantID:   tenantID,
		OldPlan:    oldPlan,
		NewPlan:    plan,
		OccurredAt: now,
	})
	return sub, nil
}

// ResetBillingCycle zeroes usage and starts a new period now.
func (b *Billing) ResetBillingCycle(ctx context.Context, tenantID uuid.UUID) (*domain.Subscription, error) {
	now := b.now()
	if err := b.subs.ResetUsage(ctx, tenantID, now, now.Add(domain.BillingPeriod)); err != nil {
		return nil, fmt.Errorf("reset usage: %w", err)
	}
	b.limits.Invalidate(ctx, tenantID)

	sub, err := subscriptionOrDefault(ctx, b.subs, tenantID, now)
	if err != nil {
		return nil, err
	}
	b.recompute(ctx, tenantID, sub.FeedbackLimit, "billing cycle reset")
	b.publish(ctx, &domain.Event{
		Type:       domain.EventUsageReset,
		TenantID:   tenantID,
		OccurredAt: now,
	})
	return sub, nil
}

// ResetExpiredPeriods resets every subscription whose period ended at or
// before now and returns how many were reset. A failing tenant is logged and
// skipped.
func (b *Billing) ResetExpiredPeriods(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		ids, err := b.subs.ListExpired(ctx, now, resetBatchSize)
		if err != nil {
			return total, fmt.Errorf("list expired subscriptions: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		reset := 0
		for _, id := range ids {
			if _, err := b.ResetBillingCycle(ctx, id); err != nil {
				b.log.WithField("tenant_id", id).WithError(err).Error("billing cycle reset failed")
				continue
			}
			reset++
		}
		total += reset
		// the same rows would come back on the next scan
		if reset == 0 || len(ids) < resetBatchSize {
			break
		}
	}
	if total > 0 {
		b.log.WithField("count", total).Info("expired billing periods reset")
	}
	return total, nil
}

// recompute falls back to an async job when the inline recompute fails.
func (b *Billing) recompute(ctx context.Context, tenantID uuid.UUID, limit int, reason string) {
	err := b.ranker.RecomputeWithLimit(ctx, tenantID, limit)
	if err == nil {
		return
	}
	b.log.WithField("tenant_id", tenantID).WithError(err).Error("visibility recompute after %s failed", reason)
	b.publish(ctx, &domain.Event{
		Type:       domain.EventRecomputeRequested,
		TenantID:   tenantID,
		Reason:     reason,
		OccurredAt: b.now(),
	})
}

func (b *Billing) publish(ctx context.Context, ev *domain.Event) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.Publish(ctx, ev); err != nil {
		b.log.WithFields(map[string]any{
			"tenant_id": ev.TenantID,
			"event":     ev.Type,
		}).WithError(err).Warn("event publish failed")
	}
}
