package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// SubscriptionAdapter implements out.SubscriptionRepository using sqlx.
type SubscriptionAdapter struct {
	db *sqlx.DB
}

func NewSubscriptionAdapter(db *sqlx.DB) *SubscriptionAdapter {
	return &SubscriptionAdapter{db: db}
}

var _ out.SubscriptionRepository = (*SubscriptionAdapter)(nil)

const subscriptionColumns = `tenant_id, plan, feedback_limit, project_limit,
    feedback_used_this_period, period_start, period_end, updated_at`

func (a *SubscriptionAdapter) Get(ctx context.Context, tenantID uuid.UUID) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE tenant_id = $1`
	if err := a.db.GetContext(ctx, &sub, query, tenantID); err != nil {
		return nil, mapError(err, "subscription", tenantID)
	}
	return &sub, nil
}

const upsertSubscriptionSQL = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES (:tenant_id, :plan, :feedback_limit, :project_limit,
        :feedback_used_this_period, :period_start, :period_end, :updated_at)
ON CONFLICT (tenant_id) DO UPDATE SET
    plan = EXCLUDED.plan,
    feedback_limit = EXCLUDED.feedback_limit,
    project_limit = EXCLUDED.project_limit,
    feedback_used_this_period = EXCLUDED.feedback_used_this_period,
    period_start = EXCLUDED.period_start,
    period_end = EXCLUDED.period_end,
    updated_at = EXCLUDED.updated_at`

func (a *SubscriptionAdapter) Upsert(ctx context.Context, sub *domain.Subscription) error {
	if _, err := a.db.NamedExecContext(ctx, upsertSubscriptionSQL, sub); err != nil {
		return mapError(err, "subscription", sub.TenantID)
	}
	return nil
}

// The insert branch creates the FREE row with usage already at one.
const incrementUsageSQL = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1, $2, $3, $4, 1, $5, $6, $5)
ON CONFLICT (tenant_id) DO UPDATE SET
    feedback_used_this_period = subscriptions.feedback_used_this_period + 1,
    updated_at = EXCLUDED.updated_at
RETURNING ` + subscriptionColumns

func (a *SubscriptionAdapter) IncrementUsage(ctx context.Context, tenantID uuid.UUID, now time.Time) (*domain.Subscription, error) {
	def := domain.DefaultSubscription(tenantID, now)
	var sub domain.Subscription
	err := a.db.GetContext(ctx, &sub, incrementUsageSQL,
		tenantID, def.Plan, def.FeedbackLimit, def.ProjectLimit, now, def.PeriodEnd)
	if err != nil {
		return nil, mapError(err, "subscription", tenantID)
	}
	return &sub, nil
}

const resetUsageSQL = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1, $2, $3, $4, 0, $5, $6, $5)
ON CONFLICT (tenant_id) DO UPDATE SET
    feedback_used_this_period = 0,
    period_start = EXCLUDED.period_start,
    period_end = EXCLUDED.period_end,
    updated_at = EXCLUDED.updated_at`

func (a *SubscriptionAdapter) ResetUsage(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) error {
	def := domain.DefaultSubscription(tenantID, periodStart)
	_, err := a.db.ExecContext(ctx, resetUsageSQL,
		tenantID, def.Plan, def.FeedbackLimit, def.ProjectLimit, periodStart, periodEnd)
	if err != nil {
		return mapError(err, "subscription", tenantID)
	}
	return nil
}

func (a *SubscriptionAdapter) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT tenant_id FROM subscriptions WHERE period_end <= $1 ORDER BY period_end ASC LIMIT $2`
	if err := a.db.SelectContext(ctx, &ids, query, now, limit); err != nil {
		return nil, storageErr("list expired subscriptions", err)
	}
	return ids, nil
}
