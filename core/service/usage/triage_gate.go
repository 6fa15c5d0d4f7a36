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

// Gate decides plan-limited actions and counts feedback usage.
type Gate struct {
	limits   *Limits
	subs     out.SubscriptionRepository
	projects out.ProjectRepository
	feedback out.FeedbackRepository
	ranker   in.VisibilityRanker
	log      *logger.Logger
	now      func() time.Time
}

func NewGate(
	limits *Limits,
	subs out.SubscriptionRepository,
	projects out.ProjectRepository,
	feedback out.FeedbackRepository,
	ranker in.VisibilityRanker,
	log *logger.Logger,
) *Gate {
	if log == nil {
		log = logger.Default()
	}
	return &Gate{
		limits:   limits,
		subs:     subs,
		projects: projects,
		feedback: feedback,
		ranker:   ranker,
		log:      log.WithField("component", "usage_gate"),
		now:      time.Now,
	}
}

var _ in.UsageGate = (*Gate)(nil)

// CanCreateProject reports whether the tenant is below its project limit.
func (g *Gate) CanCreateProject(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	limits, err := g.limits.Resolve(ctx, tenantID)
	if err != nil {
		return false, err
	}
	count, err := g.projects.CountByTenant(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("count projects: %w", err)
	}
	return count < limits.ProjectLimit, nil
}

// IncrementFeedbackUsage bumps the period counter and returns the new value.
// When the increment moves usage from at-or-below the limit to above it the
// tenant's visibility is recomputed.
func (g *Gate) IncrementFeedbackUsage(ctx context.Context, tenantID uuid.UUID) (int, error) {
	sub, err := g.subs.IncrementUsage(ctx, tenantID, g.now())
	if err != nil {
		return 0, fmt.Errorf("increment usage: %w", err)
	}

	used := sub.FeedbackUsedThisPeriod
	if used-1 <= sub.FeedbackLimit && used > sub.FeedbackLimit {
		g.log.WithFields(map[string]any{
			"tenant_id": tenantID,
			"used":      used,
			"limit":     sub.FeedbackLimit,
		}).Info("feedback usage crossed plan limit, recomputing visibility")
		if err := g.ranker.RecomputeVisibility(ctx, tenantID); err != nil {
			return used, fmt.Errorf("recompute after limit crossing: %w", err)
		}
	}
	return used, nil
}

// Usage summarizes plan, usage and visibility counts for the tenant.
func (g *Gate) Usage(ctx context.Context, tenantID uuid.UUID) (*domain.UsageSummary, error) {
	sub, err := subscriptionOrDefault(ctx, g.subs, tenantID, g.now())
	if err != nil {
		return nil, err
	}
	projects, err := g.projects.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	visible, hidden, err := g.feedback.CountVisibility(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count visibility: %w", err)
	}

	return &domain.UsageSummary{
		Plan:          sub.Plan,
		FeedbackUsed:  sub.FeedbackUsedThisPeriod,
		FeedbackLimit: sub.FeedbackLimit,
		Remaining:     max(0, sub.FeedbackLimit-sub.FeedbackUsedThisPeriod),
		ProjectCount:  projects,
		ProjectLimit:  sub.ProjectLimit,
		VisibleCount:  visible,
		HiddenCount:   hidden,
		PeriodEnd:     sub.PeriodEnd,
	}, nil
}
