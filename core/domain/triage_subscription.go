package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanStarter Plan = "STARTER"
	PlanPro     Plan = "PRO"
)

// PlanLimits are the numeric allowances of a plan.
type PlanLimits struct {
	FeedbackLimit int `json:"feedback_limit"`
	ProjectLimit  int `json:"project_limit"`
}

// PlanCatalog maps each plan to its limits.
var PlanCatalog = map[Plan]PlanLimits{
	PlanFree:    {FeedbackLimit: 25, ProjectLimit: 1},
	PlanStarter: {FeedbackLimit: 500, ProjectLimit: 3},
	PlanPro:     {FeedbackLimit: 5000, ProjectLimit: 10},
}

func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := PlanCatalog[p]; !ok {
		return "", fmt.Errorf("unknown plan %q", s)
	}
	return p, nil
}

// BillingPeriod is the length of one usage cycle.
const BillingPeriod = 30 * 24 * time.Hour

// Subscription is the per-tenant usage state.
type Subscription struct {
	TenantID               uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Plan                   Plan      `json:"plan" db:"plan"`
	FeedbackLimit          int       `json:"feedback_limit" db:"feedback_limit"`
	ProjectLimit           int       `json:"project_limit" db:"project_limit"`
	FeedbackUsedThisPeriod int       `json:"feedback_used_this_period" db:"feedback_used_this_period"`
	PeriodStart            time.Time `json:"period_start" db:"period_start"`
	PeriodEnd              time.Time `json:"period_end" db:"period_end"`
	UpdatedAt              time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultSubscription is what a tenant without a stored row gets.
func DefaultSubscription(tenantID uuid.UUID, now time.Time) *Subscription {
	limits := PlanCatalog[PlanFree]
	return &Subscription{
		TenantID:      tenantID,
		Plan:          PlanFree,
		FeedbackLimit: limits.FeedbackLimit,
		ProjectLimit:  limits.ProjectLimit,
		PeriodStart:   now,
		PeriodEnd:     now.Add(BillingPeriod),
		UpdatedAt:     now,
	}
}

// UsageSummary is the tenant-facing usage view.
type UsageSummary struct {
	Plan          Plan      `json:"plan"`
	FeedbackUsed  int       `json:"feedback_used"`
	FeedbackLimit int       `json:"feedback_limit"`
	Remaining     int       `json:"remaining"`
	ProjectCount  int       `json:"project_count"`
	ProjectLimit  int       `json:"project_limit"`
	VisibleCount  int       `json:"visible_count"`
	HiddenCount   int       `json:"hidden_count"`
	PeriodEnd     time.Time `json:"period_end"`
}
