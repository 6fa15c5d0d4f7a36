package in

import (
	"context"
	"time"

	"triage_server/core/domain"

	"github.com/google/uuid"
)

// Classifier turns free text into a classification. It never fails.
type Classifier interface {
	Classify(ctx context.Context, content string) *domain.ClassificationResult
}

// VisibilityRanker maintains the visible prefix of a tenant's feedback.
type VisibilityRanker interface {
	RecomputeVisibility(ctx context.Context, tenantID uuid.UUID) error
	HandleFeedbackCreation(ctx context.Context, tenantID, feedbackID uuid.UUID) error
}

// UsageGate decides plan-limited actions and tracks usage.
type UsageGate interface {
	CanCreateProject(ctx context.Context, tenantID uuid.UUID) (bool, error)
	IncrementFeedbackUsage(ctx context.Context, tenantID uuid.UUID) (int, error)
	Usage(ctx context.Context, tenantID uuid.UUID) (*domain.UsageSummary, error)
}

// BillingService reacts to plan and billing-cycle changes.
type BillingService interface {
	ChangePlan(ctx context.Context, tenantID uuid.UUID, plan domain.Plan) (*domain.Subscription, error)
	ResetBillingCycle(ctx context.Context, tenantID uuid.UUID) (*domain.Subscription, error)
	ResetExpiredPeriods(ctx context.Context, now time.Time) (int, error)
}

// SubmitInput is a widget submission before sanitization.
type SubmitInput struct {
	ProjectID uuid.UUID
	Content   string
	Email     string
	Origin    string
}

// FeedbackIngestion handles public submissions.
type FeedbackIngestion interface {
	Submit(ctx context.Context, in SubmitInput) (*domain.Feedback, error)
}

// OverrideInput sets or clears manual values. A nil pointer leaves the field
// alone; Clear* wins over a value.
type OverrideInput struct {
	Category       *domain.Category
	Sentiment      *domain.Sentiment
	ClearCategory  bool
	ClearSentiment bool
}

// FeedbackManagement is the operator dashboard surface.
type FeedbackManagement interface {
	List(ctx context.Context, filter domain.FeedbackFilter) ([]*domain.Feedback, int, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Feedback, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.FeedbackStatus) (*domain.Feedback, error)
	UpdateOverride(ctx context.Context, tenantID, id uuid.UUID, in OverrideInput) (*domain.Feedback, error)
	UpdateNotes(ctx context.Context, tenantID, id uuid.UUID, notes string) (*domain.Feedback, error)
	Reanalyze(ctx context.Context, tenantID, id uuid.UUID) (*domain.Feedback, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	Stats(ctx context.Context, tenantID uuid.UUID, projectID *uuid.UUID) (*domain.FeedbackStats, error)
}

// CreateProjectInput is an operator's new project.
type CreateProjectInput struct {
	Name           string
	AllowedOrigins []string
}

// ProjectService manages a tenant's projects.
type ProjectService interface {
	Create(ctx context.Context, tenantID uuid.UUID, in CreateProjectInput) (*domain.Project, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*domain.Project, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
