package out

import (
	"context"
	"time"

	"triage_server/core/domain"

	"github.com/google/uuid"
)

// TxManager runs fn inside one database transaction. Repositories called with
// the ctx handed to fn join that transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// FeedbackRepository persists feedback rows. Every tenant-scoped call joins
// through projects so one tenant can never touch another tenant's rows.
type FeedbackRepository interface {
	Create(ctx context.Context, f *domain.Feedback) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Feedback, error)
	List(ctx context.Context, filter domain.FeedbackFilter) ([]*domain.Feedback, int, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.FeedbackStatus) error
	UpdateOverride(ctx context.Context, tenantID, id uuid.UUID, o domain.Override) error
	UpdateNotes(ctx context.Context, tenantID, id uuid.UUID, notes *string) error
	UpdateAnalysis(ctx context.Context, tenantID, id uuid.UUID, a *domain.Analysis) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	Stats(ctx context.Context, tenantID uuid.UUID, projectID *uuid.UUID) (*domain.FeedbackStats, error)
	CountVisibility(ctx context.Context, tenantID uuid.UUID) (visible, hidden int, err error)
}

// FastPathState is what the incremental ranker needs to decide whether a
// single shift is enough. Counts are tenant wide.
type FastPathState struct {
	Exists        bool
	Total         int // all rows, including the new one
	VisibleOthers int // visible rows other than the new one
	DistinctRanks int // distinct ranks among those rows
	MaxRank       int
	Newer         int // rows ordered before the new one (created later)
}

// VisibilityStore is the ranker's persistence surface. Callers hold the tenant
// lock for the duration of the enclosing transaction.
type VisibilityStore interface {
	LockTenant(ctx context.Context, tenantID uuid.UUID) error
	ProjectIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	// OrderedFeedbackIDs returns ids newest first: created_at DESC, seq DESC.
	OrderedFeedbackIDs(ctx context.Context, projectIDs []uuid.UUID) ([]uuid.UUID, error)
	// MarkVisible sets is_visible and rank = position+1 for each id in one statement.
	MarkVisible(ctx context.Context, ids []uuid.UUID) error
	MarkHidden(ctx context.Context, ids []uuid.UUID) error
	FastPathState(ctx context.Context, tenantID, feedbackID uuid.UUID) (*FastPathState, error)
	// PromoteNewest gives feedbackID rank 1 and shifts every other visible row of the tenant by one.
	PromoteNewest(ctx context.Context, tenantID, feedbackID uuid.UUID) error
}

// ProjectRepository persists projects.
type ProjectRepository interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Project, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// SubscriptionRepository persists per-tenant plan and usage state. Get
// returns domain.ErrNotFound when the tenant never had a row written.
type SubscriptionRepository interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*domain.Subscription, error)
	Upsert(ctx context.Context, s *domain.Subscription) error
	// IncrementUsage creates the FREE row when missing and returns the state after the increment.
	IncrementUsage(ctx context.Context, tenantID uuid.UUID, now time.Time) (*domain.Subscription, error)
	ResetUsage(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}
