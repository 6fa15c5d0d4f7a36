package out

import (
	"context"
	"time"

	"triage_server/core/domain"

	"github.com/google/uuid"
)

// ClassificationProvider is the external AI tier. It returns an error on any
// failure, including responses that do not fit the schema.
type ClassificationProvider interface {
	Classify(ctx context.Context, content string) (*domain.ClassificationResult, error)
}

// LimitsCache caches resolved plan limits per tenant.
type LimitsCache interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*domain.PlanLimits, bool, error)
	Set(ctx context.Context, tenantID uuid.UUID, limits domain.PlanLimits, ttl time.Duration) error
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// EventPublisher publishes triage events and jobs to the stream.
type EventPublisher interface {
	Publish(ctx context.Context, ev *domain.Event) error
}

// AuditSink stores audit records.
type AuditSink interface {
	RecordAudit(ctx context.Context, ev *domain.AuditEvent) error
}
