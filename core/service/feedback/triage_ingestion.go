// Package feedback implements widget ingestion and the operator workflow over
// stored feedback.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
	"triage_server/pkg/metrics"
	"triage_server/pkg/snowflake"
)

// Ingestion handles public submissions. Once the row is stored, failures in
// visibility bookkeeping or usage counting never reach the submitter.
type Ingestion struct {
	projects   out.ProjectRepository
	feedback   out.FeedbackRepository
	classifier in.Classifier
	ranker     in.VisibilityRanker
	usage      in.UsageGate
	publisher  out.EventPublisher
	ids        *snowflake.Generator
	latency    *metrics.LatencyRegistry
	log        *logger.Logger
	now        func() time.Time
}

type IngestionDeps struct {
	Projects   out.ProjectRepository
	Feedback   out.FeedbackRepository
	Classifier in.Classifier
	Ranker     in.VisibilityRanker
	Usage      in.UsageGate
	Publisher  out.EventPublisher
	IDs        *snowflake.Generator
	Latency    *metrics.LatencyRegistry
	Log        *logger.Logger
}

func NewIngestion(d IngestionDeps) *Ingestion {
	if d.Latency == nil {
		d.Latency = metrics.GlobalRegistry()
	}
	if d.Log == nil {
		d.Log = logger.Default()
	}
	return &Ingestion{
		projects:   d.Projects,
		feedback:   d.Feedback,
		classifier: d.Classifier,
		ranker:     d.Ranker,
		usage:      d.Usage,
		publisher:  d.Publisher,
		ids:        d.IDs,
		latency:    d.Latency,
		log:        d.Log.WithField("component", "ingestion"),
		now:        time.Now,
	}
}

var _ in.FeedbackIngestion = (*Ingestion)(nil)

// Submit stores one widget submission and returns the stored row.
func (s *Ingestion) Submit(ctx context.Context, input in.SubmitInput) (*domain.Feedback, error) {
	start := time.Now()

	content := Sanitize(input.Content)
	if err := validateContent(content); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, input.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("project %s: %w", input.ProjectID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !project.AllowsOrigin(input.Origin) {
		return nil, fmt.Errorf("origin %q for project %s: %w", input.Origin, project.ID, domain.ErrOriginNotAllowed)
	}

	result := s.classifier.Classify(ctx, content)

	now := s.now()
	f := &domain.Feedback{
		ID:               uuid.New(),
		ProjectID:        project.ID,
		Seq:              s.ids.Next(),
		Content:          content,
		ContributorEmail: email,
		Status:           domain.StatusPending,
		Analysis:         result.Analysis(now),
		Visibility:       domain.Hidden(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.feedback.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("store feedback: %w", err)
	}

	log := s.log.WithFields(map[string]any{
		"tenant_id":   project.TenantID,
		"project_id":  project.ID,
		"feedback_id": f.ID,
	})

	if err := s.ranker.HandleFeedbackCreation(ctx, project.TenantID, f.ID); err != nil {
		log.WithError(err).Error("visibility update failed, queueing recompute")
		s.queueRecompute(ctx, project.TenantID, "ingestion fast path failed")
	} else if stored, err := s.feedback.GetByID(ctx, project.TenantID, f.ID); err == nil {
		f.Visibility = stored.Visibility
	}

	if _, err := s.usage.IncrementFeedbackUsage(ctx, project.TenantID); err != nil {
		log.WithError(err).Error("usage increment failed")
	}

	s.latency.Since(metrics.OpSubmit, start)
	log.WithFields(map[string]any{
		"category":  result.Category,
		"sentiment": result.Sentiment,
		"method":    result.Method,
		"visible":   f.Visibility.IsVisible(),
	}).WithDuration(time.Since(start)).Info("feedback stored")
	return f, nil
}

func (s *Ingestion) queueRecompute(ctx context.Context, tenantID uuid.UUID, reason string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(context.WithoutCancel(ctx), &domain.Event{
		Type:       domain.EventRecomputeRequested,
		TenantID:   tenantID,
		Reason:     reason,
		OccurredAt: s.now(),
	})
	if err != nil {
		s.log.WithField("tenant_id", tenantID).WithError(err).Error("recompute job publish failed")
	}
}
