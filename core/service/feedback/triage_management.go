package feedback

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
)

// Management is the operator surface over stored feedback.
type Management struct {
	feedback   out.FeedbackRepository
	classifier in.Classifier
	ranker     in.VisibilityRanker
	log        *logger.Logger
	now        func() time.Time
}

func NewManagement(feedback out.FeedbackRepository, classifier in.Classifier, ranker in.VisibilityRanker, log *logger.Logger) *Management {
	if log == nil {
		log = logger.Default()
	}
	return &Management{
		feedback:   feedback,
		classifier: classifier,
		ranker:     ranker,
		log:        log.WithField("component", "feedback_management"),
		now:        time.Now,
	}
}

var _ in.FeedbackManagement = (*Management)(nil)

func (s *Management) List(ctx context.Context, filter domain.FeedbackFilter) ([]*domain.Feedback, int, error) {
	filter.Normalize()
	rows, total, err := s.feedback.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}
	return rows, total, nil
}

func (s *Management) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Feedback, error) {
	return s.feedback.GetByID(ctx, tenantID, id)
}

func (s *Management) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.FeedbackStatus) (*domain.Feedback, error) {
	if _, err := domain.ParseStatus(string(status)); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}
	if err := s.feedback.UpdateStatus(ctx, tenantID, id, status); err != nil {
		return nil, err
	}
	return s.feedback.GetByID(ctx, tenantID, id)
}

// UpdateOverride applies manual corrections. Clearing a field drops its
// manual value together with the flag.
func (s *Management) UpdateOverride(ctx context.Context, tenantID, id uuid.UUID, input in.OverrideInput) (*domain.Feedback, error) {
	f, err := s.feedback.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	o := f.Override
	switch {
	case input.ClearCategory:
		o.ClearCategory()
	case input.Category != nil:
		c, err := domain.ParseCategory(string(*input.Category))
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
		}
		o.SetCategory(c)
	}
	switch {
	case input.ClearSentiment:
		o.ClearSentiment()
	case input.Sentiment != nil:
		v, err := domain.ParseSentiment(string(*input.Sentiment))
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
		}
		o.SetSentiment(v)
	}

	if err := s.feedback.UpdateOverride(ctx, tenantID, id, o); err != nil {
		return nil, err
	}
	f.Override = o
	return f, nil
}

// UpdateNotes stores operator notes; blank notes are cleared.
func (s *Management) UpdateNotes(ctx context.Context, tenantID, id uuid.UUID, notes string) (*domain.Feedback, error) {
	if utf8.RuneCountInString(notes) > domain.MaxNotesLength {
		return nil, fmt.Errorf("notes exceed %d characters: %w", domain.MaxNotesLength, domain.ErrInvalidInput)
	}
	var value *string
	if notes != "" {
		value = &notes
	}
	if err := s.feedback.UpdateNotes(ctx, tenantID, id, value); err != nil {
		return nil, err
	}
	return s.feedback.GetByID(ctx, tenantID, id)
}

// Reanalyze runs the classifier again. Manual overrides are left in place.
func (s *Management) Reanalyze(ctx context.Context, tenantID, id uuid.UUID) (*domain.Feedback, error) {
	f, err := s.feedback.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	analysis := s.classifier.Classify(ctx, f.Content).Analysis(s.now())
	if err := s.feedback.UpdateAnalysis(ctx, tenantID, id, analysis); err != nil {
		return nil, err
	}
	f.Analysis = analysis
	return f, nil
}

// Delete removes the row and re-partitions the tenant so an older hidden row
// can take the freed slot.
func (s *Management) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.feedback.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.ranker.RecomputeVisibility(ctx, tenantID); err != nil {
		s.log.WithFields(map[string]any{"tenant_id": tenantID, "feedback_id": id}).
			WithError(err).Error("recompute after delete failed")
	}
	return nil
}

func (s *Management) Stats(ctx context.Context, tenantID uuid.UUID, projectID *uuid.UUID) (*domain.FeedbackStats, error) {
	st, err := s.feedback.Stats(ctx, tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("feedback stats: %w", err)
	}
	return st, nil
}
