package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"triage_server/core/port/in"
	"triage_server/pkg/logger"
)

// LimitsInvalidator drops cached plan limits.
type LimitsInvalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID)
}

// Handler applies triage jobs. Every job ends in a full recompute, which is
// idempotent, so duplicate deliveries are harmless.
type Handler struct {
	ranker in.VisibilityRanker
	limits LimitsInvalidator
}

func NewHandler(ranker in.VisibilityRanker, limits LimitsInvalidator) *Handler {
	return &Handler{ranker: ranker, limits: limits}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	log := logger.WithFields(map[string]any{
		"job_id":    msg.ID,
		"job_type":  msg.Type,
		"tenant_id": msg.Event.TenantID,
	})
	log.Debug("processing job")

	switch msg.Type {
	case JobRecompute, JobUsageReset:
	case JobPlanChanged:
		if h.limits != nil {
			h.limits.Invalidate(ctx, msg.Event.TenantID)
		}
	default:
		log.Warn("unknown job type: %s", msg.Type)
		return nil
	}

	if err := h.ranker.RecomputeVisibility(ctx, msg.Event.TenantID); err != nil {
		return fmt.Errorf("recompute for %s: %w", msg.Type, err)
	}
	return nil
}
