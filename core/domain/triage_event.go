package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a message on the triage stream.
type EventType string

const (
	EventRecomputeRequested EventType = "visibility.recompute"
	EventPlanChanged        EventType = "plan.changed"
	EventUsageReset         EventType = "usage.reset"
)

// Event is the envelope published to the stream.
type Event struct {
	Type       EventType `json:"type"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Reason     string    `json:"reason,omitempty"`
	OldPlan    Plan      `json:"old_plan,omitempty"`
	NewPlan    Plan      `json:"new_plan,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
