package worker

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"triage_server/core/domain"
)

// Job types
const (
	JobRecompute   = string(domain.EventRecomputeRequested)
	JobPlanChanged = string(domain.EventPlanChanged)
	JobUsageReset  = string(domain.EventUsageReset)
)

// Message is one unit of work for the pool.
type Message struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Stream    string       `json:"stream"`
	Event     domain.Event `json:"event"`
	CreatedAt time.Time    `json:"created_at"`
	Retries   int          `json:"retries"`
}

// NewMessage wraps an event read from stream.
func NewMessage(stream string, ev domain.Event) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      string(ev.Type),
		Stream:    stream,
		Event:     ev,
		CreatedAt: time.Now(),
	}
}

// DecodeMessage parses a stream payload. Events without a tenant are rejected.
func DecodeMessage(stream string, data []byte) (*Message, error) {
	var ev domain.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.TenantID == uuid.Nil {
		return nil, fmt.Errorf("decode event: missing tenant_id")
	}
	return NewMessage(stream, ev), nil
}
