package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// StaticLimits resolves every tenant to a fixed limit unless overridden.
type StaticLimits struct {
	mu       sync.Mutex
	Default  int
	ByTenant map[uuid.UUID]int
	Err      error
}

func (s *StaticLimits) Set(tenantID uuid.UUID, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ByTenant == nil {
		s.ByTenant = map[uuid.UUID]int{}
	}
	s.ByTenant[tenantID] = limit
}

func (s *StaticLimits) FeedbackLimit(ctx context.Context, tenantID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	if l, ok := s.ByTenant[tenantID]; ok {
		return l, nil
	}
	return s.Default, nil
}

// RecordingPublisher captures published events.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []domain.Event
	Err    error
}

func (p *RecordingPublisher) Publish(ctx context.Context, ev *domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, *ev)
	return nil
}

// Types returns the published event types in order.
func (p *RecordingPublisher) Types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts := make([]domain.EventType, len(p.Events))
	for i, e := range p.Events {
		ts[i] = e.Type
	}
	return ts
}

// MapLimitsCache is an in-memory out.LimitsCache.
type MapLimitsCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]domain.PlanLimits
	Invalidated []uuid.UUID
}

func NewMapLimitsCache() *MapLimitsCache {
	return &MapLimitsCache{entries: map[uuid.UUID]domain.PlanLimits{}}
}

func (c *MapLimitsCache) Get(ctx context.Context, tenantID uuid.UUID) (*domain.PlanLimits, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.entries[tenantID]
	if !ok {
		return nil, false, nil
	}
	return &l, true, nil
}

func (c *MapLimitsCache) Set(ctx context.Context, tenantID uuid.UUID, limits domain.PlanLimits, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tenantID] = limits
	return nil
}

func (c *MapLimitsCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID)
	c.Invalidated = append(c.Invalidated, tenantID)
	return nil
}
