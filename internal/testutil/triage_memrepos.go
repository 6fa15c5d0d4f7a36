package testutil

import (
	"context"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
)

// FeedbackRepo is the in-memory out.FeedbackRepository.
type FeedbackRepo struct{ s *MemStore }

func (r *FeedbackRepo) Create(ctx context.Context, f *domain.Feedback) error {
	m := r.s
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.feedback[f.ID] = &cp
	return nil
}

func (r *FeedbackRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Feedback, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.owned(tenantID, id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *FeedbackRepo) List(ctx context.Context, filter domain.FeedbackFilter) ([]*domain.Feedback, int, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Feedback
	for _, f := range m.tenantRows(filter.TenantID) {
		if !filter.IncludeHidden && !f.Visibility.IsVisible() {
			continue
		}
		if filter.ProjectID != nil && f.ProjectID != *filter.ProjectID {
			continue
		}
		if filter.Status != nil && f.Status != *filter.Status {
			continue
		}
		if filter.Category != nil {
			if c := f.EffectiveCategory(); c == nil || *c != *filter.Category {
				continue
			}
		}
		if filter.Sentiment != nil {
			if s := f.EffectiveSentiment(); s == nil || *s != *filter.Sentiment {
				continue
			}
		}
		cp := *f
		matched = append(matched, &cp)
	}

	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (r *FeedbackRepo) update(tenantID, id uuid.UUID, fn func(f *domain.Feedback)) error {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.owned(tenantID, id)
	if !ok {
		return domain.ErrNotFound
	}
	fn(f)
	f.UpdatedAt = time.Now()
	return nil
}

func (r *FeedbackRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.FeedbackStatus) error {
	return r.update(tenantID, id, func(f *domain.Feedback) { f.Status = status })
}

func (r *FeedbackRepo) UpdateOverride(ctx context.Context, tenantID, id uuid.UUID, o domain.Override) error {
	return r.update(tenantID, id, func(f *domain.Feedback) { f.Override = o })
}

func (r *FeedbackRepo) UpdateNotes(ctx context.Context, tenantID, id uuid.UUID, notes *string) error {
	return r.update(tenantID, id, func(f *domain.Feedback) { f.Notes = notes })
}

func (r *FeedbackRepo) UpdateAnalysis(ctx context.Context, tenantID, id uuid.UUID, a *domain.Analysis) error {
	return r.update(tenantID, id, func(f *domain.Feedback) { f.Analysis = a })
}

func (r *FeedbackRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owned(tenantID, id); !ok {
		return domain.ErrNotFound
	}
	delete(m.feedback, id)
	return nil
}

func (r *FeedbackRepo) Stats(ctx context.Context, tenantID uuid.UUID, projectID *uuid.UUID) (*domain.FeedbackStats, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	st := domain.NewFeedbackStats()
	for _, f := range m.tenantRows(tenantID) {
		if !f.Visibility.IsVisible() || (projectID != nil && f.ProjectID != *projectID) {
			continue
		}
		st.Total++
		st.ByStatus[f.Status]++
		if c := f.EffectiveCategory(); c != nil {
			st.ByCategory[*c]++
		}
		if s := f.EffectiveSentiment(); s != nil {
			st.BySentiment[*s]++
		}
	}
	return st, nil
}

func (r *FeedbackRepo) CountVisibility(ctx context.Context, tenantID uuid.UUID) (int, int, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	var visible, hidden int
	for _, f := range m.tenantRows(tenantID) {
		if f.Visibility.IsVisible() {
			visible++
		} else {
			hidden++
		}
	}
	return visible, hidden, nil
}

// ProjectRepo is the in-memory out.ProjectRepository.
type ProjectRepo struct{ s *MemStore }

func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	m := r.s
	if m.ProjectLookupErr != nil {
		return nil, m.ProjectLookupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *ProjectRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Project, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	var ps []*domain.Project
	for _, p := range m.projects {
		if p.TenantID == tenantID {
			cp := *p
			ps = append(ps, &cp)
		}
	}
	return ps, nil
}

func (r *ProjectRepo) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	ps, err := r.ListByTenant(ctx, tenantID)
	return len(ps), err
}

// Delete removes the project and its feedback, like the ON DELETE CASCADE.
func (r *ProjectRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok || p.TenantID != tenantID {
		return domain.ErrNotFound
	}
	delete(m.projects, id)
	for fid, f := range m.feedback {
		if f.ProjectID == id {
			delete(m.feedback, fid)
		}
	}
	return nil
}

// SubscriptionRepo is the in-memory out.SubscriptionRepository.
type SubscriptionRepo struct{ s *MemStore }

func (r *SubscriptionRepo) Get(ctx context.Context, tenantID uuid.UUID) (*domain.Subscription, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *SubscriptionRepo) Upsert(ctx context.Context, sub *domain.Subscription) error {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.TenantID] = &cp
	return nil
}

func (r *SubscriptionRepo) IncrementUsage(ctx context.Context, tenantID uuid.UUID, now time.Time) (*domain.Subscription, error) {
	m := r.s
	if m.IncrementErr != nil {
		return nil, m.IncrementErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[tenantID]
	if !ok {
		sub = domain.DefaultSubscription(tenantID, now)
		m.subs[tenantID] = sub
	}
	sub.FeedbackUsedThisPeriod++
	sub.UpdatedAt = now
	cp := *sub
	return &cp, nil
}

func (r *SubscriptionRepo) ResetUsage(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) error {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[tenantID]
	if !ok {
		sub = domain.DefaultSubscription(tenantID, periodStart)
		m.subs[tenantID] = sub
	}
	sub.FeedbackUsedThisPeriod = 0
	sub.PeriodStart = periodStart
	sub.PeriodEnd = periodEnd
	return nil
}

func (r *SubscriptionRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, sub := range m.subs {
		if !sub.PeriodEnd.After(now) {
			ids = append(ids, id)
			if limit > 0 && len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}
