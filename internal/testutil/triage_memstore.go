// Package testutil provides in-memory implementations of the outbound ports
// for service tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// MemStore implements the repository, visibility and transaction ports on
// plain maps. Transactions are serialized but not rolled back.
type MemStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	projects map[uuid.UUID]*domain.Project
	feedback map[uuid.UUID]*domain.Feedback
	subs     map[uuid.UUID]*domain.Subscription

	TenantLocks int

	// Failure injection.
	MarkVisibleErr   error
	FastPathErr      error
	CreateErr        error
	IncrementErr     error
	ProjectLookupErr error
}

func NewMemStore() *MemStore {
	return &MemStore{
		projects: make(map[uuid.UUID]*domain.Project),
		feedback: make(map[uuid.UUID]*domain.Feedback),
		subs:     make(map[uuid.UUID]*domain.Subscription),
	}
}

var (
	_ out.TxManager              = (*MemStore)(nil)
	_ out.VisibilityStore        = (*MemStore)(nil)
	_ out.FeedbackRepository     = (*FeedbackRepo)(nil)
	_ out.ProjectRepository      = (*ProjectRepo)(nil)
	_ out.SubscriptionRepository = (*SubscriptionRepo)(nil)
)

// Feedback, Projects and Subscriptions return repository views over the same data.
func (m *MemStore) Feedback() *FeedbackRepo           { return &FeedbackRepo{m} }
func (m *MemStore) Projects() *ProjectRepo            { return &ProjectRepo{m} }
func (m *MemStore) Subscriptions() *SubscriptionRepo { return &SubscriptionRepo{m} }

func (m *MemStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx)
}

// ---- seeding helpers ----

// AddProject stores a project for tenantID and returns it.
func (m *MemStore) AddProject(tenantID uuid.UUID) *domain.Project {
	p := &domain.Project{ID: uuid.New(), TenantID: tenantID, Name: "project", CreatedAt: time.Now()}
	m.mu.Lock()
	m.projects[p.ID] = p
	m.mu.Unlock()
	return p
}

// AddFeedback inserts a hidden, unanalyzed row with the given creation time.
func (m *MemStore) AddFeedback(projectID uuid.UUID, createdAt time.Time) *domain.Feedback {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &domain.Feedback{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Seq:        int64(len(m.feedback) + 1),
		Content:    "seed",
		Status:     domain.StatusPending,
		Visibility: domain.Hidden(),
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	m.feedback[f.ID] = f
	return f
}

// SetVisibility overwrites a row's visibility, bypassing the ranker.
func (m *MemStore) SetVisibility(id uuid.UUID, v domain.Visibility) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback[id].Visibility = v
}

// Visibility returns the stored visibility of a row.
func (m *MemStore) Visibility(id uuid.UUID) domain.Visibility {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feedback[id].Visibility
}

// Snapshot returns the tenant's rows newest first.
func (m *MemStore) Snapshot(tenantID uuid.UUID) []domain.Feedback {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tenantRows(tenantID)
	outRows := make([]domain.Feedback, len(rows))
	for i, f := range rows {
		outRows[i] = *f
	}
	return outRows
}

// FeedbackCount counts all stored rows.
func (m *MemStore) FeedbackCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.feedback)
}

// tenantRows must be called with mu held.
func (m *MemStore) tenantRows(tenantID uuid.UUID) []*domain.Feedback {
	var rows []*domain.Feedback
	for _, f := range m.feedback {
		if p, ok := m.projects[f.ProjectID]; ok && p.TenantID == tenantID {
			rows = append(rows, f)
		}
	}
	sortNewestFirst(rows)
	return rows
}

func sortNewestFirst(rows []*domain.Feedback) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].Seq > rows[j].Seq
	})
}

func (m *MemStore) owned(tenantID, id uuid.UUID) (*domain.Feedback, bool) {
	f, ok := m.feedback[id]
	if !ok {
		return nil, false
	}
	p, ok := m.projects[f.ProjectID]
	return f, ok && p.TenantID == tenantID
}

// ---- VisibilityStore ----

func (m *MemStore) LockTenant(ctx context.Context, tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TenantLocks++
	return nil
}

func (m *MemStore) ProjectIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, p := range m.projects {
		if p.TenantID == tenantID {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (m *MemStore) OrderedFeedbackIDs(ctx context.Context, projectIDs []uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(projectIDs))
	for _, id := range projectIDs {
		want[id] = true
	}
	var rows []*domain.Feedback
	for _, f := range m.feedback {
		if want[f.ProjectID] {
			rows = append(rows, f)
		}
	}
	sortNewestFirst(rows)
	ids := make([]uuid.UUID, len(rows))
	for i, f := range rows {
		ids[i] = f.ID
	}
	return ids, nil
}

func (m *MemStore) MarkVisible(ctx context.Context, ids []uuid.UUID) error {
	if m.MarkVisibleErr != nil {
		return m.MarkVisibleErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		if f, ok := m.feedback[id]; ok {
			f.Visibility = domain.Visible(i + 1)
		}
	}
	return nil
}

func (m *MemStore) MarkHidden(ctx context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if f, ok := m.feedback[id]; ok {
			f.Visibility = domain.Hidden()
		}
	}
	return nil
}

func (m *MemStore) FastPathState(ctx context.Context, tenantID, feedbackID uuid.UUID) (*out.FastPathState, error) {
	if m.FastPathErr != nil {
		return nil, m.FastPathErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.owned(tenantID, feedbackID)
	if !ok {
		return &out.FastPathState{}, nil
	}
	st := &out.FastPathState{Exists: true}
	ranks := map[int]bool{}
	for _, f := range m.tenantRows(tenantID) {
		st.Total++
		if f.ID == feedbackID {
			continue
		}
		if r, ok := f.Visibility.Rank(); ok {
			st.VisibleOthers++
			ranks[r] = true
			st.MaxRank = max(st.MaxRank, r)
		}
		if f.CreatedAt.After(target.CreatedAt) || (f.CreatedAt.Equal(target.CreatedAt) && f.Seq > target.Seq) {
			st.Newer++
		}
	}
	st.DistinctRanks = len(ranks)
	return st, nil
}

func (m *MemStore) PromoteNewest(ctx context.Context, tenantID, feedbackID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owned(tenantID, feedbackID); !ok {
		return domain.ErrNotFound
	}
	for _, f := range m.tenantRows(tenantID) {
		if f.ID == feedbackID {
			f.Visibility = domain.Visible(1)
			continue
		}
		if r, ok := f.Visibility.Rank(); ok {
			f.Visibility = domain.Visible(r + 1)
		}
	}
	return nil
}

