package feedback

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/service/classification"
	"triage_server/core/service/usage"
	"triage_server/core/service/visibility"
	"triage_server/internal/testutil"
	"triage_server/pkg/logger"
	"triage_server/pkg/metrics"
	"triage_server/pkg/snowflake"
)

type failingRanker struct {
	mu         sync.Mutex
	err        error
	recomputes int
}

func (f *failingRanker) RecomputeVisibility(ctx context.Context, tenantID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recomputes++
	return f.err
}

func (f *failingRanker) HandleFeedbackCreation(ctx context.Context, tenantID, feedbackID uuid.UUID) error {
	return f.err
}

type harness struct {
	store   *testutil.MemStore
	pub     *testutil.RecordingPublisher
	ingest  *Ingestion
	manage  *Management
	tenant  uuid.UUID
	project *domain.Project
}

func newHarness(t *testing.T, ranker in.VisibilityRanker) *harness {
	t.Helper()
	store := testutil.NewMemStore()
	limits := usage.NewLimits(store.Subscriptions(), nil, 0, logger.Nop())
	if ranker == nil {
		ranker = visibility.NewRanker(store, store, limits, metrics.NewLatencyRegistry(10), logger.Nop())
	}
	gate := usage.NewGate(limits, store.Subscriptions(), store.Projects(), store.Feedback(), ranker, logger.Nop())
	classifier := classification.NewClassifier(nil, classification.Config{}, metrics.NewLatencyRegistry(10), logger.Nop())
	ids, err := snowflake.NewGenerator(1)
	if err != nil {
		t.Fatal(err)
	}
	pub := &testutil.RecordingPublisher{}

	tenant := uuid.New()
	return &harness{
		store: store,
		pub:   pub,
		ingest: NewIngestion(IngestionDeps{
			Projects:   store.Projects(),
			Feedback:   store.Feedback(),
			Classifier: classifier,
			Ranker:     ranker,
			Usage:      gate,
			Publisher:  pub,
			IDs:        ids,
			Latency:    metrics.NewLatencyRegistry(10),
			Log:        logger.Nop(),
		}),
		manage:  NewManagement(store.Feedback(), classifier, ranker, logger.Nop()),
		tenant:  tenant,
		project: store.AddProject(tenant),
	}
}

func (h *harness) submit(t *testing.T, content string) *domain.Feedback {
	t.Helper()
	f, err := h.ingest.Submit(context.Background(), in.SubmitInput{ProjectID: h.project.ID, Content: content})
	if err != nil {
		t.Fatalf("Submit(%q) error = %v", content, err)
	}
	return f
}

func TestSubmit_StoresClassifiedVisibleRow(t *testing.T) {
	h := newHarness(t, nil)

	f, err := h.ingest.Submit(context.Background(), in.SubmitInput{
		ProjectID: h.project.ID,
		Content:   "  <p>The app <b>throws an error</b> on login</p> ",
		Email:     "user@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}

	if f.Content != "The app throws an error on login" {
		t.Errorf("content = %q", f.Content)
	}
	if f.Status != domain.StatusPending {
		t.Errorf("status = %s", f.Status)
	}
	if f.Analysis == nil || f.Analysis.Category != domain.CategoryBug || f.Analysis.Method != domain.MethodFallback {
		t.Errorf("analysis = %+v", f.Analysis)
	}
	if f.ContributorEmail == nil || *f.ContributorEmail != "user@example.com" {
		t.Errorf("email = %v", f.ContributorEmail)
	}
	if f.Visibility != domain.Visible(1) {
		t.Errorf("visibility = %v, want visible#1", f.Visibility)
	}

	sub, err := h.store.Subscriptions().Get(context.Background(), h.tenant)
	if err != nil {
		t.Fatal(err)
	}
	if sub.FeedbackUsedThisPeriod != 1 {
		t.Errorf("usage = %d, want 1", sub.FeedbackUsedThisPeriod)
	}
}

func TestSubmit_RanksNewestFirst(t *testing.T) {
	h := newHarness(t, nil)
	first := h.submit(t, "first")
	second := h.submit(t, "second")

	if got := h.store.Visibility(second.ID); got != domain.Visible(1) {
		t.Errorf("second = %v, want visible#1", got)
	}
	if got := h.store.Visibility(first.ID); got != domain.Visible(2) {
		t.Errorf("first = %v, want visible#2", got)
	}
	if second.Seq <= first.Seq {
		t.Errorf("seq not increasing: %d then %d", first.Seq, second.Seq)
	}
}

func TestSubmit_OverFreeLimitHidesOldest(t *testing.T) {
	h := newHarness(t, nil)
	var rows []*domain.Feedback
	for i := 0; i < 27; i++ {
		rows = append(rows, h.submit(t, "great work"))
	}

	visible, hidden, _ := h.store.Feedback().CountVisibility(context.Background(), h.tenant)
	if visible != 25 || hidden != 2 {
		t.Fatalf("visible=%d hidden=%d, want 25/2", visible, hidden)
	}
	for _, f := range rows[:2] {
		if h.store.Visibility(f.ID).IsVisible() {
			t.Errorf("oldest row %s still visible", f.ID)
		}
	}
}

func TestSubmit_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		input   func(h *harness) in.SubmitInput
		wantErr error
	}{
		{
			name:    "markup only",
			input:   func(h *harness) in.SubmitInput { return in.SubmitInput{ProjectID: h.project.ID, Content: "<div></div>"} },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "too long",
			input: func(h *harness) in.SubmitInput {
				return in.SubmitInput{ProjectID: h.project.ID, Content: strings.Repeat("x", 6000)}
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "bad email",
			input: func(h *harness) in.SubmitInput {
				return in.SubmitInput{ProjectID: h.project.ID, Content: "hello", Email: "nope"}
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "unknown project",
			input:   func(h *harness) in.SubmitInput { return in.SubmitInput{ProjectID: uuid.New(), Content: "hello"} },
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			_, err := h.ingest.Submit(context.Background(), tt.input(h))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if h.store.FeedbackCount() != 0 {
				t.Error("row stored for rejected submission")
			}
		})
	}
}

func TestSubmit_InsertFailureReachesCaller(t *testing.T) {
	h := newHarness(t, nil)
	h.store.CreateErr = errors.New("disk full")
	if _, err := h.ingest.Submit(context.Background(), in.SubmitInput{ProjectID: h.project.ID, Content: "hi"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSubmit_RankerFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, &failingRanker{err: errors.New("lock timeout")})

	f, err := h.ingest.Submit(context.Background(), in.SubmitInput{ProjectID: h.project.ID, Content: "nice feature idea"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if f.Visibility.IsVisible() {
		t.Errorf("visibility = %v, want hidden until recompute", f.Visibility)
	}
	if got := h.pub.Types(); !slices.Equal(got, []domain.EventType{domain.EventRecomputeRequested}) {
		t.Errorf("events = %v", got)
	}
	if h.pub.Events[0].TenantID != h.tenant {
		t.Errorf("event tenant = %s", h.pub.Events[0].TenantID)
	}
}

func TestSubmit_UsageFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, nil)
	h.store.IncrementErr = errors.New("db down")
	if _, err := h.ingest.Submit(context.Background(), in.SubmitInput{ProjectID: h.project.ID, Content: "hi"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if h.store.FeedbackCount() != 1 {
		t.Error("row not stored")
	}
}

func TestManagement_UpdateOverride(t *testing.T) {
	h := newHarness(t, nil)
	f := h.submit(t, "there is a bug")
	ctx := context.Background()
	feature := domain.CategoryFeature
	positive := domain.SentimentPositive

	got, err := h.manage.UpdateOverride(ctx, h.tenant, f.ID, in.OverrideInput{Category: &feature, Sentiment: &positive})
	if err != nil {
		t.Fatal(err)
	}
	if c := got.EffectiveCategory(); c == nil || *c != domain.CategoryFeature {
		t.Errorf("effective category = %v", c)
	}
	if s := got.EffectiveSentiment(); s == nil || *s != domain.SentimentPositive {
		t.Errorf("effective sentiment = %v", s)
	}

	got, err = h.manage.UpdateOverride(ctx, h.tenant, f.ID, in.OverrideInput{ClearCategory: true})
	if err != nil {
		t.Fatal(err)
	}
	if got.Override.ManualCategory != nil || got.Override.CategoryOverridden {
		t.Errorf("category override not cleared: %+v", got.Override)
	}
	if c := got.EffectiveCategory(); c == nil || *c != domain.CategoryBug {
		t.Errorf("effective category = %v, want BUG", c)
	}
	if !got.Override.SentimentOverridden {
		t.Error("sentiment override dropped by unrelated clear")
	}

	stored, _ := h.manage.Get(ctx, h.tenant, f.ID)
	if stored.Override != got.Override {
		t.Errorf("stored override = %+v, want %+v", stored.Override, got.Override)
	}
}

func TestManagement_UpdateOverride_InvalidValue(t *testing.T) {
	h := newHarness(t, nil)
	f := h.submit(t, "hello")
	bad := domain.Category("QUESTION")

	_, err := h.manage.UpdateOverride(context.Background(), h.tenant, f.ID, in.OverrideInput{Category: &bad})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestManagement_TenantIsolation(t *testing.T) {
	h := newHarness(t, nil)
	f := h.submit(t, "hello")
	other := uuid.New()
	ctx := context.Background()

	if _, err := h.manage.Get(ctx, other, f.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() err = %v", err)
	}
	if _, err := h.manage.UpdateStatus(ctx, other, f.ID, domain.StatusDone); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateStatus() err = %v", err)
	}
	if err := h.manage.Delete(ctx, other, f.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete() err = %v", err)
	}
}

func TestManagement_UpdateStatusAndNotes(t *testing.T) {
	h := newHarness(t, nil)
	f := h.submit(t, "hello")
	ctx := context.Background()

	got, err := h.manage.UpdateStatus(ctx, h.tenant, f.ID, domain.StatusReviewed)
	if err != nil || got.Status != domain.StatusReviewed {
		t.Fatalf("UpdateStatus() = %v, %v", got, err)
	}
	if _, err := h.manage.UpdateStatus(ctx, h.tenant, f.ID, "ARCHIVED"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad status err = %v", err)
	}

	got, err = h.manage.UpdateNotes(ctx, h.tenant, f.ID, "call back")
	if err != nil || got.Notes == nil || *got.Notes != "call back" {
		t.Fatalf("UpdateNotes() = %v, %v", got, err)
	}
	got, err = h.manage.UpdateNotes(ctx, h.tenant, f.ID, "")
	if err != nil || got.Notes != nil {
		t.Fatalf("clearing notes = %v, %v", got.Notes, err)
	}
	if _, err := h.manage.UpdateNotes(ctx, h.tenant, f.ID, strings.Repeat("n", domain.MaxNotesLength+1)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("long notes err = %v", err)
	}
}

func TestManagement_Reanalyze(t *testing.T) {
	h := newHarness(t, nil)
	f := h.submit(t, "please add dark mode")
	ctx := context.Background()
	review := domain.CategoryReview
	_, _ = h.manage.UpdateOverride(ctx, h.tenant, f.ID, in.OverrideInput{Category: &review})

	got, err := h.manage.Reanalyze(ctx, h.tenant, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Analysis.Category != domain.CategoryFeature {
		t.Errorf("analysis category = %s, want FEATURE", got.Analysis.Category)
	}
	if c := got.EffectiveCategory(); *c != domain.CategoryReview {
		t.Errorf("override lost on reanalyze: %s", *c)
	}
}

func TestManagement_DeleteFreesVisibleSlot(t *testing.T) {
	h := newHarness(t, nil)
	var rows []*domain.Feedback
	for i := 0; i < 26; i++ {
		rows = append(rows, h.submit(t, "ok"))
	}
	ctx := context.Background()
	if h.store.Visibility(rows[0].ID).IsVisible() {
		t.Fatal("oldest row should start hidden")
	}

	if err := h.manage.Delete(ctx, h.tenant, rows[25].ID); err != nil {
		t.Fatal(err)
	}
	if got := h.store.Visibility(rows[0].ID); got != domain.Visible(25) {
		t.Errorf("oldest row = %v, want visible#25", got)
	}
	if got := h.store.Visibility(rows[24].ID); got != domain.Visible(1) {
		t.Errorf("new newest = %v, want visible#1", got)
	}
}

func TestManagement_ListAndStats(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.submit(t, "login bug, awful")
	h.submit(t, "please add export")
	h.submit(t, "love it, great")

	hidden := h.store.AddFeedback(h.project.ID, time.Now().Add(-time.Hour))

	rows, total, err := h.manage.List(ctx, domain.FeedbackFilter{TenantID: h.tenant})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(rows) != 3 {
		t.Errorf("visible list = %d/%d, want 3", len(rows), total)
	}

	_, total, _ = h.manage.List(ctx, domain.FeedbackFilter{TenantID: h.tenant, IncludeHidden: true})
	if total != 4 {
		t.Errorf("list with hidden total = %d, want 4", total)
	}

	bug := domain.CategoryBug
	rows, _, _ = h.manage.List(ctx, domain.FeedbackFilter{TenantID: h.tenant, Category: &bug})
	if len(rows) != 1 || rows[0].ID == hidden.ID {
		t.Errorf("category filter returned %d rows", len(rows))
	}

	st, err := h.manage.Stats(ctx, h.tenant, nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 {
		t.Errorf("stats total = %d, want 3", st.Total)
	}
	want := map[domain.Category]int{domain.CategoryBug: 1, domain.CategoryFeature: 1, domain.CategoryReview: 1}
	for c, n := range want {
		if st.ByCategory[c] != n {
			t.Errorf("ByCategory[%s] = %d, want %d", c, st.ByCategory[c], n)
		}
	}
	if st.BySentiment[domain.SentimentNegative] != 1 || st.BySentiment[domain.SentimentPositive] != 1 {
		t.Errorf("BySentiment = %v", st.BySentiment)
	}
	if st.ByStatus[domain.StatusPending] != 3 {
		t.Errorf("ByStatus = %v", st.ByStatus)
	}
}

func TestSubmit_RejectsForeignOrigin(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	locked := &domain.Project{
		ID:             uuid.New(),
		TenantID:       h.tenant,
		Name:           "shop",
		AllowedOrigins: []string{"https://shop.example"},
	}
	if err := h.store.Projects().Create(ctx, locked); err != nil {
		t.Fatal(err)
	}

	_, err := h.ingest.Submit(ctx, in.SubmitInput{ProjectID: locked.ID, Content: "hi", Origin: "https://evil.test"})
	if !errors.Is(err, domain.ErrOriginNotAllowed) {
		t.Fatalf("err = %v, want ErrOriginNotAllowed", err)
	}
	if _, err := h.ingest.Submit(ctx, in.SubmitInput{ProjectID: locked.ID, Content: "hi", Origin: "https://shop.example"}); err != nil {
		t.Fatalf("allowed origin err = %v", err)
	}
}
