package visibility

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
	"triage_server/pkg/metrics"
)

// LimitResolver returns a tenant's current feedback limit.
type LimitResolver interface {
	FeedbackLimit(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// writeTimeout bounds a ranker transaction once it is detached from the caller.
const writeTimeout = 30 * time.Second

// Ranker recomputes and incrementally maintains visibility ranks. All writes
// for one tenant happen under a transaction-scoped advisory lock, so
// concurrent submissions for the same tenant are serialized.
type Ranker struct {
	tx      out.TxManager
	store   out.VisibilityStore
	limits  LimitResolver
	latency *metrics.LatencyRegistry
	log     *logger.Logger
}

func NewRanker(tx out.TxManager, store out.VisibilityStore, limits LimitResolver, latency *metrics.LatencyRegistry, log *logger.Logger) *Ranker {
	if latency == nil {
		latency = metrics.GlobalRegistry()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Ranker{
		tx:      tx,
		store:   store,
		limits:  limits,
		latency: latency,
		log:     log.WithField("component", "visibility_ranker"),
	}
}

var _ in.VisibilityRanker = (*Ranker)(nil)

// detach keeps the write going when the HTTP client disconnects.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
}

// RecomputeVisibility rebuilds the full partition for the tenant. It is idempotent.
func (r *Ranker) RecomputeVisibility(ctx context.Context, tenantID uuid.UUID) error {
	limit, err := r.limits.FeedbackLimit(ctx, tenantID)
	if err != nil {
		r.log.WithField("tenant_id", tenantID).WithError(err).Error("resolve feedback limit failed")
		return fmt.Errorf("resolve feedback limit: %w", err)
	}
	return r.RecomputeWithLimit(ctx, tenantID, limit)
}

// RecomputeWithLimit rebuilds the partition for a limit the caller already
// knows, such as the plan it just saved.
func (r *Ranker) RecomputeWithLimit(ctx context.Context, tenantID uuid.UUID, limit int) error {
	if limit < 0 {
		return fmt.Errorf("feedback limit %d: %w", limit, domain.ErrInvalidInput)
	}
	start := time.Now()
	ctx, cancel := detach(ctx)
	defer cancel()

	var (
		visible, hidden int
		err             error
	)
	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.store.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		visible, hidden, err = r.recomputeLocked(ctx, tenantID, limit)
		return err
	})
	if err != nil {
		r.log.WithField("tenant_id", tenantID).WithError(err).Error("visibility recompute failed")
		return fmt.Errorf("recompute visibility: %w", err)
	}

	r.latency.Since(metrics.OpRecompute, start)
	r.log.WithFields(map[string]any{
		"tenant_id": tenantID,
		"limit":     limit,
		"visible":   visible,
		"hidden":    hidden,
	}).WithDuration(time.Since(start)).Debug("visibility recomputed")
	return nil
}

// recomputeLocked must run inside the tenant's locked transaction.
func (r *Ranker) recomputeLocked(ctx context.Context, tenantID uuid.UUID, limit int) (int, int, error) {
	projectIDs, err := r.store.ProjectIDs(ctx, tenantID)
	if err != nil {
		return 0, 0, fmt.Errorf("load projects: %w", err)
	}
	if len(projectIDs) == 0 {
		return 0, 0, nil
	}

	ids, err := r.store.OrderedFeedbackIDs(ctx, projectIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("load feedback: %w", err)
	}

	visible, hidden := Partition(ids, limit)
	if len(visible) > 0 {
		if err := r.store.MarkVisible(ctx, visible); err != nil {
			return 0, 0, fmt.Errorf("mark visible: %w", err)
		}
	}
	if len(hidden) > 0 {
		if err := r.store.MarkHidden(ctx, hidden); err != nil {
			return 0, 0, fmt.Errorf("mark hidden: %w", err)
		}
	}
	return len(visible), len(hidden), nil
}

// HandleFeedbackCreation places a freshly inserted row. When the tenant is at
// or under its limit, every other row is already visible with ranks 1..M-1
// and the new row is the newest, a single shift is enough. Anything else
// falls back to the full recompute inside the same transaction.
func (r *Ranker) HandleFeedbackCreation(ctx context.Context, tenantID, feedbackID uuid.UUID) error {
	start := time.Now()
	ctx, cancel := detach(ctx)
	defer cancel()

	log := r.log.WithFields(map[string]any{"tenant_id": tenantID, "feedback_id": feedbackID})

	limit, err := r.limits.FeedbackLimit(ctx, tenantID)
	if err != nil {
		log.WithError(err).Error("resolve feedback limit failed")
		return fmt.Errorf("resolve feedback limit: %w", err)
	}

	path := "fast"
	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.store.LockTenant(ctx, tenantID); err != nil {
			return err
		}

		st, err := r.store.FastPathState(ctx, tenantID, feedbackID)
		if err != nil {
			return fmt.Errorf("load fast path state: %w", err)
		}
		if !st.Exists {
			return fmt.Errorf("feedback %s: %w", feedbackID, domain.ErrNotFound)
		}

		if !fastPathApplies(st, limit) {
			path = "full"
			_, _, err := r.recomputeLocked(ctx, tenantID, limit)
			return err
		}
		return r.store.PromoteNewest(ctx, tenantID, feedbackID)
	})
	if err != nil {
		log.WithError(err).Error("visibility update on creation failed")
		return fmt.Errorf("handle feedback creation: %w", err)
	}

	if path == "fast" {
		r.latency.Since(metrics.OpFastPath, start)
	} else {
		r.latency.Since(metrics.OpRecompute, start)
	}
	log.WithField("path", path).Debug("visibility updated for new feedback")
	return nil
}

func fastPathApplies(st *out.FastPathState, limit int) bool {
	others := st.Total - 1
	return st.Total <= limit &&
		st.Newer == 0 &&
		st.VisibleOthers == others &&
		st.DistinctRanks == others &&
		st.MaxRank == others
}
