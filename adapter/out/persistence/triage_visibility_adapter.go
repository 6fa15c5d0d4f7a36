package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"triage_server/core/port/out"
)

// VisibilityAdapter is the ranker's store. Every method uses the transaction
// carried by ctx when there is one.
type VisibilityAdapter struct {
	db Querier
}

func NewVisibilityAdapter(db Querier) *VisibilityAdapter {
	return &VisibilityAdapter{db: db}
}

var _ out.VisibilityStore = (*VisibilityAdapter)(nil)

const lockTenantSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

// LockTenant takes a transaction-scoped advisory lock keyed by the tenant.
func (a *VisibilityAdapter) LockTenant(ctx context.Context, tenantID uuid.UUID) error {
	if _, err := QuerierFromCtx(ctx, a.db).Exec(ctx, lockTenantSQL, tenantID.String()); err != nil {
		return fmt.Errorf("lock tenant %s: %w", tenantID, err)
	}
	return nil
}

func (a *VisibilityAdapter) ProjectIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := QuerierFromCtx(ctx, a.db).Query(ctx, `SELECT id FROM projects WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, storageErr("load project ids", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

const orderedFeedbackSQL = `
SELECT id FROM feedback
WHERE project_id = ANY($1)
ORDER BY created_at DESC, seq DESC`

func (a *VisibilityAdapter) OrderedFeedbackIDs(ctx context.Context, projectIDs []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := QuerierFromCtx(ctx, a.db).Query(ctx, orderedFeedbackSQL, projectIDs)
	if err != nil {
		return nil, storageErr("load ordered feedback", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// Rows already holding the right rank are skipped so a repeated recompute
// writes nothing.
const markVisibleSQL = `
UPDATE feedback f
SET is_visible = true, visibility_rank = v.rank::int
FROM unnest($1::uuid[]) WITH ORDINALITY AS v(id, rank)
WHERE f.id = v.id
  AND (NOT f.is_visible OR f.visibility_rank IS DISTINCT FROM v.rank::int)`

func (a *VisibilityAdapter) MarkVisible(ctx context.Context, ids []uuid.UUID) error {
	if _, err := QuerierFromCtx(ctx, a.db).Exec(ctx, markVisibleSQL, ids); err != nil {
		return fmt.Errorf("mark %d visible: %w", len(ids), err)
	}
	return nil
}

const markHiddenSQL = `
UPDATE feedback
SET is_visible = false, visibility_rank = NULL
WHERE id = ANY($1) AND is_visible`

func (a *VisibilityAdapter) MarkHidden(ctx context.Context, ids []uuid.UUID) error {
	if _, err := QuerierFromCtx(ctx, a.db).Exec(ctx, markHiddenSQL, ids); err != nil {
		return fmt.Errorf("mark %d hidden: %w", len(ids), err)
	}
	return nil
}

const fastPathStateSQL = `
WITH t AS (
    SELECT f.id, f.is_visible, f.visibility_rank, f.created_at, f.seq
    FROM feedback f
    JOIN projects p ON p.id = f.project_id
    WHERE p.tenant_id = $1
), n AS (
    SELECT created_at, seq FROM t WHERE id = $2
)
SELECT
    (SELECT count(*) FROM n),
    count(*),
    count(*) FILTER (WHERE t.id <> $2 AND t.is_visible),
    count(DISTINCT t.visibility_rank) FILTER (WHERE t.id <> $2 AND t.is_visible),
    coalesce(max(t.visibility_rank) FILTER (WHERE t.id <> $2), 0),
    count(*) FILTER (WHERE (t.created_at, t.seq) > (SELECT created_at, seq FROM n))
FROM t`

func (a *VisibilityAdapter) FastPathState(ctx context.Context, tenantID, feedbackID uuid.UUID) (*out.FastPathState, error) {
	var exists, total, visibleOthers, distinct, maxRank, newer int64
	err := QuerierFromCtx(ctx, a.db).QueryRow(ctx, fastPathStateSQL, tenantID, feedbackID).
		Scan(&exists, &total, &visibleOthers, &distinct, &maxRank, &newer)
	if err != nil {
		return nil, storageErr("load fast path state", err)
	}
	return &out.FastPathState{
		Exists:        exists > 0,
		Total:         int(total),
		VisibleOthers: int(visibleOthers),
		DistinctRanks: int(distinct),
		MaxRank:       int(maxRank),
		Newer:         int(newer),
	}, nil
}

const promoteNewestSQL = `
UPDATE feedback f
SET is_visible = true,
    visibility_rank = CASE WHEN f.id = $2 THEN 1 ELSE f.visibility_rank + 1 END
FROM projects p
WHERE p.id = f.project_id
  AND p.tenant_id = $1
  AND (f.id = $2 OR f.is_visible)`

// PromoteNewest gives feedbackID rank 1 and shifts the tenant's other visible
// rows down by one in a single statement.
func (a *VisibilityAdapter) PromoteNewest(ctx context.Context, tenantID, feedbackID uuid.UUID) error {
	tag, err := QuerierFromCtx(ctx, a.db).Exec(ctx, promoteNewestSQL, tenantID, feedbackID)
	if err != nil {
		return fmt.Errorf("promote feedback %s: %w", feedbackID, err)
	}
	return affectedOne(tag, "feedback", feedbackID)
}
