package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// FeedbackAdapter implements out.FeedbackRepository on pgx. Tenant scoping is
// always a join through projects.
type FeedbackAdapter struct {
	db Querier
}

func NewFeedbackAdapter(db Querier) *FeedbackAdapter {
	return &FeedbackAdapter{db: db}
}

var _ out.FeedbackRepository = (*FeedbackAdapter)(nil)

var feedbackColumns = []string{
	"f.id", "f.project_id", "f.seq", "f.content", "f.contributor_email", "f.notes", "f.status",
	"f.category", "f.sentiment", "f.category_confidence", "f.sentiment_confidence",
	"f.analysis_method", "f.reasoning", "f.analyzed_at",
	"f.manual_category", "f.manual_sentiment", "f.category_overridden", "f.sentiment_overridden",
	"f.is_visible", "f.visibility_rank", "f.created_at", "f.updated_at",
}

const (
	effectiveCategorySQL  = "CASE WHEN f.category_overridden AND f.manual_category IS NOT NULL THEN f.manual_category ELSE f.category END"
	effectiveSentimentSQL = "CASE WHEN f.sentiment_overridden AND f.manual_sentiment IS NOT NULL THEN f.manual_sentiment ELSE f.sentiment END"
)

func scanFeedback(row pgx.Row) (*domain.Feedback, error) {
	var (
		f                     domain.Feedback
		status                string
		category, sentiment   *string
		catConf, sentConf     *float64
		method, reasoning     *string
		analyzedAt            *time.Time
		manualCat, manualSent *string
		isVisible             bool
		rank                  *int
	)
	err := row.Scan(
		&f.ID, &f.ProjectID, &f.Seq, &f.Content, &f.ContributorEmail, &f.Notes, &status,
		&category, &sentiment, &catConf, &sentConf,
		&method, &reasoning, &analyzedAt,
		&manualCat, &manualSent, &f.Override.CategoryOverridden, &f.Override.SentimentOverridden,
		&isVisible, &rank, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Status = domain.FeedbackStatus(status)
	if category != nil && sentiment != nil {
		a := &domain.Analysis{
			Category:  domain.Category(*category),
			Sentiment: domain.Sentiment(*sentiment),
		}
		if catConf != nil {
			a.CategoryConfidence = *catConf
		}
		if sentConf != nil {
			a.SentimentConfidence = *sentConf
		}
		if method != nil {
			a.Method = domain.AnalysisMethod(*method)
		}
		if reasoning != nil {
			a.Reasoning = *reasoning
		}
		if analyzedAt != nil {
			a.AnalyzedAt = *analyzedAt
		}
		f.Analysis = a
	}
	if manualCat != nil {
		c := domain.Category(*manualCat)
		f.Override.ManualCategory = &c
	}
	if manualSent != nil {
		s := domain.Sentiment(*manualSent)
		f.Override.ManualSentiment = &s
	}

	f.Visibility, err = domain.VisibilityFromColumns(isVisible, rank)
	if err != nil {
		return nil, fmt.Errorf("feedback %s: %w", f.ID, err)
	}
	return &f, nil
}

// analysisArgs flattens an optional analysis into its seven columns.
func analysisArgs(a *domain.Analysis) []any {
	if a == nil {
		return []any{nil, nil, nil, nil, nil, nil, nil}
	}
	return []any{
		string(a.Category), string(a.Sentiment), a.CategoryConfidence, a.SentimentConfidence,
		string(a.Method), a.Reasoning, a.AnalyzedAt,
	}
}

func enumPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

const insertFeedbackSQL = `
INSERT INTO feedback (
    id, project_id, seq, content, contributor_email, notes, status,
    category, sentiment, category_confidence, sentiment_confidence,
    analysis_method, reasoning, analyzed_at,
    manual_category, manual_sentiment, category_overridden, sentiment_overridden,
    is_visible, visibility_rank, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

func (a *FeedbackAdapter) Create(ctx context.Context, f *domain.Feedback) error {
	isVisible, rank := f.Visibility.Columns()
	args := []any{f.ID, f.ProjectID, f.Seq, f.Content, f.ContributorEmail, f.Notes, string(f.Status)}
	args = append(args, analysisArgs(f.Analysis)...)
	args = append(args,
		enumPtr(f.Override.ManualCategory), enumPtr(f.Override.ManualSentiment),
		f.Override.CategoryOverridden, f.Override.SentimentOverridden,
		isVisible, rank, f.CreatedAt, f.UpdatedAt,
	)

	if _, err := QuerierFromCtx(ctx, a.db).Exec(ctx, insertFeedbackSQL, args...); err != nil {
		return mapError(err, "feedback", f.ID)
	}
	return nil
}

func (a *FeedbackAdapter) tenantSelect(tenantID uuid.UUID) squirrel.SelectBuilder {
	return psql.Select(feedbackColumns...).
		From("feedback f").
		Join("projects p ON p.id = f.project_id").
		Where(squirrel.Eq{"p.tenant_id": tenantID})
}

func (a *FeedbackAdapter) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Feedback, error) {
	query, args, err := a.tenantSelect(tenantID).Where(squirrel.Eq{"f.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build feedback query: %w", err)
	}
	f, err := scanFeedback(QuerierFromCtx(ctx, a.db).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err, "feedback", id)
	}
	return f, nil
}

// applyFilter adds the optional list predicates.
func applyFilter(b squirrel.SelectBuilder, filter domain.FeedbackFilter) squirrel.SelectBuilder {
	if !filter.IncludeHidden {
		b = b.Where("f.is_visible")
	}
	if filter.ProjectID != nil {
		b = b.Where(squirrel.Eq{"f.project_id": *filter.ProjectID})
	}
	if filter.Status != nil {
		b = b.Where(squirrel.Eq{"f.status": string(*filter.Status)})
	}
	if filter.Category != nil {
		b = b.Where(effectiveCategorySQL+" = ?", string(*filter.Category))
	}
	if filter.Sentiment != nil {
		b = b.Where(effectiveSentimentSQL+" = ?", string(*filter.Sentiment))
	}
	return b
}

// List returns one page, newest first, plus the total matching count.
func (a *FeedbackAdapter) List(ctx context.Context, filter domain.FeedbackFilter) ([]*domain.Feedback, int, error) {
	q := QuerierFromCtx(ctx, a.db)

	countSQL, countArgs, err := applyFilter(
		psql.Select("count(*)").
			From("feedback f").
			Join("projects p ON p.id = f.project_id").
			Where(squirrel.Eq{"p.tenant_id": filter.TenantID}),
		filter,
	).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, storageErr("count feedback", err)
	}
	if total == 0 {
		return []*domain.Feedback{}, 0, nil
	}

	listSQL, listArgs, err := applyFilter(a.tenantSelect(filter.TenantID), filter).
		OrderBy("f.created_at DESC", "f.seq DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	rows, err := q.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, storageErr("list feedback", err)
	}
	defer rows.Close()

	items := make([]*domain.Feedback, 0, filter.Limit)
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, 0, storageErr("scan feedback", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("list feedback", err)
	}
	return items, total, nil
}

// update runs a tenant-scoped UPDATE with the given SET clause.
func (a *FeedbackAdapter) update(ctx context.Context, tenantID, id uuid.UUID, set map[string]any) error {
	set["updated_at"] = squirrel.Expr("now()")
	query, args, err := psql.Update("feedback f").
		SetMap(set).
		Suffix("FROM projects p WHERE p.id = f.project_id AND f.id = ? AND p.tenant_id = ?", id, tenantID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build feedback update: %w", err)
	}
	tag, err := QuerierFromCtx(ctx, a.db).Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "feedback", id)
	}
	return affectedOne(tag, "feedback", id)
}

func (a *FeedbackAdapter) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.FeedbackStatus) error {
	return a.update(ctx, tenantID, id, map[string]any{"status": string(status)})
}

func (a *FeedbackAdapter) UpdateOverride(ctx context.Context, tenantID, id uuid.UUID, o domain.Override) error {
	return a.update(ctx, tenantID, id, map[string]any{
		"manual_category":      enumPtr(o.ManualCategory),
		"manual_sentiment":     enumPtr(o.ManualSentiment),
		"category_overridden":  o.CategoryOverridden,
		"sentiment_overridden": o.SentimentOverridden,
	})
}

func (a *FeedbackAdapter) UpdateNotes(ctx context.Context, tenantID, id uuid.UUID, notes *string) error {
	return a.update(ctx, tenantID, id, map[string]any{"notes": notes})
}

func (a *FeedbackAdapter) UpdateAnalysis(ctx context.Context, tenantID, id uuid.UUID, an *domain.Analysis) error {
	v := analysisArgs(an)
	return a.update(ctx, tenantID, id, map[string]any{
		"category":             v[0],
		"sentiment":            v[1],
		"category_confidence":  v[2],
		"sentiment_confidence": v[3],
		"analysis_method":      v[4],
		"reasoning":            v[5],
		"analyzed_at":          v[6],
	})
}

const deleteFeedbackSQL = `
DELETE FROM feedback f
USING projects p
WHERE p.id = f.project_id AND f.id = $1 AND p.tenant_id = $2`

func (a *FeedbackAdapter) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := QuerierFromCtx(ctx, a.db).Exec(ctx, deleteFeedbackSQL, id, tenantID)
	if err != nil {
		return mapError(err, "feedback", id)
	}
	return affectedOne(tag, "feedback", id)
}

// Stats groups visible rows by effective category, effective sentiment and
// status in a single pass.
func (a *FeedbackAdapter) Stats(ctx context.Context, tenantID uuid.UUID, projectID *uuid.UUID) (*domain.FeedbackStats, error) {
	b := psql.Select(effectiveCategorySQL, effectiveSentimentSQL, "f.status", "count(*)").
		From("feedback f").
		Join("projects p ON p.id = f.project_id").
		Where(squirrel.Eq{"p.tenant_id": tenantID}).
		Where("f.is_visible").
		GroupBy("1", "2", "3")
	if projectID != nil {
		b = b.Where(squirrel.Eq{"f.project_id": *projectID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats query: %w", err)
	}

	rows, err := QuerierFromCtx(ctx, a.db).Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("feedback stats", err)
	}
	defer rows.Close()

	st := domain.NewFeedbackStats()
	for rows.Next() {
		var (
			category, sentiment *string
			status              string
			n                   int
		)
		if err := rows.Scan(&category, &sentiment, &status, &n); err != nil {
			return nil, storageErr("scan stats", err)
		}
		st.Total += n
		st.ByStatus[domain.FeedbackStatus(status)] += n
		if category != nil {
			st.ByCategory[domain.Category(*category)] += n
		}
		if sentiment != nil {
			st.BySentiment[domain.Sentiment(*sentiment)] += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("feedback stats", err)
	}
	return st, nil
}

const countVisibilitySQL = `
SELECT count(*) FILTER (WHERE f.is_visible),
       count(*) FILTER (WHERE NOT f.is_visible)
FROM feedback f
JOIN projects p ON p.id = f.project_id
WHERE p.tenant_id = $1`

func (a *FeedbackAdapter) CountVisibility(ctx context.Context, tenantID uuid.UUID) (int, int, error) {
	var visible, hidden int
	if err := QuerierFromCtx(ctx, a.db).QueryRow(ctx, countVisibilitySQL, tenantID).Scan(&visible, &hidden); err != nil {
		return 0, 0, storageErr("count visibility", err)
	}
	return visible, hidden, nil
}
