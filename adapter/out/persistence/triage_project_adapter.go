package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// ProjectAdapter implements out.ProjectRepository using sqlx.
type ProjectAdapter struct {
	db *sqlx.DB
}

func NewProjectAdapter(db *sqlx.DB) *ProjectAdapter {
	return &ProjectAdapter{db: db}
}

var _ out.ProjectRepository = (*ProjectAdapter)(nil)

type projectRow struct {
	ID             uuid.UUID      `db:"id"`
	TenantID       uuid.UUID      `db:"tenant_id"`
	Name           string         `db:"name"`
	AllowedOrigins pq.StringArray `db:"allowed_origins"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r *projectRow) toEntity() *domain.Project {
	origins := []string(r.AllowedOrigins)
	if origins == nil {
		origins = []string{}
	}
	return &domain.Project{
		ID:             r.ID,
		TenantID:       r.TenantID,
		Name:           r.Name,
		AllowedOrigins: origins,
		CreatedAt:      r.CreatedAt,
	}
}

const projectColumns = `id, tenant_id, name, allowed_origins, created_at`

func (a *ProjectAdapter) Create(ctx context.Context, p *domain.Project) error {
	query := `INSERT INTO projects (` + projectColumns + `) VALUES ($1, $2, $3, $4, $5)`
	origins := p.AllowedOrigins
	if origins == nil {
		origins = []string{}
	}
	if _, err := a.db.ExecContext(ctx, query, p.ID, p.TenantID, p.Name, pq.Array(origins), p.CreatedAt); err != nil {
		return mapError(err, "project", p.ID)
	}
	return nil
}

func (a *ProjectAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var row projectRow
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, mapError(err, "project", id)
	}
	return row.toEntity(), nil
}

func (a *ProjectAdapter) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Project, error) {
	var rows []projectRow
	query := `SELECT ` + projectColumns + ` FROM projects WHERE tenant_id = $1 ORDER BY created_at ASC`
	if err := a.db.SelectContext(ctx, &rows, query, tenantID); err != nil {
		return nil, storageErr("list projects", err)
	}

	projects := make([]*domain.Project, len(rows))
	for i := range rows {
		projects[i] = rows[i].toEntity()
	}
	return projects, nil
}

func (a *ProjectAdapter) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	if err := a.db.GetContext(ctx, &count, `SELECT count(*) FROM projects WHERE tenant_id = $1`, tenantID); err != nil {
		return 0, storageErr("count projects", err)
	}
	return count, nil
}

// Delete removes the project; its feedback goes with it through ON DELETE CASCADE.
func (a *ProjectAdapter) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return mapError(err, "project", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete project", err)
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}
