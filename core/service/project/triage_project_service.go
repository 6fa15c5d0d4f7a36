// Package project manages a tenant's projects.
package project

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
)

const maxNameLength = 100

type Service struct {
	repo   out.ProjectRepository
	gate   in.UsageGate
	ranker in.VisibilityRanker
	log    *logger.Logger
}

func NewService(repo out.ProjectRepository, gate in.UsageGate, ranker in.VisibilityRanker, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{repo: repo, gate: gate, ranker: ranker, log: log.WithField("component", "project")}
}

var _ in.ProjectService = (*Service)(nil)

// Create adds a project when the tenant's plan allows another one. A denied
// request returns domain.ErrPlanLimit.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, input in.CreateProjectInput) (*domain.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, fmt.Errorf("project name must be 1-%d characters: %w", maxNameLength, domain.ErrInvalidInput)
	}
	origins, err := normalizeOrigins(input.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	ok, err := s.gate.CanCreateProject(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrPlanLimit
	}

	p := &domain.Project{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Name:           name,
		AllowedOrigins: origins,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.log.WithFields(map[string]any{"tenant_id": tenantID, "project_id": p.ID}).Info("project created")
	return p, nil
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.Project, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

// Delete removes the project with its feedback and re-partitions what is left.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.ranker.RecomputeVisibility(ctx, tenantID); err != nil {
		s.log.WithFields(map[string]any{"tenant_id": tenantID, "project_id": id}).
			WithError(err).Error("recompute after project delete failed")
	}
	return nil
}

// normalizeOrigins keeps scheme://host[:port] and drops duplicates.
func normalizeOrigins(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	origins := make([]string, 0, len(raw))
	for _, o := range raw {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o != "*" {
			u, err := url.Parse(o)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, fmt.Errorf("origin %q: %w", o, domain.ErrInvalidInput)
			}
			o = strings.ToLower(u.Scheme + "://" + u.Host)
		}
		if !seen[o] {
			seen[o] = true
			origins = append(origins, o)
		}
	}
	return origins, nil
}
