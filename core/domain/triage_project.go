package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Project groups feedback for one site or app. A tenant owns many projects.
type Project struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Name     string    `json:"name"`
	// AllowedOrigins restricts which sites may post to the widget endpoint.
	// Empty means any origin.
	AllowedOrigins []string  `json:"allowed_origins"`
	CreatedAt      time.Time `json:"created_at"`
}

// AllowsOrigin reports whether a widget request from origin is accepted.
// Requests without an Origin header are not browser submissions and pass.
func (p *Project) AllowsOrigin(origin string) bool {
	if len(p.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	origin = strings.TrimSuffix(strings.ToLower(origin), "/")
	for _, o := range p.AllowedOrigins {
		if o == "*" || strings.TrimSuffix(strings.ToLower(o), "/") == origin {
			return true
		}
	}
	return false
}
