package http

import (
	"triage_server/core/port/in"
	"triage_server/infra/middleware"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type ProjectHandler struct {
	service in.ProjectService
}

func NewProjectHandler(service in.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

func (h *ProjectHandler) Register(router fiber.Router) {
	projects := router.Group("/projects")
	projects.Get("/", h.List)
	projects.Post("/", h.Create)
	projects.Delete("/:id", h.Delete)
}

type createProjectRequest struct {
	Name           string   `json:"name"`
	AllowedOrigins []string `json:"allowed_origins"`
}

func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	tenantID, err := middleware.TenantID(c)
	if err != nil {
		return err
	}
	var req createProjectRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	p, err := h.service.Create(c.UserContext(), tenantID, in.CreateProjectInput{
		Name:           req.Name,
		AllowedOrigins: req.AllowedOrigins,
	})
	if err != nil {
		return err
	}
	return response.Created(c, p)
}

func (h *ProjectHandler) List(c *fiber.Ctx) error {
	tenantID, err := middleware.TenantID(c)
	if err != nil {
		return err
	}
	projects, err := h.service.List(c.UserContext(), tenantID)
	if err != nil {
		return err
	}
	return response.OK(c, projects)
}

// Delete removes the project and its feedback.
func (h *ProjectHandler) Delete(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), tenantID, id); err != nil {
		return err
	}
	return response.NoContent(c)
}
