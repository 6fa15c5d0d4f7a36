package http

import (
	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/infra/middleware"
	"triage_server/pkg/apperr"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// FeedbackHandler handles the operator dashboard feedback routes.
type FeedbackHandler struct {
	service in.FeedbackManagement
}

func NewFeedbackHandler(service in.FeedbackManagement) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// Register registers feedback routes
func (h *FeedbackHandler) Register(router fiber.Router) {
	fb := router.Group("/feedback")

	fb.Get("/", h.List)
	fb.Get("/stats", h.Stats)
	fb.Get("/:id", h.Get)
	fb.Delete("/:id", h.Delete)

	fb.Patch("/:id/status", h.UpdateStatus)
	fb.Patch("/:id/override", h.UpdateOverride)
	fb.Patch("/:id/notes", h.UpdateNotes)
	fb.Post("/:id/reanalyze", h.Reanalyze)
}

// List lists feedback with filters
// Query: project_id, status, category, sentiment, include_hidden, limit, offset
func (h *FeedbackHandler) List(c *fiber.Ctx) error {
	tenantID, err := middleware.TenantID(c)
	if err != nil {
		return err
	}

	filter := domain.FeedbackFilter{
		TenantID:      tenantID,
		IncludeHidden: c.QueryBool("include_hidden", false),
		Limit:         c.QueryInt("limit", 20),
		Offset:        c.QueryInt("offset", 0),
	}
	if filter.ProjectID, err = queryUUID(c, "project_id"); err != nil {
		return err
	}
	if raw := c.Query("status"); raw != "" {
		s, err := domain.ParseStatus(raw)
		if err != nil {
			return apperr.InvalidInput("status", err.Error())
		}
		filter.Status = &s
	}
	if raw := c.Query("category"); raw != "" {
		cat, err := domain.ParseCategory(raw)
		if err != nil {
			return apperr.InvalidInput("category", err.Error())
		}
		filter.Category = &cat
	}
	if raw := c.Query("sentiment"); raw != "" {
		s, err := domain.ParseSentiment(raw)
		if err != nil {
			return apperr.InvalidInput("sentiment", err.Error())
		}
		filter.Sentiment = &s
	}
	filter.Normalize()

	rows, total, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, toFeedbackResponses(rows), response.NewMeta(total, filter.Limit, filter.Offset))
}

func (h *FeedbackHandler) Get(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	f, err := h.service.Get(c.UserContext(), tenantID, id)
	if err != nil {
		return err
	}
	return response.OK(c, toFeedbackResponse(f))
}

func (h *FeedbackHandler) Stats(c *fiber.Ctx) error {
	tenantID, err := middleware.TenantID(c)
	if err != nil {
		return err
	}
	projectID, err := queryUUID(c, "project_id")
	if err != nil {
		return err
	}
	stats, err := h.service.Stats(c.UserContext(), tenantID, projectID)
	if err != nil {
		return err
	}
	return response.OK(c, stats)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *FeedbackHandler) UpdateStatus(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return apperr.InvalidInput("status", err.Error())
	}

	f, err := h.service.UpdateStatus(c.UserContext(), tenantID, id, status)
	if err != nil {
		return err
	}
	return response.OK(c, toFeedbackResponse(f))
}

// overrideRequest sets a manual value, or clears it when clear_* is true.
type overrideRequest struct {
	Category       *string `json:"category"`
	Sentiment      *string `json:"sentiment"`
	ClearCategory  bool    `json:"clear_category"`
	ClearSentiment bool    `json:"clear_sentiment"`
}

func (h *FeedbackHandler) UpdateOverride(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req overrideRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	input := in.OverrideInput{ClearCategory: req.ClearCategory, ClearSentiment: req.ClearSentiment}
	if req.Category != nil && !req.ClearCategory {
		cat, err := domain.ParseCategory(*req.Category)
		if err != nil {
			return apperr.InvalidInput("category", err.Error())
		}
		input.Category = &cat
	}
	if req.Sentiment != nil && !req.ClearSentiment {
		s, err := domain.ParseSentiment(*req.Sentiment)
		if err != nil {
			return apperr.InvalidInput("sentiment", err.Error())
		}
		input.Sentiment = &s
	}

	f, err := h.service.UpdateOverride(c.UserContext(), tenantID, id, input)
	if err != nil {
		return err
	}
	return response.OK(c, toFeedbackResponse(f))
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *FeedbackHandler) UpdateNotes(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req notesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	f, err := h.service.UpdateNotes(c.UserContext(), tenantID, id, req.Notes)
	if err != nil {
		return err
	}
	return response.OK(c, toFeedbackResponse(f))
}

func (h *FeedbackHandler) Reanalyze(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	f, err := h.service.Reanalyze(c.UserContext(), tenantID, id)
	if err != nil {
		return err
	}
	return response.OK(c, toFeedbackResponse(f))
}

func (h *FeedbackHandler) Delete(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), tenantID, id); err != nil {
		return err
	}
	return response.NoContent(c)
}
