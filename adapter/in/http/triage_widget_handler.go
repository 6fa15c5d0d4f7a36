package http

import (
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// WidgetHandler serves the public submission endpoint.
type WidgetHandler struct {
	ingestion in.FeedbackIngestion
}

func NewWidgetHandler(ingestion in.FeedbackIngestion) *WidgetHandler {
	return &WidgetHandler{ingestion: ingestion}
}

// Register mounts POST /:projectID/feedback on the widget group. Extra
// handlers (rate limiting) run before Submit.
func (h *WidgetHandler) Register(router fiber.Router, mw ...fiber.Handler) {
	handlers := append(append([]fiber.Handler{}, mw...), h.Submit)
	router.Post("/:projectID/feedback", handlers...)
}

type submitRequest struct {
	Content string `json:"content"`
	Email   string `json:"email"`
}

// SubmitResponse is what a visitor sees. Classification stays internal.
type SubmitResponse struct {
	ID        uuid.UUID             `json:"id"`
	Status    domain.FeedbackStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
}

func (h *WidgetHandler) Submit(c *fiber.Ctx) error {
	projectID, err := paramUUID(c, "projectID")
	if err != nil {
		return err
	}

	var req submitRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	f, err := h.ingestion.Submit(c.UserContext(), in.SubmitInput{
		ProjectID: projectID,
		Content:   req.Content,
		Email:     req.Email,
		Origin:    c.Get(fiber.HeaderOrigin),
	})
	if err != nil {
		return err
	}

	return response.Accepted(c, SubmitResponse{ID: f.ID, Status: f.Status, CreatedAt: f.CreatedAt})
}
