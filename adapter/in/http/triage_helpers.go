package http

import (
	"triage_server/core/domain"
	"triage_server/infra/middleware"
	"triage_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// paramUUID parses a uuid route parameter.
func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput(name, "must be a UUID")
	}
	return id, nil
}

// queryUUID parses an optional uuid query parameter.
func queryUUID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.InvalidInput(name, "must be a UUID")
	}
	return &id, nil
}

func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	return nil
}

// tenantAndID returns the authenticated tenant and the :id parameter.
func tenantAndID(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	tenantID, err := middleware.TenantID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, id, nil
}

// FeedbackResponse is the dashboard view of a row, including the effective
// classification after overrides.
type FeedbackResponse struct {
	*domain.Feedback
	EffectiveCategory  *domain.Category  `json:"effective_category"`
	EffectiveSentiment *domain.Sentiment `json:"effective_sentiment"`
}

func toFeedbackResponse(f *domain.Feedback) FeedbackResponse {
	return FeedbackResponse{
		Feedback:           f,
		EffectiveCategory:  f.EffectiveCategory(),
		EffectiveSentiment: f.EffectiveSentiment(),
	}
}

func toFeedbackResponses(rows []*domain.Feedback) []FeedbackResponse {
	out := make([]FeedbackResponse, 0, len(rows))
	for _, f := range rows {
		out = append(out, toFeedbackResponse(f))
	}
	return out
}
