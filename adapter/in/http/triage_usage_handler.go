package http

import (
	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/infra/middleware"
	"triage_server/pkg/apperr"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UsageHandler serves the tenant usage summary.
type UsageHandler struct {
	gate in.UsageGate
}

func NewUsageHandler(gate in.UsageGate) *UsageHandler {
	return &UsageHandler{gate: gate}
}

func (h *UsageHandler) Register(router fiber.Router) {
	router.Get("/usage", h.Get)
}

func (h *UsageHandler) Get(c *fiber.Ctx) error {
	tenantID, err := middleware.TenantID(c)
	if err != nil {
		return err
	}
	summary, err := h.gate.Usage(c.UserContext(), tenantID)
	if err != nil {
		return err
	}
	return response.OK(c, summary)
}

// BillingHandler exposes plan changes and cycle resets to the billing system.
// Routes are mounted behind the internal key middleware.
type BillingHandler struct {
	billing in.BillingService
}

func NewBillingHandler(billing in.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

func (h *BillingHandler) Register(router fiber.Router) {
	tenants := router.Group("/billing/tenants/:tenantID")
	tenants.Put("/plan", h.ChangePlan)
	tenants.Post("/reset", h.ResetCycle)
}

type changePlanRequest struct {
	Plan string `json:"plan"`
}

func (h *BillingHandler) ChangePlan(c *fiber.Ctx) error {
	tenantID, err := paramUUID(c, "tenantID")
	if err != nil {
		return err
	}
	var req changePlanRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	plan, err := domain.ParsePlan(req.Plan)
	if err != nil {
		return apperr.InvalidInput("plan", err.Error())
	}

	sub, err := h.billing.ChangePlan(c.UserContext(), tenantID, plan)
	if err != nil {
		return err
	}
	return response.OK(c, sub)
}

func (h *BillingHandler) ResetCycle(c *fiber.Ctx) error {
	tenantID, err := paramUUID(c, "tenantID")
	if err != nil {
		return err
	}
	sub, err := h.billing.ResetBillingCycle(c.UserContext(), tenantID)
	if err != nil {
		return err
	}
	return response.OK(c, sub)
}
