package middleware

import (
	"context"
	"strings"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const auditWriteTimeout = 3 * time.Second

// Audit records every request that is not GET, HEAD or OPTIONS once the
// handler has returned. Records are written in the background; sink errors
// are logged only.
func Audit(sink out.AuditSink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sink == nil {
			return c.Next()
		}
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = ToAppError(err).Status
		}

		// fiber reuses request buffers, so every string taken from c is cloned
		ev := &domain.AuditEvent{
			ID:         uuid.NewString(),
			Timestamp:  start.UTC(),
			TenantID:   auditTenant(c),
			Action:     c.Method() + " " + c.Route().Path,
			ResourceID: auditResourceID(c),
			Path:       strings.Clone(c.Path()),
			IP:         strings.Clone(c.IP()),
			UserAgent:  strings.Clone(c.Get(fiber.HeaderUserAgent)),
			StatusCode: status,
			DurationMS: time.Since(start).Milliseconds(),
			Success:    status < 400,
		}
		if reqID, ok := c.Locals("request_id").(string); ok {
			ev.RequestID = reqID
		}
		if err != nil {
			ev.Error = err.Error()
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
			defer cancel()
			if logErr := sink.RecordAudit(ctx, ev); logErr != nil {
				logger.WithError(logErr).Warn("failed to record audit event %s", ev.Action)
			}
		}()

		return err
	}
}

func auditTenant(c *fiber.Ctx) string {
	if id, ok := c.Locals(TenantIDKey).(uuid.UUID); ok {
		return id.String()
	}
	return strings.Clone(c.Params("tenantID"))
}

func auditResourceID(c *fiber.Ctx) string {
	for _, name := range []string{"id", "projectID", "tenantID"} {
		if v := c.Params(name); v != "" {
			return strings.Clone(v)
		}
	}
	return ""
}
