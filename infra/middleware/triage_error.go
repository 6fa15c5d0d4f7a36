// Package middleware holds the fiber middleware shared by every route group.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"triage_server/core/domain"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ToAppError maps service errors onto API errors. Unknown errors become 500s.
func ToAppError(err error) *apperr.AppError {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return apperr.NotFound("resource").WithError(err)
	case errors.Is(err, domain.ErrInvalidInput):
		return apperr.New(apperr.CodeInvalidInput, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrPlanLimit):
		return apperr.New(apperr.CodePlanLimit, "plan limit reached", http.StatusForbidden)
	case errors.Is(err, domain.ErrOriginNotAllowed):
		return apperr.Forbidden("origin not allowed for this project").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Timeout("request").WithError(err)
	case errors.Is(err, domain.ErrStorage):
		return apperr.DatabaseError("storage", err)
	default:
		return apperr.InternalWithError(err)
	}
}

// ErrorHandler is a centralized error handler for Fiber
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals("request_id").(string)

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return response.Error(c, fiberErr.Code, requestID, &response.ErrorInfo{
				Code:    mapHTTPStatusToCode(fiberErr.Code),
				Message: fiberErr.Message,
			})
		}

		e := ToAppError(err)
		status := e.Status

		log := logger.Default().WithContext(c.UserContext()).
			WithField("error_code", e.Code).
			WithError(e.Err)
		if status >= 500 {
			log.Error("Internal error: %s %s: %v", c.Method(), c.Path(), err)
		} else {
			log.Warn("Client error: %s", e.Message)
		}

		return response.Error(c, status, requestID, &response.ErrorInfo{
			Code:    e.Code,
			Message: e.Message,
			Details: e.Details,
		})
	}
}

// RequestID middleware adds a unique request ID to each request
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// cloned: the value outlives the request buffer in contexts and logs
		requestID := strings.Clone(c.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)
		c.SetUserContext(context.WithValue(c.UserContext(), logger.RequestIDKey, requestID))
		return c.Next()
	}
}

// RequestLogger logs incoming requests and their responses
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// the error handler runs after this middleware returns
			status = ToAppError(err).Status
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			}
		}

		log := logger.Default().WithContext(c.UserContext()).WithFields(map[string]any{
			"method": c.Method(),
			"path":   c.Path(),
			"status": status,
			"ip":     c.IP(),
		}).WithDuration(time.Since(start))

		switch {
		case status >= 500:
			log.Error("Request failed: %s %s -> %d", c.Method(), c.Path(), status)
		case status >= 400:
			log.Warn("Request error: %s %s -> %d", c.Method(), c.Path(), status)
		default:
			log.Info("Request completed: %s %s -> %d", c.Method(), c.Path(), status)
		}

		return err
	}
}

// Recover middleware recovers from panics
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Locals("request_id").(string)
				logger.WithFields(map[string]any{
					"request_id": requestID,
					"panic":      fmt.Sprintf("%v", r),
					"path":       c.Path(),
					"method":     c.Method(),
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered")

				err = apperr.Internal("")
			}
		}()
		return c.Next()
	}
}

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		return c.Next()
	}
}

func mapHTTPStatusToCode(status int) string {
	switch status {
	case 400:
		return apperr.CodeValidationFailed
	case 401:
		return apperr.CodeUnauthorized
	case 403:
		return apperr.CodeForbidden
	case 404:
		return apperr.CodeNotFound
	case 409:
		return apperr.CodeConflict
	case 413:
		return apperr.CodeBadRequest
	case 429:
		return apperr.CodeRateLimited
	case 500:
		return apperr.CodeInternalError
	case 502, 503, 504:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
