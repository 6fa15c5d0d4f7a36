// Package response provides the JSON envelope shared by every endpoint.
package response

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Response is the standard API response structure.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Meta      *Meta      `json:"meta,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	Timestamp string     `json:"timestamp,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Meta carries pagination info for list endpoints.
type Meta struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewMeta builds pagination metadata.
func NewMeta(total, limit, offset int) *Meta {
	return &Meta{Total: total, Limit: limit, Offset: offset, HasMore: offset+limit < total}
}

func OK(c *fiber.Ctx, data any) error {
	return c.JSON(Response{Success: true, Data: data})
}

func OKWithMeta(c *fiber.Ctx, data any, meta *Meta) error {
	return c.JSON(Response{Success: true, Data: data, Meta: meta})
}

func Created(c *fiber.Ctx, data any) error {
	return c.Status(http.StatusCreated).JSON(Response{Success: true, Data: data})
}

// Accepted is used by the widget endpoint: the row is stored, side effects may still be settling.
func Accepted(c *fiber.Ctx, data any) error {
	return c.Status(http.StatusAccepted).JSON(Response{Success: true, Data: data})
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(http.StatusNoContent)
}

// Error writes an error envelope stamped with the request ID and the current time.
func Error(c *fiber.Ctx, status int, requestID string, info *ErrorInfo) error {
	return c.Status(status).JSON(Response{
		Success:   false,
		Error:     info,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
