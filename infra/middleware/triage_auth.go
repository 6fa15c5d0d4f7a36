package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TenantIDKey is the fiber locals key holding the authenticated tenant.
const TenantIDKey = "tenant_id"

// TenantClaims are the dashboard token claims. The tenant comes from the
// tenant_id claim, falling back to sub.
type TenantClaims struct {
	TenantID string `json:"tenant_id,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *TenantClaims) tenant() (uuid.UUID, error) {
	raw := c.TenantID
	if raw == "" {
		raw = c.Subject
	}
	return uuid.Parse(raw)
}

// JWTAuth validates HS256 bearer tokens and stores the tenant id in locals
// and in the request context.
func JWTAuth(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(time.Minute),
		jwt.WithIssuedAt(),
	)

	return func(c *fiber.Ctx) error {
		if secret == "" {
			return apperr.Internal("JWT secret not configured")
		}

		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}

		claims := &TenantClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return apperr.TokenExpired()
			}
			logger.WithError(err).Warn("JWT validation failed")
			return apperr.InvalidToken("invalid token")
		}
		if !token.Valid {
			return apperr.InvalidToken("invalid token")
		}

		tenantID, err := claims.tenant()
		if err != nil || tenantID == uuid.Nil {
			return apperr.InvalidToken("invalid tenant id in token")
		}

		c.Locals(TenantIDKey, tenantID)
		c.Locals("user_email", claims.Email)
		c.SetUserContext(context.WithValue(c.UserContext(), logger.TenantIDKey, tenantID))
		return c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// TenantID returns the authenticated tenant set by JWTAuth.
func TenantID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := c.Locals(TenantIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, apperr.ErrUnauthorized
	}
	return id, nil
}

// InternalKey guards service-to-service routes with a shared X-Internal-Key.
func InternalKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return apperr.Internal("internal API key not configured")
		}
		got := c.Get("X-Internal-Key")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return apperr.Unauthorized("invalid internal key")
		}
		return c.Next()
	}
}
