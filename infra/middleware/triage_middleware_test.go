package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/pkg/apperr"
	"triage_server/pkg/response"
)

const testSecret = "test-secret"

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(Recover(), RequestID())
	return app
}

func decodeError(t *testing.T, resp *http.Response) response.Response {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var out response.Response
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return out
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"not found", fmt.Errorf("project: %w", domain.ErrNotFound), apperr.CodeNotFound, 404},
		{"invalid input", fmt.Errorf("content is empty: %w", domain.ErrInvalidInput), apperr.CodeInvalidInput, 400},
		{"plan limit", domain.ErrPlanLimit, apperr.CodePlanLimit, 403},
		{"origin", fmt.Errorf("origin: %w", domain.ErrOriginNotAllowed), apperr.CodeForbidden, 403},
		{"deadline", context.DeadlineExceeded, apperr.CodeTimeout, 504},
		{"storage", fmt.Errorf("list feedback: %w: %w", domain.ErrStorage, errors.New("conn reset")), apperr.CodeDatabaseError, 500},
		{"app error passes through", apperr.Unauthorized("no key"), apperr.CodeUnauthorized, 401},
		{"unknown", errors.New("boom"), apperr.CodeInternalError, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAppError(tt.err)
			if got.Code != tt.wantCode || got.Status != tt.wantStatus {
				t.Errorf("got %s/%d, want %s/%d", got.Code, got.Status, tt.wantCode, tt.wantStatus)
			}
		})
	}
}

func TestErrorHandler_InvalidInputMessage(t *testing.T) {
	app := newApp()
	app.Get("/", func(c *fiber.Ctx) error {
		return fmt.Errorf("content is empty: %w", domain.ErrInvalidInput)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeError(t, resp)
	if body.Error.Code != apperr.CodeInvalidInput || body.Error.Message != "content is empty: invalid input" {
		t.Errorf("body = %+v", body)
	}
	if body.RequestID == "" || body.RequestID != resp.Header.Get("X-Request-ID") {
		t.Errorf("request id %q vs header %q", body.RequestID, resp.Header.Get("X-Request-ID"))
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", body.Timestamp, err)
	}
}

func TestErrorHandler_FiberError(t *testing.T) {
	app := newApp()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Error.Code != apperr.CodeNotFound {
		t.Errorf("code = %s", body.Error.Code)
	}
}

func TestRecover(t *testing.T) {
	app := newApp()
	app.Get("/", func(c *fiber.Ctx) error { panic("kaboom") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 500 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Error.Code != apperr.CodeInternalError {
		t.Errorf("code = %s", body.Error.Code)
	}
}

func TestRequestID_EchoesIncoming(t *testing.T) {
	app := newApp()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestJWTAuth(t *testing.T) {
	tenant := uuid.New()
	now := time.Now()

	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), &TenantClaims{
		TenantID: tenant.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	subOnly := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), &TenantClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: tenant.String()},
	})
	expired := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), &TenantClaims{
		TenantID: tenant.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	})
	wrongSecret := signToken(t, jwt.SigningMethodHS256, []byte("other"), &TenantClaims{TenantID: tenant.String()})
	wrongAlg := signToken(t, jwt.SigningMethodHS512, []byte(testSecret), &TenantClaims{TenantID: tenant.String()})
	badTenant := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), &TenantClaims{TenantID: "acme"})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid", "Bearer " + valid, 200, ""},
		{"subject fallback", "Bearer " + subOnly, 200, ""},
		{"lowercase scheme", "bearer " + valid, 200, ""},
		{"missing", "", 401, apperr.CodeUnauthorized},
		{"basic scheme", "Basic abc", 401, apperr.CodeUnauthorized},
		{"expired", "Bearer " + expired, 401, apperr.CodeTokenExpired},
		{"wrong secret", "Bearer " + wrongSecret, 401, apperr.CodeInvalidToken},
		{"wrong alg", "Bearer " + wrongAlg, 401, apperr.CodeInvalidToken},
		{"bad tenant", "Bearer " + badTenant, 401, apperr.CodeInvalidToken},
	}

	app := newApp()
	app.Get("/", JWTAuth(testSecret), func(c *fiber.Ctx) error {
		id, err := TenantID(c)
		if err != nil {
			return err
		}
		return c.SendString(id.String())
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == 200 {
				body, _ := io.ReadAll(resp.Body)
				if string(body) != tenant.String() {
					t.Errorf("tenant = %s, want %s", body, tenant)
				}
				return
			}
			if body := decodeError(t, resp); body.Error.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestInternalKey(t *testing.T) {
	app := newApp()
	app.Post("/", InternalKey("k3y"), func(c *fiber.Ctx) error { return c.SendStatus(204) })

	tests := []struct {
		key  string
		want int
	}{
		{"k3y", 204},
		{"wrong", 401},
		{"", 401},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if tt.key != "" {
			req.Header.Set("X-Internal-Key", tt.key)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tt.want {
			t.Errorf("key %q: status = %d, want %d", tt.key, resp.StatusCode, tt.want)
		}
	}
}

type fakeLimiter struct {
	allow bool
	wait  time.Duration
	keys  []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	f.keys = append(f.keys, key)
	return f.allow, f.wait
}

func TestWidgetRateLimit(t *testing.T) {
	project := uuid.New()
	tests := []struct {
		name      string
		limiter   *fakeLimiter
		want      int
		wantRetry string
	}{
		{"allowed", &fakeLimiter{allow: true}, 202, ""},
		{"denied", &fakeLimiter{wait: 1500 * time.Millisecond}, 429, "2"},
		{"denied without wait", &fakeLimiter{}, 429, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp()
			app.Post("/widget/:projectID", WidgetRateLimit(tt.limiter), func(c *fiber.Ctx) error {
				return c.SendStatus(202)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/widget/"+project.String(), nil))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if got := resp.Header.Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}
			if len(tt.limiter.keys) != 1 || !strings.HasPrefix(tt.limiter.keys[0], "widget:"+project.String()+":") {
				t.Errorf("limiter keys = %v", tt.limiter.keys)
			}
		})
	}
}

type chanSink struct {
	events chan *domain.AuditEvent
}

func (s *chanSink) RecordAudit(ctx context.Context, ev *domain.AuditEvent) error {
	s.events <- ev
	return nil
}

func TestAudit(t *testing.T) {
	tenant := uuid.New()
	sink := &chanSink{events: make(chan *domain.AuditEvent, 4)}

	app := newApp()
	withTenant := func(c *fiber.Ctx) error {
		c.Locals(TenantIDKey, tenant)
		return c.Next()
	}
	app.Delete("/projects/:id", withTenant, Audit(sink), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	app.Post("/projects", withTenant, Audit(sink), func(c *fiber.Ctx) error {
		return fmt.Errorf("create: %w", domain.ErrPlanLimit)
	})
	app.Get("/projects", withTenant, Audit(sink), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	next := func() *domain.AuditEvent {
		t.Helper()
		select {
		case ev := <-sink.events:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("no audit event recorded")
			return nil
		}
	}

	projectID := uuid.NewString()
	if _, err := app.Test(httptest.NewRequest(http.MethodDelete, "/projects/"+projectID, nil)); err != nil {
		t.Fatal(err)
	}
	ev := next()
	if ev.Action != "DELETE /projects/:id" || ev.ResourceID != projectID || ev.TenantID != tenant.String() {
		t.Errorf("event = %+v", ev)
	}
	if ev.StatusCode != http.StatusNoContent || !ev.Success || ev.RequestID == "" {
		t.Errorf("event = %+v", ev)
	}

	if _, err := app.Test(httptest.NewRequest(http.MethodPost, "/projects", nil)); err != nil {
		t.Fatal(err)
	}
	ev = next()
	if ev.StatusCode != http.StatusForbidden || ev.Success || ev.Error == "" {
		t.Errorf("failed request event = %+v", ev)
	}

	if _, err := app.Test(httptest.NewRequest(http.MethodGet, "/projects", nil)); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-sink.events:
		t.Errorf("GET was audited: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAudit_NilSink(t *testing.T) {
	app := newApp()
	app.Post("/x", Audit(nil), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusCreated) })
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/x", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
