package http

import (
	"strings"

	"triage_server/core/port/out"
	"triage_server/infra/middleware"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// AppOptions configures the fiber application.
type AppOptions struct {
	JWTSecret      string
	InternalKey    string
	AllowedOrigins []string // dashboard CORS; the widget route accepts any origin
	Production     bool
	WidgetLimiter  middleware.Limiter
	Audit          out.AuditSink // nil disables auditing
}

// Handlers groups every route handler. Nil handlers are skipped.
type Handlers struct {
	Health   *HealthHandler
	Widget   *WidgetHandler
	Feedback *FeedbackHandler
	Projects *ProjectHandler
	Usage    *UsageHandler
	Billing  *BillingHandler
}

// NewApp builds the fiber app with the shared middleware stack and routes.
func NewApp(opts AppOptions, h Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: opts.Production,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             256 * 1024,
		ReadBufferSize:        16384,
		ServerHeader:          "",
	})

	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	if h.Health != nil {
		h.Health.Register(app)
	}

	// Widget routes end the chain, so they must be registered before the
	// authenticated group whose middleware covers all of /api/v1.
	if h.Widget != nil {
		widget := app.Group("/api/v1/widget", cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "POST,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept",
			MaxAge:       86400,
		}))
		h.Widget.Register(widget, middleware.WidgetRateLimit(opts.WidgetLimiter))
	}

	dashboard := app.Group("/api/v1",
		dashboardCORS(opts),
		middleware.JWTAuth(opts.JWTSecret),
		middleware.Audit(opts.Audit),
	)
	if h.Feedback != nil {
		h.Feedback.Register(dashboard)
	}
	if h.Projects != nil {
		h.Projects.Register(dashboard)
	}
	if h.Usage != nil {
		h.Usage.Register(dashboard)
	}

	if h.Billing != nil {
		internal := app.Group("/internal", middleware.InternalKey(opts.InternalKey), middleware.Audit(opts.Audit))
		h.Billing.Register(internal)
	}

	return app
}

// dashboardCORS allows credentials only for explicit origins. Without
// configured origins, development falls back to the local dashboard ports.
func dashboardCORS(opts AppOptions) fiber.Handler {
	origins := strings.Join(opts.AllowedOrigins, ",")
	if origins == "" && !opts.Production {
		origins = "http://localhost:3000,http://localhost:5173"
	}
	if origins == "" {
		origins = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	})
}
