package bootstrap

import (
	"context"

	httpadapter "triage_server/adapter/in/http"
	"triage_server/infra/database"
	"triage_server/pkg/httputil"
	"triage_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// newApp wires the HTTP handlers, probes and pool stats.
func newApp(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	health := httpadapter.NewHealthHandler(
		map[string]httpadapter.PingFunc{
			"postgres": deps.DB.Ping,
			"redis":    func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() },
		},
		map[string]httpadapter.StatsFunc{
			"postgres": func() any { return metrics.PgxPoolStats(deps.DB) },
			"sqlx":     func() any { return metrics.SQLDBStats(deps.SQLDB.DB) },
			"redis":    func() any { return database.GetRedisStats(deps.Redis) },
			"llm_http": func() any { return httputil.Stats(httputil.ClassifierClientConfig(cfg.ClassifierTimeout)) },
		},
		deps.Latency,
	)

	return httpadapter.NewApp(httpadapter.AppOptions{
		JWTSecret:      cfg.JWTSecret,
		InternalKey:    cfg.InternalAPIKey,
		AllowedOrigins: cfg.AllowedOrigins,
		Production:     cfg.IsProduction(),
		WidgetLimiter:  deps.WidgetLimiter,
		Audit:          deps.Audit,
	}, httpadapter.Handlers{
		Health:   health,
		Widget:   httpadapter.NewWidgetHandler(deps.Ingestion),
		Feedback: httpadapter.NewFeedbackHandler(deps.Management),
		Projects: httpadapter.NewProjectHandler(deps.Projects),
		Usage:    httpadapter.NewUsageHandler(deps.Gate),
		Billing:  httpadapter.NewBillingHandler(deps.Billing),
	})
}
