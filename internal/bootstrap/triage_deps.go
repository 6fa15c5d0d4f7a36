package bootstrap

import (
	"context"
	"fmt"

	"triage_server/adapter/out/cache"
	"triage_server/adapter/out/messaging"
	"triage_server/adapter/out/persistence"
	"triage_server/config"
	"triage_server/core/agent/llm"
	"triage_server/core/port/out"
	"triage_server/core/service/classification"
	"triage_server/core/service/feedback"
	"triage_server/core/service/project"
	"triage_server/core/service/usage"
	"triage_server/core/service/visibility"
	"triage_server/infra/database"
	pkgcache "triage_server/pkg/cache"
	"triage_server/pkg/httputil"
	"triage_server/pkg/logger"
	"triage_server/pkg/metrics"
	"triage_server/pkg/ratelimit"
	"triage_server/pkg/snowflake"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// streamMaxLen caps each event stream; XADD trims approximately.
const streamMaxLen = 100000

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	Latency *metrics.LatencyRegistry

	Producer      *messaging.RedisProducer
	Audit         *messaging.AuditStream
	WidgetLimiter *ratelimit.SlidingWindowLimiter

	// Services
	Limits     *usage.Limits
	Ranker     *visibility.Ranker
	Gate       *usage.Gate
	Billing    *usage.Billing
	Classifier *classification.Classifier
	Ingestion  *feedback.Ingestion
	Management *feedback.Management
	Projects   *project.Service
}

// NewDependencies connects to postgres and redis and builds every service.
// The returned cleanup closes the connections.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	sqlDB := database.NewSQLX(db)

	rdb, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		sqlDB.Close()
		db.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis close: %v", err)
		}
		if err := sqlDB.Close(); err != nil {
			logger.Warn("sqlx close: %v", err)
		}
		db.Close()
	}

	ids, err := snowflake.NewGenerator(cfg.SnowflakeNodeID)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("snowflake: %w", err)
	}

	d := &Dependencies{
		Config:        cfg,
		DB:            db,
		SQLDB:         sqlDB,
		Redis:         rdb,
		Latency:       metrics.GlobalRegistry(),
		Producer:      messaging.NewRedisProducer(rdb, streamMaxLen),
		Audit:         messaging.NewAuditStream(rdb, streamMaxLen),
		WidgetLimiter: ratelimit.NewSlidingWindowLimiter(rdb, cfg.WidgetRatePerSec, cfg.WidgetBurst),
	}

	// Repositories
	txManager := persistence.NewTxManager(db)
	feedbackRepo := persistence.NewFeedbackAdapter(db)
	visibilityStore := persistence.NewVisibilityAdapter(db)
	projectRepo := persistence.NewProjectAdapter(sqlDB)
	subscriptionRepo := persistence.NewSubscriptionAdapter(sqlDB)
	limitsCache := cache.NewLimitsCache(pkgcache.NewRedisCache(rdb, "triage"))

	log := logger.Default()

	d.Limits = usage.NewLimits(subscriptionRepo, limitsCache, cfg.PlanCacheTTL, log)
	d.Ranker = visibility.NewRanker(txManager, visibilityStore, d.Limits, d.Latency, log)
	d.Gate = usage.NewGate(d.Limits, subscriptionRepo, projectRepo, feedbackRepo, d.Ranker, log)
	d.Billing = usage.NewBilling(subscriptionRepo, d.Limits, d.Ranker, d.Producer, log)

	d.Classifier = classification.NewClassifier(newProvider(cfg), classification.Config{
		Timeout: cfg.ClassifierTimeout,
	}, d.Latency, log)

	d.Ingestion = feedback.NewIngestion(feedback.IngestionDeps{
		Projects:   projectRepo,
		Feedback:   feedbackRepo,
		Classifier: d.Classifier,
		Ranker:     d.Ranker,
		Usage:      d.Gate,
		Publisher:  d.Producer,
		IDs:        ids,
		Latency:    d.Latency,
		Log:        log,
	})
	d.Management = feedback.NewManagement(feedbackRepo, d.Classifier, d.Ranker, log)
	d.Projects = project.NewService(projectRepo, d.Gate, d.Ranker, log)

	return d, cleanup, nil
}

// newProvider returns the AI tier, or nil when no key is configured so the
// classifier runs on keyword rules alone.
func newProvider(cfg *config.Config) out.ClassificationProvider {
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, classifier uses keyword rules only")
		return nil
	}
	return llm.NewClientWithConfig(llm.ClientConfig{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		Model:           cfg.LLMModel,
		MaxTokens:       cfg.LLMMaxTokens,
		Temperature:     cfg.LLMTemperature,
		BreakerFailures: cfg.BreakerMaxFailures,
		BreakerTimeout:  cfg.BreakerOpenTimeout,
		HTTPClient:      httputil.NewClient(httputil.ClassifierClientConfig(cfg.ClassifierTimeout)),
	})
}
