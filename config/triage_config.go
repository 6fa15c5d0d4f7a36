package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateConsumerName builds a stream consumer name from hostname and PID.
func generateConsumerName() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "triage"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Storage
	DatabaseURL string
	RedisURL    string

	// Auth
	JWTSecret      string
	InternalAPIKey string

	// Classifier provider (OpenAI-compatible)
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	LLMModel           string
	LLMMaxTokens       int
	LLMTemperature     float64
	ClassifierTimeout  time.Duration
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration

	// Worker
	WorkerID          string
	WorkerCount       int
	SchedulerInterval time.Duration
	SchedulerEnabled  bool

	// Widget
	WidgetRatePerSec int
	WidgetBurst      int
	AllowedOrigins   []string

	// Cache
	PlanCacheTTL time.Duration

	SnowflakeNodeID int64
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:       getEnvInt("LLM_MAX_TOKENS", 300),
		LLMTemperature:     getEnvFloat("LLM_TEMPERATURE", 0.1),
		ClassifierTimeout:  time.Duration(getEnvInt("CLASSIFIER_TIMEOUT_SEC", 15)) * time.Second,
		BreakerMaxFailures: getEnvInt("CLASSIFIER_BREAKER_FAILURES", 5),
		BreakerOpenTimeout: time.Duration(getEnvInt("CLASSIFIER_BREAKER_OPEN_SEC", 30)) * time.Second,

		WorkerID:          getEnv("WORKER_ID", generateConsumerName()),
		WorkerCount:       getEnvInt("WORKER_COUNT", 4),
		SchedulerInterval: time.Duration(getEnvInt("SCHEDULER_INTERVAL_SEC", 300)) * time.Second,
		SchedulerEnabled:  getEnvBool("SCHEDULER_ENABLED", true),

		WidgetRatePerSec: getEnvInt("WIDGET_RATE_PER_SEC", 2),
		WidgetBurst:      getEnvInt("WIDGET_BURST", 5),
		AllowedOrigins:   getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),

		PlanCacheTTL: time.Duration(getEnvInt("PLAN_CACHE_TTL_MIN", 10)) * time.Minute,

		SnowflakeNodeID: int64(getEnvInt("SNOWFLAKE_NODE_ID", 1)),
	}
	return cfg, nil
}

// Validate checks the settings required by the given run mode.
func (c *Config) Validate(mode string) error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if mode != "migrate" && c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if mode == "api" || mode == "all" {
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required"))
		}
		if c.InternalAPIKey == "" {
			errs = append(errs, errors.New("INTERNAL_API_KEY is required"))
		}
	}
	if c.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
