package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CLASSIFIER_TIMEOUT_SEC", "")
	t.Setenv("WORKER_COUNT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ClassifierTimeout != 15*time.Second {
		t.Errorf("ClassifierTimeout = %v, want 15s", cfg.ClassifierTimeout)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("WorkerCount = %d, want 4", cfg.WorkerCount)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CLASSIFIER_TIMEOUT_SEC", "3")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PLAN_CACHE_TTL_MIN", "not-a-number")

	cfg, _ := Load()
	if cfg.ClassifierTimeout != 3*time.Second {
		t.Errorf("ClassifierTimeout = %v, want 3s", cfg.ClassifierTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.PlanCacheTTL != 10*time.Minute {
		t.Errorf("PlanCacheTTL = %v, want default 10m on parse failure", cfg.PlanCacheTTL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		mode    string
		wantErr bool
	}{
		{"migrate only needs database", Config{DatabaseURL: "postgres://x", WorkerCount: 1}, "migrate", false},
		{"worker needs redis", Config{DatabaseURL: "postgres://x", WorkerCount: 1}, "worker", true},
		{"api needs secrets", Config{DatabaseURL: "postgres://x", RedisURL: "redis://x", WorkerCount: 1}, "api", true},
		{"api complete", Config{DatabaseURL: "postgres://x", RedisURL: "redis://x", JWTSecret: "s", InternalAPIKey: "k", WorkerCount: 1}, "api", false},
		{"bad worker count", Config{DatabaseURL: "postgres://x", RedisURL: "redis://x", WorkerCount: 0}, "worker", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.mode)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.mode, err, tt.wantErr)
			}
		})
	}
}
