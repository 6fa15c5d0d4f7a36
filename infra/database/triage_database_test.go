package database

import (
	"testing"
)

func TestDefaultPostgresConfig_EnvOverride(t *testing.T) {
	tests := []struct {
		env  string
		want int32
	}{
		{"", 25},
		{"40", 40},
		{"-3", 25},
		{"lots", 25},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("DB_MAX_CONNS", tt.env)
			if got := DefaultPostgresConfig().MaxConns; got != tt.want {
				t.Errorf("MaxConns = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDefaultRedisConfig_EnvOverride(t *testing.T) {
	t.Setenv("REDIS_POOL_SIZE", "64")
	cfg := DefaultRedisConfig()
	if cfg.PoolSize != 64 {
		t.Errorf("PoolSize = %d, want 64", cfg.PoolSize)
	}
	if cfg.ReadTimeout <= 5e9 {
		t.Errorf("ReadTimeout %v must exceed the stream block time", cfg.ReadTimeout)
	}
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedisWithConfig(t.Context(), "not a url", nil); err == nil {
		t.Fatal("expected parse error")
	}
}
