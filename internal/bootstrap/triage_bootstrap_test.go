package bootstrap

import (
	"context"
	"testing"

	"triage_server/config"
)

func TestNew_UnknownMode(t *testing.T) {
	_, _, err := New(context.Background(), &config.Config{}, "scheduler")
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
