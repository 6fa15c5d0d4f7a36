package bootstrap

import (
	"context"
	"fmt"

	"triage_server/config"

	"github.com/gofiber/fiber/v2"
)

// Run modes.
const (
	ModeAPI     = "api"
	ModeWorker  = "worker"
	ModeAll     = "all"
	ModeMigrate = "migrate"
)

// Runtime holds the components a run mode needs. App is nil in worker mode
// and Worker is nil in api mode.
type Runtime struct {
	App    *fiber.App
	Worker *Worker
}

// New connects to storage and builds the components for mode. In all mode the
// API and the worker share one set of dependencies.
func New(ctx context.Context, cfg *config.Config, mode string) (*Runtime, func(), error) {
	switch mode {
	case ModeAPI, ModeWorker, ModeAll:
	default:
		return nil, nil, fmt.Errorf("unknown mode %q", mode)
	}

	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	rt := &Runtime{}
	if mode != ModeWorker {
		rt.App = newApp(deps)
	}
	if mode != ModeAPI {
		rt.Worker = newWorker(deps)
	}
	return rt, cleanup, nil
}
