package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"triage_server/config"
	"triage_server/internal/bootstrap"
	"triage_server/pkg/logger"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
	startupTimeout  = 30 * time.Second
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", bootstrap.ModeAll, "Run mode: api, worker, all, migrate")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "triage",
		Pretty:  cfg.IsDevelopment(),
	})
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	if err := cfg.Validate(*mode); err != nil {
		logger.Fatal("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *mode == bootstrap.ModeMigrate {
		if err := bootstrap.Migrate(ctx, cfg); err != nil {
			logger.Fatal("Migration failed: %v", err)
		}
		return
	}

	if err := run(ctx, cfg, *mode); err != nil {
		logger.Error("Exited with error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, mode string) error {
	initCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	rt, cleanup, err := bootstrap.New(initCtx, cfg, mode)
	cancel()
	if err != nil {
		return err
	}
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)

	if rt.Worker != nil {
		if err := rt.Worker.Start(); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down worker (timeout: %v)...", shutdownTimeout)
			rt.Worker.Stop()
			return nil
		})
	}

	if rt.App != nil {
		addr := ":" + cfg.Port
		g.Go(func() error {
			logger.Info("Starting API server on %s", addr)
			return rt.App.Listen(addr)
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
			if err := rt.App.ShutdownWithTimeout(shutdownTimeout); err != nil {
				logger.Error("Error shutting down: %v", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Shut down gracefully")
	return nil
}
