package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"triage_server/adapter/in/worker"
	"triage_server/adapter/out/messaging"
	"triage_server/pkg/logger"

	"github.com/rs/zerolog"
)

// ConsumerGroup is the stream group shared by every worker process.
const ConsumerGroup = "triage-workers"

// Worker consumes domain events and runs the billing reset sweep.
type Worker struct {
	pool      *worker.Pool
	consumer  *messaging.Consumer
	scheduler *worker.ResetScheduler
	zlog      zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWorker(deps *Dependencies) *Worker {
	cfg := deps.Config
	zlog := logger.Default().Zerolog().With().Str("component", "worker").Logger()

	poolCfg := worker.DefaultPoolConfig()
	poolCfg.Workers = cfg.WorkerCount
	pool := worker.NewPool(worker.NewHandler(deps.Ranker, deps.Limits), poolCfg, zlog)

	consumer := messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
		Group:    ConsumerGroup,
		Consumer: cfg.WorkerID,
		Streams:  messaging.Streams,
		Handler:  pool,
		Logger:   zlog,
	})

	w := &Worker{pool: pool, consumer: consumer, zlog: zlog}
	if cfg.SchedulerEnabled {
		w.scheduler = worker.NewResetScheduler(deps.Billing, cfg.SchedulerInterval)
	}
	return w
}

// Start starts the pool, the consumer loop and the reset scheduler.
func (w *Worker) Start() error {
	if err := w.pool.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.zlog.Error().Err(err).Msg("consumer stopped")
		}
	}()

	if w.scheduler != nil {
		w.scheduler.Start()
	}

	w.zlog.Info().Msg("worker started")
	return nil
}

// Stop stops consuming first, then drains the pool. It gives up waiting for
// the consumer after 30 seconds.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.scheduler != nil {
		w.scheduler.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		w.zlog.Warn().Msg("consumer did not stop in time")
	}

	w.pool.Stop()
	metrics := w.pool.GetMetrics()
	w.zlog.Info().
		Int64("processed", metrics.JobsProcessed).
		Int64("failed", metrics.JobsFailed).
		Int64("dropped", metrics.JobsDropped).
		Msg("worker stopped")
}
