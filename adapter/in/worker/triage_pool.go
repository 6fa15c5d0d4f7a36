package worker

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

// Processor runs one job.
type Processor interface {
	Process(ctx context.Context, msg *Message) error
}

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers        int
	BatchSize      int
	WorkerChanSize int
	JobTimeout     time.Duration
	MaxRetries     int
	RetryBase      time.Duration // backoff is RetryBase * 2^retries plus jitter
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        4,
		BatchSize:      1,
		WorkerChanSize: 100,
		JobTimeout:     30 * time.Second,
		MaxRetries:     3,
		RetryBase:      time.Second,
	}
}

// PoolMetrics holds pool metrics.
type PoolMetrics struct {
	JobsProcessed  int64
	JobsFailed     int64
	JobsDropped    int64
	JobsRetried    int64
	AvgProcessTime int64 // milliseconds
	InFlight       int32
}

// Pool runs jobs on a go-pkgz/pool worker group with per-job timeouts and
// exponential-backoff retries.
type Pool struct {
	handler Processor
	config  *PoolConfig
	log     zerolog.Logger

	group   *pool.WorkerGroup[*Message]
	ctx     context.Context
	cancel  context.CancelFunc
	metrics PoolMetrics

	started    bool
	mu         sync.Mutex
	submitting sync.WaitGroup

	afterFunc func(d time.Duration, f func()) *time.Timer
}

type messageWorker struct {
	pool *Pool
}

// Do implements pool.Worker.
func (w *messageWorker) Do(ctx context.Context, msg *Message) error {
	return w.pool.processJob(ctx, msg)
}

// NewPool creates a pool. A nil config uses DefaultPoolConfig.
func NewPool(handler Processor, config *PoolConfig, log zerolog.Logger) *Pool {
	def := DefaultPoolConfig()
	if config == nil {
		config = def
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.WorkerChanSize <= 0 {
		config.WorkerChanSize = def.WorkerChanSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}
	if config.RetryBase <= 0 {
		config.RetryBase = def.RetryBase
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		handler:   handler,
		config:    config,
		log:       log.With().Str("component", "worker_pool").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		afterFunc: time.AfterFunc,
	}
}

// Start starts the worker group.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	p.group = pool.New[*Message](p.config.Workers, &messageWorker{pool: p}).
		WithBatchSize(p.config.BatchSize).
		WithWorkerChanSize(p.config.WorkerChanSize).
		WithContinueOnError()

	if err := p.group.Go(p.ctx); err != nil {
		return err
	}
	p.started = true

	go p.metricsReporter()

	p.log.Info().
		Int("workers", p.config.Workers).
		Int("batch_size", p.config.BatchSize).
		Msg("worker pool started")
	return nil
}

// Stop drains submitted jobs and stops the workers. Pending retries are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	group := p.group
	p.mu.Unlock()

	// submits that passed the started check land before the channels close
	p.submitting.Wait()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()

	if err := group.Close(closeCtx); err != nil {
		p.log.Warn().Err(err).Msg("error closing worker pool")
	}
	p.cancel()

	p.log.Info().
		Int64("processed", atomic.LoadInt64(&p.metrics.JobsProcessed)).
		Int64("failed", atomic.LoadInt64(&p.metrics.JobsFailed)).
		Msg("worker pool stopped")
}

// Submit queues a job. It reports false when the pool is not running. It may
// block while the worker channels are full, but never while holding the lock.
func (p *Pool) Submit(msg *Message) bool {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		atomic.AddInt64(&p.metrics.JobsDropped, 1)
		p.log.Warn().
			Str("job_id", msg.ID).
			Str("job_type", msg.Type).
			Msg("job dropped, pool not running")
		return false
	}
	group := p.group
	p.submitting.Add(1)
	p.mu.Unlock()
	defer p.submitting.Done()

	atomic.AddInt32(&p.metrics.InFlight, 1)
	group.Submit(msg)
	return true
}

// Handle adapts stream deliveries to the pool. Undecodable payloads are
// returned as errors so the consumer leaves them pending for the DLQ.
func (p *Pool) Handle(ctx context.Context, stream string, data []byte) error {
	msg, err := DecodeMessage(stream, data)
	if err != nil {
		return err
	}
	if !p.Submit(msg) {
		return errors.New("worker pool not running")
	}
	return nil
}

func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	start := time.Now()
	defer atomic.AddInt32(&p.metrics.InFlight, -1)

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	err := p.handler.Process(jobCtx, msg)
	p.updateAvgProcessTime(time.Since(start).Milliseconds())

	if err == nil {
		atomic.AddInt64(&p.metrics.JobsProcessed, 1)
		return nil
	}

	p.log.Error().
		Err(err).
		Str("job_id", msg.ID).
		Str("job_type", msg.Type).
		Int("retries", msg.Retries).
		Msg("job processing failed")

	if msg.Retries < p.config.MaxRetries {
		msg.Retries++
		atomic.AddInt64(&p.metrics.JobsRetried, 1)

		backoff := p.config.RetryBase*time.Duration(1<<msg.Retries) +
			time.Duration(rand.Int63n(int64(p.config.RetryBase)/2+1))
		p.afterFunc(backoff, func() {
			p.Submit(msg)
		})
		return err
	}

	atomic.AddInt64(&p.metrics.JobsFailed, 1)
	p.log.Error().
		Str("job_id", msg.ID).
		Str("job_type", msg.Type).
		Str("tenant_id", msg.Event.TenantID.String()).
		Msg("job permanently failed")
	return err
}

func (p *Pool) updateAvgProcessTime(elapsed int64) {
	current := atomic.LoadInt64(&p.metrics.AvgProcessTime)
	if current == 0 {
		atomic.StoreInt64(&p.metrics.AvgProcessTime, elapsed)
		return
	}
	atomic.StoreInt64(&p.metrics.AvgProcessTime, (current*9+elapsed)/10)
}

func (p *Pool) metricsReporter() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			m := p.GetMetrics()
			p.log.Info().
				Int64("processed", m.JobsProcessed).
				Int64("failed", m.JobsFailed).
				Int64("dropped", m.JobsDropped).
				Int64("retried", m.JobsRetried).
				Int64("avg_process_ms", m.AvgProcessTime).
				Int32("in_flight", m.InFlight).
				Msg("worker pool metrics")
		}
	}
}

// GetMetrics returns current pool metrics.
func (p *Pool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed:  atomic.LoadInt64(&p.metrics.JobsProcessed),
		JobsFailed:     atomic.LoadInt64(&p.metrics.JobsFailed),
		JobsDropped:    atomic.LoadInt64(&p.metrics.JobsDropped),
		JobsRetried:    atomic.LoadInt64(&p.metrics.JobsRetried),
		AvgProcessTime: atomic.LoadInt64(&p.metrics.AvgProcessTime),
		InFlight:       atomic.LoadInt32(&p.metrics.InFlight),
	}
}
