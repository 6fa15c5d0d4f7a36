package worker

import (
	"context"
	"time"

	"triage_server/core/port/in"
	"triage_server/pkg/logger"
)

// DefaultResetInterval is how often expired billing periods are swept.
const DefaultResetInterval = 10 * time.Minute

// ResetScheduler periodically resets usage for subscriptions whose billing
// period has ended.
type ResetScheduler struct {
	billing  in.BillingService
	interval time.Duration
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewResetScheduler(billing in.BillingService, interval time.Duration) *ResetScheduler {
	if interval <= 0 {
		interval = DefaultResetInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ResetScheduler{
		billing:  billing,
		interval: interval,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (s *ResetScheduler) Start() {
	logger.Info("[ResetScheduler] Starting, interval %s", s.interval)
	go s.run()
}

// Stop cancels the loop and waits for an in-progress sweep to return.
func (s *ResetScheduler) Stop() {
	s.cancel()
	<-s.done
	logger.Info("[ResetScheduler] Stopped")
}

func (s *ResetScheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(s.ctx)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// RunOnce performs a single sweep and returns the number of tenants reset.
func (s *ResetScheduler) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	n, err := s.billing.ResetExpiredPeriods(ctx, s.now())
	if err != nil {
		logger.WithError(err).Error("[ResetScheduler] sweep failed after %d resets", n)
		return n
	}
	if n > 0 {
		logger.Info("[ResetScheduler] Reset %d expired billing periods", n)
	}
	return n
}
