// Package settlement drives expired trades through settlement exactly once.
package settlement

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"stakeoption/internal/config"
	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/logger"
	"stakeoption/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DueQueue is the time-ordered set of active trade IDs.
type DueQueue interface {
	Due(ctx context.Context, now time.Time, limit int) ([]string, error)
	// Claim removes id and reports whether this caller removed it.
	Claim(ctx context.Context, id string) (bool, error)
	Schedule(ctx context.Context, id string, due time.Time) error
	ScheduleIfAbsent(ctx context.Context, id string, due time.Time) (bool, error)
}

type Settler interface {
	SettleTrade(ctx context.Context, id uuid.UUID) error
}

// ActiveTradeLister supplies the trades to re-register on startup.
type ActiveTradeLister interface {
	ListAllActive(ctx context.Context) ([]repositories.DueTrade, error)
}

type Scheduler struct {
	queue   DueQueue
	settler Settler
	config  config.Settlement
	log     *zap.Logger
	metrics MetricsCollector
	now     func() time.Time
	running atomic.Bool
}

func NewScheduler(queue DueQueue, settler Settler, cfg config.Settlement, log *zap.Logger, metrics MetricsCollector) *Scheduler {
	if queue == nil || settler == nil {
		panic("queue and settler are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &Scheduler{
		queue:   queue,
		settler: settler,
		config:  cfg,
		log:     logger.OrNop(log).Named("settlement"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("settlement worker started", zap.Duration("interval", s.config.Interval))
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("settlement worker stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce settles one batch. It returns the number of trades this call
// claimed, or -1 when a previous run is still in progress.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	if !s.running.CompareAndSwap(false, true) {
		return -1
	}
	defer s.running.Store(false)

	ids, err := s.queue.Due(ctx, s.now(), s.config.BatchSize)
	if err != nil {
		s.log.Error("failed to read due trades", zap.Error(err))
		return 0
	}

	claimed := 0
	for _, id := range ids {
		ok, err := s.queue.Claim(ctx, id)
		if err != nil {
			s.log.Error("failed to claim trade", zap.String("trade_id", id), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		claimed++
		s.metrics.RecordClaim()
		s.settle(ctx, id)
	}
	return claimed
}

func (s *Scheduler) settle(ctx context.Context, id string) {
	tradeID, err := uuid.Parse(id)
	if err != nil {
		s.log.Error("dropping malformed trade id", zap.String("trade_id", id))
		s.metrics.RecordFailure()
		return
	}

	err = s.settler.SettleTrade(ctx, tradeID)
	switch {
	case err == nil:
	case errors.Is(err, appErrors.ErrPriceUnavailable):
		retryAt := s.now().Add(s.config.RetryDelay)
		if qerr := s.queue.Schedule(ctx, id, retryAt); qerr != nil {
			s.log.Error("failed to requeue trade", zap.String("trade_id", id), zap.Error(qerr))
			return
		}
		s.metrics.RecordRequeue()
		s.log.Debug("price unavailable, trade requeued", zap.String("trade_id", id))
	default:
		// Left active in storage for an operator.
		s.metrics.RecordFailure()
		s.log.Error("failed to settle trade", zap.String("trade_id", id), zap.Error(err))
	}
}

// Reconcile re-adds every active trade to the queue without moving entries
// that are already there. It returns how many were missing.
func (s *Scheduler) Reconcile(ctx context.Context, lister ActiveTradeLister) (int, error) {
	trades, err := lister.ListAllActive(ctx)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, t := range trades {
		ok, err := s.queue.ScheduleIfAbsent(ctx, t.ID.String(), t.ExpiresAt)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	if added > 0 {
		s.log.Warn("re-queued active trades missing from due queue", zap.Int("count", added))
	}
	return added, nil
}
