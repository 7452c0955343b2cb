// Package scheduler drives pending campaign contacts through the delivery worker
// in rate-limited batches.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"wacampaign/internal/metrics"
	"wacampaign/internal/models"
	"wacampaign/internal/repository"
	"wacampaign/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrTickInProgress is returned by RunOnce while another tick of the same scheduler runs
	ErrTickInProgress = errors.New("scheduler tick already in progress")
	// ErrLockHeld is returned by RunOnce when another process holds the tick lock
	ErrLockHeld = errors.New("scheduler tick lock held by another worker")
	// ErrAlreadyStarted is returned by Start on a running scheduler
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Defaults used when Config leaves a field zero
const (
	DefaultRateLimit    = 6
	DefaultPollInterval = 60 * time.Second
)

// BatchSource selects pending contacts joined with their campaign and template
type BatchSource interface {
	FetchPendingBatch(ctx context.Context, limit int) ([]*models.DeliveryTarget, error)
}

// CampaignCompleter rolls drained campaigns up to completed
type CampaignCompleter interface {
	CompleteDrained(ctx context.Context, ids []int) ([]int, error)
}

// Deliverer sends one contact and records its terminal status
type Deliverer interface {
	Deliver(ctx context.Context, target *models.DeliveryTarget) service.DeliveryResult
}

// Config controls batch size and cadence
type Config struct {
	// RateLimit is both the batch size and the messages-per-minute ceiling
	RateLimit    int
	PollInterval time.Duration
}

// TickReport summarises one tick
type TickReport struct {
	TickID    string
	Selected  int
	Sent      int
	Failed    int
	Skipped   int
	Completed []int
	Duration  time.Duration
}

// Scheduler runs one tick immediately on Start and then one per poll interval.
// Ticks never overlap: in-process through an atomic flag, across processes
// through the optional TickLocker.
type Scheduler struct {
	cfg       Config
	source    BatchSource
	campaigns CampaignCompleter
	deliverer Deliverer
	locker    repository.TickLocker
	pacer     *Pacer
	clock     Clock
	logger    *zap.Logger
	metrics   *metrics.Metrics

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customises a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock used for pacing and timing
func WithClock(clock Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLocker guards ticks with a cross-process lock
func WithLocker(locker repository.TickLocker) Option {
	return func(s *Scheduler) { s.locker = locker }
}

// WithMetrics records tick and delivery metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates a scheduler
func New(cfg Config, source BatchSource, campaigns CampaignCompleter, deliverer Deliverer, opts ...Option) *Scheduler {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	s := &Scheduler{
		cfg:       cfg,
		source:    source,
		campaigns: campaigns,
		deliverer: deliverer,
		clock:     RealClock(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	s.pacer = NewPacer(cfg.RateLimit, s.clock)

	return s
}

// Start launches the polling loop. The first tick runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("scheduler started",
		zap.Int("rate_limit", s.cfg.RateLimit),
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Duration("pacing_interval", s.pacer.Interval()),
	)

	go s.loop(ctx, s.done)
	return nil
}

// Stop cancels the loop and waits for the current tick to wind down.
// A contact whose send is in flight is finished and recorded; the rest stay pending.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrTickInProgress), errors.Is(err, ErrLockHeld):
		s.logger.Info("tick skipped", zap.String("reason", err.Error()))
	case errors.Is(err, context.Canceled):
	default:
		s.logger.Error("tick failed", zap.Error(err))
	}
}

// RunOnce executes a single tick: select up to RateLimit pending contacts in
// creation order, deliver them one by one with pacing, then complete drained campaigns.
func (s *Scheduler) RunOnce(ctx context.Context) (*TickReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.TicksSkipped.WithLabelValues("in_progress").Inc()
		return nil, ErrTickInProgress
	}
	defer s.running.Store(false)

	report := &TickReport{TickID: uuid.NewString()}
	logger := s.logger.With(zap.String("tick_id", report.TickID))
	start := s.clock.Now()

	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx)
		if err != nil {
			s.metrics.TickErrors.Inc()
			return nil, fmt.Errorf("failed to take tick lock: %w", err)
		}
		if !acquired {
			s.metrics.TicksSkipped.WithLabelValues("locked").Inc()
			return nil, ErrLockHeld
		}
		defer release()
	}

	targets, err := s.source.FetchPendingBatch(ctx, s.cfg.RateLimit)
	if err != nil {
		s.metrics.TickErrors.Inc()
		return nil, fmt.Errorf("failed to fetch pending batch: %w", err)
	}
	if len(targets) > s.cfg.RateLimit {
		targets = targets[:s.cfg.RateLimit]
	}
	report.Selected = len(targets)

	if len(targets) > 0 {
		logger.Info("tick started", zap.Int("selected", len(targets)))
	}

	touched := map[int]struct{}{}
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}

		if target.Campaign == nil || target.Template == nil {
			report.Skipped++
			s.metrics.ContactsProcessed.WithLabelValues(string(service.OutcomeSkipped)).Inc()
			logger.Warn("contact skipped: campaign or template missing",
				zap.Int("contact_id", target.Contact.ID),
				zap.Int("campaign_id", target.Contact.CampaignID),
				zap.Bool("campaign_found", target.Campaign != nil),
				zap.Bool("template_found", target.Template != nil),
			)
			continue
		}

		// an in-flight send is allowed to finish after Stop
		result := s.deliverer.Deliver(context.WithoutCancel(ctx), target)
		s.metrics.ContactsProcessed.WithLabelValues(string(result.Outcome)).Inc()
		if result.Latency > 0 {
			s.metrics.SendLatency.Observe(result.Latency.Seconds())
		}

		switch result.Outcome {
		case service.OutcomeSent:
			report.Sent++
		case service.OutcomeFailed:
			report.Failed++
		case service.OutcomeSkipped:
			report.Skipped++
			continue
		}
		touched[target.Campaign.ID] = struct{}{}

		if err := s.pacer.Wait(ctx); err != nil {
			break
		}
	}

	report.Completed = s.completeDrained(context.WithoutCancel(ctx), logger, touched)
	report.Duration = s.clock.Now().Sub(start)
	s.metrics.TickDuration.Observe(report.Duration.Seconds())

	if report.Selected > 0 {
		logger.Info("tick finished",
			zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
			zap.Ints("completed_campaigns", report.Completed),
			zap.Duration("duration", report.Duration),
		)
	}

	return report, ctx.Err()
}

func (s *Scheduler) completeDrained(ctx context.Context, logger *zap.Logger, touched map[int]struct{}) []int {
	if s.campaigns == nil || len(touched) == 0 {
		return nil
	}

	ids := make([]int, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	completed, err := s.campaigns.CompleteDrained(ctx, ids)
	if err != nil {
		logger.Error("failed to complete drained campaigns", zap.Ints("campaign_ids", ids), zap.Error(err))
		return nil
	}

	for _, id := range completed {
		s.metrics.CampaignsCompleted.Inc()
		logger.Info("campaign completed", zap.Int("campaign_id", id))
	}

	return completed
}
