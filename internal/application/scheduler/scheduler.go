// Package scheduler fires measurement rounds at a fixed interval.
//
// The next round is due one interval after the previous round started. A round
// that overruns the interval delays the next one instead of overlapping it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
	"github.com/luispfcanales/daemon-dnsq/internal/core/stats"
)

var (
	ErrRoundInProgress = errors.New("round already in progress")
	ErrAlreadyRunning  = errors.New("scheduler already running")
)

type Config struct {
	Interval time.Duration
	Domains  []string
	// RunImmediately fires the first round at start instead of one interval later.
	RunImmediately bool
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if len(c.Domains) == 0 {
		return errors.New("at least one domain is required")
	}
	return nil
}

type Option func(*Scheduler)

func WithReporter(r ports.Reporter) Option {
	return func(s *Scheduler) { s.reporter = r }
}

func WithObservers(observers ...ports.RoundObserver) Option {
	return func(s *Scheduler) { s.observers = append(s.observers, observers...) }
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

type Scheduler struct {
	cfg       Config
	prober    ports.RoundProber
	reporter  ports.Reporter
	observers []ports.RoundObserver
	notifier  ports.Notifier
	log       *slog.Logger
	now       func() time.Time

	running atomic.Bool
	inRound atomic.Bool
	number  atomic.Uint64

	mu              sync.RWMutex
	startedAt       time.Time
	roundsCompleted uint64
	lastRound       *domain.RoundReport
}

func New(cfg Config, prober ports.RoundProber, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if prober == nil {
		return nil, errors.New("round prober is required")
	}

	s := &Scheduler{
		cfg:    cfg,
		prober: prober,
		log:    slog.Default(),
		now:    stats.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run blocks until ctx is cancelled, firing a round every interval. A round
// that has already started when ctx is cancelled still completes.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.mu.Lock()
	s.startedAt = s.now()
	s.mu.Unlock()

	s.log.Info("monitoring started",
		"interval", s.cfg.Interval,
		"domains", len(s.cfg.Domains),
		"run_immediately", s.cfg.RunImmediately)
	if s.notifier != nil {
		status := s.Status()
		status.Message = "monitoring started"
		go s.notify(status)
	}

	// Deadlines use time.Now so they keep the monotonic reading; s.now only
	// stamps reported times and may jump with the wall clock.
	next := time.Now()
	if !s.cfg.RunImmediately {
		next = next.Add(s.cfg.Interval)
	}

	for {
		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.stopped()
			return nil
		case <-timer.C:
		}
		// A cancellation racing the timer wins.
		if ctx.Err() != nil {
			s.stopped()
			return nil
		}

		start := time.Now()
		if _, err := s.RunRound(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("scheduled round skipped", "error", err)
		}
		next = start.Add(s.cfg.Interval)
	}
}

func (s *Scheduler) stopped() {
	s.log.Info("monitoring stopped", "rounds_completed", s.Status().RoundsCompleted)
	if s.notifier != nil {
		status := s.Status()
		status.IsRunning = false
		status.Message = "monitoring stopped"
		s.notify(status)
	}
}

func (s *Scheduler) notify(status domain.MonitoringStatus) {
	if err := s.notifier.NotifyMonitoring(status); err != nil {
		s.log.Warn("monitoring notification failed", "error", err)
	}
}

// RunRound measures every domain once, then reports and notifies observers.
// It returns ErrRoundInProgress if another round has not finished yet.
func (s *Scheduler) RunRound(ctx context.Context) (domain.RoundReport, error) {
	if !s.inRound.CompareAndSwap(false, true) {
		return domain.RoundReport{}, ErrRoundInProgress
	}
	defer s.inRound.Store(false)

	round := domain.Round{
		ID:        uuid.NewString(),
		Number:    s.number.Add(1),
		StartedAt: s.now(),
	}
	s.log.Debug("round started", "round", round.Number, "id", round.ID)

	outcomes := s.prober.ProbeAll(ctx, round)
	report := domain.NewRoundReport(round, s.now(), outcomes)

	s.mu.Lock()
	s.roundsCompleted++
	s.lastRound = &report
	s.mu.Unlock()

	s.log.Info("round completed",
		"round", round.Number,
		"successes", report.Successes,
		"failures", report.Failures,
		"resets", report.Resets,
		"duration", report.Duration())

	if s.reporter != nil {
		if err := s.reporter.Report(ctx, report); err != nil {
			s.log.Warn("report failed", "round", round.Number, "error", err)
		}
	}
	for _, o := range s.observers {
		o.ObserveRound(report)
	}
	return report, nil
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() domain.MonitoringStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.MonitoringStatus{
		IsRunning:       s.running.Load(),
		Interval:        s.cfg.Interval,
		Domains:         len(s.cfg.Domains),
		StartedAt:       s.startedAt,
		RoundsCompleted: s.roundsCompleted,
		LastRound:       s.lastRound,
	}
}
