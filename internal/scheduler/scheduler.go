package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dandantas/vigil/internal/config"
	"github.com/dandantas/vigil/internal/metrics"
	"github.com/dandantas/vigil/internal/model"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Runner executes one generation cycle
type Runner interface {
	Run(ctx context.Context) (model.GenerationResult, error)
}

// Locker is the generation-in-progress lease
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	ReleaseAllLocks(ctx context.Context) error
}

// Clock abstracts time for the scheduling loop
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now().UTC() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock
func RealClock() Clock { return realClock{} }

// PodID identifies this process in lock documents: the hostname (the pod name
// in Kubernetes), or a random UUID when it cannot be read
func PodID() string {
	podID, err := os.Hostname()
	if err != nil || podID == "" {
		podID = uuid.New().String()
		slog.Warn("Failed to get hostname, using UUID as pod ID", "pod_id", podID)
	}
	return podID
}

// Scheduler drives the assignment generator: once at start, then on every
// activation of the configured schedule, and on demand via TriggerOnce
type Scheduler struct {
	cfg      *config.Config
	runner   Runner
	lock     Locker
	clock    Clock
	schedule cron.Schedule
	podID    string
	metrics  *metrics.Recorder

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewScheduler creates a new scheduler instance. lock may be nil, in which
// case cycles are not serialized.
func NewScheduler(cfg *config.Config, runner Runner, lock Locker, clock Clock) (*Scheduler, error) {
	schedule, err := config.GeneratorScheduleParser.Parse(cfg.GeneratorSchedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generator schedule %q: %w", cfg.GeneratorSchedule, err)
	}
	if clock == nil {
		clock = RealClock()
	}

	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		lock:     lock,
		clock:    clock,
		schedule: schedule,
		podID:    PodID(),
		stopChan: make(chan struct{}),
	}, nil
}

// SetMetrics sets the recorder used for cycles skipped by the lease
func (s *Scheduler) SetMetrics(m *metrics.Recorder) {
	s.metrics = m
}

// SetPodID overrides the pod identifier used in lock tokens
func (s *Scheduler) SetPodID(podID string) {
	s.podID = podID
}

// Start runs a cycle immediately and then follows the schedule until Stop is
// called or ctx is done
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.SchedulerEnabled {
		slog.Info("Scheduler is disabled by configuration")
		return
	}

	s.startOnce.Do(func() {
		slog.Info("Starting scheduler",
			"pod_id", s.podID,
			"schedule", s.cfg.GeneratorSchedule,
			"lock_enabled", s.lock != nil,
			"lock_ttl", s.cfg.GenerationLockTTL,
		)

		s.wg.Add(1)
		s.started.Store(true)
		go s.run(ctx)
	})
}

// Stop gracefully stops the scheduler, waiting for an in-flight cycle until
// ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	if !s.started.Load() {
		return
	}

	s.stopOnce.Do(func() {
		slog.Info("Stopping scheduler", "pod_id", s.podID)

		close(s.stopChan)

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			slog.Info("In-flight generation cycle completed")
			s.releaseLocks(ctx)
		case <-ctx.Done():
			// the running cycle still holds its lease; TTL expiry frees it
			slog.Warn("Timeout waiting for generation cycle to complete, leaving lease to expire")
		}

		slog.Info("Scheduler stopped", "pod_id", s.podID)
	})
}

func (s *Scheduler) releaseLocks(ctx context.Context) {
	if s.lock == nil {
		return
	}
	if err := s.lock.ReleaseAllLocks(context.WithoutCancel(ctx)); err != nil {
		slog.Error("Failed to release locks during shutdown", "error", err)
	}
}

// TriggerOnce runs one cycle synchronously and returns its result
func (s *Scheduler) TriggerOnce(ctx context.Context) (model.GenerationResult, error) {
	slog.Info("Manual generation triggered", "pod_id", s.podID)
	return s.cycle(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.tick(ctx)

	for {
		now := s.clock.Now()
		next := s.schedule.Next(now)

		select {
		case <-s.clock.After(next.Sub(now)):
			s.tick(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			slog.Info("Scheduler context done", "pod_id", s.podID)
			return
		}
	}
}

// tick runs a scheduled cycle. Failures are logged; the next activation
// retries from scratch.
func (s *Scheduler) tick(ctx context.Context) {
	start := s.clock.Now()
	slog.Info("Scheduler tick", "pod_id", s.podID, "time", start.Format(time.RFC3339))

	result, err := s.cycle(ctx)
	if err != nil {
		slog.Error("Scheduled generation cycle failed",
			"pod_id", s.podID,
			"reason", result.Reason,
			"error", err,
		)
		return
	}

	if !result.Success {
		slog.Info("Scheduled generation cycle skipped", "pod_id", s.podID, "reason", result.Reason)
	}
}

// cycle runs the generator under the generation lease when one is configured
func (s *Scheduler) cycle(ctx context.Context) (model.GenerationResult, error) {
	if s.lock == nil {
		return s.runner.Run(ctx)
	}

	// Tokens are per cycle so a manual trigger cannot re-enter a lease held by
	// a scheduled cycle of the same pod.
	token := s.podID + "/" + uuid.New().String()

	acquired, err := s.lock.AcquireLock(ctx, model.GenerationLockKey, token, s.cfg.GenerationLockTTL)
	if err != nil {
		s.metrics.CycleCompleted(metrics.OutcomeError, 0)
		return model.FailedGeneration(model.ReasonStoreError), fmt.Errorf("failed to acquire generation lock: %w", err)
	}
	if !acquired {
		slog.Info("Generation already in progress", "pod_id", s.podID)
		s.metrics.CycleCompleted(metrics.OutcomeInProgress, 0)
		return model.FailedGeneration(model.ReasonInProgress), nil
	}

	defer func() {
		if err := s.lock.ReleaseLock(context.WithoutCancel(ctx), model.GenerationLockKey, token); err != nil {
			slog.Error("Failed to release generation lock", "token", token, "error", err)
		}
	}()

	return s.runner.Run(ctx)
}
