package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout caps each job. Defaults to Interval so a stuck job cannot
	// outlive the next tick.
	JobTimeout time.Duration
}

// Service runs every registered job each tick while holding the cluster lock.
// A failing job does not stop the jobs after it.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

// cycleResult summarizes one locked run of the registry.
type cycleResult struct {
	skipped bool
	ran     int
	failed  int
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	svc := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if svc.registry == nil {
		svc.registry = &Registry{}
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	if svc.jobTimeout <= 0 {
		svc.jobTimeout = svc.interval
	}
	return svc, nil
}

// Run runs a cycle immediately and then once per interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	res, err := s.runCycle(ctx)
	if res.skipped {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"jobs_run": res.ran, "jobs_failed": res.failed})
	if err != nil {
		s.logg.Error(ctx, "scheduled run finished with failures", err)
		return
	}
	s.logg.Info(ctx, "scheduled run complete")
}

// runCycle returns the combined job errors. Lock failures skip the cycle.
func (s *Service) runCycle(ctx context.Context) (cycleResult, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return cycleResult{skipped: true}, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.IncLockSkipped()
		s.logg.Info(ctx, "cron lock held elsewhere; skipping this cycle")
		return cycleResult{skipped: true}, nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	var (
		res  cycleResult
		errs error
	)
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			break
		}
		res.ran++
		if err := s.runJob(ctx, job); err != nil {
			res.failed++
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	return res, errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(runCtx)
	took := time.Since(start)
	s.metrics.ObserveRun(job.Name(), took, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	return nil
}
