package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// Run polls until ctx is done. Full batches are followed immediately by the
// next poll; failed batches back off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	defer s.publishers.stopAll()

	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	backoff := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		claimed, err := s.processBatch(ctx)
		wait := s.pollInterval
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			wait = backoff
		case claimed:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
		}
		if err := sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, limit)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
