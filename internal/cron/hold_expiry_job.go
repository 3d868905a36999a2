package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/bookings-backend/internal/holds"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

const (
	defaultSweepBatchSize  = 100
	defaultMaxSweepBatches = 10
)

type holdSweeper interface {
	SweepExpiredHolds(ctx context.Context, now time.Time) (holds.SweepResult, error)
}

// HoldExpiryJobParams configure the hold expiry job.
type HoldExpiryJobParams struct {
	Logger     *logger.Logger
	Sweeper    holdSweeper
	BatchSize  int
	MaxBatches int
}

// NewHoldExpiryJob drains lapsed holds one sweep batch at a time.
func NewHoldExpiryJob(params HoldExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("hold sweeper required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	maxBatches := params.MaxBatches
	if maxBatches <= 0 {
		maxBatches = defaultMaxSweepBatches
	}
	return &holdExpiryJob{
		logg:       params.Logger,
		sweeper:    params.Sweeper,
		batchSize:  batch,
		maxBatches: maxBatches,
		now:        time.Now,
	}, nil
}

type holdExpiryJob struct {
	logg       *logger.Logger
	sweeper    holdSweeper
	batchSize  int
	maxBatches int
	now        func() time.Time
}

func (j *holdExpiryJob) Name() string { return "hold-expiry" }

func (j *holdExpiryJob) Run(ctx context.Context) error {
	var (
		errs   []error
		total  holds.SweepResult
		rounds int
	)
	for rounds < j.maxBatches {
		rounds++
		result, err := j.sweeper.SweepExpiredHolds(ctx, j.now().UTC())
		total.Checked += result.Checked
		total.Expired += result.Expired
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep batch %d: %w", rounds, err))
		}
		// A short batch means the backlog is drained; a full batch with no
		// progress would only re-read the same rows.
		if result.Checked < j.batchSize || result.Expired == 0 {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"batches": rounds,
		"checked": total.Checked,
		"expired": total.Expired,
	})
	j.logg.Info(logCtx, "hold expiry job complete")
	return multierr.Combine(errs...)
}
