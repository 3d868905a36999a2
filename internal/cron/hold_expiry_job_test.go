package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bookings-backend/internal/holds"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

type scriptedSweeper struct {
	results []holds.SweepResult
	errs    []error
	calls   []time.Time
}

func (s *scriptedSweeper) SweepExpiredHolds(ctx context.Context, now time.Time) (holds.SweepResult, error) {
	i := len(s.calls)
	s.calls = append(s.calls, now)
	var result holds.SweepResult
	if i < len(s.results) {
		result = s.results[i]
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return result, err
}

func newHoldExpiryJob(t *testing.T, sweeper *scriptedSweeper, batch, maxBatches int) *holdExpiryJob {
	t.Helper()
	job, err := NewHoldExpiryJob(HoldExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Sweeper:    sweeper,
		BatchSize:  batch,
		MaxBatches: maxBatches,
	})
	require.NoError(t, err)
	concrete := job.(*holdExpiryJob)
	concrete.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600)) }
	return concrete
}

func TestHoldExpiryJobDrainsFullBatches(t *testing.T) {
	sweeper := &scriptedSweeper{results: []holds.SweepResult{
		{Checked: 2, Expired: 2},
		{Checked: 2, Expired: 1},
		{Checked: 1, Expired: 1},
		{Checked: 2, Expired: 2},
	}}
	job := newHoldExpiryJob(t, sweeper, 2, 10)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sweeper.calls, 3)
	assert.Equal(t, time.UTC, sweeper.calls[0].Location())
}

func TestHoldExpiryJobStopsWithoutProgress(t *testing.T) {
	sweeper := &scriptedSweeper{
		results: []holds.SweepResult{{Checked: 2, Expired: 0}},
		errs:    []error{errors.New("row locked")},
	}
	job := newHoldExpiryJob(t, sweeper, 2, 10)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep batch 1")
	assert.Len(t, sweeper.calls, 1)
}

func TestHoldExpiryJobRespectsBatchCap(t *testing.T) {
	full := holds.SweepResult{Checked: 1, Expired: 1}
	sweeper := &scriptedSweeper{results: []holds.SweepResult{full, full, full, full}}
	job := newHoldExpiryJob(t, sweeper, 1, 2)

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, sweeper.calls, 2)
	assert.Equal(t, "hold-expiry", job.Name())
}

func TestNewHoldExpiryJobValidation(t *testing.T) {
	_, err := NewHoldExpiryJob(HoldExpiryJobParams{})
	require.Error(t, err)
	_, err = NewHoldExpiryJob(HoldExpiryJobParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})})
	require.Error(t, err)
}
