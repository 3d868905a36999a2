package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

const (
	outboxRetentionDays    = 30
	outboxTerminalAttempts = 10
	outboxRetentionJobName = "outbox-retention"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeleteSettledBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

// OutboxRetentionJobParams configure outbox pruning. TerminalAttempts should
// match the publisher's attempt ceiling so parked rows are recognized.
type OutboxRetentionJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Repository       outboxRetentionRepo
	RetentionDays    int
	TerminalAttempts int
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	terminal := params.TerminalAttempts
	if terminal <= 0 {
		terminal = outboxTerminalAttempts
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		terminal:  terminal,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxRetentionRepo
	retention int
	terminal  int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteSettledBefore(ctx, tx, cutoff, j.terminal)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":            cutoff,
		"retention_days":    j.retention,
		"terminal_attempts": j.terminal,
		"rows_deleted":      deleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
