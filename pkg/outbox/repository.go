package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bookings-backend/pkg/db/models"
)

// maxLastErrorLen caps last_error and the DLQ error_message.
const maxLastErrorLen = 1024

var errTxRequired = errors.New("transaction required")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish locks a batch of pending rows so concurrent
// publishers skip each other's work.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	query := tx.Where("published_at IS NULL").
		Where("attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	err := query.Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": time.Now().UTC(),
		}).Error
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    truncateError(err),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MarkTerminalTx parks the row at the attempt ceiling so it is never fetched again.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    truncateError(err),
			"attempt_count": terminalAttempts,
		}).Error
}

// DeleteSettledBefore prunes rows that were published before cutoff, and rows
// parked at the attempt ceiling (already copied to the DLQ) created before it.
func (r *Repository) DeleteSettledBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	res := conn.WithContext(ctx).
		Where("(published_at IS NOT NULL AND published_at < ?) OR (published_at IS NULL AND attempt_count >= ? AND created_at < ?)",
			cutoff, terminalAttempts, cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	return clip(err.Error())
}

func clip(msg string) string {
	if len(msg) <= maxLastErrorLen {
		return msg
	}
	return msg[:maxLastErrorLen]
}
