package outbox

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/pkg/db/models"
)

// DLQRepository parks rows the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// ParkTx writes entry inside the publisher's transaction so the DLQ copy and
// the terminal mark on the source row commit together.
func (r *DLQRepository) ParkTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	switch {
	case tx == nil:
		return errTxRequired
	case !entry.ErrorReason.IsValid():
		return fmt.Errorf("unknown dlq reason %q", entry.ErrorReason)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ErrorMessage != nil {
		msg := clip(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}
