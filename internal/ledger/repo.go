package ledger

import (
	"context"
	"errors"

	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository manages persistence for payment ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.PaymentLedgerEntry) error
	FindByProviderEventID(ctx context.Context, providerEventID string) (*models.PaymentLedgerEntry, error)
	FindLatestByProviderPaymentID(ctx context.Context, provider enums.PaymentProvider, providerPaymentID string) (*models.PaymentLedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.PaymentLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByProviderEventID returns nil, nil when no entry exists.
func (r *repository) FindByProviderEventID(ctx context.Context, providerEventID string) (*models.PaymentLedgerEntry, error) {
	var entry models.PaymentLedgerEntry
	err := r.db.WithContext(ctx).
		Where("provider_event_id = ?", providerEventID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindLatestByProviderPaymentID returns nil, nil when the provider never
// reported the payment. Payment ids are only unique per provider.
func (r *repository) FindLatestByProviderPaymentID(ctx context.Context, provider enums.PaymentProvider, providerPaymentID string) (*models.PaymentLedgerEntry, error) {
	var entry models.PaymentLedgerEntry
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_payment_id = ?", provider, providerPaymentID).
		Order("processed_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
