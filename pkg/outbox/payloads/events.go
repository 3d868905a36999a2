package payloads

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

// VoucherRequestedEvent asks the voucher worker to issue a voucher once a
// payment for the reservation was approved.
type VoucherRequestedEvent struct {
	ReservationID   uuid.UUID             `json:"reservation_id"`
	Provider        enums.PaymentProvider `json:"provider"`
	ProviderEventID string                `json:"provider_event_id"`
	RequestedAt     time.Time             `json:"requested_at"`
}

func (e VoucherRequestedEvent) Validate() error {
	if e.ReservationID == uuid.Nil {
		return errors.New("reservation_id is required")
	}
	if !e.Provider.IsValid() {
		return fmt.Errorf("unknown provider %q", e.Provider)
	}
	return nil
}
