package enums

import "slices"

// PaymentStatus tracks the payment side of a reservation.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// paymentStatusOrder is also the regression order: a late or reordered
// provider event may only move a reservation to a later entry.
var paymentStatusOrder = []PaymentStatus{
	PaymentStatusUnpaid,
	PaymentStatusFailed,
	PaymentStatusPaid,
	PaymentStatusRefunded,
}

func (p PaymentStatus) IsValid() bool { return slices.Contains(paymentStatusOrder, p) }

// Rank is the position in the regression order. Unknown values rank with unpaid.
func (p PaymentStatus) Rank() int {
	return max(slices.Index(paymentStatusOrder, p), 0)
}
