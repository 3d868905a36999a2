package enums

import "slices"

// LedgerStatus is the normalized outcome of a provider payment event.
type LedgerStatus string

const (
	LedgerStatusApproved LedgerStatus = "approved"
	LedgerStatusRejected LedgerStatus = "rejected"
	LedgerStatusRefunded LedgerStatus = "refunded"
	LedgerStatusPending  LedgerStatus = "pending"
)

// ledgerTargets is the payment status each settled outcome moves toward.
// Pending has no entry and never moves the reservation.
var ledgerTargets = map[LedgerStatus]PaymentStatus{
	LedgerStatusApproved: PaymentStatusPaid,
	LedgerStatusRejected: PaymentStatusFailed,
	LedgerStatusRefunded: PaymentStatusRefunded,
}

func (s LedgerStatus) IsValid() bool {
	return slices.Contains([]LedgerStatus{LedgerStatusApproved, LedgerStatusRejected, LedgerStatusRefunded, LedgerStatusPending}, s)
}

func (s LedgerStatus) PaymentStatus() (PaymentStatus, bool) {
	target, ok := ledgerTargets[s]
	return target, ok
}
