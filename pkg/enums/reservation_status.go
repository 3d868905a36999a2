package enums

// ReservationStatus tracks where a reservation sits in its lifecycle.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// BlocksAvailability reports whether reservations in this status occupy time.
func (s ReservationStatus) BlocksAvailability() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed
}
