package enums

import "slices"

// BookingType maps to the booking_type enum in Postgres.
type BookingType string

const (
	BookingTypeManualContact BookingType = "manual_contact"
	BookingTypeDateRange     BookingType = "date_range"
	BookingTypeTimeSlot      BookingType = "time_slot"
	BookingTypeFixedEvent    BookingType = "fixed_event"
)

var bookingTypes = []BookingType{BookingTypeManualContact, BookingTypeDateRange, BookingTypeTimeSlot, BookingTypeFixedEvent}

func (b BookingType) IsValid() bool { return slices.Contains(bookingTypes, b) }

// ManualContactScheduleType is read from resource attributes and tells
// clients which picker to render.
type ManualContactScheduleType string

const (
	ManualContactScheduleDateRange ManualContactScheduleType = "date_range"
	ManualContactScheduleTimeSlot  ManualContactScheduleType = "time_slot"
	ManualContactScheduleNone      ManualContactScheduleType = "none"
)

// NormalizeManualContactScheduleType maps anything unexpected to none.
func NormalizeManualContactScheduleType(value string) ManualContactScheduleType {
	switch ManualContactScheduleType(value) {
	case ManualContactScheduleDateRange, ManualContactScheduleTimeSlot:
		return ManualContactScheduleType(value)
	default:
		return ManualContactScheduleNone
	}
}
