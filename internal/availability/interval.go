package availability

import (
	"strings"
	"time"

	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

const dateLayout = "2006-01-02"

// timestampLayouts are tried in order for values that are not plain dates.
// Layouts without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Interval is the span a reservation occupies. End is exclusive for
// day-based intervals.
type Interval struct {
	Start       time.Time
	End         time.Time
	IsSlotBased bool
}

// ResolveInterval picks the interval encoding that applies to a reservation
// given its resource's booking type. ok is false when no usable interval exists.
func ResolveInterval(r models.Reservation, bookingType enums.BookingType) (Interval, bool) {
	if bookingType == enums.BookingTypeDateRange {
		start, end, ok := parsePair(r.CheckInDate, r.CheckOutDate)
		if !ok {
			return Interval{}, false
		}
		return Interval{Start: start, End: end}, true
	}

	if start, end, ok := parsePair(r.StartDateTime, r.EndDateTime); ok {
		return Interval{Start: start, End: end, IsSlotBased: true}, true
	}

	if start, end, ok := parsePair(r.CheckInDate, r.CheckOutDate); ok {
		slot := bookingType == enums.BookingTypeTimeSlot || bookingType == enums.BookingTypeFixedEvent
		return Interval{Start: start, End: end, IsSlotBased: slot}, true
	}

	return Interval{}, false
}

func parsePair(startValue, endValue *string) (time.Time, time.Time, bool) {
	if startValue == nil || endValue == nil {
		return time.Time{}, time.Time{}, false
	}
	start, _, ok := parseInstant(*startValue)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, _, ok := parseInstant(*endValue)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// parseInstant reads YYYY-MM-DD as midnight UTC and anything else as a
// timestamp. dateOnly reports which form matched.
func parseInstant(value string) (t time.Time, dateOnly bool, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, false
	}
	if len(value) == len(dateLayout) {
		parsed, err := time.ParseInLocation(dateLayout, value, time.UTC)
		if err != nil {
			return time.Time{}, false, false
		}
		return parsed, true, true
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed.UTC(), false, true
		}
	}
	return time.Time{}, false, false
}

func dateKey(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
