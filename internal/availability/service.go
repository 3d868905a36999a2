package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/db/models"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

const day = 24 * time.Hour

type resourceLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Resource, error)
}

type reservationLister interface {
	ListBlockingForResource(ctx context.Context, resourceID uuid.UUID) ([]models.Reservation, error)
}

// Service answers availability queries for a single resource.
type Service interface {
	GetAvailability(ctx context.Context, query Query) (*Availability, error)
}

// Query carries the raw window bounds. Empty bounds fall back to defaults.
type Query struct {
	ResourceID uuid.UUID
	From       string
	To         string
}

// Slot is one slot-based reservation occupying part of a day.
type Slot struct {
	ReservationID uuid.UUID               `json:"reservationId"`
	BookingType   enums.BookingType       `json:"bookingType"`
	Status        enums.ReservationStatus `json:"status"`
	Start         time.Time               `json:"start"`
	End           time.Time               `json:"end"`
}

// ReservationSummary is the public view of a blocking reservation.
type ReservationSummary struct {
	ID            uuid.UUID               `json:"id"`
	Status        enums.ReservationStatus `json:"status"`
	StartDateTime *string                 `json:"startDateTime,omitempty"`
	EndDateTime   *string                 `json:"endDateTime,omitempty"`
	CheckInDate   *string                 `json:"checkInDate,omitempty"`
	CheckOutDate  *string                 `json:"checkOutDate,omitempty"`
}

type Availability struct {
	ResourceID                uuid.UUID                       `json:"resourceId"`
	BookingType               enums.BookingType               `json:"bookingType"`
	ManualContactScheduleType enums.ManualContactScheduleType `json:"manualContactScheduleType"`
	From                      time.Time                       `json:"from"`
	To                        time.Time                       `json:"to"`
	BlockedDateKeys           []string                        `json:"blockedDateKeys"`
	OccupiedSlotsByDate       map[string][]Slot               `json:"occupiedSlotsByDate"`
	Reservations              []ReservationSummary            `json:"reservations"`
}

type service struct {
	resources    resourceLookup
	reservations reservationLister
	cfg          config.AvailabilityConfig
	logg         *logger.Logger
	now          func() time.Time
}

// NewService wires the availability engine.
func NewService(resources resourceLookup, reservations reservationLister, cfg config.AvailabilityConfig, logg *logger.Logger) (Service, error) {
	if resources == nil {
		return nil, fmt.Errorf("resource lookup required")
	}
	if reservations == nil {
		return nil, fmt.Errorf("reservation lister required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.DefaultWindowDays <= 0 || cfg.MaxWindowDays <= 0 {
		return nil, fmt.Errorf("availability window days must be positive")
	}
	if cfg.DefaultWindowDays > cfg.MaxWindowDays {
		return nil, fmt.Errorf("default availability window exceeds max")
	}
	return &service{
		resources:    resources,
		reservations: reservations,
		cfg:          cfg,
		logg:         logg,
		now:          time.Now,
	}, nil
}

func (s *service) GetAvailability(ctx context.Context, query Query) (*Availability, error) {
	if query.ResourceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resource id is required")
	}

	from, to, err := s.window(query.From, query.To)
	if err != nil {
		return nil, err
	}

	resource, err := s.resources.FindByID(ctx, query.ResourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "resource not available")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load resource")
	}
	if resource == nil || !resource.IsBookable() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "resource not available")
	}

	out := &Availability{
		ResourceID:                resource.ID,
		BookingType:               resource.BookingType,
		ManualContactScheduleType: scheduleTypeFromAttributes(resource.Attributes),
		From:                      from,
		To:                        to,
		BlockedDateKeys:           []string{},
		OccupiedSlotsByDate:       map[string][]Slot{},
		Reservations:              []ReservationSummary{},
	}

	rows, err := s.reservations.ListBlockingForResource(ctx, resource.ID)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"resource_id": resource.ID.String(),
			"error":       err.Error(),
		}), "availability reservation lookup failed, returning empty")
		return out, nil
	}

	blocked := map[string]struct{}{}
	for _, row := range rows {
		if !row.Enabled || !row.Status.BlocksAvailability() {
			continue
		}
		interval, ok := ResolveInterval(row, resource.BookingType)
		if !ok || !interval.End.After(interval.Start) {
			continue
		}
		if interval.Start.After(to) || interval.End.Before(from) {
			continue
		}

		if interval.IsSlotBased {
			key := dateKey(interval.Start)
			out.OccupiedSlotsByDate[key] = append(out.OccupiedSlotsByDate[key], Slot{
				ReservationID: row.ID,
				BookingType:   resource.BookingType,
				Status:        row.Status,
				Start:         interval.Start,
				End:           interval.End,
			})
		} else {
			for d := startOfDay(maxTime(interval.Start, from)); d.Before(interval.End) && !d.After(to); d = d.Add(day) {
				blocked[dateKey(d)] = struct{}{}
			}
		}
		out.Reservations = append(out.Reservations, summarize(row))
	}

	for key := range blocked {
		out.BlockedDateKeys = append(out.BlockedDateKeys, key)
	}
	sort.Strings(out.BlockedDateKeys)
	for key := range out.OccupiedSlotsByDate {
		slots := out.OccupiedSlotsByDate[key]
		sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	}

	return out, nil
}

// window resolves the query bounds. A date-only upper bound covers that whole UTC day.
func (s *service) window(fromValue, toValue string) (time.Time, time.Time, error) {
	from := startOfDay(s.now())
	if strings.TrimSpace(fromValue) != "" {
		parsed, _, ok := parseInstant(fromValue)
		if !ok {
			return time.Time{}, time.Time{}, validation("from", "must be YYYY-MM-DD or RFC3339")
		}
		from = parsed
	}

	maxSpan := time.Duration(s.cfg.MaxWindowDays) * day
	to := from.Add(time.Duration(s.cfg.DefaultWindowDays) * day)
	if strings.TrimSpace(toValue) != "" {
		parsed, dateOnly, ok := parseInstant(toValue)
		if !ok {
			return time.Time{}, time.Time{}, validation("to", "must be YYYY-MM-DD or RFC3339")
		}
		if parsed.Sub(from) > maxSpan {
			return time.Time{}, time.Time{}, windowTooLarge(s.cfg.MaxWindowDays)
		}
		if dateOnly {
			parsed = parsed.Add(day - time.Nanosecond)
		}
		to = parsed
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, validation("to", "must not be before from")
	}
	return from, to, nil
}

func validation(field, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid availability window").
		WithDetails(map[string]string{field: reason})
}

func windowTooLarge(maxDays int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "availability window too large").
		WithDetails(map[string]any{"max_days": maxDays})
}

func scheduleTypeFromAttributes(raw json.RawMessage) enums.ManualContactScheduleType {
	if len(raw) == 0 {
		return enums.ManualContactScheduleNone
	}
	var attrs struct {
		ScheduleType any `json:"manual_contact_schedule_type"`
	}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return enums.ManualContactScheduleNone
	}
	value, _ := attrs.ScheduleType.(string)
	return enums.NormalizeManualContactScheduleType(value)
}

func summarize(r models.Reservation) ReservationSummary {
	return ReservationSummary{
		ID:            r.ID,
		Status:        r.Status,
		StartDateTime: r.StartDateTime,
		EndDateTime:   r.EndDateTime,
		CheckInDate:   r.CheckInDate,
		CheckOutDate:  r.CheckOutDate,
	}
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
