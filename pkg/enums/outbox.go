package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType, OutboxEventType and OutboxDLQErrorReason mirror the
// aggregate_type, event_type and outbox_dlq_error_reason Postgres enums.
type (
	OutboxAggregateType  string
	OutboxEventType      string
	OutboxDLQErrorReason string
)

const (
	AggregateReservation OutboxAggregateType = "reservation"

	EventVoucherRequested OutboxEventType = "voucher_requested"

	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var (
	outboxAggregateTypes  = []OutboxAggregateType{AggregateReservation}
	outboxEventTypes      = []OutboxEventType{EventVoucherRequested}
	outboxDLQErrorReasons = []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}
)

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(outboxAggregateTypes, a) }

func (e OutboxEventType) IsValid() bool { return slices.Contains(outboxEventTypes, e) }

func (r OutboxDLQErrorReason) IsValid() bool { return slices.Contains(outboxDLQErrorReasons, r) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
