package vouchers

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/outbox"
	"github.com/angelmondragon/bookings-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/bookings-backend/pkg/outbox/payloads"
)

const voucherWorkerConsumer = "voucher-worker"

// Consumer issues vouchers for voucher_requested events published from the outbox.
type Consumer struct {
	issuer       Service
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

func NewConsumer(issuer Service, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if issuer == nil {
		return nil, fmt.Errorf("voucher service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("voucher subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		issuer:       issuer,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run blocks receiving messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if parsed, err := enums.ParseOutboxEventType(eventType); err != nil || parsed != enums.EventVoucherRequested {
		c.logg.Info(logCtx, "skipping non-voucher event")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "dropping undecodable envelope", err)
		return processResult{ack: true}
	}
	var payload payloads.VoucherRequestedEvent
	if err := envelope.DecodeData(&payload); err != nil {
		c.logg.Error(logCtx, "dropping unparseable payload", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id":          envelope.EventID,
		"reservation_id":    payload.ReservationID.String(),
		"provider":          payload.Provider,
		"provider_event_id": payload.ProviderEventID,
	})

	err = c.idempotency.Process(ctx, voucherWorkerConsumer, envelope.EventID, func(ctx context.Context) error {
		return c.issue(ctx, logCtx, payload)
	})
	switch {
	case err == nil:
		return processResult{ack: true}
	case errors.Is(err, idempotency.ErrAlreadyProcessed):
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	case errors.Is(err, idempotency.ErrInProgress):
		c.logg.Warn(logCtx, "event held by another delivery, retrying later")
		return processResult{nack: true}
	default:
		c.logg.Error(logCtx, "voucher request failed", err)
		return processResult{nack: true}
	}
}

// issue returns an error only for failures a redelivery could fix.
func (c *Consumer) issue(ctx, logCtx context.Context, payload payloads.VoucherRequestedEvent) error {
	result, err := c.issuer.IssueVoucher(ctx, payload.ReservationID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotEligible, pkgerrors.CodeValidation) {
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "voucher request not eligible, dropping")
			return nil
		}
		return err
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"voucher_code":   result.VoucherCode,
		"already_exists": result.AlreadyExists,
	}), "voucher request handled")
	return nil
}
