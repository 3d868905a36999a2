package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

// SquareSignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SquareSignatureHeader = "Square-Signature"

// Square decodes Square payment and refund notifications.
type Square struct {
	secret string
}

func NewSquare(secret string) *Square {
	return &Square{secret: strings.TrimSpace(secret)}
}

func (s *Square) Provider() enums.PaymentProvider { return enums.PaymentProviderSquare }

func (s *Square) SignatureRequired() bool { return s.secret != "" }

func (s *Square) Verify(rawBody []byte, signatureHeader string) error {
	provided, err := hex.DecodeString(strings.TrimSpace(signatureHeader))
	if err != nil || len(provided) == 0 {
		return fmt.Errorf("%w: header missing or not hex", ErrInvalidSignature)
	}
	if !hmac.Equal(provided, SignSquare(s.secret, rawBody)) {
		return ErrInvalidSignature
	}
	return nil
}

// SignSquare computes the signature Square attaches to a body.
func SignSquare(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

type squareEvent struct {
	EventID string     `json:"event_id"`
	Type    string     `json:"type"`
	Data    squareData `json:"data"`
}

type squareData struct {
	Type   string       `json:"type"`
	ID     string       `json:"id"`
	Object squareObject `json:"object"`
}

type squareObject struct {
	Payment *squarePayment `json:"payment"`
	Refund  *squareRefund  `json:"refund"`
}

type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type squarePayment struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	ReferenceID string       `json:"reference_id"`
	AmountMoney *squareMoney `json:"amount_money"`
	TotalMoney  *squareMoney `json:"total_money"`
}

type squareRefund struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	PaymentID   string       `json:"payment_id"`
	ReferenceID string       `json:"reference_id"`
	AmountMoney *squareMoney `json:"amount_money"`
}

func (s *Square) Decode(rawBody []byte) (*Event, error) {
	var event squareEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	out := &Event{
		Provider:  enums.PaymentProviderSquare,
		EventID:   event.EventID,
		EventType: event.Type,
		Status:    enums.LedgerStatusPending,
	}

	switch {
	case event.Data.Object.Refund != nil:
		refund := event.Data.Object.Refund
		out.ProviderPaymentID = refund.PaymentID
		out.ReservationID = parseReservationID(refund.ReferenceID)
		setMoney(out, refund.AmountMoney)
		if strings.EqualFold(refund.Status, "COMPLETED") {
			out.Status = enums.LedgerStatusRefunded
		}
	case event.Data.Object.Payment != nil:
		payment := event.Data.Object.Payment
		out.ProviderPaymentID = payment.ID
		out.ReservationID = parseReservationID(payment.ReferenceID)
		money := payment.TotalMoney
		if money == nil {
			money = payment.AmountMoney
		}
		setMoney(out, money)
		out.Status = squarePaymentStatus(payment.Status)
	default:
		out.ProviderPaymentID = event.Data.ID
	}
	return out, nil
}

func squarePaymentStatus(status string) enums.LedgerStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "COMPLETED":
		return enums.LedgerStatusApproved
	case "FAILED", "CANCELED":
		return enums.LedgerStatusRejected
	default:
		return enums.LedgerStatusPending
	}
}

func setMoney(out *Event, money *squareMoney) {
	if money == nil {
		return
	}
	out.Currency = string(enums.NormalizeCurrency(money.Currency))
	out.Amount = minorUnits(money.Amount, out.Currency)
}
