package enums

import "slices"

// PaymentProvider names the processor a webhook came from.
type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderSquare PaymentProvider = "square"
)

func (p PaymentProvider) IsValid() bool {
	return slices.Contains([]PaymentProvider{PaymentProviderStripe, PaymentProviderSquare}, p)
}
