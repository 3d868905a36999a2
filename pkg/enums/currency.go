package enums

import "strings"

// Currency is an ISO 4217 code, upper-cased.
type Currency string

// zeroDecimalCurrencies are charged in whole units by card providers.
var zeroDecimalCurrencies = map[Currency]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// NormalizeCurrency upper-cases provider supplied codes ("usd" -> "USD").
func NormalizeCurrency(value string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(value)))
}

// MinorUnitExponent returns how many decimal places the provider's integer
// amounts carry for this currency.
func (c Currency) MinorUnitExponent() int32 {
	if _, ok := zeroDecimalCurrencies[c]; ok {
		return 0
	}
	return 2
}
