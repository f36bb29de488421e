package enums

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 code the gateway knows how to denominate.
// Deployments narrow this set further via the configured allow-list.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
	CurrencyJPY Currency = "JPY"
	CurrencyTHB Currency = "THB"
)

var validCurrencies = []Currency{
	CurrencyUSD,
	CurrencyEUR,
	CurrencyGBP,
	CurrencyCAD,
	CurrencyAUD,
	CurrencyJPY,
	CurrencyTHB,
}

// minorUnitExponents maps currencies whose smallest unit is not 1/100.
var minorUnitExponents = map[Currency]int32{
	CurrencyJPY: 0,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// MinorUnitExponent returns how many decimal places separate the minor unit
// from the major unit (2 for USD cents, 0 for JPY).
func (c Currency) MinorUnitExponent() int32 {
	if exp, ok := minorUnitExponents[c]; ok {
		return exp
	}
	return 2
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validCurrencies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
