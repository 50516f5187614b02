package enums

import (
	"fmt"
	"strings"
)

// Currency is the lowercase 3-letter code carried on an order.
type Currency string

const (
	CurrencyCAD Currency = "cad"
	CurrencyUSD Currency = "usd"
)

var validCurrencies = []Currency{
	CurrencyCAD,
	CurrencyUSD,
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

// ParseCurrency converts a raw string into a Currency, normalizing case.
func ParseCurrency(value string) (Currency, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validCurrencies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
