package types

import "sort"

// Envelope numbers map one-to-one onto a deck of playing cards.
const (
	MinEnvelopeNumber = 1
	MaxEnvelopeNumber = 52
)

// EnvelopeCart maps envelope number to requested ticket quantity.
// Keys are unique, values are always >= 1 once sanitized.
type EnvelopeCart map[int]int

// Clone returns an independent copy of the cart.
func (c EnvelopeCart) Clone() EnvelopeCart {
	if c == nil {
		return nil
	}
	out := make(EnvelopeCart, len(c))
	for envelope, qty := range c {
		out[envelope] = qty
	}
	return out
}

// Envelopes returns the cart's envelope numbers in ascending order.
func (c EnvelopeCart) Envelopes() []int {
	envelopes := make([]int, 0, len(c))
	for envelope := range c {
		envelopes = append(envelopes, envelope)
	}
	sort.Ints(envelopes)
	return envelopes
}

// TotalQuantity sums the quantities across all envelopes.
func (c EnvelopeCart) TotalQuantity() int {
	total := 0
	for _, qty := range c {
		total += qty
	}
	return total
}

// IsEmpty reports whether the cart holds no lines.
func (c EnvelopeCart) IsEmpty() bool {
	return len(c) == 0
}

// ValidEnvelopeNumber reports whether the number falls inside the playable range.
func ValidEnvelopeNumber(envelope int) bool {
	return envelope >= MinEnvelopeNumber && envelope <= MaxEnvelopeNumber
}
