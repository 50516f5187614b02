package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/acecharity/raffle-backend/pkg/errors"
	"github.com/acecharity/raffle-backend/pkg/types"
)

// UsedEnvelopeSource reports which envelopes of a session are no longer
// sellable (already revealed).
type UsedEnvelopeSource interface {
	GetUsedEnvelopes(ctx context.Context, sessionID uuid.UUID) (map[int]struct{}, error)
}

// Validator reconciles a requested cart against the current state of the
// raffle session.
type Validator struct {
	used UsedEnvelopeSource
}

// NewValidator builds a cart validator.
func NewValidator(used UsedEnvelopeSource) (*Validator, error) {
	if used == nil {
		return nil, fmt.Errorf("used envelope source required")
	}
	return &Validator{used: used}, nil
}

// Result is the outcome of one validation pass.
type Result struct {
	Cart types.EnvelopeCart
	// Warnings are customer-facing lines describing what was dropped.
	Warnings []string
}

// Validate returns the sellable subset of the requested cart. The input is
// untrusted: entries with non-positive quantities or envelope numbers outside
// the printed range are dropped silently, while envelopes revealed since the
// customer built the cart are dropped with a warning.
func (v *Validator) Validate(ctx context.Context, sessionID uuid.UUID, requested types.EnvelopeCart) (Result, error) {
	used, err := v.used.GetUsedEnvelopes(ctx, sessionID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading used envelopes")
	}

	result := Result{Cart: types.EnvelopeCart{}}
	for _, envelope := range requested.Envelopes() {
		qty := requested[envelope]
		if qty <= 0 || !types.ValidEnvelopeNumber(envelope) {
			continue
		}
		if _, taken := used[envelope]; taken {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Envelope #%d was removed because it is no longer available.", envelope))
			continue
		}
		result.Cart[envelope] = qty
	}
	return result, nil
}

// Total prices a cart at the session's ticket price.
func Total(cart types.EnvelopeCart, ticketPrice decimal.Decimal) decimal.Decimal {
	return ticketPrice.Mul(decimal.NewFromInt(int64(cart.TotalQuantity())))
}
