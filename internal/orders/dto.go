package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/acecharity/raffle-backend/pkg/enums"
	"github.com/acecharity/raffle-backend/pkg/types"
)

// CreateOrderInput carries everything needed to open a new order.
type CreateOrderInput struct {
	SessionID   uuid.UUID
	Cart        types.EnvelopeCart
	TotalAmount decimal.Decimal
	Currency    enums.Currency
	Processor   enums.PaymentProcessor
}

// UpdateCartInput replaces an order's cart with a reconciled snapshot.
type UpdateCartInput struct {
	OrderID     uuid.UUID
	Cart        types.EnvelopeCart
	TotalAmount decimal.Decimal
	Warnings    []string
}

// CustomerInput captures the buyer details collected at submit time.
type CustomerInput struct {
	FirstName        string
	LastName         string
	Email            string
	Phone            *string
	Location         *string
	BenefactorTermID *int
	TermsURL         string
	TermsAcceptedAt  time.Time
}

// PaymentSyncResult is what a processor reports after creating or updating
// the payment intent backing an order.
type PaymentSyncResult struct {
	Reference    string
	ClientSecret string
}
