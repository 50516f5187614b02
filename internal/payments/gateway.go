package payments

import (
	"github.com/shopspring/decimal"

	"github.com/acecharity/raffle-backend/pkg/enums"
)

// Status is the processor-reported outcome of a charge or refund.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// OrderContext is the processor-facing slice of an order. Gateways never see
// the persistence model.
type OrderContext struct {
	OrderID      string
	OrderNumber  int64
	Amount       decimal.Decimal
	Currency     enums.Currency
	Reference    string
	ClientSecret string
}

// SyncResult reports the payment intent backing an order after a sync.
type SyncResult struct {
	Reference    string
	ClientSecret string
}

// ChargeRequest asks a gateway to capture the order total.
type ChargeRequest struct {
	Order OrderContext
	// Token is the client-side payment method token, when the processor
	// needs one to confirm.
	Token string
}

// ChargeResult is the outcome of a capture attempt.
type ChargeResult struct {
	Status    Status
	Reference string
	// Declined carries the processor's customer-safe decline message.
	Declined string
}

// RefundResult is the outcome of a refund.
type RefundResult struct {
	Status    Status
	Reference string
}
