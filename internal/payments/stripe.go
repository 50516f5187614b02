package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/acecharity/raffle-backend/pkg/enums"
)

const defaultStripeTimeout = 15 * time.Second

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Update(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// StripeGateway drives Stripe payment intents for checkout.
type StripeGateway struct {
	intents stripeIntentAPI
	refunds stripeRefundAPI
	timeout time.Duration
}

// StripeGatewayParams configure the Stripe gateway.
type StripeGatewayParams struct {
	APIKey  string
	Timeout time.Duration
	// Intents and Refunds override the live API clients in tests.
	Intents stripeIntentAPI
	Refunds stripeRefundAPI
}

// NewStripeGateway builds a Stripe gateway.
func NewStripeGateway(params StripeGatewayParams) (*StripeGateway, error) {
	intents := params.Intents
	refunds := params.Refunds
	if intents == nil || refunds == nil {
		apiKey := strings.TrimSpace(params.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe api key required")
		}
		sc := client.New(apiKey, nil)
		if intents == nil {
			intents = sc.PaymentIntents
		}
		if refunds == nil {
			refunds = sc.Refunds
		}
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultStripeTimeout
	}
	return &StripeGateway{intents: intents, refunds: refunds, timeout: timeout}, nil
}

func (g *StripeGateway) Key() enums.PaymentProcessor {
	return enums.PaymentProcessorStripe
}

func (g *StripeGateway) SupportsCurrency(currency enums.Currency) bool {
	return currency.IsValid()
}

func (g *StripeGateway) SyncOrderPayment(ctx context.Context, order OrderContext) (SyncResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	amount, err := MinorUnits(order.Amount, order.Currency)
	if err != nil {
		return SyncResult{}, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(order.Currency.String()),
	}
	params.Context = ctx
	params.Metadata = map[string]string{
		"order_id":     order.OrderID,
		"order_number": fmt.Sprintf("%d", order.OrderNumber),
	}

	var intent *stripe.PaymentIntent
	if order.Reference == "" {
		intent, err = g.intents.New(params)
	} else {
		intent, err = g.intents.Update(order.Reference, params)
	}
	if err != nil {
		return SyncResult{}, fmt.Errorf("stripe payment intent sync: %w", err)
	}
	return SyncResult{Reference: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (g *StripeGateway) ProcessPayment(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if req.Order.Reference == "" {
		return ChargeResult{}, errors.New("payment intent reference required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	if req.Token != "" {
		params.PaymentMethod = stripe.String(req.Token)
	}

	intent, err := g.intents.Confirm(req.Order.Reference, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return ChargeResult{
				Status:    StatusFailed,
				Reference: req.Order.Reference,
				Declined:  stripeErr.Msg,
			}, nil
		}
		return ChargeResult{}, fmt.Errorf("stripe confirm: %w", err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return ChargeResult{
			Status:    StatusFailed,
			Reference: intent.ID,
			Declined:  fmt.Sprintf("payment is %s", intent.Status),
		}, nil
	}
	return ChargeResult{Status: StatusSucceeded, Reference: intent.ID}, nil
}

func (g *StripeGateway) RefundPayment(ctx context.Context, order OrderContext) (RefundResult, error) {
	if order.Reference == "" {
		return RefundResult{}, errors.New("payment intent reference required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.RefundParams{PaymentIntent: stripe.String(order.Reference)}
	params.Context = ctx

	refund, err := g.refunds.New(params)
	if err != nil {
		return RefundResult{}, fmt.Errorf("stripe refund: %w", err)
	}
	return RefundResult{Status: StatusSucceeded, Reference: refund.ID}, nil
}

// zeroDecimalCurrencies are charged in whole units per Stripe's amount rules.
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {},
	"krw": {}, "mga": {}, "pyg": {}, "rwf": {}, "ugx": {}, "vnd": {},
	"vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

var threeDecimalCurrencies = map[string]struct{}{
	"bhd": {}, "jod": {}, "kwd": {}, "omr": {}, "tnd": {},
}

// MinorUnits converts a decimal amount into the processor's integer minor
// units for the given currency.
func MinorUnits(amount decimal.Decimal, currency enums.Currency) (int64, error) {
	code := strings.ToLower(currency.String())
	exponent := int32(2)
	if _, ok := zeroDecimalCurrencies[code]; ok {
		exponent = 0
	} else if _, ok := threeDecimalCurrencies[code]; ok {
		exponent = 3
	}

	scaled := amount.Shift(exponent)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-minor-unit precision for %s", amount, code)
	}
	if scaled.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", amount)
	}
	return scaled.IntPart(), nil
}
