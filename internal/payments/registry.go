package payments

import (
	"context"
	"fmt"

	"github.com/acecharity/raffle-backend/pkg/enums"
	pkgerrors "github.com/acecharity/raffle-backend/pkg/errors"
)

// Gateway is the contract every payment processor integration satisfies.
type Gateway interface {
	Key() enums.PaymentProcessor
	SupportsCurrency(currency enums.Currency) bool
	// SyncOrderPayment creates the payment intent on first call and updates
	// its amount in place afterwards. The reference is never recreated for
	// the same order.
	SyncOrderPayment(ctx context.Context, order OrderContext) (SyncResult, error)
	ProcessPayment(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	RefundPayment(ctx context.Context, order OrderContext) (RefundResult, error)
}

// Registry resolves gateways by processor key. The set is fixed at startup.
type Registry struct {
	gateways map[enums.PaymentProcessor]Gateway
}

// NewRegistry builds a registry from the provided gateways.
func NewRegistry(gateways ...Gateway) (*Registry, error) {
	byKey := make(map[enums.PaymentProcessor]Gateway, len(gateways))
	for _, gateway := range gateways {
		if gateway == nil {
			continue
		}
		key := gateway.Key()
		if _, dup := byKey[key]; dup {
			return nil, fmt.Errorf("duplicate payment gateway %q", key)
		}
		byKey[key] = gateway
	}
	if len(byKey) == 0 {
		return nil, fmt.Errorf("at least one payment gateway required")
	}
	return &Registry{gateways: byKey}, nil
}

// Resolve returns the gateway for a processor key.
func (r *Registry) Resolve(key enums.PaymentProcessor) (Gateway, error) {
	gateway, ok := r.gateways[key]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("payment processor %q is not configured", key))
	}
	return gateway, nil
}
