package checkout

import (
	"context"
	"fmt"

	"github.com/acecharity/raffle-backend/internal/orders"
	"github.com/acecharity/raffle-backend/internal/payments"
	"github.com/acecharity/raffle-backend/pkg/db/models"
)

// GatewayAdapter bridges the orders service's payment hooks onto the
// processor registry, resolving the gateway per order.
type GatewayAdapter struct {
	registry *payments.Registry
}

// NewGatewayAdapter builds the adapter.
func NewGatewayAdapter(registry *payments.Registry) (*GatewayAdapter, error) {
	if registry == nil {
		return nil, fmt.Errorf("payment registry required")
	}
	return &GatewayAdapter{registry: registry}, nil
}

// Sync implements orders.PaymentSyncer.
func (a *GatewayAdapter) Sync(ctx context.Context, order *models.Order) (orders.PaymentSyncResult, error) {
	gateway, err := a.registry.Resolve(order.PaymentProcessor)
	if err != nil {
		return orders.PaymentSyncResult{}, err
	}
	result, err := gateway.SyncOrderPayment(ctx, orderContext(order))
	if err != nil {
		return orders.PaymentSyncResult{}, err
	}
	return orders.PaymentSyncResult{
		Reference:    result.Reference,
		ClientSecret: result.ClientSecret,
	}, nil
}

// Refund implements orders.PaymentRefunder.
func (a *GatewayAdapter) Refund(ctx context.Context, order *models.Order) (string, error) {
	gateway, err := a.registry.Resolve(order.PaymentProcessor)
	if err != nil {
		return "", err
	}
	result, err := gateway.RefundPayment(ctx, orderContext(order))
	if err != nil {
		return "", err
	}
	return result.Reference, nil
}

func orderContext(order *models.Order) payments.OrderContext {
	octx := payments.OrderContext{
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
	}
	if order.PaymentReference != nil {
		octx.Reference = *order.PaymentReference
	}
	if order.PaymentClientSecret != nil {
		octx.ClientSecret = *order.PaymentClientSecret
	}
	return octx
}
