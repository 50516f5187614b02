package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/acecharity/raffle-backend/pkg/enums"
)

// AlwaysSucceedGateway approves every charge. Wired in dev environments so
// the checkout flow can be exercised without processor credentials.
type AlwaysSucceedGateway struct{}

func (AlwaysSucceedGateway) Key() enums.PaymentProcessor {
	return enums.PaymentProcessorAlwaysSucceed
}

func (AlwaysSucceedGateway) SupportsCurrency(currency enums.Currency) bool {
	return currency.IsValid()
}

func (AlwaysSucceedGateway) SyncOrderPayment(_ context.Context, order OrderContext) (SyncResult, error) {
	reference := order.Reference
	if reference == "" {
		reference = fmt.Sprintf("test_%s", uuid.NewString())
	}
	return SyncResult{
		Reference:    reference,
		ClientSecret: fmt.Sprintf("%s_secret", reference),
	}, nil
}

func (AlwaysSucceedGateway) ProcessPayment(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	reference := req.Order.Reference
	if reference == "" {
		reference = fmt.Sprintf("test_%s", uuid.NewString())
	}
	return ChargeResult{Status: StatusSucceeded, Reference: reference}, nil
}

func (AlwaysSucceedGateway) RefundPayment(_ context.Context, order OrderContext) (RefundResult, error) {
	return RefundResult{
		Status:    StatusSucceeded,
		Reference: fmt.Sprintf("re_test_%s", uuid.NewString()),
	}, nil
}

// AlwaysFailGateway declines every charge. Used to exercise the failed-order
// retry path.
type AlwaysFailGateway struct{}

func (AlwaysFailGateway) Key() enums.PaymentProcessor {
	return enums.PaymentProcessorAlwaysFail
}

func (AlwaysFailGateway) SupportsCurrency(currency enums.Currency) bool {
	return currency.IsValid()
}

func (AlwaysFailGateway) SyncOrderPayment(_ context.Context, order OrderContext) (SyncResult, error) {
	reference := order.Reference
	if reference == "" {
		reference = fmt.Sprintf("test_%s", uuid.NewString())
	}
	return SyncResult{
		Reference:    reference,
		ClientSecret: fmt.Sprintf("%s_secret", reference),
	}, nil
}

func (AlwaysFailGateway) ProcessPayment(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	return ChargeResult{
		Status:    StatusFailed,
		Reference: req.Order.Reference,
		Declined:  "Test processor declined the charge.",
	}, nil
}

func (AlwaysFailGateway) RefundPayment(_ context.Context, _ OrderContext) (RefundResult, error) {
	return RefundResult{}, fmt.Errorf("test processor cannot refund")
}
