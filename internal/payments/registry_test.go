package payments

import (
	"context"
	"strings"
	"testing"

	"github.com/acecharity/raffle-backend/pkg/enums"
	pkgerrors "github.com/acecharity/raffle-backend/pkg/errors"
)

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(AlwaysSucceedGateway{}, AlwaysSucceedGateway{})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate gateway error, got %v", err)
	}
}

func TestNewRegistryRequiresAtLeastOneGateway(t *testing.T) {
	if _, err := NewRegistry(); err == nil {
		t.Fatal("expected error for empty registry")
	}
	if _, err := NewRegistry(nil); err == nil {
		t.Fatal("nil gateways should not count")
	}
}

func TestRegistryResolve(t *testing.T) {
	registry, err := NewRegistry(AlwaysSucceedGateway{}, AlwaysFailGateway{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	gateway, err := registry.Resolve(enums.PaymentProcessorAlwaysSucceed)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if gateway.Key() != enums.PaymentProcessorAlwaysSucceed {
		t.Fatalf("resolved wrong gateway: %s", gateway.Key())
	}

	_, err = registry.Resolve(enums.PaymentProcessorStripe)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code for unconfigured processor, got %v", err)
	}
}

func TestAlwaysSucceedGatewayRoundTrip(t *testing.T) {
	gateway := AlwaysSucceedGateway{}
	ctx := context.Background()

	sync, err := gateway.SyncOrderPayment(ctx, OrderContext{})
	if err != nil {
		t.Fatalf("SyncOrderPayment: %v", err)
	}
	if sync.Reference == "" || sync.ClientSecret != sync.Reference+"_secret" {
		t.Fatalf("unexpected sync result: %+v", sync)
	}

	// A later sync must keep the reference it was handed.
	again, err := gateway.SyncOrderPayment(ctx, OrderContext{Reference: sync.Reference})
	if err != nil {
		t.Fatalf("SyncOrderPayment: %v", err)
	}
	if again.Reference != sync.Reference {
		t.Fatalf("reference changed: %s != %s", again.Reference, sync.Reference)
	}

	charge, err := gateway.ProcessPayment(ctx, ChargeRequest{Order: OrderContext{Reference: sync.Reference}})
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if charge.Status != StatusSucceeded {
		t.Fatalf("expected success, got %+v", charge)
	}
}

func TestAlwaysFailGatewayDeclines(t *testing.T) {
	gateway := AlwaysFailGateway{}

	charge, err := gateway.ProcessPayment(context.Background(), ChargeRequest{
		Order: OrderContext{Reference: "test_ref"},
	})
	if err != nil {
		t.Fatalf("declines should not surface as errors, got %v", err)
	}
	if charge.Status != StatusFailed || charge.Declined == "" {
		t.Fatalf("expected decline, got %+v", charge)
	}

	if _, err := gateway.RefundPayment(context.Background(), OrderContext{}); err == nil {
		t.Fatal("fail gateway should not refund")
	}
}
