package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acecharity/raffle-backend/internal/cart"
	"github.com/acecharity/raffle-backend/internal/orders"
	"github.com/acecharity/raffle-backend/internal/payments"
	"github.com/acecharity/raffle-backend/internal/raffle"
	"github.com/acecharity/raffle-backend/pkg/db/models"
	"github.com/acecharity/raffle-backend/pkg/enums"
	pkgerrors "github.com/acecharity/raffle-backend/pkg/errors"
	"github.com/acecharity/raffle-backend/pkg/logger"
	"github.com/acecharity/raffle-backend/pkg/types"
)

type notificationDispatcher interface {
	SendPaymentConfirmation(ctx context.Context, orderID string, orderNumber int64) error
}

type auditSink interface {
	Record(ctx context.Context, kind enums.AuditKind, message string, orderID *uuid.UUID, details types.JSONMap)
}

// Service orchestrates the checkout session: resolving or creating the order,
// reconciling the cart against the raffle, and driving payment submission.
type Service interface {
	View(ctx context.Context, input ViewInput) (*View, error)
	Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error)
}

// ServiceParams configure the checkout service.
type ServiceParams struct {
	Orders        orders.Service
	Validator     *cart.Validator
	CartSessions  *cart.SessionStore
	Raffle        raffle.Service
	Registry      *payments.Registry
	Notifications notificationDispatcher
	Audit         auditSink
	Logger        *logger.Logger
	Processor     enums.PaymentProcessor
	TermsURL      string
}

type service struct {
	orders        orders.Service
	validator     *cart.Validator
	cartSessions  *cart.SessionStore
	raffle        raffle.Service
	registry      *payments.Registry
	notifications notificationDispatcher
	audit         auditSink
	logg          *logger.Logger
	processor     enums.PaymentProcessor
	termsURL      string
	now           func() time.Time
}

// NewService builds a checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Validator == nil {
		return nil, fmt.Errorf("cart validator required")
	}
	if params.Raffle == nil {
		return nil, fmt.Errorf("raffle service required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("payment registry required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !params.Processor.IsValid() {
		return nil, fmt.Errorf("payment processor %q unknown", params.Processor)
	}
	return &service{
		orders:        params.Orders,
		validator:     params.Validator,
		cartSessions:  params.CartSessions,
		raffle:        params.Raffle,
		registry:      params.Registry,
		notifications: params.Notifications,
		audit:         params.Audit,
		logg:          params.Logger,
		processor:     params.Processor,
		termsURL:      params.TermsURL,
		now:           time.Now,
	}, nil
}

// View resolves the customer's order, reconciles its cart against the raffle,
// and refreshes the activity lease. A missing or abandoned order starts a new
// one seeded from the browser's cart snapshot.
func (s *service) View(ctx context.Context, input ViewInput) (*View, error) {
	order, err := s.resolveOrder(ctx, input.OrderKey)
	if err != nil {
		return nil, err
	}

	if order != nil {
		abandoned, reconcileErr := s.orders.ReconcileLease(ctx, order)
		if reconcileErr != nil {
			return nil, reconcileErr
		}
		if abandoned {
			order = nil
		}
	}

	if order == nil {
		created, warnings, createErr := s.startOrder(ctx, input.CartToken)
		if createErr != nil {
			return nil, createErr
		}
		return s.buildView(ctx, created, warnings)
	}

	if order.Status != enums.OrderStatusStarted && order.Status != enums.OrderStatusFailed {
		// Completed, refunded and in-process orders render read-only.
		return s.buildView(ctx, order, nil)
	}

	warnings, err := s.reconcileCart(ctx, order)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Touch(ctx, order); err != nil {
		s.logg.Warn(s.logg.WithOrderNumber(ctx, order.OrderNumber), "failed to refresh activity lease")
	}
	return s.buildView(ctx, order, warnings)
}

// Submit finalizes the checkout: customer details, final cart authority check,
// then payment capture. A cart that changed underneath the customer aborts
// with a conflict so they can re-confirm.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	order, err := s.orders.GetByKey(ctx, input.OrderKey)
	if err != nil {
		return nil, err
	}

	abandoned, err := s.orders.ReconcileLease(ctx, order)
	if err != nil {
		return nil, err
	}
	if abandoned {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session expired")
	}
	if order.Status != enums.OrderStatusStarted && order.Status != enums.OrderStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s and can no longer be submitted", order.Status))
	}

	if !input.AcceptedTerms {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "raffle terms must be accepted")
	}
	if err := s.raffle.ValidateBenefactorTerm(ctx, order.SessionID, input.BenefactorTermID); err != nil {
		return nil, err
	}

	gateway, err := s.registry.Resolve(order.PaymentProcessor)
	if err != nil {
		return nil, err
	}
	if !gateway.SupportsCurrency(order.Currency) {
		return nil, pkgerrors.New(pkgerrors.CodePayment,
			fmt.Sprintf("currency %s is not supported by the payment processor", order.Currency))
	}

	// The raffle state is the final authority on what is sellable.
	warnings, err := s.reconcileCart(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeCartConflict,
			"the cart changed while you were checking out").WithDetails(map[string]any{"warnings": warnings})
	}
	if order.Cart.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "the cart is empty")
	}

	termID := input.BenefactorTermID
	if err := s.orders.UpdateCustomer(ctx, order.ID, orders.CustomerInput{
		FirstName:        input.FirstName,
		LastName:         input.LastName,
		Email:            input.Email,
		Phone:            input.Phone,
		Location:         input.Location,
		BenefactorTermID: &termID,
		TermsURL:         s.termsURL,
		TermsAcceptedAt:  s.now(),
	}); err != nil {
		return nil, err
	}

	if err := s.ensurePaymentSynced(ctx, order, gateway); err != nil {
		return nil, err
	}

	if err := s.orders.SetStatus(ctx, order.ID, enums.OrderStatusInProcess, "payment submitted"); err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusInProcess

	result, err := gateway.ProcessPayment(ctx, payments.ChargeRequest{
		Order: orderContext(order),
		Token: input.PaymentToken,
	})
	if err != nil {
		if failErr := s.orders.SetStatus(ctx, order.ID, enums.OrderStatusFailed, "payment processor error"); failErr != nil {
			s.logg.Error(ctx, "failed to mark order failed after processor error", failErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePayment, err, "processing payment")
	}

	if result.Status != payments.StatusSucceeded {
		reason := result.Declined
		if reason == "" {
			reason = "payment declined"
		}
		if failErr := s.orders.SetStatus(ctx, order.ID, enums.OrderStatusFailed, reason); failErr != nil {
			return nil, failErr
		}
		return nil, pkgerrors.New(pkgerrors.CodePayment, reason)
	}

	if err := s.orders.SetStatus(ctx, order.ID, enums.OrderStatusCompleted, "payment captured"); err != nil {
		// Money moved but the order did not. This is the one spot where we
		// page a human instead of retrying.
		if s.audit != nil {
			s.audit.Record(ctx, enums.AuditKindPayment,
				"payment captured but order could not be completed",
				&order.ID, types.JSONMap{"reference": result.Reference})
		}
		return nil, err
	}
	order.Status = enums.OrderStatusCompleted
	order.PaymentReference = &result.Reference

	if s.cartSessions != nil && input.CartToken != "" {
		// The snapshot served its purpose once the order completes.
		if delErr := s.cartSessions.Delete(ctx, input.CartToken); delErr != nil {
			s.logg.Warn(ctx, "failed to drop cart snapshot")
		}
	}

	if s.notifications != nil {
		if notifyErr := s.notifications.SendPaymentConfirmation(ctx, order.ID.String(), order.OrderNumber); notifyErr != nil {
			s.logg.Error(s.logg.WithOrderNumber(ctx, order.OrderNumber),
				"failed to send payment confirmation", notifyErr)
		}
	}

	return &SubmitResult{
		Order:       order,
		Reference:   result.Reference,
		CompletedAt: s.now(),
	}, nil
}

func (s *service) resolveOrder(ctx context.Context, orderKey string) (*models.Order, error) {
	if orderKey == "" {
		return nil, nil
	}
	order, err := s.orders.GetByKey(ctx, orderKey)
	if err != nil {
		var typed *pkgerrors.Error
		if errors.As(err, &typed) && typed.Code() == pkgerrors.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return order, nil
}

func (s *service) startOrder(ctx context.Context, cartToken string) (*models.Order, []string, error) {
	session, err := s.raffle.GetOpenSession(ctx)
	if err != nil {
		return nil, nil, err
	}

	requested := types.EnvelopeCart{}
	if s.cartSessions != nil && cartToken != "" {
		snapshot, loadErr := s.cartSessions.Load(ctx, cartToken)
		if loadErr != nil && !errors.Is(loadErr, cart.ErrNotFound) {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, loadErr, "loading cart snapshot")
		}
		if snapshot != nil {
			requested = snapshot
		}
	}

	validated, err := s.validator.Validate(ctx, session.ID, requested)
	if err != nil {
		return nil, nil, err
	}

	order, err := s.orders.CreateOrder(ctx, orders.CreateOrderInput{
		SessionID:   session.ID,
		Cart:        validated.Cart,
		TotalAmount: cart.Total(validated.Cart, session.TicketPrice),
		Currency:    enums.CurrencyCAD,
		Processor:   s.processor,
	})
	if err != nil {
		return nil, nil, err
	}
	return order, validated.Warnings, nil
}

// reconcileCart revalidates the order's cart against the raffle and persists
// any changes, which also resynchronizes the payment intent amount.
func (s *service) reconcileCart(ctx context.Context, order *models.Order) ([]string, error) {
	validated, err := s.validator.Validate(ctx, order.SessionID, order.Cart)
	if err != nil {
		return nil, err
	}
	if len(validated.Warnings) == 0 {
		return nil, nil
	}

	price, err := s.raffle.GetTicketPrice(ctx, order.SessionID)
	if err != nil {
		return nil, err
	}

	updated, err := s.orders.UpdateCart(ctx, orders.UpdateCartInput{
		OrderID:     order.ID,
		Cart:        validated.Cart,
		TotalAmount: cart.Total(validated.Cart, price),
		Warnings:    validated.Warnings,
	})
	if err != nil {
		return nil, err
	}
	*order = *updated
	return validated.Warnings, nil
}

// ensurePaymentSynced pushes the order's current total to the processor right
// before capture. It always runs, even when an intent already exists: an
// earlier amount sync may have failed after a cart edit, and confirming then
// would charge the stale amount. Sync updates the intent in place, so the
// reference is stable across calls.
func (s *service) ensurePaymentSynced(ctx context.Context, order *models.Order, gateway payments.Gateway) error {
	result, err := gateway.SyncOrderPayment(ctx, orderContext(order))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePayment, err, "creating payment intent")
	}
	if err := s.orders.RecordPayment(ctx, order.ID, orders.PaymentSyncResult{
		Reference:    result.Reference,
		ClientSecret: result.ClientSecret,
	}); err != nil {
		return err
	}
	order.PaymentReference = &result.Reference
	order.PaymentClientSecret = &result.ClientSecret
	return nil
}

func (s *service) buildView(ctx context.Context, order *models.Order, warnings []string) (*View, error) {
	benefactors, err := s.raffle.ListBenefactorTerms(ctx, order.SessionID)
	if err != nil {
		return nil, err
	}
	return &View{
		Order:       order,
		Warnings:    warnings,
		Benefactors: benefactors,
		TermsURL:    s.termsURL,
	}, nil
}
