package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/acecharity/raffle-backend/internal/cart"
	"github.com/acecharity/raffle-backend/internal/orders"
	"github.com/acecharity/raffle-backend/internal/payments"
	"github.com/acecharity/raffle-backend/pkg/db/models"
	"github.com/acecharity/raffle-backend/pkg/enums"
	pkgerrors "github.com/acecharity/raffle-backend/pkg/errors"
	"github.com/acecharity/raffle-backend/pkg/logger"
	"github.com/acecharity/raffle-backend/pkg/types"
)

func testCheckoutLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubOrdersService struct {
	order *models.Order

	abandoned   bool
	touched     int
	customer    *orders.CustomerInput
	payment     *orders.PaymentSyncResult
	statusCalls []enums.OrderStatus
	reasons     []string

	failCompletion bool
}

func (s *stubOrdersService) CreateOrder(_ context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	s.order = &models.Order{
		ID:               uuid.New(),
		OrderNumber:      1001,
		OrderKey:         "fresh-key",
		SessionID:        input.SessionID,
		Cart:             input.Cart,
		TotalAmount:      input.TotalAmount,
		Currency:         input.Currency,
		Status:           enums.OrderStatusStarted,
		PaymentProcessor: input.Processor,
		TicketStatus:     enums.TicketStatusNotGenerated,
	}
	return s.order, nil
}

func (s *stubOrdersService) GetByID(_ context.Context, _ uuid.UUID) (*models.Order, error) {
	return s.order, nil
}

func (s *stubOrdersService) GetByKey(_ context.Context, orderKey string) (*models.Order, error) {
	if s.order == nil || s.order.OrderKey != orderKey {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.order, nil
}

func (s *stubOrdersService) UpdateCart(_ context.Context, input orders.UpdateCartInput) (*models.Order, error) {
	s.order.Cart = input.Cart
	s.order.TotalAmount = input.TotalAmount
	return s.order, nil
}

func (s *stubOrdersService) UpdateCustomer(_ context.Context, _ uuid.UUID, input orders.CustomerInput) error {
	s.customer = &input
	return nil
}

func (s *stubOrdersService) RecordPayment(_ context.Context, _ uuid.UUID, result orders.PaymentSyncResult) error {
	s.payment = &result
	s.order.PaymentReference = &result.Reference
	s.order.PaymentClientSecret = &result.ClientSecret
	return nil
}

func (s *stubOrdersService) SetStatus(_ context.Context, _ uuid.UUID, to enums.OrderStatus, reason string) error {
	if s.failCompletion && to == enums.OrderStatusCompleted {
		return pkgerrors.New(pkgerrors.CodeInternal, "write failed")
	}
	s.statusCalls = append(s.statusCalls, to)
	s.reasons = append(s.reasons, reason)
	s.order.Status = to
	return nil
}

func (s *stubOrdersService) Refund(_ context.Context, _ uuid.UUID) (*models.Order, error) {
	return s.order, nil
}

func (s *stubOrdersService) Touch(_ context.Context, _ *models.Order) error {
	s.touched++
	return nil
}

func (s *stubOrdersService) ReconcileLease(_ context.Context, order *models.Order) (bool, error) {
	if s.abandoned {
		order.Status = enums.OrderStatusAbandoned
		return true, nil
	}
	return false, nil
}

func (s *stubOrdersService) ListLog(_ context.Context, _ uuid.UUID) ([]models.OrderLogEntry, error) {
	return nil, nil
}

type stubRaffleService struct {
	session *models.RaffleSession
	used    map[int]struct{}
}

func newStubRaffleService() *stubRaffleService {
	return &stubRaffleService{
		session: &models.RaffleSession{
			ID:          uuid.New(),
			Name:        "Week 12",
			TicketPrice: decimal.RequireFromString("10.00"),
			OpensAt:     time.Now().Add(-time.Hour),
			ClosesAt:    time.Now().Add(time.Hour),
		},
		used: map[int]struct{}{},
	}
}

func (s *stubRaffleService) GetSession(_ context.Context, _ uuid.UUID) (*models.RaffleSession, error) {
	return s.session, nil
}

func (s *stubRaffleService) GetOpenSession(_ context.Context) (*models.RaffleSession, error) {
	return s.session, nil
}

func (s *stubRaffleService) GetTicketPrice(_ context.Context, _ uuid.UUID) (decimal.Decimal, error) {
	return s.session.TicketPrice, nil
}

func (s *stubRaffleService) GetUsedEnvelopes(_ context.Context, _ uuid.UUID) (map[int]struct{}, error) {
	return s.used, nil
}

func (s *stubRaffleService) ListBenefactorTerms(_ context.Context, _ uuid.UUID) ([]models.BenefactorTerm, error) {
	return []models.BenefactorTerm{{TermID: 0, Name: "All benefactors"}}, nil
}

func (s *stubRaffleService) ValidateBenefactorTerm(_ context.Context, _ uuid.UUID, termID int) error {
	if termID != 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown benefactor")
	}
	return nil
}

type stubConfirmationDispatcher struct {
	confirmations int
}

func (s *stubConfirmationDispatcher) SendPaymentConfirmation(_ context.Context, _ string, _ int64) error {
	s.confirmations++
	return nil
}

type stubAudit struct {
	messages []string
}

func (s *stubAudit) Record(_ context.Context, _ enums.AuditKind, message string, _ *uuid.UUID, _ types.JSONMap) {
	s.messages = append(s.messages, message)
}

// recordingGateway approves every charge and remembers what was synced, so
// tests can assert the amount pushed to the processor.
type recordingGateway struct {
	lastSync payments.OrderContext
	syncs    int
}

func (g *recordingGateway) Key() enums.PaymentProcessor {
	return enums.PaymentProcessorStripe
}

func (g *recordingGateway) SupportsCurrency(currency enums.Currency) bool {
	return currency.IsValid()
}

func (g *recordingGateway) SyncOrderPayment(_ context.Context, order payments.OrderContext) (payments.SyncResult, error) {
	g.syncs++
	g.lastSync = order
	reference := order.Reference
	if reference == "" {
		reference = "pi_recorded"
	}
	return payments.SyncResult{Reference: reference, ClientSecret: reference + "_secret"}, nil
}

func (g *recordingGateway) ProcessPayment(_ context.Context, req payments.ChargeRequest) (payments.ChargeResult, error) {
	return payments.ChargeResult{Status: payments.StatusSucceeded, Reference: req.Order.Reference}, nil
}

func (g *recordingGateway) RefundPayment(_ context.Context, order payments.OrderContext) (payments.RefundResult, error) {
	return payments.RefundResult{Status: payments.StatusSucceeded, Reference: "re_" + order.Reference}, nil
}

type checkoutFixture struct {
	service       Service
	orders        *stubOrdersService
	raffle        *stubRaffleService
	gateway       *recordingGateway
	notifications *stubConfirmationDispatcher
	audit         *stubAudit
}

func newCheckoutFixture(t *testing.T, processor enums.PaymentProcessor) *checkoutFixture {
	t.Helper()

	ordersSvc := &stubOrdersService{}
	raffleSvc := newStubRaffleService()
	notifications := &stubConfirmationDispatcher{}
	audit := &stubAudit{}

	validator, err := cart.NewValidator(raffleSvc)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	gateway := &recordingGateway{}
	registry, err := payments.NewRegistry(payments.AlwaysSucceedGateway{}, payments.AlwaysFailGateway{}, gateway)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	svc, err := NewService(ServiceParams{
		Orders:        ordersSvc,
		Validator:     validator,
		Raffle:        raffleSvc,
		Registry:      registry,
		Notifications: notifications,
		Audit:         audit,
		Logger:        testCheckoutLogger(),
		Processor:     processor,
		TermsURL:      "https://example.org/terms",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &checkoutFixture{
		service:       svc,
		orders:        ordersSvc,
		raffle:        raffleSvc,
		gateway:       gateway,
		notifications: notifications,
		audit:         audit,
	}
}

func startedOrder(fix *checkoutFixture, cart types.EnvelopeCart) *models.Order {
	total := decimal.RequireFromString("10.00").Mul(decimal.NewFromInt(int64(cart.TotalQuantity())))
	fix.orders.order = &models.Order{
		ID:               uuid.New(),
		OrderNumber:      1001,
		OrderKey:         "order-key",
		SessionID:        fix.raffle.session.ID,
		Cart:             cart,
		TotalAmount:      total,
		Currency:         enums.CurrencyCAD,
		Status:           enums.OrderStatusStarted,
		PaymentProcessor: enums.PaymentProcessorAlwaysSucceed,
		TicketStatus:     enums.TicketStatusNotGenerated,
	}
	return fix.orders.order
}

func submitInput() SubmitInput {
	return SubmitInput{
		OrderKey:      "order-key",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         "ada@example.org",
		AcceptedTerms: true,
		PaymentToken:  "pm_card_visa",
	}
}

func TestViewStartsFreshOrderWhenKeyMissing(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)

	view, err := fix.service.View(context.Background(), ViewInput{})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.Order == nil || view.Order.Status != enums.OrderStatusStarted {
		t.Fatalf("expected a fresh started order, got %+v", view.Order)
	}
	if view.Order.PaymentProcessor != enums.PaymentProcessorAlwaysSucceed {
		t.Fatalf("wrong processor: %s", view.Order.PaymentProcessor)
	}
	if len(view.Benefactors) == 0 || view.TermsURL == "" {
		t.Fatalf("view missing raffle context: %+v", view)
	}
}

func TestViewReconcilesCartAndRefreshesLease(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	startedOrder(fix, types.EnvelopeCart{5: 1, 9: 1})
	fix.raffle.used = map[int]struct{}{9: {}}

	view, err := fix.service.View(context.Background(), ViewInput{OrderKey: "order-key"})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(view.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", view.Warnings)
	}
	if _, ok := view.Order.Cart[9]; ok {
		t.Fatal("revealed envelope should have been dropped from the order")
	}
	if fix.orders.touched != 1 {
		t.Fatalf("expected lease refresh, got %d touches", fix.orders.touched)
	}
}

func TestViewStartsOverAfterAbandonment(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	startedOrder(fix, types.EnvelopeCart{5: 1})
	fix.orders.abandoned = true

	view, err := fix.service.View(context.Background(), ViewInput{OrderKey: "order-key"})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.Order.OrderKey == "order-key" {
		t.Fatal("abandoned order should have been replaced with a fresh one")
	}
	if view.Order.Status != enums.OrderStatusStarted {
		t.Fatalf("expected fresh started order, got %s", view.Order.Status)
	}
}

func TestViewRendersCompletedOrderReadOnly(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	order := startedOrder(fix, types.EnvelopeCart{5: 1})
	order.Status = enums.OrderStatusCompleted

	view, err := fix.service.View(context.Background(), ViewInput{OrderKey: "order-key"})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.Order.Status != enums.OrderStatusCompleted {
		t.Fatalf("expected completed order untouched, got %s", view.Order.Status)
	}
	if fix.orders.touched != 0 {
		t.Fatal("completed orders must not refresh the lease")
	}
}

func TestSubmitCompletesOrder(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	startedOrder(fix, types.EnvelopeCart{5: 1})

	result, err := fix.service.Submit(context.Background(), submitInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Order.Status != enums.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", result.Order.Status)
	}
	if result.Reference == "" {
		t.Fatal("expected payment reference")
	}
	if fix.orders.customer == nil || fix.orders.customer.FirstName != "Ada" {
		t.Fatalf("customer details not persisted: %+v", fix.orders.customer)
	}
	if fix.orders.payment == nil {
		t.Fatal("payment intent should have been recorded")
	}
	wantStatuses := []enums.OrderStatus{enums.OrderStatusInProcess, enums.OrderStatusCompleted}
	if len(fix.orders.statusCalls) != len(wantStatuses) {
		t.Fatalf("unexpected status calls: %v", fix.orders.statusCalls)
	}
	for i, want := range wantStatuses {
		if fix.orders.statusCalls[i] != want {
			t.Fatalf("status call %d: expected %s, got %s", i, want, fix.orders.statusCalls[i])
		}
	}
	if fix.notifications.confirmations != 1 {
		t.Fatalf("expected one payment confirmation, got %d", fix.notifications.confirmations)
	}
}

func TestSubmitDeclineMarksOrderFailed(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	order := startedOrder(fix, types.EnvelopeCart{5: 1})
	order.PaymentProcessor = enums.PaymentProcessorAlwaysFail

	_, err := fix.service.Submit(context.Background(), submitInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePayment {
		t.Fatalf("expected payment error, got %v", err)
	}
	if fix.orders.order.Status != enums.OrderStatusFailed {
		t.Fatalf("expected failed order, got %s", fix.orders.order.Status)
	}
	if fix.notifications.confirmations != 0 {
		t.Fatal("declined payments must not send confirmations")
	}
}

func TestSubmitCartConflictWhenEnvelopeRevealed(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	startedOrder(fix, types.EnvelopeCart{5: 1, 9: 1})
	fix.raffle.used = map[int]struct{}{9: {}}

	_, err := fix.service.Submit(context.Background(), submitInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCartConflict {
		t.Fatalf("expected cart conflict, got %v", err)
	}
	// The order itself is already reconciled so a retry can succeed.
	if _, ok := fix.orders.order.Cart[9]; ok {
		t.Fatal("conflicting envelope should already be gone from the order")
	}
}

func TestSubmitRejectsExpiredSession(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	startedOrder(fix, types.EnvelopeCart{5: 1})
	fix.orders.abandoned = true

	_, err := fix.service.Submit(context.Background(), submitInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestSubmitRequiresAcceptedTerms(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	startedOrder(fix, types.EnvelopeCart{5: 1})

	input := submitInput()
	input.AcceptedTerms = false

	_, err := fix.service.Submit(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitRejectsEmptyCart(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	startedOrder(fix, types.EnvelopeCart{})

	_, err := fix.service.Submit(context.Background(), submitInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitRejectsCompletedOrder(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	order := startedOrder(fix, types.EnvelopeCart{5: 1})
	order.Status = enums.OrderStatusCompleted

	_, err := fix.service.Submit(context.Background(), submitInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestSubmitAuditsCaptureWithoutCompletion(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	startedOrder(fix, types.EnvelopeCart{5: 1})
	fix.orders.failCompletion = true

	_, err := fix.service.Submit(context.Background(), submitInput())
	if err == nil {
		t.Fatal("expected error when completion write fails")
	}
	if len(fix.audit.messages) != 1 {
		t.Fatalf("expected one audit record, got %v", fix.audit.messages)
	}
	if fix.audit.messages[0] != "payment captured but order could not be completed" {
		t.Fatalf("unexpected audit message: %q", fix.audit.messages[0])
	}
}

func TestSubmitReusesExistingPaymentReference(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	order := startedOrder(fix, types.EnvelopeCart{5: 1})
	existing := "test_existing"
	order.PaymentReference = &existing

	result, err := fix.service.Submit(context.Background(), submitInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// The sync updates the existing intent in place: same reference, and the
	// re-synced result is persisted.
	if result.Reference != existing {
		t.Fatalf("expected reference %q preserved, got %q", existing, result.Reference)
	}
	if fix.orders.payment == nil || fix.orders.payment.Reference != existing {
		t.Fatalf("re-synced payment not recorded: %+v", fix.orders.payment)
	}
}

func TestSubmitResyncsAmountBeforeCapture(t *testing.T) {
	fix := newCheckoutFixture(t, enums.PaymentProcessorAlwaysSucceed)
	order := startedOrder(fix, types.EnvelopeCart{5: 2})
	order.PaymentProcessor = enums.PaymentProcessorStripe

	// The intent was created for an earlier one-ticket cart and the amount
	// sync after the cart edit never landed.
	existing := "pi_stale"
	order.PaymentReference = &existing
	order.TotalAmount = decimal.RequireFromString("20.00")

	result, err := fix.service.Submit(context.Background(), submitInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if fix.gateway.syncs != 1 {
		t.Fatalf("expected the intent to be re-synced, got %d syncs", fix.gateway.syncs)
	}
	if !fix.gateway.lastSync.Amount.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("stale amount pushed to processor: %s", fix.gateway.lastSync.Amount)
	}
	if fix.gateway.lastSync.Reference != existing {
		t.Fatalf("expected in-place update of %q, got %q", existing, fix.gateway.lastSync.Reference)
	}
	if result.Reference != existing {
		t.Fatalf("reference changed across sync: %q", result.Reference)
	}
}
