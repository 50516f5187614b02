package orders

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/pkg/db/models"
	"github.com/acecharity/raffle-backend/pkg/enums"
	pkgerrors "github.com/acecharity/raffle-backend/pkg/errors"
	"github.com/acecharity/raffle-backend/pkg/logger"
	"github.com/acecharity/raffle-backend/pkg/types"
)

const (
	orderKeyBytes      = 24
	defaultSweepMinAge = time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentSyncer keeps the processor-side payment intent aligned with the
// order's cart total. Implemented by the checkout layer over the processor
// registry.
type PaymentSyncer interface {
	Sync(ctx context.Context, order *models.Order) (PaymentSyncResult, error)
}

// PaymentRefunder reverses a captured payment.
type PaymentRefunder interface {
	Refund(ctx context.Context, order *models.Order) (string, error)
}

type leaseManager interface {
	Touch(ctx context.Context, orderNumber int64) error
	Alive(ctx context.Context, orderNumber int64) (bool, error)
	Clear(ctx context.Context, orderNumber int64) error
}

type auditSink interface {
	Record(ctx context.Context, kind enums.AuditKind, message string, orderID *uuid.UUID, details types.JSONMap)
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByKey(ctx context.Context, orderKey string) (*models.Order, error)
	UpdateCart(ctx context.Context, input UpdateCartInput) (*models.Order, error)
	UpdateCustomer(ctx context.Context, orderID uuid.UUID, input CustomerInput) error
	RecordPayment(ctx context.Context, orderID uuid.UUID, result PaymentSyncResult) error
	SetStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, reason string) error
	Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Touch(ctx context.Context, order *models.Order) error
	ReconcileLease(ctx context.Context, order *models.Order) (bool, error)
	ListLog(ctx context.Context, orderID uuid.UUID) ([]models.OrderLogEntry, error)
}

// ServiceParams configure the orders service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Allocator NumberAllocator
	Lease     leaseManager
	Payments  PaymentSyncer
	Refunder  PaymentRefunder
	Audit     auditSink
	Logger    *logger.Logger
	// SweepMinAge guards freshly created orders from lease reconciliation
	// racing the first lease write.
	SweepMinAge time.Duration
}

type service struct {
	repo        Repository
	tx          txRunner
	allocator   NumberAllocator
	lease       leaseManager
	payments    PaymentSyncer
	refunder    PaymentRefunder
	audit       auditSink
	logg        *logger.Logger
	sweepMinAge time.Duration
}

// NewService builds an orders service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Allocator == nil {
		return nil, fmt.Errorf("order number allocator required")
	}
	if params.Lease == nil {
		return nil, fmt.Errorf("lease manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	minAge := params.SweepMinAge
	if minAge <= 0 {
		minAge = defaultSweepMinAge
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		allocator:   params.Allocator,
		lease:       params.Lease,
		payments:    params.Payments,
		refunder:    params.Refunder,
		audit:       params.Audit,
		logg:        params.Logger,
		sweepMinAge: minAge,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.SessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "raffle session required")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}

	orderKey, err := newOrderKey()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating order key")
	}

	order := &models.Order{
		OrderKey:         orderKey,
		SessionID:        input.SessionID,
		Cart:             input.Cart.Clone(),
		TotalAmount:      input.TotalAmount,
		Currency:         input.Currency,
		Status:           enums.OrderStatusStarted,
		TicketStatus:     enums.TicketStatusNotGenerated,
		PaymentProcessor: input.Processor,
	}
	if order.Cart == nil {
		order.Cart = types.EnvelopeCart{}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		number, allocErr := s.allocator.Next(ctx, tx)
		if allocErr != nil {
			return allocErr
		}
		order.OrderNumber = number

		txRepo := s.repo.WithTx(tx)
		if _, createErr := txRepo.Create(ctx, order); createErr != nil {
			return createErr
		}
		created := fmt.Sprintf("Order #%d created with %d ticket(s) across %d envelope(s).",
			order.OrderNumber, order.Cart.TotalQuantity(), len(order.Cart))
		return txRepo.AppendLog(ctx, order.ID, created)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
	}

	if leaseErr := s.lease.Touch(ctx, order.OrderNumber); leaseErr != nil {
		s.logg.Warn(s.logg.WithOrderNumber(ctx, order.OrderNumber), "failed to write activity lease")
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithOrderNumber(logCtx, order.OrderNumber)
	s.logg.Info(logCtx, "order created")
	return order, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "order not found")
	}
	return order, nil
}

func (s *service) GetByKey(ctx context.Context, orderKey string) (*models.Order, error) {
	if orderKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order key required")
	}
	order, err := s.repo.FindByKey(ctx, orderKey)
	if err != nil {
		return nil, notFoundOr(err, "order not found")
	}
	return order, nil
}

// UpdateCart replaces the cart snapshot, writes a human-readable log line per
// difference, and pushes the new total to the payment processor when a payment
// intent already exists.
func (s *service) UpdateCart(ctx context.Context, input UpdateCartInput) (*models.Order, error) {
	order, err := s.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusStarted && order.Status != enums.OrderStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cart is locked while the order is %s", order.Status))
	}

	messages := append([]string{}, input.Warnings...)
	messages = append(messages, cartDiffMessages(order.Cart, input.Cart)...)

	// Editing the cart of a failed order restarts the attempt.
	restarted := order.Status == enums.OrderStatusFailed
	if restarted {
		messages = append(messages, fmt.Sprintf(
			"Order status changed from %s to %s. Reason: cart updated.",
			enums.OrderStatusFailed, enums.OrderStatusStarted))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		updates := map[string]any{
			"cart":         input.Cart,
			"total_amount": input.TotalAmount,
		}
		if restarted {
			updates["status"] = enums.OrderStatusStarted
		}
		if updateErr := txRepo.Update(ctx, order.ID, updates); updateErr != nil {
			return updateErr
		}
		return txRepo.AppendLog(ctx, order.ID, messages...)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating cart")
	}

	order.Cart = input.Cart.Clone()
	order.TotalAmount = input.TotalAmount
	if restarted {
		order.Status = enums.OrderStatusStarted
	}

	if s.payments != nil && order.PaymentReference != nil && *order.PaymentReference != "" {
		result, syncErr := s.payments.Sync(ctx, order)
		if syncErr != nil {
			// The new total is committed but the provider still holds the old
			// amount. Record it so the drift is visible; submission re-syncs
			// before confirming.
			if s.audit != nil {
				s.audit.Record(ctx, enums.AuditKindPayment,
					"payment amount sync failed after cart update",
					&order.ID, types.JSONMap{
						"error":        syncErr.Error(),
						"total_amount": order.TotalAmount.StringFixed(2),
						"reference":    *order.PaymentReference,
					})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodePayment, syncErr, "synchronizing payment")
		}
		if recordErr := s.RecordPayment(ctx, order.ID, result); recordErr != nil {
			return nil, recordErr
		}
		order.PaymentReference = &result.Reference
		order.PaymentClientSecret = &result.ClientSecret
	}

	return order, nil
}

func (s *service) UpdateCustomer(ctx context.Context, orderID uuid.UUID, input CustomerInput) error {
	updates := map[string]any{
		"first_name": input.FirstName,
		"last_name":  input.LastName,
		"email":      input.Email,
		"phone":      input.Phone,
		"location":   input.Location,
	}
	if input.BenefactorTermID != nil {
		updates["benefactor_term_id"] = *input.BenefactorTermID
	}
	if !input.TermsAcceptedAt.IsZero() {
		updates["terms_accepted_at"] = input.TermsAcceptedAt
		updates["terms_url"] = input.TermsURL
	}
	if err := s.repo.Update(ctx, orderID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating customer details")
	}
	return nil
}

// RecordPayment persists the processor's view of the order without ever
// clearing an existing reference: failed intents are retried in place.
func (s *service) RecordPayment(ctx context.Context, orderID uuid.UUID, result PaymentSyncResult) error {
	if result.Reference == "" {
		return pkgerrors.New(pkgerrors.CodePayment, "payment reference missing from processor response")
	}
	updates := map[string]any{
		"payment_reference":     result.Reference,
		"payment_client_secret": result.ClientSecret,
	}
	if err := s.repo.Update(ctx, orderID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording payment reference")
	}
	return nil
}

func (s *service) SetStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, reason string) error {
	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == to {
		return nil
	}
	if !CanTransition(order.Status, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order cannot move from %s to %s", order.Status, to))
	}

	message := fmt.Sprintf("Order status changed from %s to %s.", order.Status, to)
	if reason != "" {
		message = fmt.Sprintf("%s Reason: %s.", message, reason)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if updateErr := txRepo.UpdateStatus(ctx, orderID, to); updateErr != nil {
			return updateErr
		}
		return txRepo.AppendLog(ctx, orderID, message)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order status")
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"from": order.Status, "to": to})
	s.logg.Info(logCtx, "order status changed")
	return nil
}

func (s *service) Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.refunder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "refunds are not configured")
	}
	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed orders can be refunded")
	}

	reference, err := s.refunder.Refund(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePayment, err, "refunding payment")
	}

	reason := fmt.Sprintf("refund %s issued", reference)
	if err := s.SetStatus(ctx, orderID, enums.OrderStatusRefunded, reason); err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusRefunded
	return order, nil
}

// Touch refreshes the checkout activity lease. Every customer-driven read or
// write of a started order should land here.
func (s *service) Touch(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order required")
	}
	if order.Status != enums.OrderStatusStarted && order.Status != enums.OrderStatusFailed {
		return nil
	}
	if err := s.lease.Touch(ctx, order.OrderNumber); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refreshing activity lease")
	}
	return nil
}

// ReconcileLease abandons a started order whose activity lease has expired.
// Both the sweeper and on-read checks funnel through here so the decision
// logic stays in one place. Returns true when the order was abandoned.
func (s *service) ReconcileLease(ctx context.Context, order *models.Order) (bool, error) {
	if order == nil || order.Status != enums.OrderStatusStarted {
		return false, nil
	}
	if time.Since(order.CreatedAt) < s.sweepMinAge {
		return false, nil
	}
	alive, err := s.lease.Alive(ctx, order.OrderNumber)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking activity lease")
	}
	if alive {
		return false, nil
	}

	if err := s.SetStatus(ctx, order.ID, enums.OrderStatusAbandoned, "checkout inactivity"); err != nil {
		return false, err
	}
	order.Status = enums.OrderStatusAbandoned
	if clearErr := s.lease.Clear(ctx, order.OrderNumber); clearErr != nil {
		s.logg.Warn(s.logg.WithOrderNumber(ctx, order.OrderNumber), "failed to clear activity lease")
	}
	return true, nil
}

func (s *service) ListLog(ctx context.Context, orderID uuid.UUID) ([]models.OrderLogEntry, error) {
	entries, err := s.repo.ListLog(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing order log")
	}
	return entries, nil
}

// cartDiffMessages renders the envelope-level differences between two cart
// snapshots in a stable order.
func cartDiffMessages(old, next types.EnvelopeCart) []string {
	var messages []string
	seen := map[int]bool{}
	for _, envelope := range old.Envelopes() {
		seen[envelope] = true
		before := old[envelope]
		after, ok := next[envelope]
		switch {
		case !ok || after == 0:
			messages = append(messages, fmt.Sprintf("Envelope #%d removed from the order.", envelope))
		case after != before:
			messages = append(messages, fmt.Sprintf("Envelope #%d quantity changed from %d to %d.", envelope, before, after))
		}
	}
	for _, envelope := range next.Envelopes() {
		if seen[envelope] {
			continue
		}
		messages = append(messages, fmt.Sprintf("Envelope #%d added with quantity %d.", envelope, next[envelope]))
	}
	return messages
}

func newOrderKey() (string, error) {
	buf := make([]byte, orderKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
}
