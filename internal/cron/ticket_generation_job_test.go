package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/internal/orders"
	"github.com/acecharity/raffle-backend/pkg/db/models"
	"github.com/acecharity/raffle-backend/pkg/enums"
	"github.com/acecharity/raffle-backend/pkg/logger"
	"github.com/acecharity/raffle-backend/pkg/types"
)

func testJobLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubGenerationRepo struct {
	candidates []models.Order

	claims        map[uuid.UUID]bool
	claimResults  map[uuid.UUID]bool
	ticketStatus  map[uuid.UUID]enums.TicketStatus
	loggedByOrder map[uuid.UUID][]string
}

func newStubGenerationRepo(candidates ...models.Order) *stubGenerationRepo {
	return &stubGenerationRepo{
		candidates:    candidates,
		claims:        map[uuid.UUID]bool{},
		claimResults:  map[uuid.UUID]bool{},
		ticketStatus:  map[uuid.UUID]enums.TicketStatus{},
		loggedByOrder: map[uuid.UUID][]string{},
	}
}

func (s *stubGenerationRepo) WithTx(_ *gorm.DB) orders.Repository { return s }

func (s *stubGenerationRepo) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (s *stubGenerationRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubGenerationRepo) FindByKey(_ context.Context, _ string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubGenerationRepo) FindByNumber(_ context.Context, _ int64) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubGenerationRepo) Update(_ context.Context, _ uuid.UUID, _ map[string]any) error {
	return nil
}

func (s *stubGenerationRepo) UpdateStatus(_ context.Context, _ uuid.UUID, _ enums.OrderStatus) error {
	return nil
}

func (s *stubGenerationRepo) AppendLog(_ context.Context, id uuid.UUID, messages ...string) error {
	s.loggedByOrder[id] = append(s.loggedByOrder[id], messages...)
	return nil
}

func (s *stubGenerationRepo) ListLog(_ context.Context, _ uuid.UUID) ([]models.OrderLogEntry, error) {
	return nil, nil
}

func (s *stubGenerationRepo) FindGenerationCandidates(_ context.Context, limit int) ([]models.Order, error) {
	if limit > 0 && len(s.candidates) > limit {
		return s.candidates[:limit], nil
	}
	return s.candidates, nil
}

func (s *stubGenerationRepo) ClaimForTicketGeneration(_ context.Context, id uuid.UUID) (bool, error) {
	if s.claims[id] {
		return false, nil
	}
	if won, ok := s.claimResults[id]; ok && !won {
		return false, nil
	}
	s.claims[id] = true
	s.ticketStatus[id] = enums.TicketStatusInProcess
	return true, nil
}

func (s *stubGenerationRepo) SetTicketStatus(_ context.Context, id uuid.UUID, status enums.TicketStatus) error {
	s.ticketStatus[id] = status
	return nil
}

func (s *stubGenerationRepo) FindStartedBefore(_ context.Context, _ time.Time, _ int) ([]models.Order, error) {
	return nil, nil
}

type fakeJobTxRunner struct{}

func (fakeJobTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeReconciler struct {
	inserted int
	err      error
	calls    int
}

func (f *fakeReconciler) Reconcile(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ types.EnvelopeCart) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.inserted, nil
}

type fakeTicketDispatcher struct {
	deliveries int
	lastCount  int
}

func (f *fakeTicketDispatcher) SendTicketDelivery(_ context.Context, _ string, _ int64, ticketCount int) error {
	f.deliveries++
	f.lastCount = ticketCount
	return nil
}

type fakeAuditSink struct {
	kinds    []enums.AuditKind
	messages []string
	details  []types.JSONMap
}

func (f *fakeAuditSink) Record(_ context.Context, kind enums.AuditKind, message string, _ *uuid.UUID, details types.JSONMap) {
	f.kinds = append(f.kinds, kind)
	f.messages = append(f.messages, message)
	f.details = append(f.details, details)
}

func generationOrder(cart types.EnvelopeCart) models.Order {
	return models.Order{
		ID:           uuid.New(),
		OrderNumber:  1001,
		Cart:         cart,
		Status:       enums.OrderStatusCompleted,
		TicketStatus: enums.TicketStatusNotGenerated,
	}
}

func TestTicketGenerationProcessesClaimedOrder(t *testing.T) {
	order := generationOrder(types.EnvelopeCart{5: 2, 12: 1})
	repo := newStubGenerationRepo(order)
	reconciler := &fakeReconciler{inserted: 3}
	dispatcher := &fakeTicketDispatcher{}

	job, err := NewTicketGenerationJob(TicketGenerationJobParams{
		Repo:          repo,
		Tx:            fakeJobTxRunner{},
		Reconciler:    reconciler,
		Notifications: dispatcher,
		Logger:        testJobLogger(),
	})
	if err != nil {
		t.Fatalf("NewTicketGenerationJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reconciler.calls != 1 {
		t.Fatalf("expected one reconcile call, got %d", reconciler.calls)
	}
	if repo.ticketStatus[order.ID] != enums.TicketStatusGenerated {
		t.Fatalf("expected generated status, got %s", repo.ticketStatus[order.ID])
	}
	logLines := repo.loggedByOrder[order.ID]
	if len(logLines) != 1 || logLines[0] != "Generated 3 ticket(s)." {
		t.Fatalf("unexpected log lines: %v", logLines)
	}
	if dispatcher.deliveries != 1 || dispatcher.lastCount != 3 {
		t.Fatalf("expected one delivery for 3 tickets, got %+v", dispatcher)
	}
}

func TestTicketGenerationSkipsLostClaim(t *testing.T) {
	order := generationOrder(types.EnvelopeCart{5: 1})
	repo := newStubGenerationRepo(order)
	repo.claimResults[order.ID] = false
	reconciler := &fakeReconciler{inserted: 1}

	job, err := NewTicketGenerationJob(TicketGenerationJobParams{
		Repo:       repo,
		Tx:         fakeJobTxRunner{},
		Reconciler: reconciler,
		Logger:     testJobLogger(),
	})
	if err != nil {
		t.Fatalf("NewTicketGenerationJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reconciler.calls != 0 {
		t.Fatal("lost claim must not reach the reconciler")
	}
}

func TestTicketGenerationRequeuesOnFailure(t *testing.T) {
	order := generationOrder(types.EnvelopeCart{5: 1})
	repo := newStubGenerationRepo(order)
	reconciler := &fakeReconciler{err: errors.New("insert failed")}
	audit := &fakeAuditSink{}

	job, err := NewTicketGenerationJob(TicketGenerationJobParams{
		Repo:       repo,
		Tx:         fakeJobTxRunner{},
		Reconciler: reconciler,
		Audit:      audit,
		Logger:     testJobLogger(),
	})
	if err != nil {
		t.Fatalf("NewTicketGenerationJob: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected aggregated error")
	}
	if repo.ticketStatus[order.ID] != enums.TicketStatusGenerate {
		t.Fatalf("expected order to be requeued, got %s", repo.ticketStatus[order.ID])
	}
	if len(audit.kinds) != 1 || audit.kinds[0] != enums.AuditKindStorage {
		t.Fatalf("expected one storage audit record, got %v", audit.kinds)
	}
	details := audit.details[0]
	if details["error"] != "insert failed" {
		t.Fatalf("expected reconcile error in audit details, got %v", details["error"])
	}
	if details["order_number"] != order.OrderNumber {
		t.Fatalf("expected order number in audit details, got %v", details["order_number"])
	}
	if details["tickets_expected"] != 1 {
		t.Fatalf("expected ticket count in audit details, got %v", details["tickets_expected"])
	}
	if _, ok := details["cart"].(types.EnvelopeCart); !ok {
		t.Fatalf("expected cart snapshot in audit details, got %T", details["cart"])
	}
}

func TestTicketGenerationLogsIdempotentRun(t *testing.T) {
	order := generationOrder(types.EnvelopeCart{5: 1})
	repo := newStubGenerationRepo(order)
	reconciler := &fakeReconciler{inserted: 0}
	dispatcher := &fakeTicketDispatcher{}

	job, err := NewTicketGenerationJob(TicketGenerationJobParams{
		Repo:          repo,
		Tx:            fakeJobTxRunner{},
		Reconciler:    reconciler,
		Notifications: dispatcher,
		Logger:        testJobLogger(),
	})
	if err != nil {
		t.Fatalf("NewTicketGenerationJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	logLines := repo.loggedByOrder[order.ID]
	if len(logLines) != 1 || logLines[0] != "All tickets were already generated." {
		t.Fatalf("unexpected log lines: %v", logLines)
	}
	if repo.ticketStatus[order.ID] != enums.TicketStatusGenerated {
		t.Fatalf("expected generated status, got %s", repo.ticketStatus[order.ID])
	}
}
