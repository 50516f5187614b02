package cron

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/internal/orders"
	"github.com/acecharity/raffle-backend/internal/tickets"
	"github.com/acecharity/raffle-backend/pkg/enums"
	"github.com/acecharity/raffle-backend/pkg/types"
)

type gormTestTxRunner struct {
	db *gorm.DB
}

func (r gormTestTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type noopLease struct{}

func (noopLease) Touch(context.Context, int64) error         { return nil }
func (noopLease) Alive(context.Context, int64) (bool, error) { return true, nil }
func (noopLease) Clear(context.Context, int64) error         { return nil }

func setupFlowDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number INTEGER NOT NULL UNIQUE,
  order_key TEXT NOT NULL UNIQUE,
  session_id TEXT NOT NULL,
  cart TEXT NOT NULL,
  total_amount NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'cad',
  status TEXT NOT NULL DEFAULT 'started',
  first_name TEXT,
  last_name TEXT,
  email TEXT,
  phone TEXT,
  location TEXT,
  benefactor_term_id INTEGER,
  terms_accepted_at DATETIME,
  terms_url TEXT,
  payment_processor TEXT,
  payment_reference TEXT,
  payment_client_secret TEXT,
  ticket_status TEXT NOT NULL DEFAULT 'not_generated',
  created_at DATETIME,
  updated_at DATETIME
)`,
		`CREATE TABLE order_log_entries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id TEXT NOT NULL,
  at DATETIME,
  message TEXT NOT NULL
)`,
		`CREATE TABLE tickets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id TEXT NOT NULL,
  envelope_number INTEGER NOT NULL,
  created_at DATETIME
)`,
		`CREATE TABLE order_number_sequences (id INTEGER PRIMARY KEY, value INTEGER NOT NULL)`,
		`INSERT INTO order_number_sequences (id, value) VALUES (1, 1000)`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

// Walks one order through the whole pipeline against a real database: create,
// record the payment intent, complete, then let the worker materialize
// tickets.
func TestCompletedOrderFlowsThroughTicketGeneration(t *testing.T) {
	db := setupFlowDB(t)
	ctx := context.Background()

	ordersRepo := orders.NewRepository(db)
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:      ordersRepo,
		Tx:        gormTestTxRunner{db: db},
		Allocator: orders.NewSequenceAllocator(),
		Lease:     noopLease{},
		Logger:    testJobLogger(),
	})
	require.NoError(t, err)

	order, err := ordersService.CreateOrder(ctx, orders.CreateOrderInput{
		SessionID:   uuid.New(),
		Cart:        types.EnvelopeCart{5: 1},
		TotalAmount: decimal.RequireFromString("10.00"),
		Currency:    enums.CurrencyCAD,
		Processor:   enums.PaymentProcessorStripe,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1001), order.OrderNumber)

	require.NoError(t, ordersService.RecordPayment(ctx, order.ID, orders.PaymentSyncResult{
		Reference:    "pi_flow_1",
		ClientSecret: "pi_flow_1_secret",
	}))
	require.NoError(t, ordersService.SetStatus(ctx, order.ID, enums.OrderStatusInProcess, "payment submitted"))
	require.NoError(t, ordersService.SetStatus(ctx, order.ID, enums.OrderStatusCompleted, "payment captured"))

	ticketsRepo := tickets.NewRepository(db)
	reconciler, err := tickets.NewReconciler(tickets.ReconcilerParams{Repo: ticketsRepo})
	require.NoError(t, err)

	dispatcher := &fakeTicketDispatcher{}
	job, err := NewTicketGenerationJob(TicketGenerationJobParams{
		Repo:          ordersRepo,
		Tx:            gormTestTxRunner{db: db},
		Reconciler:    reconciler,
		Notifications: dispatcher,
		Logger:        testJobLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(ctx))

	rows, err := ticketsRepo.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].EnvelopeNumber)

	stored, err := ordersRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, stored.Status)
	assert.Equal(t, enums.TicketStatusGenerated, stored.TicketStatus)
	require.NotNil(t, stored.PaymentReference)
	assert.Equal(t, "pi_flow_1", *stored.PaymentReference)
	assert.Equal(t, 1, dispatcher.deliveries)

	// Re-running the worker must not duplicate tickets.
	require.NoError(t, job.Run(ctx))
	rows, err = ticketsRepo.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
