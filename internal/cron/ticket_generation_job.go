package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/internal/orders"
	"github.com/acecharity/raffle-backend/pkg/db/models"
	"github.com/acecharity/raffle-backend/pkg/enums"
	"github.com/acecharity/raffle-backend/pkg/logger"
	"github.com/acecharity/raffle-backend/pkg/metrics"
	"github.com/acecharity/raffle-backend/pkg/types"
)

const (
	ticketGenerationJobName = "ticket-generation"
	defaultGenerationBatch  = 25
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ticketReconciler interface {
	Reconcile(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, cart types.EnvelopeCart) (int, error)
}

type ticketDispatcher interface {
	SendTicketDelivery(ctx context.Context, orderID string, orderNumber int64, ticketCount int) error
}

type generationAuditSink interface {
	Record(ctx context.Context, kind enums.AuditKind, message string, orderID *uuid.UUID, details types.JSONMap)
}

// TicketGenerationJob materializes tickets for completed orders. Each order
// is claimed with a conditional update first, so overlapping workers never
// generate for the same order twice.
type TicketGenerationJob struct {
	repo          orders.Repository
	tx            txRunner
	reconciler    ticketReconciler
	notifications ticketDispatcher
	audit         generationAuditSink
	metrics       *metrics.JobMetrics
	logg          *logger.Logger
	batchSize     int
}

// TicketGenerationJobParams configure the job.
type TicketGenerationJobParams struct {
	Repo          orders.Repository
	Tx            txRunner
	Reconciler    ticketReconciler
	Notifications ticketDispatcher
	Audit         generationAuditSink
	Metrics       *metrics.JobMetrics
	Logger        *logger.Logger
	BatchSize     int
}

// NewTicketGenerationJob builds the ticket generation job.
func NewTicketGenerationJob(params TicketGenerationJobParams) (*TicketGenerationJob, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("ticket reconciler required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultGenerationBatch
	}
	return &TicketGenerationJob{
		repo:          params.Repo,
		tx:            params.Tx,
		reconciler:    params.Reconciler,
		notifications: params.Notifications,
		audit:         params.Audit,
		metrics:       params.Metrics,
		logg:          params.Logger,
		batchSize:     batch,
	}, nil
}

func (j *TicketGenerationJob) Name() string {
	return ticketGenerationJobName
}

func (j *TicketGenerationJob) Run(ctx context.Context) error {
	candidates, err := j.repo.FindGenerationCandidates(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("listing generation candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	var errs error
	generated := 0
	for i := range candidates {
		order := candidates[i]
		if err := j.processOrder(ctx, &order); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %d: %w", order.OrderNumber, err))
			continue
		}
		generated++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"generated":  generated,
	})
	j.logg.Info(logCtx, "ticket generation batch finished")
	return errs
}

func (j *TicketGenerationJob) processOrder(ctx context.Context, order *models.Order) error {
	claimed, err := j.repo.ClaimForTicketGeneration(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("claiming: %w", err)
	}
	if !claimed {
		// Another worker got here first, or the order moved on.
		j.logg.Info(j.logg.WithOrderNumber(ctx, order.OrderNumber), "order already claimed; skipping")
		return nil
	}

	inserted := 0
	err = j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		count, reconcileErr := j.reconciler.Reconcile(ctx, tx, order.ID, order.Cart)
		if reconcileErr != nil {
			return reconcileErr
		}
		inserted = count

		txRepo := j.repo.WithTx(tx)
		message := fmt.Sprintf("Generated %d ticket(s).", count)
		if count == 0 {
			message = "All tickets were already generated."
		}
		if logErr := txRepo.AppendLog(ctx, order.ID, message); logErr != nil {
			return logErr
		}
		return txRepo.SetTicketStatus(ctx, order.ID, enums.TicketStatusGenerated)
	})
	if err != nil {
		if j.audit != nil {
			j.audit.Record(ctx, enums.AuditKindStorage,
				"ticket generation failed; order requeued",
				&order.ID, types.JSONMap{
					"error":            err.Error(),
					"order_number":     order.OrderNumber,
					"cart":             order.Cart,
					"tickets_expected": order.Cart.TotalQuantity(),
				})
		}
		// Put the order back in the queue for the next cycle.
		if resetErr := j.repo.SetTicketStatus(ctx, order.ID, enums.TicketStatusGenerate); resetErr != nil {
			err = multierr.Append(err, fmt.Errorf("requeueing: %w", resetErr))
		}
		return err
	}

	if j.metrics != nil && inserted > 0 {
		j.metrics.AddTicketsGenerated(ticketGenerationJobName, inserted)
	}

	if j.notifications != nil {
		total := order.Cart.TotalQuantity()
		if notifyErr := j.notifications.SendTicketDelivery(ctx, order.ID.String(), order.OrderNumber, total); notifyErr != nil {
			j.logg.Error(j.logg.WithOrderNumber(ctx, order.OrderNumber),
				"failed to send ticket delivery notification", notifyErr)
		}
	}
	return nil
}
