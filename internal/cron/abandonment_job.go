package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/acecharity/raffle-backend/pkg/db/models"
	"github.com/acecharity/raffle-backend/pkg/logger"
)

const (
	abandonmentJobName      = "abandonment-sweep"
	defaultAbandonmentBatch = 100
	defaultAbandonmentAge   = time.Hour
)

type staleOrderReader interface {
	FindStartedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type leaseReconciler interface {
	ReconcileLease(ctx context.Context, order *models.Order) (bool, error)
}

// AbandonmentJob sweeps started orders whose activity lease has expired.
// The lease check lives in the orders service; this job only feeds it
// candidates old enough to matter.
type AbandonmentJob struct {
	reader    staleOrderReader
	orders    leaseReconciler
	logg      *logger.Logger
	batchSize int
	minAge    time.Duration
	now       func() time.Time
}

// AbandonmentJobParams configure the sweep.
type AbandonmentJobParams struct {
	Reader    staleOrderReader
	Orders    leaseReconciler
	Logger    *logger.Logger
	BatchSize int
	MinAge    time.Duration
}

// NewAbandonmentJob builds the abandonment sweep job.
func NewAbandonmentJob(params AbandonmentJobParams) (*AbandonmentJob, error) {
	if params.Reader == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultAbandonmentBatch
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultAbandonmentAge
	}
	return &AbandonmentJob{
		reader:    params.Reader,
		orders:    params.Orders,
		logg:      params.Logger,
		batchSize: batch,
		minAge:    minAge,
		now:       time.Now,
	}, nil
}

func (j *AbandonmentJob) Name() string {
	return abandonmentJobName
}

func (j *AbandonmentJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.minAge)
	stale, err := j.reader.FindStartedBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("listing stale orders: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var errs error
	swept := 0
	for i := range stale {
		order := stale[i]
		abandoned, reconcileErr := j.orders.ReconcileLease(ctx, &order)
		if reconcileErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %d: %w", order.OrderNumber, reconcileErr))
			continue
		}
		if abandoned {
			swept++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"abandoned":  swept,
	})
	j.logg.Info(logCtx, "abandonment sweep finished")
	return errs
}
