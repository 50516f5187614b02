package tickets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/pkg/db/models"
	"github.com/acecharity/raffle-backend/pkg/types"
)

const defaultInsertChunk = 250

// Reconciler materializes the tickets an order's cart promises. It only ever
// inserts the missing rows, so running it twice for the same order is a no-op.
type Reconciler struct {
	repo  Repository
	chunk int
}

// ReconcilerParams configure the ticket reconciler.
type ReconcilerParams struct {
	Repo        Repository
	InsertChunk int
}

// NewReconciler builds a ticket reconciler.
func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("tickets repository required")
	}
	chunk := params.InsertChunk
	if chunk <= 0 {
		chunk = defaultInsertChunk
	}
	return &Reconciler{repo: params.Repo, chunk: chunk}, nil
}

// Reconcile inserts the tickets the cart promises but the table lacks.
// Returns the number of rows inserted.
func (r *Reconciler) Reconcile(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, cart types.EnvelopeCart) (int, error) {
	repo := r.repo.WithTx(tx)

	existing, err := repo.CountsByEnvelope(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("counting existing tickets: %w", err)
	}

	var missing []models.Ticket
	for _, envelope := range cart.Envelopes() {
		needed := cart[envelope] - existing[envelope]
		for i := 0; i < needed; i++ {
			missing = append(missing, models.Ticket{
				OrderID:        orderID,
				EnvelopeNumber: envelope,
			})
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	if err := repo.InsertBatch(ctx, missing, r.chunk); err != nil {
		return 0, fmt.Errorf("inserting tickets: %w", err)
	}
	return len(missing), nil
}
