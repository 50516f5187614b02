package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/pkg/db/models"
	"github.com/acecharity/raffle-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByKey(ctx context.Context, orderKey string) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber int64) (*models.Order, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	AppendLog(ctx context.Context, id uuid.UUID, messages ...string) error
	ListLog(ctx context.Context, id uuid.UUID) ([]models.OrderLogEntry, error)
	FindGenerationCandidates(ctx context.Context, limit int) ([]models.Order, error)
	ClaimForTicketGeneration(ctx context.Context, id uuid.UUID) (bool, error)
	SetTicketStatus(ctx context.Context, id uuid.UUID, status enums.TicketStatus) error
	FindStartedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// NumberAllocator hands out strictly increasing order numbers. Next must be
// called inside the order-creation transaction so a rollback never burns a
// number silently out of sequence with the insert.
type NumberAllocator interface {
	Next(ctx context.Context, tx *gorm.DB) (int64, error)
}
