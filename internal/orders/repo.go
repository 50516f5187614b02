package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/pkg/db/models"
	"github.com/acecharity/raffle-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByKey(ctx context.Context, orderKey string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("order_key = ?", orderKey).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.Update(ctx, id, map[string]any{"status": status})
}

func (r *repository) AppendLog(ctx context.Context, id uuid.UUID, messages ...string) error {
	if len(messages) == 0 {
		return nil
	}
	entries := make([]models.OrderLogEntry, 0, len(messages))
	for _, message := range messages {
		if message == "" {
			continue
		}
		entries = append(entries, models.OrderLogEntry{OrderID: id, Message: message})
	}
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListLog(ctx context.Context, id uuid.UUID) ([]models.OrderLogEntry, error) {
	var entries []models.OrderLogEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", id).
		Order("at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) FindGenerationCandidates(ctx context.Context, limit int) ([]models.Order, error) {
	var candidates []models.Order
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.OrderStatusCompleted).
		Where("(ticket_status IN ? OR ticket_status IS NULL)", enums.PendingTicketStatuses()).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

// ClaimForTicketGeneration performs the compare-and-swap claim for the ticket
// worker. The WHERE clause repeats the pending predicate so two concurrent
// workers can never both win: the loser's update matches zero rows.
func (r *repository) ClaimForTicketGeneration(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Where("status = ?", enums.OrderStatusCompleted).
		Where("(ticket_status IN ? OR ticket_status IS NULL)", enums.PendingTicketStatuses()).
		Update("ticket_status", enums.TicketStatusInProcess)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetTicketStatus(ctx context.Context, id uuid.UUID, status enums.TicketStatus) error {
	return r.Update(ctx, id, map[string]any{"ticket_status": status})
}

func (r *repository) FindStartedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var stale []models.Order
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.OrderStatusStarted).
		Where("created_at < ?", cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&stale).Error; err != nil {
		return nil, err
	}
	return stale, nil
}
