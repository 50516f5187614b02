package tickets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/pkg/db/models"
)

// Repository defines persistence operations for generated tickets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CountsByEnvelope(ctx context.Context, orderID uuid.UUID) (map[int]int, error)
	InsertBatch(ctx context.Context, tickets []models.Ticket, chunkSize int) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Ticket, error)
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a tickets repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

type envelopeCount struct {
	EnvelopeNumber int `gorm:"column:envelope_number"`
	Count          int `gorm:"column:count"`
}

// CountsByEnvelope returns how many tickets already exist per envelope for an
// order. The generation worker diffs this against the cart to stay idempotent.
func (r *repository) CountsByEnvelope(ctx context.Context, orderID uuid.UUID) (map[int]int, error) {
	var rows []envelopeCount
	err := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Select("envelope_number, COUNT(*) AS count").
		Where("order_id = ?", orderID).
		Group("envelope_number").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[int]int, len(rows))
	for _, row := range rows {
		counts[row.EnvelopeNumber] = row.Count
	}
	return counts, nil
}

func (r *repository) InsertBatch(ctx context.Context, tickets []models.Ticket, chunkSize int) error {
	if len(tickets) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = len(tickets)
	}
	return r.db.WithContext(ctx).CreateInBatches(tickets, chunkSize).Error
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("envelope_number ASC, id ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *repository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Joins("JOIN orders ON orders.id = tickets.order_id").
		Where("orders.session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
