package raffle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/pkg/db/models"
)

// Repository defines persistence operations for raffle sessions and their
// envelopes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSessionByID(ctx context.Context, id uuid.UUID) (*models.RaffleSession, error)
	FindOpenSession(ctx context.Context, at time.Time) (*models.RaffleSession, error)
	ListRevealedEnvelopes(ctx context.Context, sessionID uuid.UUID) ([]int, error)
	ListBenefactorTerms(ctx context.Context, sessionID uuid.UUID) ([]models.BenefactorTerm, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a raffle repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSessionByID(ctx context.Context, id uuid.UUID) (*models.RaffleSession, error) {
	var session models.RaffleSession
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindOpenSession(ctx context.Context, at time.Time) (*models.RaffleSession, error) {
	var session models.RaffleSession
	err := r.db.WithContext(ctx).
		Where("opens_at <= ? AND closes_at > ?", at, at).
		Order("opens_at DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) ListRevealedEnvelopes(ctx context.Context, sessionID uuid.UUID) ([]int, error) {
	var numbers []int
	err := r.db.WithContext(ctx).
		Model(&models.Envelope{}).
		Where("session_id = ?", sessionID).
		Where("revealed_at IS NOT NULL").
		Order("number ASC").
		Pluck("number", &numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *repository) ListBenefactorTerms(ctx context.Context, sessionID uuid.UUID) ([]models.BenefactorTerm, error) {
	var terms []models.BenefactorTerm
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("term_id ASC").
		Find(&terms).Error
	if err != nil {
		return nil, err
	}
	return terms, nil
}
