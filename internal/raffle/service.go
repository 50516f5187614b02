package raffle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/pkg/db/models"
	pkgerrors "github.com/acecharity/raffle-backend/pkg/errors"
)

// BenefactorTermAll means the donation is split across all benefactors rather
// than directed at one.
const BenefactorTermAll = 0

// Service exposes read operations over raffle sessions for checkout.
type Service interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.RaffleSession, error)
	GetOpenSession(ctx context.Context) (*models.RaffleSession, error)
	GetTicketPrice(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error)
	GetUsedEnvelopes(ctx context.Context, sessionID uuid.UUID) (map[int]struct{}, error)
	ListBenefactorTerms(ctx context.Context, sessionID uuid.UUID) ([]models.BenefactorTerm, error)
	ValidateBenefactorTerm(ctx context.Context, sessionID uuid.UUID, termID int) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a raffle service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("raffle repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) GetSession(ctx context.Context, id uuid.UUID) (*models.RaffleSession, error) {
	session, err := s.repo.FindSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "raffle session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading raffle session")
	}
	return session, nil
}

func (s *service) GetOpenSession(ctx context.Context) (*models.RaffleSession, error) {
	session, err := s.repo.FindOpenSession(ctx, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no raffle session is open")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading open raffle session")
	}
	return session, nil
}

func (s *service) GetTicketPrice(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}
	return session.TicketPrice, nil
}

func (s *service) GetUsedEnvelopes(ctx context.Context, sessionID uuid.UUID) (map[int]struct{}, error) {
	numbers, err := s.repo.ListRevealedEnvelopes(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing revealed envelopes")
	}
	used := make(map[int]struct{}, len(numbers))
	for _, number := range numbers {
		used[number] = struct{}{}
	}
	return used, nil
}

func (s *service) ListBenefactorTerms(ctx context.Context, sessionID uuid.UUID) ([]models.BenefactorTerm, error) {
	terms, err := s.repo.ListBenefactorTerms(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing benefactor terms")
	}
	return terms, nil
}

func (s *service) ValidateBenefactorTerm(ctx context.Context, sessionID uuid.UUID, termID int) error {
	if termID == BenefactorTermAll {
		return nil
	}
	terms, err := s.ListBenefactorTerms(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, term := range terms {
		if term.TermID == termID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown benefactor term %d", termID))
}
