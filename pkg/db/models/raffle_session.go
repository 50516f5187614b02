package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RaffleSession is one weekly raffle instance with its own sales window,
// draws, and envelopes.
type RaffleSession struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string          `gorm:"column:name;type:text;not null"`
	TicketPrice decimal.Decimal `gorm:"column:ticket_price;type:numeric(12,2);not null"`
	OpensAt     time.Time       `gorm:"column:opens_at;not null"`
	ClosesAt    time.Time       `gorm:"column:closes_at;not null"`

	Envelopes   []Envelope       `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Benefactors []BenefactorTerm `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Envelope is a numbered purchasable slot. Once a draw reveals its card the
// envelope is used and leaves the sellable pool.
type Envelope struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID  uuid.UUID  `gorm:"column:session_id;type:uuid;not null;uniqueIndex:idx_envelopes_session_number"`
	Number     int        `gorm:"column:number;not null;uniqueIndex:idx_envelopes_session_number"`
	Card       *string    `gorm:"column:card"`
	RevealedAt *time.Time `gorm:"column:revealed_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// BenefactorTerm is a named beneficiary selectable at checkout. TermID 0 is
// reserved for "all".
type BenefactorTerm struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID uuid.UUID `gorm:"column:session_id;type:uuid;not null;index"`
	TermID    int       `gorm:"column:term_id;not null"`
	Name      string    `gorm:"column:name;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
