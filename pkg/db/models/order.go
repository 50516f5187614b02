package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/pkg/enums"
	"github.com/acecharity/raffle-backend/pkg/types"
)

// Order represents one purchase attempt against a raffle session. Orders are
// never hard-deleted; refunds and audits rely on the full history.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber int64     `gorm:"column:order_number;not null;uniqueIndex"`
	// OrderKey binds the customer's checkout cookie to this order. Random,
	// never guessable, never reissued.
	OrderKey  string    `gorm:"column:order_key;type:text;not null;uniqueIndex"`
	SessionID uuid.UUID `gorm:"column:session_id;type:uuid;not null;index"`

	Cart        types.EnvelopeCart `gorm:"column:cart;type:jsonb;serializer:json;not null"`
	TotalAmount decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency    enums.Currency     `gorm:"column:currency;type:text;not null;default:'cad'"`

	Status enums.OrderStatus `gorm:"column:status;type:text;not null;default:'started';index"`

	FirstName *string `gorm:"column:first_name"`
	LastName  *string `gorm:"column:last_name"`
	Email     *string `gorm:"column:email"`
	Phone     *string `gorm:"column:phone"`
	Location  *string `gorm:"column:location"`

	// BenefactorTermID references a named beneficiary; 0 means "all".
	BenefactorTermID *int       `gorm:"column:benefactor_term_id"`
	TermsAcceptedAt  *time.Time `gorm:"column:terms_accepted_at"`
	TermsURL         *string    `gorm:"column:terms_url"`

	PaymentProcessor    enums.PaymentProcessor `gorm:"column:payment_processor;type:text"`
	PaymentReference    *string                `gorm:"column:payment_reference"`
	PaymentClientSecret *string                `gorm:"column:payment_client_secret"`

	TicketStatus enums.TicketStatus `gorm:"column:ticket_status;type:text;not null;default:'not_generated';index"`

	Log     []OrderLogEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Tickets []Ticket        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the ID client-side so callers can reference the order
// inside the same transaction that inserts it.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderLogEntry is one append-only audit line on an order.
type OrderLogEntry struct {
	ID      int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	At      time.Time `gorm:"column:at;not null;autoCreateTime"`
	Message string    `gorm:"column:message;type:text;not null"`
}
