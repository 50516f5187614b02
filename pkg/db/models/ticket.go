package models

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is one individual paid raffle entry. Tickets are insert-only; they
// are removed only by cascading delete of their owning order.
type Ticket struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index:idx_tickets_order_envelope"`
	EnvelopeNumber int       `gorm:"column:envelope_number;not null;index:idx_tickets_order_envelope"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
