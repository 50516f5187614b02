package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/acecharity/raffle-backend/pkg/enums"
	"github.com/acecharity/raffle-backend/pkg/types"
)

// AuditEntry records storage and payment failures for operator visibility.
type AuditEntry struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Kind      enums.AuditKind `gorm:"column:kind;type:text;not null;index"`
	Message   string          `gorm:"column:message;type:text;not null"`
	Context   types.JSONMap   `gorm:"column:context;type:jsonb;serializer:json"`
	OrderID   *uuid.UUID      `gorm:"column:order_id;type:uuid;index"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
