package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acecharity/raffle-backend/pkg/db/models"
	"github.com/acecharity/raffle-backend/pkg/enums"
	"github.com/acecharity/raffle-backend/pkg/logger"
	"github.com/acecharity/raffle-backend/pkg/types"
)

// Sink records operational anomalies that need human follow-up, like a
// captured payment whose order failed to persist.
type Sink interface {
	Record(ctx context.Context, kind enums.AuditKind, message string, orderID *uuid.UUID, details types.JSONMap)
}

type sink struct {
	db   *gorm.DB
	logg *logger.Logger
}

// NewSink builds an audit sink backed by the audit_entries table.
func NewSink(db *gorm.DB, logg *logger.Logger) (Sink, error) {
	if db == nil {
		return nil, fmt.Errorf("database required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &sink{db: db, logg: logg}, nil
}

// Record writes the entry and mirrors it to the log. A failed insert is
// itself logged rather than returned: audit writes never break the caller.
func (s *sink) Record(ctx context.Context, kind enums.AuditKind, message string, orderID *uuid.UUID, details types.JSONMap) {
	entry := models.AuditEntry{
		Kind:    kind,
		Message: message,
		OrderID: orderID,
		Context: details,
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"audit_kind": kind.String(),
		"details":    map[string]any(details),
	})
	if orderID != nil {
		logCtx = s.logg.WithOrderID(logCtx, orderID.String())
	}
	s.logg.Warn(logCtx, message)

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logg.Error(logCtx, "failed to persist audit entry", err)
	}
}
