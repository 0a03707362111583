package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/pkg/enums"
)

// LedgerEvent records an immutable balance movement for a user. ReferenceID
// points at the reward event or withdrawal that caused it.
type LedgerEvent struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Type         enums.LedgerEventType `gorm:"column:type;type:text;not null"`
	AmountCents  int64                 `gorm:"column:amount_cents;not null"`
	BalanceDelta int64                 `gorm:"column:balance_delta;not null"`
	PendingDelta int64                 `gorm:"column:pending_delta;not null"`
	ReferenceID  uuid.UUID             `gorm:"column:reference_id;type:uuid;not null"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
