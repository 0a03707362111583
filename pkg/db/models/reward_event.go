package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/pkg/enums"
)

// RewardEvent is the idempotency record for a partner reward, keyed by (trans_id, type).
type RewardEvent struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	TransID     string                  `gorm:"column:trans_id;type:text;not null;uniqueIndex:idx_reward_events_trans_type"`
	Type        string                  `gorm:"column:type;type:text;not null;uniqueIndex:idx_reward_events_trans_type"`
	UserID      uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	AmountCents int64                   `gorm:"column:amount_cents;not null"`
	Status      enums.RewardEventStatus `gorm:"column:status;type:text;not null"`
	ReceivedAt  time.Time               `gorm:"column:received_at;not null"`
	ReversedAt  *time.Time              `gorm:"column:reversed_at"`
}

func (e *RewardEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
