package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/pkg/enums"
)

// Withdrawal is one cash-out attempt. Only one row per user may be pending or processing.
type Withdrawal struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index:idx_withdrawals_open_user,unique,where:status <> 'paid' AND status <> 'failed'"`
	AmountCents     int64                  `gorm:"column:amount_cents;not null"`
	PayoutEmail     string                 `gorm:"column:payout_email;type:text;not null"`
	Status          enums.WithdrawalStatus `gorm:"column:status;type:text;not null;index"`
	ProviderBatchID *string                `gorm:"column:provider_batch_id;type:text"`
	ErrorText       *string                `gorm:"column:error_text;type:text"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
	FinalizedAt     *time.Time             `gorm:"column:finalized_at"`
}

func (w *Withdrawal) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
