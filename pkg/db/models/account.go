package models

import (
	"time"

	"github.com/google/uuid"
)

// Account holds a user's earnings counters. Rows are created zeroed and never deleted.
type Account struct {
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Email            string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	Username         *string   `gorm:"column:username;type:text"`
	BalanceCents     int64     `gorm:"column:balance_cents;not null;default:0"`
	PendingCents     int64     `gorm:"column:pending_cents;not null;default:0"`
	TotalEarnedCents int64     `gorm:"column:total_earned_cents;not null;default:0"`
	CompletedSurveys int64     `gorm:"column:completed_surveys;not null;default:0"`
	CompletedOffers  int64     `gorm:"column:completed_offers;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Account) TableName() string { return "accounts" }
