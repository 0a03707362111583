package rewards

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/surveycash/surveycash-backend/pkg/db/models"
	"github.com/surveycash/surveycash-backend/pkg/enums"
)

// Repository persists reward events keyed by (trans_id, type).
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertIfAbsent(ctx context.Context, event *models.RewardEvent) (bool, error)
	Find(ctx context.Context, transID, rewardType string) (*models.RewardEvent, error)
	MarkReversed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reward event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// InsertIfAbsent reports true only for the caller whose insert created the row.
func (r *repository) InsertIfAbsent(ctx context.Context, event *models.RewardEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trans_id"}, {Name: "type"}},
			DoNothing: true,
		}).
		Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) Find(ctx context.Context, transID, rewardType string) (*models.RewardEvent, error) {
	var event models.RewardEvent
	if err := r.db.WithContext(ctx).
		Where("trans_id = ? AND type = ?", transID, rewardType).
		First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkReversed flips a credited event to reversed. False means another
// caller already did.
func (r *repository) MarkReversed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RewardEvent{}).
		Where("id = ? AND status = ?", id, enums.RewardEventStatusCredited).
		Updates(map[string]any{
			"status":      enums.RewardEventStatusReversed,
			"reversed_at": at.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
