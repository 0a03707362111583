package withdrawals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/pkg/db/models"
	"github.com/surveycash/surveycash-backend/pkg/enums"
)

// Repository persists withdrawals. Status changes are compare-and-swap
// updates; the boolean results report whether this caller won.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	HasOpen(ctx context.Context, userID uuid.UUID) (bool, error)
	ListOpen(ctx context.Context, after uuid.UUID, limit int) ([]models.Withdrawal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Withdrawal, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, batchID *string) (bool, error)
	Finalize(ctx context.Context, id uuid.UUID, status enums.WithdrawalStatus, errorText *string, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a withdrawals repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := r.db.WithContext(ctx).First(&withdrawal, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func (r *repository) HasOpen(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("user_id = ? AND status IN ?", userID, enums.OpenWithdrawalStatuses).
		Count(&count).Error
	return count > 0, err
}

// ListOpen returns one page of non-terminal withdrawals ordered by id.
// Pass the last id of the previous page as after, or uuid.Nil to start over.
func (r *repository) ListOpen(ctx context.Context, after uuid.UUID, limit int) ([]models.Withdrawal, error) {
	var rows []models.Withdrawal
	query := r.db.WithContext(ctx).
		Where("status IN ?", enums.OpenWithdrawalStatuses).
		Order("id ASC")
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Withdrawal, error) {
	var rows []models.Withdrawal
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkProcessing moves a pending withdrawal to processing, storing the
// provider batch id when one is supplied.
func (r *repository) MarkProcessing(ctx context.Context, id uuid.UUID, batchID *string) (bool, error) {
	updates := map[string]any{"status": enums.WithdrawalStatusProcessing}
	if batchID != nil {
		updates["provider_batch_id"] = *batchID
	}
	result := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, enums.WithdrawalStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Finalize moves an open withdrawal to a terminal status. Only one caller
// can ever see true for a given withdrawal.
func (r *repository) Finalize(ctx context.Context, id uuid.UUID, status enums.WithdrawalStatus, errorText *string, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":       status,
		"finalized_at": at.UTC(),
	}
	if errorText != nil {
		updates["error_text"] = *errorText
	}
	result := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND status IN ?", id, enums.OpenWithdrawalStatuses).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
