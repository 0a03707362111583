package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/pkg/db/models"
)

// Repository manages persistence for balance journal entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.LedgerEvent) error
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEvent, error)
	ListByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]models.LedgerEvent, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

// WithTx rebinds the repository to tx; a nil tx keeps the current handle.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx != nil {
		return &repository{db: tx}
	}
	return r
}

func (r *repository) Create(ctx context.Context, event *models.LedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByUserID returns the newest entries first.
func (r *repository) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEvent, error) {
	return r.list(ctx, r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit))
}

// ListByReferenceID returns every entry tied to one reward or withdrawal, oldest first.
func (r *repository) ListByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]models.LedgerEvent, error) {
	return r.list(ctx, r.db.Where("reference_id = ?", referenceID).Order("created_at ASC, id ASC"))
}

func (r *repository) list(ctx context.Context, query *gorm.DB) ([]models.LedgerEvent, error) {
	events := []models.LedgerEvent{}
	if err := query.WithContext(ctx).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
