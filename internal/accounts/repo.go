package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/surveycash/surveycash-backend/pkg/db/models"
)

// Repository persists account counters. Every mutation is a single
// conditional or clamped UPDATE so concurrent callers never drive
// balance or pending below zero.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Ensure(ctx context.Context, account *models.Account) (bool, error)
	FindByID(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Credit(ctx context.Context, userID uuid.UUID, input CreditInput) error
	DebitClamped(ctx context.Context, userID uuid.UUID, cents int64) (int64, error)
	Reserve(ctx context.Context, userID uuid.UUID, cents int64) (bool, error)
	SettlePending(ctx context.Context, userID uuid.UUID, cents int64) (int64, error)
	RefundPending(ctx context.Context, userID uuid.UUID, cents int64) (int64, error)
	Totals(ctx context.Context) (PlatformTotals, error)
	TopEarner(ctx context.Context) (*models.Account, error)
}

// CreditInput describes one reward credit.
type CreditInput struct {
	AmountCents     int64
	SurveyIncrement int64
	OfferIncrement  int64
}

// PlatformTotals are aggregate counters across every account.
type PlatformTotals struct {
	TotalUsers            int64
	TotalEarnedCents      int64
	TotalCompletedSurveys int64
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository returns an accounts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, now: r.now}
}

// Ensure inserts a zeroed account unless one already exists for the user id.
// The boolean reports whether this call created it.
func (r *repository) Ensure(ctx context.Context, account *models.Account) (bool, error) {
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(account)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) FindByID(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).
		Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) Credit(ctx context.Context, userID uuid.UUID, input CreditInput) error {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]any{
			"balance_cents":      gorm.Expr("balance_cents + ?", input.AmountCents),
			"total_earned_cents": gorm.Expr("total_earned_cents + ?", input.AmountCents),
			"completed_surveys":  gorm.Expr("completed_surveys + ?", input.SurveyIncrement),
			"completed_offers":   gorm.Expr("completed_offers + ?", input.OfferIncrement),
			"updated_at":         r.now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DebitClamped lowers balance by up to cents and returns how much was removed.
func (r *repository) DebitClamped(ctx context.Context, userID uuid.UUID, cents int64) (int64, error) {
	current, err := r.lockForUpdate(ctx, userID)
	if err != nil {
		return 0, err
	}
	applied := min(cents, current.BalanceCents)
	if err := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]any{
			"balance_cents": gorm.Expr("CASE WHEN balance_cents > ? THEN balance_cents - ? ELSE 0 END", cents, cents),
			"updated_at":    r.now().UTC(),
		}).Error; err != nil {
		return 0, err
	}
	return applied, nil
}

// Reserve moves cents from balance to pending only when the balance covers it.
func (r *repository) Reserve(ctx context.Context, userID uuid.UUID, cents int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ? AND balance_cents >= ?", userID, cents).
		UpdateColumns(map[string]any{
			"balance_cents": gorm.Expr("balance_cents - ?", cents),
			"pending_cents": gorm.Expr("pending_cents + ?", cents),
			"updated_at":    r.now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SettlePending drops paid-out cents from pending, clamped at zero.
func (r *repository) SettlePending(ctx context.Context, userID uuid.UUID, cents int64) (int64, error) {
	current, err := r.lockForUpdate(ctx, userID)
	if err != nil {
		return 0, err
	}
	applied := min(cents, current.PendingCents)
	if err := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]any{
			"pending_cents": gorm.Expr("CASE WHEN pending_cents > ? THEN pending_cents - ? ELSE 0 END", cents, cents),
			"updated_at":    r.now().UTC(),
		}).Error; err != nil {
		return 0, err
	}
	return applied, nil
}

// RefundPending returns the full amount to balance and drops pending (clamped).
// The returned value is how much pending actually fell.
func (r *repository) RefundPending(ctx context.Context, userID uuid.UUID, cents int64) (int64, error) {
	current, err := r.lockForUpdate(ctx, userID)
	if err != nil {
		return 0, err
	}
	applied := min(cents, current.PendingCents)
	if err := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]any{
			"pending_cents": gorm.Expr("CASE WHEN pending_cents > ? THEN pending_cents - ? ELSE 0 END", cents, cents),
			"balance_cents": gorm.Expr("balance_cents + ?", cents),
			"updated_at":    r.now().UTC(),
		}).Error; err != nil {
		return 0, err
	}
	return applied, nil
}

func (r *repository) Totals(ctx context.Context) (PlatformTotals, error) {
	var totals PlatformTotals
	err := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Select(`COUNT(*) AS total_users,
			COALESCE(SUM(total_earned_cents), 0) AS total_earned_cents,
			COALESCE(SUM(completed_surveys), 0) AS total_completed_surveys`).
		Scan(&totals).Error
	return totals, err
}

// TopEarner returns the account with the highest lifetime earnings, or nil when nobody has earned yet.
func (r *repository) TopEarner(ctx context.Context) (*models.Account, error) {
	var accounts []models.Account
	if err := r.db.WithContext(ctx).
		Where("total_earned_cents > 0").
		Order("total_earned_cents DESC, created_at ASC").
		Limit(1).
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

func (r *repository) lockForUpdate(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}
