package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/pkg/db"
	"github.com/surveycash/surveycash-backend/pkg/db/models"
	pkgerrors "github.com/surveycash/surveycash-backend/pkg/errors"
)

// Service exposes the read side of the account store plus account opening.
type Service interface {
	Open(ctx context.Context, input OpenAccountInput) (*models.Account, error)
	Summary(ctx context.Context, userID uuid.UUID) (*Summary, error)
	Resolve(ctx context.Context, ref string) (*models.Account, error)
	PlatformStats(ctx context.Context) (*PlatformStats, error)
}

// OpenAccountInput carries the identity details known when a user first shows up.
type OpenAccountInput struct {
	UserID   uuid.UUID
	Email    string
	Username string
}

// Summary is the caller-facing view of an account.
type Summary struct {
	UserID           uuid.UUID `json:"user_id"`
	Email            string    `json:"email"`
	Username         string    `json:"username,omitempty"`
	BalanceCents     int64     `json:"balance_cents"`
	PendingCents     int64     `json:"pending_cents"`
	TotalEarnedCents int64     `json:"total_earned_cents"`
	CompletedSurveys int64     `json:"completed_surveys"`
	CompletedOffers  int64     `json:"completed_offers"`
}

// PlatformStats is the public leaderboard header.
type PlatformStats struct {
	TotalUsers            int64      `json:"total_users"`
	TotalEarnedCents      int64      `json:"total_earned_cents"`
	TotalCompletedSurveys int64      `json:"total_completed_surveys"`
	TopUser               *TopEarner `json:"top_user"`
}

type TopEarner struct {
	Name        string `json:"name"`
	EarnedCents int64  `json:"earned_cents"`
}

type service struct {
	repo Repository
}

// NewService wires an accounts service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	return &service{repo: repo}, nil
}

// Open creates the caller's zeroed account on first use and returns the stored row.
func (s *service) Open(ctx context.Context, input OpenAccountInput) (*models.Account, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	account := &models.Account{UserID: input.UserID, Email: email}
	if name := strings.TrimSpace(input.Username); name != "" {
		account.Username = &name
	}
	if _, err := s.repo.Ensure(ctx, account); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already linked to another account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open account")
	}
	return s.repo.FindByID(ctx, input.UserID)
}

func (s *service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	account, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	return toSummary(account), nil
}

// Resolve maps a partner-supplied user reference onto an account: internal
// user id first, then case-insensitive email. Returns nil when neither matches.
func (s *service) Resolve(ctx context.Context, ref string) (*models.Account, error) {
	return ResolveAccount(ctx, s.repo, ref)
}

// ResolveAccount is Resolve against an explicit repository, so callers can
// run it inside their own transaction.
func ResolveAccount(ctx context.Context, repo Repository, ref string) (*models.Account, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if id, err := uuid.Parse(ref); err == nil {
		account, err := repo.FindByID(ctx, id)
		switch {
		case err == nil:
			return account, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}
	account, err := repo.FindByEmail(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

func (s *service) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate platform totals")
	}
	stats := &PlatformStats{
		TotalUsers:            totals.TotalUsers,
		TotalEarnedCents:      totals.TotalEarnedCents,
		TotalCompletedSurveys: totals.TotalCompletedSurveys,
	}
	top, err := s.repo.TopEarner(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load top earner")
	}
	if top != nil {
		stats.TopUser = &TopEarner{Name: DisplayName(top), EarnedCents: top.TotalEarnedCents}
	}
	return stats, nil
}

// DisplayName prefers the username and falls back to the email local part.
func DisplayName(account *models.Account) string {
	if account == nil {
		return ""
	}
	if account.Username != nil && strings.TrimSpace(*account.Username) != "" {
		return strings.TrimSpace(*account.Username)
	}
	local, _, _ := strings.Cut(account.Email, "@")
	return local
}

func toSummary(account *models.Account) *Summary {
	summary := &Summary{
		UserID:           account.UserID,
		Email:            account.Email,
		BalanceCents:     account.BalanceCents,
		PendingCents:     account.PendingCents,
		TotalEarnedCents: account.TotalEarnedCents,
		CompletedSurveys: account.CompletedSurveys,
		CompletedOffers:  account.CompletedOffers,
	}
	if account.Username != nil {
		summary.Username = *account.Username
	}
	return summary
}
