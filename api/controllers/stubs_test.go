package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/api/middleware"
	"github.com/surveycash/surveycash-backend/internal/accounts"
	"github.com/surveycash/surveycash-backend/internal/ledger"
	"github.com/surveycash/surveycash-backend/internal/rewards"
	"github.com/surveycash/surveycash-backend/internal/withdrawals"
	"github.com/surveycash/surveycash-backend/pkg/db/models"
	"github.com/surveycash/surveycash-backend/pkg/enums"
)

type stubAccounts struct {
	opened  []accounts.OpenAccountInput
	openErr error
	summary *accounts.Summary
	stats   *accounts.PlatformStats
	err     error
}

func (s *stubAccounts) Open(_ context.Context, input accounts.OpenAccountInput) (*models.Account, error) {
	s.opened = append(s.opened, input)
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &models.Account{UserID: input.UserID, Email: input.Email}, nil
}

func (s *stubAccounts) Summary(_ context.Context, userID uuid.UUID) (*accounts.Summary, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.summary != nil {
		return s.summary, nil
	}
	return &accounts.Summary{UserID: userID}, nil
}

func (s *stubAccounts) Resolve(context.Context, string) (*models.Account, error) {
	return nil, nil
}

func (s *stubAccounts) PlatformStats(context.Context) (*accounts.PlatformStats, error) {
	return s.stats, s.err
}

type stubWithdrawals struct {
	requested  []withdrawals.CashoutInput
	requestRes *models.Withdrawal
	requestErr error

	checkRes  *models.Withdrawal
	checkErr  error
	checkWait bool

	list []models.Withdrawal
}

func (s *stubWithdrawals) RequestCashout(_ context.Context, input withdrawals.CashoutInput) (*models.Withdrawal, error) {
	s.requested = append(s.requested, input)
	return s.requestRes, s.requestErr
}

func (s *stubWithdrawals) Check(_ context.Context, _ uuid.UUID, _ string) (*models.Withdrawal, error) {
	return s.checkRes, s.checkErr
}

func (s *stubWithdrawals) CheckForUser(_ context.Context, _, _ uuid.UUID, wait bool) (*models.Withdrawal, error) {
	s.checkWait = wait
	return s.checkRes, s.checkErr
}

func (s *stubWithdrawals) ListForUser(context.Context, uuid.UUID, int) ([]models.Withdrawal, error) {
	return s.list, nil
}

func (s *stubWithdrawals) ListOpen(context.Context, uuid.UUID, int) ([]models.Withdrawal, error) {
	return nil, nil
}

func (s *stubWithdrawals) Denominations() []int64 {
	return []int64{500, 1000}
}

type stubLedger struct{}

func (stubLedger) Record(context.Context, *gorm.DB, ledger.RecordInput) (*models.LedgerEvent, error) {
	return nil, nil
}

func (stubLedger) ListForUser(context.Context, uuid.UUID, int) ([]models.LedgerEvent, error) {
	return nil, nil
}

func (stubLedger) HasEvent(context.Context, uuid.UUID, enums.LedgerEventType) (bool, error) {
	return false, nil
}

type recordingApplier struct {
	calls []rewards.Callback
	err   error
}

func (a *recordingApplier) Apply(_ context.Context, cb rewards.Callback) (rewards.Result, error) {
	a.calls = append(a.calls, cb)
	return rewards.Result{Outcome: rewards.OutcomeApplied, Direction: enums.RewardDirectionCredit}, a.err
}

func withCaller(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), middleware.Identity{
		UserID:   userID.String(),
		Email:    "jo@example.com",
		Username: "jo",
	}))
}
