package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/internal/accounts"
	"github.com/surveycash/surveycash-backend/internal/ledger"
	"github.com/surveycash/surveycash-backend/pkg/config"
	"github.com/surveycash/surveycash-backend/pkg/db"
	"github.com/surveycash/surveycash-backend/pkg/db/models"
	"github.com/surveycash/surveycash-backend/pkg/enums"
	pkgerrors "github.com/surveycash/surveycash-backend/pkg/errors"
	"github.com/surveycash/surveycash-backend/pkg/logger"
	"github.com/surveycash/surveycash-backend/pkg/metrics"
	"github.com/surveycash/surveycash-backend/pkg/paypal"
)

const (
	TriggerRequest  = "request"
	TriggerSweep    = "sweep"
	TriggerOnDemand = "on_demand"

	defaultPollInterval = 3 * time.Second

	defaultListLimit = 20
	maxListLimit     = 100
)

// Cashout rejections, in the order they are checked.
var (
	ErrInvalidAmount        = pkgerrors.New(pkgerrors.CodeValidation, "amount is not an allowed denomination")
	ErrInvalidEmail         = pkgerrors.New(pkgerrors.CodeValidation, "payout email is invalid")
	ErrWithdrawalInProgress = pkgerrors.New(pkgerrors.CodeConflict, "a withdrawal is already in progress")
	ErrInsufficientBalance  = pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient balance")
	ErrPayoutFailed         = pkgerrors.New(pkgerrors.CodeDependency, "payout provider rejected the withdrawal")
)

// PayoutProvider is the outbound payout surface; *paypal.Client satisfies it.
type PayoutProvider interface {
	CreatePayout(ctx context.Context, req paypal.PayoutRequest) (*paypal.Batch, error)
	GetPayoutBatch(ctx context.Context, batchID string) (*paypal.Batch, error)
}

// Service drives a withdrawal from request to a terminal state.
type Service interface {
	RequestCashout(ctx context.Context, input CashoutInput) (*models.Withdrawal, error)
	Check(ctx context.Context, withdrawalID uuid.UUID, trigger string) (*models.Withdrawal, error)
	CheckForUser(ctx context.Context, userID, withdrawalID uuid.UUID, wait bool) (*models.Withdrawal, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Withdrawal, error)
	ListOpen(ctx context.Context, after uuid.UUID, limit int) ([]models.Withdrawal, error)
	Denominations() []int64
}

// CashoutInput is a user's request to withdraw part of their balance.
type CashoutInput struct {
	UserID      uuid.UUID
	AmountCents int64
	PayoutEmail string `validate:"required,email,max=254"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the withdrawal service.
type ServiceParams struct {
	DB       txRunner
	Repo     Repository
	Accounts accounts.Repository
	Ledger   ledger.Service
	Provider PayoutProvider
	Config   config.PayoutsConfig
	Logger   *logger.Logger
	Metrics  *metrics.LedgerMetrics
	Now      func() time.Time
}

type service struct {
	db            txRunner
	repo          Repository
	accounts      accounts.Repository
	ledger        ledger.Service
	provider      PayoutProvider
	logg          *logger.Logger
	metrics       *metrics.LedgerMetrics
	validate      *validator.Validate
	denominations []int64
	callTimeout   time.Duration
	pollAttempts  int
	pollInterval  time.Duration
	now           func() time.Time
}

// NewService validates dependencies and returns a withdrawal service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("withdrawals repository required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("payout provider required")
	}
	if len(params.Config.Denominations) == 0 {
		return nil, fmt.Errorf("at least one payout denomination required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	pollInterval := params.Config.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	denominations := slices.Clone(params.Config.Denominations)
	slices.Sort(denominations)

	return &service{
		db:            params.DB,
		repo:          params.Repo,
		accounts:      params.Accounts,
		ledger:        params.Ledger,
		provider:      params.Provider,
		logg:          params.Logger,
		metrics:       params.Metrics,
		validate:      validator.New(),
		denominations: denominations,
		callTimeout:   params.Config.ItemTimeout,
		pollAttempts:  params.Config.PollAttempts,
		pollInterval:  pollInterval,
		now:           now,
	}, nil
}

func (s *service) Denominations() []int64 {
	return slices.Clone(s.denominations)
}

// RequestCashout reserves the amount and starts the payout. A provider
// rejection fails the withdrawal immediately and refunds the reservation.
func (s *service) RequestCashout(ctx context.Context, input CashoutInput) (*models.Withdrawal, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !slices.Contains(s.denominations, input.AmountCents) {
		return nil, ErrInvalidAmount
	}
	input.PayoutEmail = strings.TrimSpace(input.PayoutEmail)
	if err := s.validate.Struct(input); err != nil {
		return nil, ErrInvalidEmail
	}

	open, err := s.repo.HasOpen(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check open withdrawals")
	}
	if open {
		return nil, ErrWithdrawalInProgress
	}

	withdrawal := &models.Withdrawal{
		UserID:      input.UserID,
		AmountCents: input.AmountCents,
		PayoutEmail: input.PayoutEmail,
		Status:      enums.WithdrawalStatusPending,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, withdrawal); err != nil {
			if db.IsUniqueViolation(err, "") {
				return ErrWithdrawalInProgress
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create withdrawal")
		}
		reserved, err := s.accounts.WithTx(tx).Reserve(ctx, input.UserID, input.AmountCents)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve balance")
		}
		if !reserved {
			return ErrInsufficientBalance
		}
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
			UserID:       input.UserID,
			Type:         enums.LedgerEventTypeCashoutReserved,
			AmountCents:  input.AmountCents,
			BalanceDelta: -input.AmountCents,
			PendingDelta: input.AmountCents,
			ReferenceID:  withdrawal.ID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "journal reservation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(enums.WithdrawalStatusPending), TriggerRequest)

	logCtx := s.logCtx(ctx, withdrawal)
	batch, callErr := s.createPayout(ctx, withdrawal)
	if callErr != nil {
		s.metrics.IncProviderError("create_payout")
		s.logError(logCtx, "payout creation failed; refunding withdrawal", callErr)
		if _, err := s.finalize(ctx, withdrawal, Resolution{Status: enums.WithdrawalStatusFailed, Reason: callErr.Error()}, TriggerRequest); err != nil {
			return nil, err
		}
		return s.reload(ctx, withdrawal.ID, ErrPayoutFailed.Because(callErr))
	}

	batchID := batch.BatchID
	moved, err := s.repo.MarkProcessing(ctx, withdrawal.ID, &batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark withdrawal processing")
	}
	if moved {
		s.metrics.IncTransition(string(enums.WithdrawalStatusProcessing), TriggerRequest)
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(logCtx, "provider_batch_id", batchID), "payout created")
	}
	return s.reload(ctx, withdrawal.ID, nil)
}

// Check asks the provider about one withdrawal and applies the outcome.
// Repeated or concurrent calls finalize at most once.
func (s *service) Check(ctx context.Context, withdrawalID uuid.UUID, trigger string) (*models.Withdrawal, error) {
	withdrawal, err := s.find(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status.IsTerminal() || withdrawal.ProviderBatchID == nil || *withdrawal.ProviderBatchID == "" {
		return withdrawal, nil
	}

	logCtx := s.logCtx(ctx, withdrawal)
	callCtx, cancel := s.callContext(ctx)
	batch, err := s.provider.GetPayoutBatch(callCtx, *withdrawal.ProviderBatchID)
	cancel()
	if err != nil {
		var apiErr *paypal.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			batch = nil
		} else {
			s.metrics.IncProviderError("get_payout")
			s.logError(logCtx, "payout status query failed", err)
			return withdrawal, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query payout status")
		}
	}

	resolution := Resolve(batch)
	switch resolution.Status {
	case enums.WithdrawalStatusPaid, enums.WithdrawalStatusFailed:
		if _, err := s.finalize(ctx, withdrawal, resolution, trigger); err != nil {
			return nil, err
		}
	default:
		moved, err := s.repo.MarkProcessing(ctx, withdrawal.ID, nil)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark withdrawal processing")
		}
		if moved {
			s.metrics.IncTransition(string(enums.WithdrawalStatusProcessing), trigger)
		}
	}
	return s.reload(ctx, withdrawal.ID, nil)
}

// CheckForUser is Check restricted to the owner, optionally polling until
// the withdrawal settles or the attempts run out.
func (s *service) CheckForUser(ctx context.Context, userID, withdrawalID uuid.UUID, wait bool) (*models.Withdrawal, error) {
	withdrawal, err := s.find(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if withdrawal.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal not found")
	}
	if wait {
		return s.poll(ctx, withdrawalID)
	}
	return s.Check(ctx, withdrawalID, TriggerOnDemand)
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Withdrawal, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list withdrawals")
	}
	return rows, nil
}

func (s *service) ListOpen(ctx context.Context, after uuid.UUID, limit int) ([]models.Withdrawal, error) {
	rows, err := s.repo.ListOpen(ctx, after, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list open withdrawals")
	}
	return rows, nil
}

// finalize performs the terminal transition and, only for the caller that
// won it, the matching pending-balance side effect.
func (s *service) finalize(ctx context.Context, withdrawal *models.Withdrawal, resolution Resolution, trigger string) (bool, error) {
	var reason *string
	if resolution.Status == enums.WithdrawalStatusFailed {
		text := truncate(resolution.Reason, 500)
		if text == "" {
			text = "payout failed"
		}
		reason = &text
	}

	won := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Finalize(ctx, withdrawal.ID, resolution.Status, reason, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		won = true

		entry := ledger.RecordInput{
			UserID:      withdrawal.UserID,
			AmountCents: withdrawal.AmountCents,
			ReferenceID: withdrawal.ID,
		}
		accountsTx := s.accounts.WithTx(tx)
		if resolution.Status == enums.WithdrawalStatusPaid {
			applied, err := accountsTx.SettlePending(ctx, withdrawal.UserID, withdrawal.AmountCents)
			if err != nil {
				return err
			}
			entry.Type = enums.LedgerEventTypePayoutPaid
			entry.PendingDelta = -applied
		} else {
			applied, err := accountsTx.RefundPending(ctx, withdrawal.UserID, withdrawal.AmountCents)
			if err != nil {
				return err
			}
			entry.Type = enums.LedgerEventTypePayoutRefunded
			entry.BalanceDelta = withdrawal.AmountCents
			entry.PendingDelta = -applied
		}
		_, err = s.ledger.Record(ctx, tx, entry)
		return err
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalize withdrawal")
	}
	if won {
		s.metrics.IncTransition(string(resolution.Status), trigger)
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logCtx(ctx, withdrawal), map[string]any{
				"status":  string(resolution.Status),
				"trigger": trigger,
			})
			s.logg.Info(logCtx, "withdrawal finalized")
		}
	}
	return won, nil
}

func (s *service) createPayout(ctx context.Context, withdrawal *models.Withdrawal) (*paypal.Batch, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.provider.CreatePayout(callCtx, paypal.PayoutRequest{
		SenderBatchID: withdrawal.ID.String(),
		ReceiverEmail: withdrawal.PayoutEmail,
		AmountCents:   withdrawal.AmountCents,
	})
}

func (s *service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	withdrawal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load withdrawal")
	}
	return withdrawal, nil
}

// reload returns the stored row together with outcome, which may be nil.
func (s *service) reload(ctx context.Context, id uuid.UUID, outcome error) (*models.Withdrawal, error) {
	withdrawal, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return withdrawal, outcome
}

func (s *service) logCtx(ctx context.Context, withdrawal *models.Withdrawal) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithUserID(ctx, withdrawal.UserID.String())
	return s.logg.WithWithdrawalID(ctx, withdrawal.ID.String())
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), msg, err)
}

// truncate caps value at limit runes so provider text never splits a character.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}
