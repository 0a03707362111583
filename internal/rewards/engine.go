package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/internal/accounts"
	"github.com/surveycash/surveycash-backend/internal/ledger"
	"github.com/surveycash/surveycash-backend/pkg/db/models"
	"github.com/surveycash/surveycash-backend/pkg/enums"
	"github.com/surveycash/surveycash-backend/pkg/logger"
	"github.com/surveycash/surveycash-backend/pkg/metrics"
)

// Outcome describes what a callback did to the ledger.
type Outcome string

const (
	// OutcomeApplied means the balance moved.
	OutcomeApplied Outcome = "applied"
	// OutcomeConsumed means the key was recorded but carried no money.
	OutcomeConsumed Outcome = "consumed"
	// OutcomeDuplicate means an earlier delivery already handled the key.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored means a reversal arrived for an unknown key.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeDropped means the callback could not be tied to an account.
	OutcomeDropped Outcome = "dropped"
)

// Settled reports whether later deliveries of the same key can be skipped.
func (o Outcome) Settled() bool {
	return o == OutcomeApplied || o == OutcomeConsumed || o == OutcomeDuplicate
}

// Result is returned for every processed callback.
type Result struct {
	Outcome     Outcome
	Direction   enums.RewardDirection
	UserID      uuid.UUID
	EventID     uuid.UUID
	AmountCents int64
}

// Applier applies a parsed callback to the ledger.
type Applier interface {
	Apply(ctx context.Context, cb Callback) (Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EngineParams wires the credit/reversal engine.
type EngineParams struct {
	DB       txRunner
	Accounts accounts.Repository
	Events   Repository
	Ledger   ledger.Service
	Logger   *logger.Logger
	Metrics  *metrics.LedgerMetrics
	Now      func() time.Time
}

// Engine credits and reverses balances exactly once per (trans_id, type).
type Engine struct {
	db       txRunner
	accounts accounts.Repository
	events   Repository
	ledger   ledger.Service
	logg     *logger.Logger
	metrics  *metrics.LedgerMetrics
	now      func() time.Time
}

// NewEngine validates dependencies and returns an Engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("reward event repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		db:       params.DB,
		accounts: params.Accounts,
		events:   params.Events,
		ledger:   params.Ledger,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// Apply runs one callback inside a single transaction. The account lookup
// happens first for both directions; an unknown user drops the callback.
func (e *Engine) Apply(ctx context.Context, cb Callback) (Result, error) {
	if !cb.Direction.IsValid() {
		return Result{}, fmt.Errorf("invalid reward direction %q", cb.Direction)
	}
	result := Result{Direction: cb.Direction}

	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		account, err := accounts.ResolveAccount(ctx, e.accounts.WithTx(tx), cb.UserRef)
		if err != nil {
			return fmt.Errorf("resolve account: %w", err)
		}
		if account == nil {
			result.Outcome = OutcomeDropped
			return nil
		}
		result.UserID = account.UserID

		if cb.Direction == enums.RewardDirectionCredit {
			return e.credit(ctx, tx, account, cb, &result)
		}
		return e.reverse(ctx, tx, account, cb, &result)
	})
	if err != nil {
		e.metrics.IncCallback(string(cb.Direction), "error")
		return Result{}, err
	}

	e.metrics.IncCallback(string(cb.Direction), string(result.Outcome))
	e.log(ctx, cb, result)
	return result, nil
}

func (e *Engine) credit(ctx context.Context, tx *gorm.DB, account *models.Account, cb Callback, result *Result) error {
	event := &models.RewardEvent{
		TransID:     cb.TransID,
		Type:        cb.Type,
		UserID:      account.UserID,
		AmountCents: cb.AmountCents,
		Status:      enums.RewardEventStatusCredited,
		ReceivedAt:  e.now().UTC(),
	}
	inserted, err := e.events.WithTx(tx).InsertIfAbsent(ctx, event)
	if err != nil {
		return fmt.Errorf("record reward event: %w", err)
	}
	if !inserted {
		result.Outcome = OutcomeDuplicate
		return nil
	}
	result.EventID = event.ID

	// A zero amount still consumes the key.
	if cb.AmountCents <= 0 {
		result.Outcome = OutcomeConsumed
		return nil
	}

	input := accounts.CreditInput{AmountCents: cb.AmountCents}
	switch {
	case strings.Contains(cb.Type, "complete"):
		input.SurveyIncrement = 1
	case strings.Contains(cb.Type, "offer"):
		input.OfferIncrement = 1
	}
	if err := e.accounts.WithTx(tx).Credit(ctx, account.UserID, input); err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	if _, err := e.ledger.Record(ctx, tx, ledger.RecordInput{
		UserID:       account.UserID,
		Type:         enums.LedgerEventTypeRewardCredit,
		AmountCents:  cb.AmountCents,
		BalanceDelta: cb.AmountCents,
		ReferenceID:  event.ID,
	}); err != nil {
		return fmt.Errorf("journal credit: %w", err)
	}

	result.Outcome = OutcomeApplied
	result.AmountCents = cb.AmountCents
	return nil
}

func (e *Engine) reverse(ctx context.Context, tx *gorm.DB, account *models.Account, cb Callback, result *Result) error {
	events := e.events.WithTx(tx)
	event, err := events.Find(ctx, cb.TransID, cb.Type)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.Outcome = OutcomeIgnored
			return nil
		}
		return fmt.Errorf("load reward event: %w", err)
	}
	result.EventID = event.ID
	result.UserID = event.UserID
	if event.Status != enums.RewardEventStatusCredited {
		result.Outcome = OutcomeDuplicate
		return nil
	}

	flipped, err := events.MarkReversed(ctx, event.ID, e.now())
	if err != nil {
		return fmt.Errorf("mark reward reversed: %w", err)
	}
	if !flipped {
		result.Outcome = OutcomeDuplicate
		return nil
	}
	if event.UserID != account.UserID && e.logg != nil {
		logCtx := e.logg.WithFields(ctx, map[string]any{
			"trans_id":      cb.TransID,
			"event_user_id": event.UserID.String(),
			"callback_user": account.UserID.String(),
		})
		e.logg.Warn(logCtx, "reversal user differs from credited user; debiting credited user")
	}

	result.Outcome = OutcomeApplied
	if event.AmountCents <= 0 {
		return nil
	}
	applied, err := e.accounts.WithTx(tx).DebitClamped(ctx, event.UserID, event.AmountCents)
	if err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	if _, err := e.ledger.Record(ctx, tx, ledger.RecordInput{
		UserID:       event.UserID,
		Type:         enums.LedgerEventTypeRewardReversal,
		AmountCents:  event.AmountCents,
		BalanceDelta: -applied,
		ReferenceID:  event.ID,
	}); err != nil {
		return fmt.Errorf("journal reversal: %w", err)
	}
	result.AmountCents = applied
	return nil
}

func (e *Engine) log(ctx context.Context, cb Callback, result Result) {
	if e.logg == nil {
		return
	}
	fields := map[string]any{
		"trans_id":     cb.TransID,
		"reward_type":  cb.Type,
		"direction":    string(cb.Direction),
		"outcome":      string(result.Outcome),
		"amount_cents": result.AmountCents,
	}
	if result.UserID != uuid.Nil {
		fields["user_id"] = result.UserID.String()
	}
	logCtx := e.logg.WithFields(ctx, fields)
	if result.Outcome == OutcomeDropped {
		e.logg.Warn(logCtx, "reward callback dropped: user not found")
		return
	}
	e.logg.Info(logCtx, "reward callback processed")
}
