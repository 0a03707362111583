package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/pkg/db/models"
	"github.com/surveycash/surveycash-backend/pkg/enums"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Service records and lists balance journal entries. Record is always
// called inside the transaction that moved the money.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.LedgerEvent, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEvent, error)
	HasEvent(ctx context.Context, referenceID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
}

type service struct {
	repo Repository
}

// RecordInput captures one balance movement. Deltas are signed and reflect
// what was actually applied after clamping.
type RecordInput struct {
	UserID       uuid.UUID             `json:"user_id"`
	Type         enums.LedgerEventType `json:"type"`
	AmountCents  int64                 `json:"amount_cents"`
	BalanceDelta int64                 `json:"balance_delta"`
	PendingDelta int64                 `json:"pending_delta"`
	ReferenceID  uuid.UUID             `json:"reference_id"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.LedgerEvent, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if input.ReferenceID == uuid.Nil {
		return nil, fmt.Errorf("reference id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}
	if input.AmountCents < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}

	event := &models.LedgerEvent{
		UserID:       input.UserID,
		Type:         input.Type,
		AmountCents:  input.AmountCents,
		BalanceDelta: input.BalanceDelta,
		PendingDelta: input.PendingDelta,
		ReferenceID:  input.ReferenceID,
	}
	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEvent, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.ListByUserID(ctx, userID, limit)
}

func (s *service) HasEvent(ctx context.Context, referenceID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if referenceID == uuid.Nil {
		return false, fmt.Errorf("reference id is required")
	}
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid ledger event type %q", eventType)
	}

	events, err := s.repo.ListByReferenceID(ctx, referenceID)
	if err != nil {
		return false, err
	}
	for _, event := range events {
		if event.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}
