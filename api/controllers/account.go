package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/surveycash/surveycash-backend/api/middleware"
	"github.com/surveycash/surveycash-backend/api/responses"
	"github.com/surveycash/surveycash-backend/api/validators"
	"github.com/surveycash/surveycash-backend/internal/accounts"
	"github.com/surveycash/surveycash-backend/internal/ledger"
	"github.com/surveycash/surveycash-backend/pkg/db/models"
	pkgerrors "github.com/surveycash/surveycash-backend/pkg/errors"
	"github.com/surveycash/surveycash-backend/pkg/logger"
)

type ledgerEntryDTO struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	AmountCents  int64     `json:"amount_cents"`
	BalanceDelta int64     `json:"balance_delta"`
	PendingDelta int64     `json:"pending_delta"`
	ReferenceID  uuid.UUID `json:"reference_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func toLedgerEntryDTO(e models.LedgerEvent) ledgerEntryDTO {
	return ledgerEntryDTO{
		ID:           e.ID,
		Type:         string(e.Type),
		AmountCents:  e.AmountCents,
		BalanceDelta: e.BalanceDelta,
		PendingDelta: e.PendingDelta,
		ReferenceID:  e.ReferenceID,
		CreatedAt:    e.CreatedAt,
	}
}

// AccountSummary returns the caller's balances, opening a zeroed account on first use.
func AccountSummary(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}

		account, err := openCallerAccount(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), account.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// AccountLedger lists the caller's most recent balance movements.
func AccountLedger(svc accounts.Service, journal ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || journal == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", ledger.DefaultListLimit, 1, ledger.MaxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := openCallerAccount(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := journal.ListForUser(r.Context(), account.UserID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list ledger events"))
			return
		}

		entries := make([]ledgerEntryDTO, 0, len(events))
		for _, e := range events {
			entries = append(entries, toLedgerEntryDTO(e))
		}
		responses.WriteSuccess(w, entries)
	}
}

// PublicStats serves the landing page counters.
func PublicStats(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}
		stats, err := svc.PlatformStats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func openCallerAccount(r *http.Request, svc accounts.Service) (*models.Account, error) {
	userID, err := callerID(r)
	if err != nil {
		return nil, err
	}
	identity := middleware.IdentityFromContext(r.Context())
	return svc.Open(r.Context(), accounts.OpenAccountInput{
		UserID:   userID,
		Email:    identity.Email,
		Username: identity.Username,
	})
}
