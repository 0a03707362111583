package controllers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/surveycash/surveycash-backend/api/responses"
	"github.com/surveycash/surveycash-backend/api/validators"
	"github.com/surveycash/surveycash-backend/internal/accounts"
	"github.com/surveycash/surveycash-backend/internal/withdrawals"
	"github.com/surveycash/surveycash-backend/pkg/db/models"
	pkgerrors "github.com/surveycash/surveycash-backend/pkg/errors"
	"github.com/surveycash/surveycash-backend/pkg/logger"
)

// Redirect error codes understood by the cashout page.
const (
	cashoutErrInvalidAmount = "invalid_amount"
	cashoutErrInvalidEmail  = "invalid_email"
	cashoutErrInProgress    = "in_progress"
	cashoutErrInsufficient  = "insufficient_balance"
	cashoutErrPayoutFailed  = "payout_failed"
	cashoutErrServer        = "server_error"

	defaultWithdrawalListLimit = 20
	maxWithdrawalListLimit     = 100
)

type withdrawalDTO struct {
	ID              uuid.UUID  `json:"id"`
	AmountCents     int64      `json:"amount_cents"`
	PayoutEmail     string     `json:"payout_email"`
	Status          string     `json:"status"`
	ProviderBatchID *string    `json:"provider_batch_id,omitempty"`
	ErrorText       *string    `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	FinalizedAt     *time.Time `json:"finalized_at,omitempty"`
}

func toWithdrawalDTO(w models.Withdrawal) withdrawalDTO {
	return withdrawalDTO{
		ID:              w.ID,
		AmountCents:     w.AmountCents,
		PayoutEmail:     w.PayoutEmail,
		Status:          string(w.Status),
		ProviderBatchID: w.ProviderBatchID,
		ErrorText:       w.ErrorText,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
		FinalizedAt:     w.FinalizedAt,
	}
}

type cashoutForm struct {
	AmountCents int64  `form:"amountCents"`
	PayoutEmail string `form:"payoutEmail"`
}

type cashoutStatusResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

// ListWithdrawals returns the caller's withdrawals, newest first.
func ListWithdrawals(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawals service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultWithdrawalListLimit, 1, maxWithdrawalListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListForUser(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]withdrawalDTO, 0, len(rows))
		for _, row := range rows {
			out = append(out, toWithdrawalDTO(row))
		}
		responses.WriteSuccess(w, map[string]any{
			"withdrawals":   out,
			"denominations": svc.Denominations(),
		})
	}
}

// Cashout handles the cashout form post and answers with a 303 back to the
// cashout page carrying either the new withdrawal id or an error code.
func Cashout(svc withdrawals.Service, accountsSvc accounts.Service, redirectPath string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		redirect := func(params url.Values) {
			http.Redirect(w, r, cashoutRedirect(redirectPath, params), http.StatusSeeOther)
		}
		fail := func(code string) {
			redirect(url.Values{"error": []string{code}})
		}

		if svc == nil || accountsSvc == nil {
			fail(cashoutErrServer)
			return
		}

		account, err := openCallerAccount(r, accountsSvc)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Error(ctx, "cashout.account_open_failed", err)
			}
			fail(cashoutErrServer)
			return
		}

		var form cashoutForm
		// Only the amount can fail to bind. The service judges the email after the amount.
		if err := validators.DecodeForm(r, &form); err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "fields", validators.InvalidFields(err)), "cashout.form_invalid")
			}
			fail(cashoutErrInvalidAmount)
			return
		}

		withdrawal, err := svc.RequestCashout(ctx, withdrawals.CashoutInput{
			UserID:      account.UserID,
			AmountCents: form.AmountCents,
			PayoutEmail: validators.SanitizeString(form.PayoutEmail, 0),
		})
		if err != nil {
			code := cashoutErrorCode(err)
			if code == cashoutErrServer || code == cashoutErrPayoutFailed {
				if logg != nil {
					logg.Error(ctx, "cashout.request_failed", err)
				}
			}
			fail(code)
			return
		}

		redirect(url.Values{
			"status":     []string{"success"},
			"withdrawal": []string{withdrawal.ID.String()},
		})
	}
}

// CashoutStatus runs an on-demand reconcile of one of the caller's
// withdrawals. With ?wait=true it polls until the payout settles or the
// attempts run out.
func CashoutStatus(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawals service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withdrawalID, err := uuid.Parse(chi.URLParam(r, "withdrawalId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid withdrawal id"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithWithdrawalID(ctx, withdrawalID.String())
		}

		withdrawal, err := svc.CheckForUser(ctx, userID, withdrawalID, validators.ParseQueryBool(r, "wait"))
		if err != nil {
			if withdrawal == nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "cashout.status_check_degraded")
			}
			responses.WriteJSON(w, http.StatusOK, cashoutStatusResponse{OK: false, Status: string(withdrawal.Status)})
			return
		}
		responses.WriteJSON(w, http.StatusOK, cashoutStatusResponse{OK: true, Status: string(withdrawal.Status)})
	}
}

func cashoutErrorCode(err error) string {
	switch {
	case errors.Is(err, withdrawals.ErrInvalidAmount):
		return cashoutErrInvalidAmount
	case errors.Is(err, withdrawals.ErrInvalidEmail):
		return cashoutErrInvalidEmail
	case errors.Is(err, withdrawals.ErrWithdrawalInProgress):
		return cashoutErrInProgress
	case errors.Is(err, withdrawals.ErrInsufficientBalance):
		return cashoutErrInsufficient
	case errors.Is(err, withdrawals.ErrPayoutFailed):
		return cashoutErrPayoutFailed
	}
	return cashoutErrServer
}

func cashoutRedirect(path string, params url.Values) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "/cashout"
	}
	return path + "?" + params.Encode()
}
