package controllers

import (
	"net/http"

	"github.com/surveycash/surveycash-backend/api/responses"
	"github.com/surveycash/surveycash-backend/internal/rewards"
	"github.com/surveycash/surveycash-backend/pkg/logger"
)

// RewardPostback receives the survey partner's reward callback. It always
// acknowledges with 200 "ok": malformed, unknown and duplicate deliveries
// are dropped here and logged.
func RewardPostback(applier rewards.Applier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		cb, err := rewards.ParseCallback(r.URL.Query())
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "reason", err.Error()), "postback.dropped")
			}
			responses.WriteText(w, http.StatusOK, "ok")
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"trans_id":    cb.TransID,
				"reward_type": cb.Type,
				"direction":   string(cb.Direction),
			})
		}

		if applier == nil {
			if logg != nil {
				logg.Warn(ctx, "postback.applier_unavailable")
			}
			responses.WriteText(w, http.StatusOK, "ok")
			return
		}

		if _, err := applier.Apply(ctx, cb); err != nil && logg != nil {
			logg.Error(ctx, "postback.apply_failed", err)
		}
		responses.WriteText(w, http.StatusOK, "ok")
	}
}
