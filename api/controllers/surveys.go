package controllers

import (
	"net/http"

	"github.com/surveycash/surveycash-backend/api/middleware"
	"github.com/surveycash/surveycash-backend/api/responses"
	"github.com/surveycash/surveycash-backend/internal/offerwall"
	pkgerrors "github.com/surveycash/surveycash-backend/pkg/errors"
	"github.com/surveycash/surveycash-backend/pkg/logger"
)

// SurveyWallLink returns the partner iframe URL for the caller. The user id
// is passed as ext_user_id so reward callbacks resolve back to this account.
func SurveyWallLink(builder *offerwall.Builder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if builder == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "survey wall is not configured"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		identity := middleware.IdentityFromContext(r.Context())

		link, err := builder.URL(offerwall.Viewer{
			ExtUserID: userID.String(),
			Username:  identity.Username,
			Email:     identity.Email,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build survey wall url"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"url": link})
	}
}
