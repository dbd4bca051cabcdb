package controllers

import (
	"net/http"

	"github.com/vantage-app/licensing-backend/api/responses"
	"github.com/vantage-app/licensing-backend/internal/reconciliation"
	"github.com/vantage-app/licensing-backend/pkg/logger"
)

// BillingReconcile replays the caller's provider billing history into the
// local store. Partial failures surface as a dependency error carrying the
// counts that did commit.
func BillingReconcile(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Reconcile(r.Context(), caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
