package controllers

import (
	"net/http"

	"github.com/vantage-app/licensing-backend/api/middleware"
	"github.com/vantage-app/licensing-backend/internal/access"
	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
)

func callerFromRequest(r *http.Request) (access.Caller, error) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		return access.Caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return caller, nil
}
