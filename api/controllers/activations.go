package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vantage-app/licensing-backend/api/responses"
	"github.com/vantage-app/licensing-backend/api/validators"
	"github.com/vantage-app/licensing-backend/internal/licenses"
	"github.com/vantage-app/licensing-backend/pkg/enums"
	"github.com/vantage-app/licensing-backend/pkg/logger"
)

type activationRequest struct {
	Code       string `json:"code" validate:"required"`
	DeviceID   string `json:"device_id" validate:"required,max=190"`
	DeviceType string `json:"device_type" validate:"max=60"`
}

// activationResponse deliberately exposes less than the private license view.
// The desktop client only needs the binding outcome.
type activationResponse struct {
	Code        string         `json:"code"`
	DeviceID    string         `json:"device_id"`
	PlanType    enums.PlanType `json:"plan_type"`
	ActivatedAt *time.Time     `json:"activated_at,omitempty"`
	ExpireDate  *time.Time     `json:"expire_date,omitempty"`
}

// ActivationCreate binds a license code to the requesting device.
func ActivationCreate(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload activationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bound, err := svc.Activate(r.Context(), licenses.ActivateInput{
			Code:       payload.Code,
			DeviceID:   payload.DeviceID,
			DeviceType: payload.DeviceType,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := activationResponse{
			Code:        bound.Code,
			PlanType:    bound.PlanType,
			ActivatedAt: bound.ActivatedAt,
			ExpireDate:  bound.ExpireDate,
		}
		if bound.DeviceID != nil {
			out.DeviceID = *bound.DeviceID
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

type licenseStatusResponse struct {
	Code       string         `json:"code"`
	Bound      bool           `json:"bound"`
	Expired    bool           `json:"expired"`
	ExpireDate *time.Time     `json:"expire_date,omitempty"`
	PlanType   enums.PlanType `json:"plan_type"`
}

// LicenseStatus reports the public binding state of a license code.
func LicenseStatus(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.Status(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, licenseStatusResponse{
			Code:       status.Code,
			Bound:      status.Bound,
			Expired:    status.Expired,
			ExpireDate: status.ExpireDate,
			PlanType:   status.PlanType,
		})
	}
}
