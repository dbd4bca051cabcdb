package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vantage-app/licensing-backend/api/responses"
	"github.com/vantage-app/licensing-backend/api/validators"
	"github.com/vantage-app/licensing-backend/internal/licenses"
	"github.com/vantage-app/licensing-backend/pkg/db/models"
	"github.com/vantage-app/licensing-backend/pkg/enums"
	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
	"github.com/vantage-app/licensing-backend/pkg/logger"
)

type licenseClientUpdateRequest struct {
	Client string `json:"client" validate:"required,max=120"`
}

// LicenseUpdateClient renames the license for the owner's own bookkeeping.
func LicenseUpdateClient(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		licenseID, err := uuid.Parse(chi.URLParam(r, "licenseID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid license id"))
			return
		}

		var payload licenseClientUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateClient(r.Context(), caller, licenseID, payload.Client)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, licenseResponseFromModel(updated))
	}
}

type licenseAdminUpdateRequest struct {
	Client     *string    `json:"client"`
	ExpireDate *time.Time `json:"expire_date"`
	PlanType   *string    `json:"plan_type"`
	Sold       *bool      `json:"sold"`
}

func (req licenseAdminUpdateRequest) toInput() (licenses.AdminUpdateInput, error) {
	input := licenses.AdminUpdateInput{
		Client:     req.Client,
		ExpireDate: req.ExpireDate,
		Sold:       req.Sold,
	}
	if req.PlanType != nil {
		planType, err := enums.ParsePlanType(strings.TrimSpace(*req.PlanType))
		if err != nil {
			return licenses.AdminUpdateInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan_type")
		}
		input.PlanType = &planType
	}
	return input, nil
}

// LicenseAdminUpdate rewrites license attributes from the back office.
func LicenseAdminUpdate(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		licenseID, err := uuid.Parse(chi.URLParam(r, "licenseID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid license id"))
			return
		}

		var payload licenseAdminUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.AdminUpdate(r.Context(), caller, licenseID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, licenseResponseFromModel(updated))
	}
}

// LicenseUnbind releases the device binding so the license can be activated elsewhere.
func LicenseUnbind(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		licenseID, err := uuid.Parse(chi.URLParam(r, "licenseID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid license id"))
			return
		}

		released, err := svc.Unbind(r.Context(), caller, licenseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, licenseResponseFromModel(released))
	}
}

type licenseResponse struct {
	ID             uuid.UUID      `json:"id"`
	Code           string         `json:"code"`
	Client         *string        `json:"client,omitempty"`
	PlanType       enums.PlanType `json:"plan_type"`
	IsUsed         bool           `json:"is_used"`
	DeviceID       *string        `json:"device_id,omitempty"`
	DeviceType     *string        `json:"device_type,omitempty"`
	ActivatedAt    *time.Time     `json:"activated_at,omitempty"`
	ExpireDate     *time.Time     `json:"expire_date,omitempty"`
	Sold           bool           `json:"sold"`
	IsStandalone   bool           `json:"is_standalone"`
	SubscriptionID *uuid.UUID     `json:"subscription_id,omitempty"`
	ContractID     *uuid.UUID     `json:"contract_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func licenseResponseFromModel(m *models.License) licenseResponse {
	return licenseResponse{
		ID:             m.ID,
		Code:           m.Code,
		Client:         m.Client,
		PlanType:       m.PlanType,
		IsUsed:         m.IsUsed,
		DeviceID:       m.DeviceID,
		DeviceType:     m.DeviceType,
		ActivatedAt:    m.ActivatedAt,
		ExpireDate:     m.ExpireDate,
		Sold:           m.Sold,
		IsStandalone:   m.IsStandalone,
		SubscriptionID: m.SubscriptionID,
		ContractID:     m.ContractID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
