package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vantage-app/licensing-backend/api/responses"
	"github.com/vantage-app/licensing-backend/api/validators"
	"github.com/vantage-app/licensing-backend/internal/contracts"
	"github.com/vantage-app/licensing-backend/pkg/db/models"
	"github.com/vantage-app/licensing-backend/pkg/enums"
	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
	"github.com/vantage-app/licensing-backend/pkg/logger"
)

type contractCreateRequest struct {
	CompanyName        string  `json:"company_name" validate:"required"`
	RepresentativeName string  `json:"representative_name" validate:"required"`
	Email              string  `json:"email" validate:"required,email"`
	Phone              string  `json:"phone"`
	Value              string  `json:"value" validate:"required"`
	QuoteID            *string `json:"quote_id"`
	LicenseQuantity    int     `json:"license_quantity" validate:"required,min=1"`
	PlanType           string  `json:"plan_type"`
	ExpireDays         int     `json:"expire_days" validate:"min=0"`
}

func (req contractCreateRequest) toInput() (contracts.CreateContractInput, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(req.Value))
	if err != nil {
		return contracts.CreateContractInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract value")
	}

	input := contracts.CreateContractInput{
		CompanyName:        strings.TrimSpace(req.CompanyName),
		RepresentativeName: strings.TrimSpace(req.RepresentativeName),
		Email:              strings.TrimSpace(req.Email),
		Phone:              strings.TrimSpace(req.Phone),
		Value:              value,
		LicenseQuantity:    req.LicenseQuantity,
		ExpireDays:         req.ExpireDays,
	}

	if req.QuoteID != nil && strings.TrimSpace(*req.QuoteID) != "" {
		quoteID, err := uuid.Parse(strings.TrimSpace(*req.QuoteID))
		if err != nil {
			return contracts.CreateContractInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quote_id")
		}
		input.QuoteID = &quoteID
	}

	if raw := strings.TrimSpace(req.PlanType); raw != "" {
		planType, err := enums.ParsePlanType(raw)
		if err != nil {
			return contracts.CreateContractInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan_type")
		}
		input.PlanType = planType
	}

	return input, nil
}

// ContractCreate issues a contract together with its license batch.
func ContractCreate(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload contractCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateContract(r.Context(), caller, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, contractCreateResponseFromResult(result))
	}
}

// ContractList returns contracts visible to the caller.
func ContractList(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListContracts(r.Context(), caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]contractResponse, 0, len(list))
		for i := range list {
			out = append(out, contractResponseFromModel(&list[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// ContractLicenses returns the licenses provisioned under one contract.
func ContractLicenses(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contractID, err := uuid.Parse(chi.URLParam(r, "contractID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract id"))
			return
		}

		list, err := svc.GetContractLicenses(r.Context(), caller, contractID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]licenseResponse, 0, len(list))
		for i := range list {
			out = append(out, licenseResponseFromModel(&list[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type contractUpdateRequest struct {
	CompanyName        *string `json:"company_name"`
	RepresentativeName *string `json:"representative_name"`
	Email              *string `json:"email" validate:"omitempty,email"`
	Phone              *string `json:"phone"`
	Value              *string `json:"value"`
}

func (req contractUpdateRequest) toInput() (contracts.UpdateContractInput, error) {
	input := contracts.UpdateContractInput{
		CompanyName:        req.CompanyName,
		RepresentativeName: req.RepresentativeName,
		Email:              req.Email,
		Phone:              req.Phone,
	}
	if req.Value != nil {
		value, err := decimal.NewFromString(strings.TrimSpace(*req.Value))
		if err != nil {
			return contracts.UpdateContractInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract value")
		}
		input.Value = &value
	}
	return input, nil
}

// ContractUpdate rewrites contact fields on an existing contract.
func ContractUpdate(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contractID, err := uuid.Parse(chi.URLParam(r, "contractID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract id"))
			return
		}

		var payload contractUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateContract(r.Context(), caller, contractID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, contractResponseFromModel(updated))
	}
}

// ContractDelete removes a contract and cascades to its licenses.
func ContractDelete(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contractID, err := uuid.Parse(chi.URLParam(r, "contractID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract id"))
			return
		}

		if err := svc.DeleteContract(r.Context(), caller, contractID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"deleted": true})
	}
}

type contractResponse struct {
	ID                 uuid.UUID  `json:"id"`
	ContractNumber     int64      `json:"contract_number"`
	CompanyName        string     `json:"company_name"`
	RepresentativeName string     `json:"representative_name"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone,omitempty"`
	Value              string     `json:"value"`
	QuoteID            *uuid.UUID `json:"quote_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func contractResponseFromModel(m *models.Contract) contractResponse {
	return contractResponse{
		ID:                 m.ID,
		ContractNumber:     m.ContractNumber,
		CompanyName:        m.CompanyName,
		RepresentativeName: m.RepresentativeName,
		Email:              m.Email,
		Phone:              m.Phone,
		Value:              m.Value.String(),
		QuoteID:            m.QuoteID,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

type contractCreateResponse struct {
	Contract contractResponse  `json:"contract"`
	Licenses []licenseResponse `json:"licenses"`
}

func contractCreateResponseFromResult(result *contracts.CreateContractResult) contractCreateResponse {
	out := contractCreateResponse{
		Contract: contractResponseFromModel(result.Contract),
		Licenses: make([]licenseResponse, 0, len(result.Licenses)),
	}
	for i := range result.Licenses {
		out.Licenses = append(out.Licenses, licenseResponseFromModel(&result.Licenses[i]))
	}
	return out
}
