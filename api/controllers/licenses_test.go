package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vantage-app/licensing-backend/internal/access"
	"github.com/vantage-app/licensing-backend/internal/licenses"
	"github.com/vantage-app/licensing-backend/pkg/db/models"
	"github.com/vantage-app/licensing-backend/pkg/enums"
	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
)

type stubLicenseEditor struct {
	stubLicenseService
	unbindResult *models.License
	unbindErr    error
	updateResult *models.License
	updateErr    error
	adminResult  *models.License
	adminErr     error
	gotUnbindID  uuid.UUID
	gotClient    string
	gotAdminIn   licenses.AdminUpdateInput
}

func (s *stubLicenseEditor) Unbind(ctx context.Context, caller access.Caller, licenseID uuid.UUID) (*models.License, error) {
	s.gotUnbindID = licenseID
	return s.unbindResult, s.unbindErr
}

func (s *stubLicenseEditor) UpdateClient(ctx context.Context, caller access.Caller, licenseID uuid.UUID, client string) (*models.License, error) {
	s.gotClient = client
	return s.updateResult, s.updateErr
}

func (s *stubLicenseEditor) AdminUpdate(ctx context.Context, caller access.Caller, licenseID uuid.UUID, input licenses.AdminUpdateInput) (*models.License, error) {
	s.gotAdminIn = input
	return s.adminResult, s.adminErr
}

func TestLicenseUnbindSuccess(t *testing.T) {
	released := &models.License{ID: uuid.New(), Code: "AB12C-DE34F-GH56I-JK78L-MN90P"}
	svc := &stubLicenseEditor{unbindResult: released}

	router := chi.NewRouter()
	router.Post("/api/v1/licenses/{licenseID}/unbind", LicenseUnbind(svc, nil))

	req := authedRequest(http.MethodPost, "/api/v1/licenses/"+released.ID.String()+"/unbind", "", enums.RoleUser)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.gotUnbindID != released.ID {
		t.Fatalf("unexpected license id: %s", svc.gotUnbindID)
	}

	var envelope struct {
		Data licenseResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.IsUsed {
		t.Fatalf("expected released license in response")
	}
}

func TestLicenseUnbindForbidden(t *testing.T) {
	svc := &stubLicenseEditor{unbindErr: pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to license.unbind")}

	router := chi.NewRouter()
	router.Post("/api/v1/licenses/{licenseID}/unbind", LicenseUnbind(svc, nil))

	req := authedRequest(http.MethodPost, "/api/v1/licenses/"+uuid.NewString()+"/unbind", "", enums.RoleUser)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestLicenseUpdateClientSuccess(t *testing.T) {
	updated := &models.License{ID: uuid.New(), Code: "AB12C-DE34F-GH56I-JK78L-MN90P"}
	svc := &stubLicenseEditor{updateResult: updated}

	router := chi.NewRouter()
	router.Patch("/api/v1/licenses/{licenseID}", LicenseUpdateClient(svc, nil))

	req := authedRequest(http.MethodPatch, "/api/v1/licenses/"+updated.ID.String(), `{"client":"Studio laptop"}`, enums.RoleUser)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.gotClient != "Studio laptop" {
		t.Fatalf("unexpected client: %q", svc.gotClient)
	}
}

func TestLicenseUpdateClientMissingBody(t *testing.T) {
	router := chi.NewRouter()
	router.Patch("/api/v1/licenses/{licenseID}", LicenseUpdateClient(&stubLicenseEditor{}, nil))

	req := authedRequest(http.MethodPatch, "/api/v1/licenses/"+uuid.NewString(), `{}`, enums.RoleUser)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestLicenseAdminUpdateParsesPlanType(t *testing.T) {
	updated := &models.License{ID: uuid.New(), Code: "AB12C-DE34F-GH56I-JK78L-MN90P", PlanType: enums.PlanTypeLifetime}
	svc := &stubLicenseEditor{adminResult: updated}

	router := chi.NewRouter()
	router.Patch("/api/v1/admin/licenses/{licenseID}", LicenseAdminUpdate(svc, nil))

	req := authedRequest(http.MethodPatch, "/api/v1/admin/licenses/"+updated.ID.String(), `{"plan_type":"lifetime","sold":true}`, enums.RoleAdmin)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.gotAdminIn.PlanType == nil || *svc.gotAdminIn.PlanType != enums.PlanTypeLifetime {
		t.Fatalf("plan type not forwarded: %+v", svc.gotAdminIn)
	}
	if svc.gotAdminIn.Sold == nil || !*svc.gotAdminIn.Sold {
		t.Fatalf("sold flag not forwarded")
	}
}

func TestLicenseAdminUpdateRejectsBadPlanType(t *testing.T) {
	router := chi.NewRouter()
	router.Patch("/api/v1/admin/licenses/{licenseID}", LicenseAdminUpdate(&stubLicenseEditor{}, nil))

	req := authedRequest(http.MethodPatch, "/api/v1/admin/licenses/"+uuid.NewString(), `{"plan_type":"weekly"}`, enums.RoleAdmin)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
