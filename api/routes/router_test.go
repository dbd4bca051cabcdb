package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vantage-app/licensing-backend/internal/access"
	"github.com/vantage-app/licensing-backend/internal/contracts"
	"github.com/vantage-app/licensing-backend/internal/licenses"
	"github.com/vantage-app/licensing-backend/internal/reconciliation"
	pkgAuth "github.com/vantage-app/licensing-backend/pkg/auth"
	"github.com/vantage-app/licensing-backend/pkg/config"
	"github.com/vantage-app/licensing-backend/pkg/db/models"
	"github.com/vantage-app/licensing-backend/pkg/enums"
	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
)

type stubLicenseService struct{}

func (stubLicenseService) Activate(ctx context.Context, input licenses.ActivateInput) (*models.License, error) {
	deviceID := input.DeviceID
	return &models.License{ID: uuid.New(), Code: input.Code, IsUsed: true, DeviceID: &deviceID}, nil
}

func (stubLicenseService) Status(ctx context.Context, code string) (*licenses.StatusResult, error) {
	return &licenses.StatusResult{Code: code, Bound: false, PlanType: enums.PlanTypeSubscription}, nil
}

func (stubLicenseService) Unbind(ctx context.Context, caller access.Caller, licenseID uuid.UUID) (*models.License, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
}

func (stubLicenseService) UpdateClient(ctx context.Context, caller access.Caller, licenseID uuid.UUID, client string) (*models.License, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
}

func (stubLicenseService) AdminUpdate(ctx context.Context, caller access.Caller, licenseID uuid.UUID, input licenses.AdminUpdateInput) (*models.License, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
}

type stubContractService struct{}

func (stubContractService) CreateContract(ctx context.Context, caller access.Caller, input contracts.CreateContractInput) (*contracts.CreateContractResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubContractService) ListContracts(ctx context.Context, caller access.Caller) ([]models.Contract, error) {
	return []models.Contract{{ID: uuid.New(), ContractNumber: 9, CompanyName: "Acme"}}, nil
}

func (stubContractService) GetContractLicenses(ctx context.Context, caller access.Caller, contractID uuid.UUID) ([]models.License, error) {
	return nil, nil
}

func (stubContractService) UpdateContract(ctx context.Context, caller access.Caller, contractID uuid.UUID, input contracts.UpdateContractInput) (*models.Contract, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubContractService) DeleteContract(ctx context.Context, caller access.Caller, contractID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

type stubReconcileService struct{}

func (stubReconcileService) Reconcile(ctx context.Context, caller access.Caller) (*reconciliation.Result, error) {
	return &reconciliation.Result{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "vantage-test",
			ExpirationMinutes: 5,
		},
	}
}

func newTestRouter() http.Handler {
	return NewRouter(
		testConfig(),
		nil,
		nil,
		nil,
		nil,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		stubLicenseService{},
		stubContractService{},
		stubReconcileService{},
	)
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRouterPublicLicenseStatus(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/licenses/AB12C-DE34F-GH56I-JK78L-MN90P/status", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data struct {
			Code string `json:"code"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Code != "AB12C-DE34F-GH56I-JK78L-MN90P" {
		t.Fatalf("unexpected code: %s", envelope.Data.Code)
	}
}

func TestRouterPrivateRoutesRequireAuth(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRouterPrivateRouteWithToken(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(
		cfg,
		nil,
		nil,
		nil,
		nil,
		nil,
		stubLicenseService{},
		stubContractService{},
		stubReconcileService{},
	)

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "owner@vantage.dev",
		Role:   enums.RoleManager,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
