package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vantage-app/licensing-backend/internal/access"
	"github.com/vantage-app/licensing-backend/internal/reconciliation"
	"github.com/vantage-app/licensing-backend/pkg/enums"
	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
)

type stubReconcileService struct {
	result    *reconciliation.Result
	err       error
	gotCaller access.Caller
}

func (s *stubReconcileService) Reconcile(ctx context.Context, caller access.Caller) (*reconciliation.Result, error) {
	s.gotCaller = caller
	return s.result, s.err
}

func TestBillingReconcileSuccess(t *testing.T) {
	svc := &stubReconcileService{result: &reconciliation.Result{
		SubscriptionsSynced: 2,
		PaymentsSynced:      3,
		LicensesCreated:     1,
	}}
	handler := BillingReconcile(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/billing/reconcile", "", enums.RoleUser)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.gotCaller.Role != enums.RoleUser {
		t.Fatalf("unexpected caller role: %s", svc.gotCaller.Role)
	}

	var envelope struct {
		Data reconciliation.Result `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.PaymentsSynced != 3 {
		t.Fatalf("unexpected payments count: %d", envelope.Data.PaymentsSynced)
	}
}

func TestBillingReconcilePartialFailure(t *testing.T) {
	svc := &stubReconcileService{
		result: &reconciliation.Result{SubscriptionsSynced: 1},
		err: pkgerrors.New(pkgerrors.CodeDependency, "reconciliation completed partially").
			WithDetails(map[string]any{"subscriptions": 1, "payments": 0, "licenses": 0}),
	}
	handler := BillingReconcile(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/billing/reconcile", "", enums.RoleUser)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", resp.Code)
	}

	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeDependency) {
		t.Fatalf("unexpected error code: %s", envelope.Error.Code)
	}
	if envelope.Error.Details["subscriptions"] != float64(1) {
		t.Fatalf("expected partial counts in details, got %+v", envelope.Error.Details)
	}
}

func TestBillingReconcileMissingCaller(t *testing.T) {
	handler := BillingReconcile(&stubReconcileService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/reconcile", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
