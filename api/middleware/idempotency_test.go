package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	f.data[key] = str
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{"contract create", http.MethodPost, "/api/v1/contracts", criticalIdempotencyTTL, true},
		{"license unbind", http.MethodPost, "/api/v1/licenses/8d5e9a2e-31cd-4f2e-8b0f-1f2ab0e40111/unbind", defaultIdempotencyTTL, true},
		{"billing reconcile", http.MethodPost, "/api/v1/billing/reconcile", defaultIdempotencyTTL, true},
		{"license nickname", http.MethodPatch, "/api/v1/licenses/8d5e9a2e-31cd-4f2e-8b0f-1f2ab0e40111", 0, false},
		{"contract list", http.MethodGet, "/api/v1/contracts", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.path)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyRequiresKey(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run without key")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"contract_number":42}}`))
	}))

	body := `{"company_name":"Acme"}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "key-1")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		if resp.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d", i, resp.Code)
		}
		if !strings.Contains(resp.Body.String(), "contract_number") {
			t.Fatalf("attempt %d: unexpected body %s", i, resp.Body.String())
		}
	}

	if calls != 1 {
		t.Fatalf("expected exactly one handler invocation, got %d", calls)
	}
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", strings.NewReader(`{"company_name":"Acme"}`))
	first.Header.Set("Idempotency-Key", "key-1")
	firstResp := httptest.NewRecorder()
	handler.ServeHTTP(firstResp, first)
	if firstResp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", firstResp.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", strings.NewReader(`{"company_name":"Globex"}`))
	second.Header.Set("Idempotency-Key", "key-1")
	secondResp := httptest.NewRecorder()
	handler.ServeHTTP(secondResp, second)

	if secondResp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", secondResp.Code)
	}
}

func TestIdempotencySkipsUnmatchedRoutes(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if calls != 1 {
		t.Fatalf("expected handler to run")
	}
	if len(store.data) != 0 {
		t.Fatalf("expected nothing stored, got %d records", len(store.data))
	}
}
