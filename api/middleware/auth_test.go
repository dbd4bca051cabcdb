package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/vantage-app/licensing-backend/pkg/auth"
	"github.com/vantage-app/licensing-backend/pkg/config"
	"github.com/vantage-app/licensing-backend/pkg/enums"
)

func jwtTestConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "unit-test-secret",
		Issuer:            "vantage-test",
		ExpirationMinutes: 5,
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, role enums.Role) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Email:  "owner@vantage.dev",
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, userID
}

func TestAuthSeedsCallerContext(t *testing.T) {
	cfg := jwtTestConfig()
	token, userID := mintTestToken(t, cfg, enums.RoleManager)

	var seen bool
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = true
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			t.Fatalf("caller missing from context")
		}
		if caller.UserID != userID {
			t.Fatalf("unexpected user id: %s", caller.UserID)
		}
		if caller.Email != "owner@vantage.dev" {
			t.Fatalf("unexpected email: %s", caller.Email)
		}
		if caller.Role != enums.RoleManager {
			t.Fatalf("unexpected role: %s", caller.Role)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if !seen {
		t.Fatalf("handler not reached")
	}
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAuthMissingHeader(t *testing.T) {
	handler := Auth(jwtTestConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	otherCfg := jwtTestConfig()
	otherCfg.Secret = "some-other-secret"
	token, _ := mintTestToken(t, otherCfg, enums.RoleUser)

	handler := Auth(jwtTestConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	cfg := jwtTestConfig()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now().Add(-time.Hour), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "owner@vantage.dev",
		Role:   enums.RoleUser,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCallerFromContextMissingIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := CallerFromContext(req.Context()); ok {
		t.Fatalf("expected missing caller")
	}
}
