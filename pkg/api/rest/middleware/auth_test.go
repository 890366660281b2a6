package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testSecret = "test-signing-secret"

func TestAuthMiddleware_Disabled(t *testing.T) {
	called := false
	handler := AuthMiddleware(AuthConfig{Enabled: false})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/solve", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected handler to run when auth is disabled")
	}
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	handler := AuthMiddleware(AuthConfig{Enabled: true, JWTSecret: testSecret})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without a token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/solve", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_PublicPathSkipsAuth(t *testing.T) {
	called := false
	handler := AuthMiddleware(AuthConfig{
		Enabled:     true,
		JWTSecret:   testSecret,
		PublicPaths: []string{"/v1/health"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected handler to run for a public path without a token")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuthMiddleware_PrivilegedPathRequiresRole(t *testing.T) {
	token, err := GenerateToken("op-1", "alice", []string{"residual"}, 5, testSecret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	handler := AuthMiddleware(AuthConfig{
		Enabled:          true,
		JWTSecret:        testSecret,
		PrivilegedPaths:  []string{"/v1/solve"},
		PrivilegedRole:   "solve",
		DefaultMaxCycles: 10,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without the privileged role")
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/solve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestAuthMiddleware_GrantsMaxCyclesFromClaims(t *testing.T) {
	token, err := GenerateToken("op-1", "alice", []string{"solve"}, 25, testSecret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	var gotClaims *Claims
	handler := AuthMiddleware(AuthConfig{
		Enabled:          true,
		JWTSecret:        testSecret,
		PrivilegedPaths:  []string{"/v1/solve"},
		PrivilegedRole:   "solve",
		DefaultMaxCycles: 10,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaimsFromContext(r.Context())
		if !ok {
			t.Fatal("expected claims in request context")
		}
		gotClaims = claims
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/solve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotClaims == nil {
		t.Fatal("expected handler to observe claims")
	}
	if gotClaims.MaxCycles != 25 {
		t.Errorf("MaxCycles = %d, want 25", gotClaims.MaxCycles)
	}
	if gotClaims.OperatorID != "op-1" {
		t.Errorf("OperatorID = %q, want %q", gotClaims.OperatorID, "op-1")
	}
}

func TestAuthMiddleware_DefaultsMaxCyclesWhenClaimMissing(t *testing.T) {
	token, err := GenerateToken("op-2", "bob", []string{"solve"}, 0, testSecret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	var gotCycles int
	handler := AuthMiddleware(AuthConfig{
		Enabled:          true,
		JWTSecret:        testSecret,
		PrivilegedPaths:  []string{"/v1/solve"},
		PrivilegedRole:   "solve",
		DefaultMaxCycles: 7,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := GetClaimsFromContext(r.Context())
		gotCycles = claims.MaxCycles
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/solve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotCycles != 7 {
		t.Errorf("MaxCycles = %d, want default of 7", gotCycles)
	}
}

func TestGetClaimsFromContext_Absent(t *testing.T) {
	if _, ok := GetClaimsFromContext(context.Background()); ok {
		t.Error("expected no claims in an empty context")
	}
}
