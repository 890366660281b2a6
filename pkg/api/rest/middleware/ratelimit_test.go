package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiter_WeightForPath(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{SolveWeight: 5, ResidualWeight: 1})

	if w := rl.weightForPath("/v1/solve"); w != 5 {
		t.Errorf("weightForPath(/v1/solve) = %d, want 5", w)
	}
	if w := rl.weightForPath("/v1/residual"); w != 1 {
		t.Errorf("weightForPath(/v1/residual) = %d, want 1", w)
	}
	if w := rl.weightForPath("/v1/health"); w != 1 {
		t.Errorf("weightForPath(/v1/health) = %d, want 1", w)
	}
}

func TestRateLimiter_DefaultsWeights(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})

	if rl.config.SolveWeight != 1 {
		t.Errorf("SolveWeight = %d, want default of 1", rl.config.SolveWeight)
	}
	if rl.config.ResidualWeight != 1 {
		t.Errorf("ResidualWeight = %d, want default of 1", rl.config.ResidualWeight)
	}
}

func TestRateLimitMiddleware_SolveExhaustsBurstFaster(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		Enabled:        true,
		RequestsPerSec: 100,
		Burst:          10,
		PerIP:          true,
		SolveWeight:    5,
		ResidualWeight: 1,
	})
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	allowed := 0
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/solve", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}

	// Burst of 10 tokens at 5 tokens/solve allows exactly 2 solves before
	// the third is throttled.
	if allowed != 2 {
		t.Errorf("allowed = %d solve requests, want 2 before burst exhausted", allowed)
	}
}

func TestRateLimitMiddleware_ResidualCheaperThanSolve(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		Enabled:        true,
		RequestsPerSec: 100,
		Burst:          10,
		PerIP:          true,
		SolveWeight:    5,
		ResidualWeight: 1,
	})
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	allowed := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/residual", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}

	if allowed != 10 {
		t.Errorf("allowed = %d residual requests, want all 10 within a 10-token burst", allowed)
	}
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Enabled: false})
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/solve", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 when rate limiting disabled", i, rec.Code)
		}
	}
}

func TestRateLimitMiddleware_PerUserKeysByOperator(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		Enabled:        true,
		RequestsPerSec: 100,
		Burst:          5,
		PerUser:        true,
		SolveWeight:    1,
		ResidualWeight: 1,
	})
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	claims := &Claims{OperatorID: "op-9"}
	req := httptest.NewRequest(http.MethodPost, "/v1/residual", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserContextKey, claims))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := limiter.limiters["operator:op-9"]; !ok {
		t.Error("expected a per-operator limiter keyed by claims.OperatorID")
	}
}
