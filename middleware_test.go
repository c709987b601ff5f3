package orakle

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimitMiddlewareRejectsBurstOverflow(t *testing.T) {
	handler := rateLimitMiddleware(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/framework/chat", nil)
	req.RemoteAddr = "203.0.113.5:54321"

	var statuses []int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("expected the first burst requests to pass, got %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("expected the request beyond burst to be rate limited, got %v", statuses)
	}
}

func TestRateLimitMiddlewareTracksIPsIndependently(t *testing.T) {
	handler := rateLimitMiddleware(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	reqA := httptest.NewRequest(http.MethodGet, "/framework/chat", nil)
	reqA.RemoteAddr = "203.0.113.1:1111"
	reqB := httptest.NewRequest(http.MethodGet, "/framework/chat", nil)
	reqB.RemoteAddr = "203.0.113.2:2222"

	recA := httptest.NewRecorder()
	handler.ServeHTTP(recA, reqA)
	recB := httptest.NewRecorder()
	handler.ServeHTTP(recB, reqB)

	if recA.Code != http.StatusOK || recB.Code != http.StatusOK {
		t.Fatalf("expected distinct IPs to each get their own budget, got %d and %d", recA.Code, recB.Code)
	}
}
