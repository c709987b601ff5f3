package supervisor

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckPortFreeDetectsBoundPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind a port for the test: %v", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	if err := checkPortFree(port); err == nil {
		t.Fatal("expected an error for an already-bound port")
	}
}

func TestProbeHealthReflectsStatusCode(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	client := &http.Client{Timeout: time.Second}
	ctx := context.Background()
	if !probeHealth(ctx, client, ok.URL) {
		t.Error("expected the 200 server to be healthy")
	}
	if probeHealth(ctx, client, down.URL) {
		t.Error("expected the 503 server to be unhealthy")
	}
}

func TestHealthOfUnknownService(t *testing.T) {
	s := New()
	if h := s.Health("nonexistent"); h != HealthUnknown {
		t.Fatalf("expected HealthUnknown for an unregistered service, got %v", h)
	}
}
