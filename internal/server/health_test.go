package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doProbe(t *testing.T, s *HealthServer, path string) (*http.Response, HealthResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding %s response: %v", path, err)
	}
	return rec.Result(), body
}

func TestHealthServer_NoChecks(t *testing.T) {
	s := NewHealthServer(&HealthConfig{Version: "0.1.0"})

	resp, body := doProbe(t, s, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if body.Status != HealthStatusHealthy {
		t.Errorf("expected healthy, got %s", body.Status)
	}
	if body.Version != "0.1.0" {
		t.Errorf("expected version 0.1.0, got %s", body.Version)
	}
}

func TestHealthServer_UnhealthyCheck(t *testing.T) {
	s := NewHealthServer(nil)
	s.RegisterCheck("database", DatabaseHealthChecker(func(context.Context) error {
		return errors.New("connection refused")
	}))

	resp, body := doProbe(t, s, "/health")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
	if body.Status != HealthStatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", body.Status)
	}
	if len(body.Checks) != 1 || body.Checks[0].Name != "database" {
		t.Fatalf("unexpected checks %+v", body.Checks)
	}
}

func TestHealthServer_DegradedDoesNotFail(t *testing.T) {
	s := NewHealthServer(nil)
	s.RegisterCheck("llm", LLMHealthChecker("ollama", func(context.Context) error {
		return errors.New("model loading")
	}))
	s.RegisterCheck("temporal", TemporalHealthChecker(func(context.Context) error {
		return nil
	}))

	resp, body := doProbe(t, s, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("degraded should stay 200, got %d", resp.StatusCode)
	}
	if body.Status != HealthStatusDegraded {
		t.Errorf("expected degraded, got %s", body.Status)
	}
}

func TestHealthServer_LLMCheckerNilFn(t *testing.T) {
	check := LLMHealthChecker("ollama", nil)(context.Background())
	if check.Status != HealthStatusHealthy {
		t.Errorf("nil check fn should report healthy, got %s", check.Status)
	}
}

func TestHealthServer_ReadyProbe(t *testing.T) {
	s := NewHealthServer(nil)

	resp, _ := doProbe(t, s, "/ready")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before SetReady, got %d", resp.StatusCode)
	}

	s.SetReady(true)
	resp, _ = doProbe(t, s, "/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after SetReady, got %d", resp.StatusCode)
	}
}

func TestHealthServer_LiveProbe(t *testing.T) {
	s := NewHealthServer(nil)

	resp, _ := doProbe(t, s, "/live")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	s.SetLive(false)
	resp, _ = doProbe(t, s, "/livez")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after SetLive(false), got %d", resp.StatusCode)
	}
}
