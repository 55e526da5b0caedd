package observability_test

import (
	"DSCEngine/internal/observability"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestReadiness_ReportsReason(t *testing.T) {
	h := observability.NewHealthChecker()
	h.SetNotReady("replaying")

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["reason"] != "replaying" {
		t.Errorf("reason: got %q, want %q", body["reason"], "replaying")
	}
}

func TestReadiness_Ready(t *testing.T) {
	h := observability.NewHealthChecker()
	if h.IsReady() {
		t.Fatal("new checker should start not ready")
	}
	h.SetReady(true)
	if !h.IsReady() {
		t.Fatal("SetReady(true) not reflected")
	}

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestNewMetrics_IsolatedRegistries(t *testing.T) {
	// Two metric sets on separate registries must not collide.
	observability.NewMetrics(prometheus.NewRegistry())
	observability.NewMetrics(prometheus.NewRegistry())
}
