package observability

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthChecker manages liveness and readiness state for /healthz and
// /readyz.
type HealthChecker struct {
	ready     atomic.Bool
	startTime time.Time
	reason    atomic.Value // string
}

// NewHealthChecker creates a checker that starts not ready.
func NewHealthChecker() *HealthChecker {
	h := &HealthChecker{startTime: time.Now()}
	h.reason.Store("starting")
	return h
}

// SetReady marks the service as ready to accept traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
	if ready {
		h.reason.Store("")
	}
}

// SetNotReady flips readiness off and records why, e.g. "replaying" or
// "prices unavailable".
func (h *HealthChecker) SetNotReady(reason string) {
	h.reason.Store(reason)
	h.ready.Store(false)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// LivenessHandler returns 200 while the process is running.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(h.startTime).String(),
	})
}

// ReadinessHandler returns 200 once the ledger is restored and prices are
// loaded, 503 otherwise.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if h.ready.Load() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
		return
	}
	reason, _ := h.reason.Load().(string)
	writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
		"status": "not_ready",
		"reason": reason,
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
