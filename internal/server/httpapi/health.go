package httpapi

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Checker is a dependency that can be pinged.
type Checker interface {
	Ping(ctx context.Context) error
}

// Health serves liveness and readiness probes.
type Health struct {
	checks   map[string]Checker
	shutdown atomic.Bool
}

// NewHealth returns a handler probing the named checkers on readiness.
func NewHealth(checks map[string]Checker) *Health {
	return &Health{checks: checks}
}

// SetShutdown makes both probes report 503 while the server drains.
func (h *Health) SetShutdown(v bool) { h.shutdown.Store(v) }

type statusResponse struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks,omitempty"`
}

type HealthCheck struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency,omitempty"`
}

func (h *Health) Liveness(w http.ResponseWriter, _ *http.Request) {
	if h.shutdown.Load() {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "shutting_down"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *Health) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.shutdown.Load() {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "shutting_down"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := h.Run(ctx)
	status, code := "ok", http.StatusOK
	for _, c := range checks {
		if !c.Healthy {
			status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, statusResponse{Status: status, Checks: checks})
}

// Run pings every checker concurrently.
func (h *Health) Run(ctx context.Context) []HealthCheck {
	names := make([]string, 0, len(h.checks))
	for n := range h.checks {
		names = append(names, n)
	}
	slices.Sort(names)

	out := make([]HealthCheck, len(names))
	var wg sync.WaitGroup
	for i, n := range names {
		wg.Add(1)
		go func(i int, n string) {
			defer wg.Done()
			start := time.Now()
			err := h.checks[n].Ping(ctx)
			out[i] = HealthCheck{Name: n, Healthy: err == nil, Latency: time.Since(start).String()}
		}(i, n)
	}
	wg.Wait()
	return out
}

// Healthy reports whether every checker answered.
func (h *Health) Healthy(ctx context.Context) bool {
	for _, c := range h.Run(ctx) {
		if !c.Healthy {
			return false
		}
	}
	return true
}
