package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forgewright/orchestrator/internal/service"
)

// TickRunner is the subset of OrchestratorService the HTTP surface drives.
type TickRunner interface {
	Tick(ctx context.Context) service.OrchestrationResult
	WorkCycle(ctx context.Context, agentID string) service.WorkCycleResult
}

// Checker is a named dependency health check for the deep health endpoint.
type Checker struct {
	Name string
	Func func(ctx context.Context) error
}

// Handlers holds everything the operational HTTP routes need.
type Handlers struct {
	Orchestrator TickRunner
	Checks       []Checker
}

// HandleHealthz answers the liveness probe: it never touches a
// dependency, so a slow database can't make the process look dead.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

type deepHealthEntry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type deepHealthResponse struct {
	Status string            `json:"status"`
	Checks []deepHealthEntry `json:"checks"`
}

// HandleHealthzDeep runs every registered dependency check and reports
// "degraded" if any fails, without ever returning a 5xx for a down
// dependency — callers should read the body, not the status code.
func (h *Handlers) HandleHealthzDeep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := deepHealthResponse{Status: "ok"}
	for _, c := range h.Checks {
		entry := deepHealthEntry{Name: c.Name, Status: "ok"}
		if err := c.Func(ctx); err != nil {
			entry.Status = "error"
			entry.Error = err.Error()
			resp.Status = "degraded"
		}
		resp.Checks = append(resp.Checks, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleTick runs one orchestration tick on demand, bypassing the
// scheduler's interval.
func (h *Handlers) HandleTick(w http.ResponseWriter, r *http.Request) {
	result := h.Orchestrator.Tick(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// HandleWorkCycle runs one work cycle for a single agent on demand.
func (h *Handlers) HandleWorkCycle(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agent")
	result := h.Orchestrator.WorkCycle(r.Context(), agentID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}
