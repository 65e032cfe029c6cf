package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/etale-systems/tracehub/internal/analytics"
	"github.com/etale-systems/tracehub/internal/domain"
	"github.com/etale-systems/tracehub/internal/metrics"
	"github.com/etale-systems/tracehub/internal/server"
	"github.com/etale-systems/tracehub/internal/storage"
)

type createTraceRequest struct {
	ID          string          `json:"id"`
	Timestamp   *time.Time      `json:"timestamp"`
	Task        string          `json:"task" validate:"required"`
	Context     json.RawMessage `json:"context" validate:"required"`
	ModelOutput json.RawMessage `json:"model_output" validate:"required"`
	Metadata    json.RawMessage `json:"metadata" validate:"required"`
}

// CreateTrace ingests one invocation record. The submitting credential
// was already resolved by the API key middleware.
func (h *Handler) CreateTrace(w http.ResponseWriter, r *http.Request) {
	var req createTraceRequest
	if err := h.decode(r, &req); err != nil {
		server.WriteError(w, err)
		return
	}

	tr := &domain.Trace{
		ID:          req.ID,
		Task:        req.Task,
		Context:     req.Context,
		ModelOutput: req.ModelOutput,
		Metadata:    req.Metadata,
	}
	if req.Timestamp != nil {
		tr.Timestamp = *req.Timestamp
	}

	cred := server.Credential(r.Context())

	stored, err := h.traces.Append(r.Context(), server.TenantID(r.Context()), cred.ID, tr)
	if err != nil {
		server.WriteError(w, err)
		return
	}

	metrics.TracesIngested.Inc()
	server.AddLogField(r.Context(), "trace_id", stored.ID)

	server.WriteJSON(w, http.StatusOK, stored)
}

// parseTraceFilter reads the task/from/to query parameters shared by
// the list and analytics reads.
func parseTraceFilter(r *http.Request) (storage.TraceFilter, error) {
	f := storage.TraceFilter{Task: r.URL.Query().Get("task")}

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, domain.ErrInvalidInput("from must be an RFC 3339 timestamp")
		}
		f.From = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, domain.ErrInvalidInput("to must be an RFC 3339 timestamp")
		}
		f.To = &t
	}

	return f, nil
}

// ListTraces returns the caller's traces matching the supplied
// filters, newest first, capped at the page size.
func (h *Handler) ListTraces(w http.ResponseWriter, r *http.Request) {
	f, err := parseTraceFilter(r)
	if err != nil {
		server.WriteError(w, err)
		return
	}

	traces, err := h.traces.List(r.Context(), server.TenantID(r.Context()), f)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	if traces == nil {
		traces = []*domain.Trace{}
	}

	server.WriteJSON(w, http.StatusOK, traces)
}

// GetTrace returns one owned trace, including the name of the
// credential that created it when that credential still exists.
func (h *Handler) GetTrace(w http.ResponseWriter, r *http.Request) {
	tr, err := h.traces.Get(r.Context(), server.TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		server.WriteError(w, err)
		return
	}

	server.WriteJSON(w, http.StatusOK, tr)
}

// ReplayTrace clones an owned trace under a fresh id and timestamp.
func (h *Handler) ReplayTrace(w http.ResponseWriter, r *http.Request) {
	clone, err := h.traces.Replay(r.Context(), server.TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		server.WriteError(w, err)
		return
	}

	server.WriteJSON(w, http.StatusOK, clone)
}

// ToolAnalytics reduces the caller's filtered trace window to per-tool
// statistics. The window is the same 100-trace page the list read
// returns, so the dashboard converges with what it displays.
func (h *Handler) ToolAnalytics(w http.ResponseWriter, r *http.Request) {
	f, err := parseTraceFilter(r)
	if err != nil {
		server.WriteError(w, err)
		return
	}

	traces, err := h.traces.List(r.Context(), server.TenantID(r.Context()), f)
	if err != nil {
		server.WriteError(w, err)
		return
	}

	server.WriteJSON(w, http.StatusOK, analytics.Aggregate(traces))
}
