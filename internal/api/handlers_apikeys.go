package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/etale-systems/tracehub/internal/domain"
	"github.com/etale-systems/tracehub/internal/server"
)

type createAPIKeyRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// ListAPIKeys returns the caller's credentials, newest first, with
// trace counts. Tokens are returned as stored; masking is a dashboard
// concern.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context(), server.TenantID(r.Context()))
	if err != nil {
		server.WriteError(w, err)
		return
	}
	if keys == nil {
		keys = []*domain.APIKey{}
	}

	server.WriteJSON(w, http.StatusOK, keys)
}

// CreateAPIKey issues a new credential. The response is the only place
// the plaintext token is ever shown.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if err := h.decode(r, &req); err != nil {
		server.WriteError(w, err)
		return
	}

	k, err := h.keys.Issue(r.Context(), server.TenantID(r.Context()), req.Name, req.Description)
	if err != nil {
		server.WriteError(w, err)
		return
	}

	server.WriteJSON(w, http.StatusOK, k)
}

// UpdateAPIKey applies a partial update to an owned credential.
func (h *Handler) UpdateAPIKey(w http.ResponseWriter, r *http.Request) {
	var patch domain.APIKeyPatch
	if err := h.decode(r, &patch); err != nil {
		server.WriteError(w, err)
		return
	}

	k, err := h.keys.Update(r.Context(), server.TenantID(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		server.WriteError(w, err)
		return
	}

	server.WriteJSON(w, http.StatusOK, k)
}

// DeleteAPIKey hard-deletes an owned credential. Historical traces
// keep their reference and render it as unknown.
func (h *Handler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.Revoke(r.Context(), server.TenantID(r.Context()), chi.URLParam(r, "id")); err != nil {
		server.WriteError(w, err)
		return
	}

	server.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
