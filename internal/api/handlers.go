// Package api provides the HTTP handlers for the trace service.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/etale-systems/tracehub/internal/apikey"
	"github.com/etale-systems/tracehub/internal/domain"
	"github.com/etale-systems/tracehub/internal/identity"
	"github.com/etale-systems/tracehub/internal/mail"
	"github.com/etale-systems/tracehub/internal/metrics"
	"github.com/etale-systems/tracehub/internal/server"
	"github.com/etale-systems/tracehub/internal/trace"
)

// Handler carries the services behind the HTTP surface. Everything is
// injected at startup; handlers hold no other state.
type Handler struct {
	logger        *slog.Logger
	keys          *apikey.Service
	traces        *trace.Service
	resolver      *identity.Resolver
	mailer        mail.Mailer
	validate      *validator.Validate
	sessionSecret string
}

// NewHandler wires the handler set.
func NewHandler(
	logger *slog.Logger,
	keys *apikey.Service,
	traces *trace.Service,
	resolver *identity.Resolver,
	mailer mail.Mailer,
	sessionSecret string,
) *Handler {
	return &Handler{
		logger:        logger,
		keys:          keys,
		traces:        traces,
		resolver:      resolver,
		mailer:        mailer,
		validate:      validator.New(),
		sessionSecret: sessionSecret,
	}
}

// Routes mounts every endpoint. Ingestion is API-key authenticated;
// dashboard reads and credential CRUD require a session identity;
// health, metrics, and contact are public.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.With(httprate.LimitByIP(10, time.Minute)).Post("/contact", h.Contact)

	r.Group(func(r chi.Router) {
		r.Use(server.APIKeyAuth(h.keys))
		r.Post("/traces", h.CreateTrace)
	})

	r.Group(func(r chi.Router) {
		r.Use(server.SessionAuth(h.resolver, h.sessionSecret))

		r.Get("/traces", h.ListTraces)
		r.Get("/traces/{id}", h.GetTrace)
		r.Post("/traces/{id}/replay", h.ReplayTrace)
		r.Get("/analytics/tools", h.ToolAnalytics)

		r.Route("/apikeys", func(r chi.Router) {
			r.Get("/", h.ListAPIKeys)
			r.Post("/", h.CreateAPIKey)
			r.Put("/{id}", h.UpdateAPIKey)
			r.Delete("/{id}", h.DeleteAPIKey)
		})
	})
}

// Health is the unauthenticated liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// decode parses the request body into v and runs struct validation.
func (h *Handler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidInput("invalid request body")
	}
	if err := h.validate.Struct(v); err != nil {
		return domain.ErrInvalidInput(validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return ve[0].Field() + " is required"
	}
	return "invalid request"
}
