package api

import (
	"net/http"

	"github.com/etale-systems/tracehub/internal/domain"
	"github.com/etale-systems/tracehub/internal/mail"
	"github.com/etale-systems/tracehub/internal/metrics"
	"github.com/etale-systems/tracehub/internal/server"
)

type contactRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Interest string `json:"interest"`
}

// Contact forwards a contact form submission to the mail collaborator.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := h.decode(r, &req); err != nil {
		server.WriteError(w, err)
		return
	}

	msg := mail.Message{Name: req.Name, Email: req.Email, Interest: req.Interest}
	if err := h.mailer.Send(r.Context(), msg); err != nil {
		h.logger.Error("contact delivery failed", "error", err.Error())
		metrics.ContactSends.WithLabelValues("failure").Inc()
		server.WriteError(w, domain.ErrInternal("failed to send email, please try again later"))
		return
	}

	metrics.ContactSends.WithLabelValues("success").Inc()
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Thank you for your interest! We'll be in touch soon.",
	})
}
