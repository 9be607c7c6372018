// Package handler exposes contractor registration over HTTP. The surface is
// a small HTML form and plain-text outcomes, keeping the wording the
// operators already know.
package handler

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vouchsafe/internal/transport/http/shared"
	dErrors "vouchsafe/pkg/domain-errors"
	"vouchsafe/pkg/requestcontext"
)

// Service defines the interface for contractor operations.
type Service interface {
	Register(ctx context.Context, name, phone string) (string, error)
}

// Handler handles contractor registration endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the contractor routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/register-contractor", h.handleForm)
	r.Post("/register-contractor", h.handleRegister)
}

var formTemplate = template.Must(template.New("registration_form").Parse(`<!DOCTYPE html>
<html>
<head><title>Register Contractor</title></head>
<body>
  <h1>Register Contractor</h1>
  <form method="post" action="/register-contractor">
    <label>Name <input type="text" name="name" required></label>
    <label>Phone <input type="text" name="phone" required></label>
    <button type="submit">Register</button>
  </form>
</body>
</html>
`))

func (h *Handler) handleForm(w http.ResponseWriter, r *http.Request) {
	var page bytes.Buffer
	if err := formTemplate.Execute(&page, nil); err != nil {
		shared.WriteText(w, http.StatusInternalServerError, "internal server error")
		return
	}
	shared.WriteHTML(w, http.StatusOK, page.Bytes())
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := h.service.Register(ctx, r.FormValue("name"), r.FormValue("phone"))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			shared.WriteErrorText(w, err, "Contractor already exists")
			return
		}
		h.logger.ErrorContext(ctx, "contractor registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteErrorText(w, err, "Contractor registration failed - "+dErrors.Message(err))
		return
	}

	shared.WriteText(w, http.StatusOK, "Contractor successfully registered with ID: "+id)
}
