// Package handler exposes voucher issuance, redemption, and artifact
// download over HTTP. POST outcomes are plain text with the original
// wording; a redeemed-or-missing code always reads "Not a valid code".
package handler

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vouchsafe/internal/store"
	"vouchsafe/internal/transport/http/shared"
	"vouchsafe/internal/voucher"
	dErrors "vouchsafe/pkg/domain-errors"
	"vouchsafe/pkg/platform/sentinel"
	"vouchsafe/pkg/requestcontext"
)

// Service defines the interface for voucher operations.
type Service interface {
	Issue(ctx context.Context, amount string) (voucher.Issued, error)
	Lookup(ctx context.Context, reference int64) (store.Voucher, error)
	Redeem(ctx context.Context, reference int64, phone string) error
}

// Artifacts defines the interface for stored voucher images and documents.
type Artifacts interface {
	Open(name string) ([]byte, error)
	RenderPDF(name string) (string, []byte, error)
}

// Handler handles voucher endpoints.
type Handler struct {
	service   Service
	artifacts Artifacts
	logger    *slog.Logger
}

func New(service Service, artifacts Artifacts, logger *slog.Logger) *Handler {
	return &Handler{service: service, artifacts: artifacts, logger: logger}
}

// Register registers the voucher routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/create-qr", h.handleCreateForm)
	r.Post("/create-qr", h.handleCreate)
	r.Get("/redeem-qr/{reference}", h.handleRedeemForm)
	r.Post("/redeem-qr/{reference}", h.handleRedeem)
	r.Get("/download-qr/{format}/*", h.handleDownload)
}

var createFormTemplate = template.Must(template.New("create_qr").Parse(`<!DOCTYPE html>
<html>
<head><title>Create QR Code</title></head>
<body>
  <h1>Create QR Code</h1>
  <form method="post" action="/create-qr">
    <label>Amount <input type="text" name="amount" required></label>
    <button type="submit">Create</button>
  </form>
</body>
</html>
`))

var createResultTemplate = template.Must(template.New("create_qr_result").Parse(`<!DOCTYPE html>
<html>
<head><title>QR Code Created</title></head>
<body>
  <h1>QR Code Created</h1>
  <p>Redemption URL: <a href="{{.RedeemURL}}">{{.RedeemURL}}</a></p>
  <p>Image path: {{.ImagePath}}</p>
  <p>
    <a href="/download-qr/png/{{.ImageName}}">Download PNG</a>
    <a href="/download-qr/pdf/{{.ImageName}}">Download PDF</a>
  </p>
</body>
</html>
`))

var redeemFormTemplate = template.Must(template.New("qr_redemption_form").Parse(`<!DOCTYPE html>
<html>
<head><title>Redeem QR Code</title></head>
<body>
  <h1>Redeem QR Code {{.Reference}}</h1>
  <form method="post" action="/redeem-qr/{{.Reference}}">
    <label>Your phone number <input type="text" name="contractor_phone" required></label>
    <button type="submit">Redeem</button>
  </form>
</body>
</html>
`))

func (h *Handler) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderHTML(w, createFormTemplate, nil)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issued, err := h.service.Issue(ctx, r.FormValue("amount"))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			shared.WriteErrorText(w, err, "Invalid amount. "+dErrors.Message(err))
			return
		}
		h.logger.ErrorContext(ctx, "voucher issuance failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteErrorText(w, err, "Failed to create QR code - "+dErrors.Message(err))
		return
	}

	h.renderHTML(w, createResultTemplate, map[string]string{
		"RedeemURL": issued.RedeemURL,
		"ImagePath": issued.ImagePath,
		"ImageName": path.Base(issued.ImagePath),
	})
}

func (h *Handler) handleRedeemForm(w http.ResponseWriter, r *http.Request) {
	reference, err := parseReference(r)
	if err != nil {
		shared.WriteText(w, http.StatusNotFound, "Not a valid code")
		return
	}

	if _, err := h.service.Lookup(r.Context(), reference); err != nil {
		h.writeLookupFailure(w, r, err)
		return
	}

	h.renderHTML(w, redeemFormTemplate, map[string]int64{"Reference": reference})
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reference, err := parseReference(r)
	if err != nil {
		shared.WriteText(w, http.StatusNotFound, "Not a valid code")
		return
	}

	err = h.service.Redeem(ctx, reference, r.FormValue("contractor_phone"))
	switch {
	case err == nil:
		shared.WriteText(w, http.StatusOK, "QR code successfully redeemed")
	case dErrors.HasCode(err, dErrors.CodeNotFound), dErrors.HasCode(err, dErrors.CodeConflict):
		// Unknown and already-redeemed render identically on purpose; the
		// distinct codes exist for logs and metrics only.
		shared.WriteErrorText(w, err, "Not a valid code")
	case dErrors.HasCode(err, dErrors.CodeForbidden):
		shared.WriteErrorText(w, err, "You're not a registered contractor")
	default:
		h.logger.ErrorContext(ctx, "voucher redemption failed",
			"request_id", requestcontext.RequestID(ctx),
			"reference", reference,
			"error", err.Error(),
		)
		shared.WriteErrorText(w, err, "Failed to redeem QR code - "+dErrors.Message(err))
	}
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")

	switch chi.URLParam(r, "format") {
	case "png":
		data, err := h.artifacts.Open(name)
		if err != nil {
			h.writeArtifactFailure(w, r, err)
			return
		}
		writeAttachment(w, path.Base(name), "image/png", data)

	case "pdf":
		pdfName, data, err := h.artifacts.RenderPDF(name)
		if err != nil {
			h.writeArtifactFailure(w, r, err)
			return
		}
		writeAttachment(w, path.Base(pdfName), "application/pdf", data)

	default:
		shared.WriteText(w, http.StatusBadRequest, "Invalid QR format")
	}
}

func (h *Handler) writeLookupFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		shared.WriteText(w, http.StatusNotFound, "Not a valid code")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		shared.WriteText(w, http.StatusConflict, "Not a valid code")
	default:
		h.logger.ErrorContext(r.Context(), "voucher lookup failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
		shared.WriteErrorText(w, err, "Not a valid code")
	}
}

func (h *Handler) writeArtifactFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, sentinel.ErrNotFound) {
		shared.WriteText(w, http.StatusNotFound, "Not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "artifact download failed",
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err.Error(),
	)
	shared.WriteErrorText(w, err, "Could not produce download")
}

func (h *Handler) renderHTML(w http.ResponseWriter, tmpl *template.Template, data any) {
	var page bytes.Buffer
	if err := tmpl.Execute(&page, data); err != nil {
		shared.WriteText(w, http.StatusInternalServerError, "internal server error")
		return
	}
	shared.WriteHTML(w, http.StatusOK, page.Bytes())
}

func writeAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseReference(r *http.Request) (int64, error) {
	reference, err := strconv.ParseInt(chi.URLParam(r, "reference"), 10, 64)
	if err != nil || reference <= 0 {
		return 0, errors.New("invalid reference")
	}
	return reference, nil
}
