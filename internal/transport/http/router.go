// Package httptransport composes the service's HTTP surface.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	contractorHandler "vouchsafe/internal/contractor/handler"
	"vouchsafe/internal/platform/middleware"
	voucherHandler "vouchsafe/internal/voucher/handler"
)

const requestTimeout = 30 * time.Second

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(
	logger *slog.Logger,
	contractors *contractorHandler.Handler,
	vouchers *voucherHandler.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(requestTimeout))

	contractors.Register(r)
	vouchers.Register(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
