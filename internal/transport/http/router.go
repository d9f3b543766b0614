package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodian/internal/platform/middleware"
)

// Registerer mounts a handler's routes on the router. Every domain handler
// and the health handler implement it.
type Registerer interface {
	Register(r chi.Router)
}

// NewRouter wires all public endpoints with the middleware stack. Handlers
// stay thin and delegate to domain services so transport concerns remain
// isolated.
func NewRouter(logger *slog.Logger, handlers ...Registerer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}

	return r
}
