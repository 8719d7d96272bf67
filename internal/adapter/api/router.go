// Package api exposes the bot's admin HTTP surface.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/tctk/internal/adapter/api/handler"
	"github.com/V4T54L/tctk/internal/adapter/api/middleware"
	"github.com/V4T54L/tctk/internal/domain"
	"github.com/V4T54L/tctk/internal/usecase"
)

// Deps are the components served by the admin router. Nil members leave
// their routes unmounted.
type Deps struct {
	Activity     handler.ActivityStatusProvider
	Raffles      domain.RaffleRepository
	ActiveRaffle handler.ActiveRaffleProvider
	Streams      *usecase.AdminStreamUseCase
	Broker       *handler.SSEBroker
	Metrics      http.Handler
}

// NewRouter creates and configures the admin HTTP router.
func NewRouter(deps Deps, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	if deps.Activity != nil {
		h := handler.NewActivityHandler(deps.Activity, logger)
		r.Route("/activity", func(r chi.Router) {
			r.Get("/files", h.ListFiles)
			r.Get("/files/{start}", h.GetFile)
			r.Get("/current", h.Current)
		})
	}

	if deps.Raffles != nil {
		h := handler.NewRaffleHandler(deps.Raffles, deps.ActiveRaffle, logger)
		r.Route("/raffles", func(r chi.Router) {
			r.Get("/", h.List)
			r.Get("/active", h.Active)
		})
	}

	if deps.Broker != nil {
		r.Method(http.MethodGet, "/events/stream", deps.Broker)
	}

	if deps.Streams != nil {
		h := handler.NewAdminHandler(deps.Streams, logger)
		r.Route("/admin/streams", func(r chi.Router) {
			r.Get("/", h.GetStreamInfo)
			r.Route("/{stream}", func(r chi.Router) {
				r.Post("/trim", h.TrimStream)
				r.Get("/groups", h.GetGroupInfo)
				r.Route("/groups/{group}", func(r chi.Router) {
					r.Get("/consumers", h.GetConsumerInfo)
					r.Get("/pending", h.GetPendingSummary)
					r.Get("/pending/messages", h.GetPendingMessages)
					r.Post("/claim", h.ClaimMessages)
				})
			})
		})
	}

	return r
}
