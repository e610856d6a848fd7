// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"futures-desk/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(deskHandler *handler.DeskHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/accounts/{key}", func(r chi.Router) {
		r.Post("/", deskHandler.GetOrCreateAccount)
		r.Get("/", deskHandler.GetAccount)
		r.Get("/predictions", deskHandler.ListAccountPredictions)
		r.Get("/record", deskHandler.GetTrackRecord)
	})

	r.Route("/predictions", func(r chi.Router) {
		r.Post("/", deskHandler.PlaceWager)
		r.Get("/", deskHandler.ListPredictions)
		r.Post("/{id}/resolve", deskHandler.Resolve)
	})

	r.Get("/ledger/summary", deskHandler.GetSummary)

	return r
}
