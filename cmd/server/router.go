package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/forkline/outreach-api/internal/api"
	apiMiddleware "github.com/forkline/outreach-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	sequenceHandler := api.NewSequenceHandler(
		app.starter,
		app.bulkStarter,
		app.lifecycle,
		app.logger,
	)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.config.Auth.JWTSecret)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/sequences", sequenceHandler.List)
			r.Post("/sequences", sequenceHandler.Start)
			r.Post("/sequences/bulk", sequenceHandler.StartBulk)
			r.Post("/sequences/{id}/pause", sequenceHandler.Pause)
			r.Post("/sequences/{id}/resume", sequenceHandler.Resume)
			r.Post("/sequences/{id}/cancel", sequenceHandler.Cancel)
			r.Post("/sequences/{id}/finish", sequenceHandler.Finish)
			r.Post("/sequences/{id}/advance", sequenceHandler.Advance)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
