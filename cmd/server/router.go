package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/forge-api/internal/api"
	apiMiddleware "github.com/phrazzld/forge-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	// Create API handlers using the application's services
	authHandler := api.NewAuthHandler(app.userService, app.logger)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	providerHandler := api.NewProviderHandler(app.providerService, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	// Register routes
	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Task endpoints
			r.Post("/tasks", taskHandler.CreateTask)
			r.Get("/tasks/{id}", taskHandler.GetTask)
			r.Get("/queue", taskHandler.PeekQueue)

			// Administrative provider and account endpoints
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAdmin)

				r.Post("/providers", providerHandler.CreateProvider)
				r.Get("/providers", providerHandler.ListProviders)
				r.Get("/providers/fallback", providerHandler.Fallbacks)
				r.Get("/providers/{id}", providerHandler.GetProviderStatus)
				r.Get("/providers/{id}/status", providerHandler.GetProviderStatus)
				r.Patch("/providers/{id}/status", providerHandler.UpdateProviderStatus)
				r.Post("/providers/{id}/accounts", providerHandler.AddAccount)

				r.Patch("/accounts/{id}/status", providerHandler.UpdateAccountStatus)
				r.Patch("/accounts/{id}/limit", providerHandler.AdjustTokenLimit)
				r.Post("/accounts/{id}/reset", providerHandler.ResetAccountTokens)
				r.Post("/accounts/{id}/test", providerHandler.TestConnection)

				r.Post("/tokens/reset", providerHandler.RunTokenResetSweep)
			})
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
