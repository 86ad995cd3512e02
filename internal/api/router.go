/**
 * @description
 * This file sets up the HTTP router for the wallet-service using the
 * go-chi/chi router. It defines the API routes, applies middleware for
 * logging, CORS, and session authentication, and maps the routes to their
 * corresponding handler functions.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// WalletRoutes creates a new Chi router and registers the wallet-service
// routes. Everything under the session group requires the bearer token
// returned by the authenticate endpoint.
func WalletRoutes(h *WalletHandlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Wallet service is healthy"))
	})

	r.Route("/api/v1/wallet", func(r chi.Router) {
		// Opening a session is the only unauthenticated operation.
		r.Post("/sessions", h.AuthenticateHandler)

		// Protected routes that require a session token
		r.Group(func(r chi.Router) {
			r.Use(SessionAuthMiddleware(h.jwtSecret))

			r.Get("/profile", h.CachedProfileHandler)
			r.Get("/accounts", h.CachedAccountsHandler)
			r.Post("/accounts/refresh", h.RefreshAccountsHandler)
			r.Get("/beneficiaries", h.CachedBeneficiariesHandler)
			r.Post("/beneficiaries/refresh", h.RefreshBeneficiariesHandler)
			r.Post("/beneficiaries", h.CreateBeneficiaryHandler)
			r.Post("/transfers/simulate", h.SimulateTransferHandler)
			r.Post("/transfers/sms", h.RequestTransferSMSHandler)
			r.Post("/transfers/execute", h.ExecuteTransferHandler)
		})
	})

	return r
}
