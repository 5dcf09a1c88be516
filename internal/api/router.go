/**
 * @description
 * This file sets up the HTTP router: endpoint definitions, standard chi
 * middleware, and the token-bucket rate limiter.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cjflanagan1/FamilyBudget/pkg/middleware"
)

// Routes creates and returns the router for the service.
func Routes(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(middleware.RateLimit(middleware.NewRateLimiter(100, 15*time.Minute)))

	r.Get("/health", h.HealthHandler)

	r.Route("/api", func(r chi.Router) {
		// Job triggers; each is idempotent-safe to re-invoke.
		r.Post("/sync", h.SyncHandler)
		r.Post("/renewals/check", h.RenewalCheckHandler)
		r.Post("/summaries/weekly", h.WeeklySummaryHandler)
		r.Post("/summaries/monthly", h.MonthlySummaryHandler)
		r.Post("/subscriptions/detect/{personID}", h.DetectSubscriptionsHandler)

		r.Post("/aggregator/webhook", h.WebhookHandler)

		r.Get("/persons/{personID}/spending-status", h.SpendingStatusHandler)
		r.Get("/persons/{personID}/transactions", h.TransactionsHandler)

		r.Get("/cards", h.ListCardsHandler)
		r.Post("/cards/link", h.LinkCardHandler)
	})

	return r
}
