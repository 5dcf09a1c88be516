/**
 * @description
 * HTTP handlers for the family-budget backend: the job trigger endpoints
 * ("run full sync now", "run renewal check now", "send summary now"), the
 * aggregator webhook, card linking, and the read accessors the mobile app
 * uses for spending status and transaction history.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: business logic and models.
 */

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cjflanagan1/FamilyBudget/internal/app"
	"github.com/cjflanagan1/FamilyBudget/internal/domain"
	"github.com/cjflanagan1/FamilyBudget/internal/store"
)

// CardLinker is the aggregator surface needed by the card-link endpoint.
type CardLinker interface {
	ExchangePublicToken(ctx context.Context, publicToken string) (*domain.TokenExchange, error)
	GetAccounts(ctx context.Context, accessToken string) ([]domain.AggregatorAccount, error)
}

// Handlers holds the collaborators the HTTP layer dispatches into.
type Handlers struct {
	repo       store.Repository
	engine     *app.SyncEngine
	jobs       *app.Jobs
	subs       *app.SubscriptionService
	spending   *app.SpendingStatusResolver
	aggregator CardLinker
	logger     *slog.Logger
}

// NewHandlers wires the HTTP layer.
func NewHandlers(repo store.Repository, engine *app.SyncEngine, jobs *app.Jobs, subs *app.SubscriptionService, spending *app.SpendingStatusResolver, aggregator CardLinker, logger *slog.Logger) *Handlers {
	return &Handlers{
		repo:       repo,
		engine:     engine,
		jobs:       jobs,
		subs:       subs,
		spending:   spending,
		aggregator: aggregator,
		logger:     logger,
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// HealthHandler reports liveness.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SyncHandler runs a full all-cards sync and reports the per-card tally.
func (h *Handlers) SyncHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.SyncAll(r.Context())
	if err != nil {
		h.logger.Error("manual sync failed", "error", err)
		http.Error(w, "Sync failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// WebhookHandler receives aggregator webhooks. Transaction update
// notifications trigger a sync pass; everything else is acknowledged.
func (h *Handlers) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	var event domain.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	h.logger.Info("aggregator webhook received", "type", event.WebhookType, "code", event.WebhookCode)

	if event.WebhookType == "TRANSACTIONS" && event.WebhookCode == "SYNC_UPDATES_AVAILABLE" {
		if _, err := h.engine.SyncAll(r.Context()); err != nil {
			h.logger.Error("webhook-triggered sync failed", "error", err)
			http.Error(w, "Webhook processing failed", http.StatusInternalServerError)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// RenewalCheckHandler rolls forward passed renewals and sends upcoming
// reminders.
func (h *Handlers) RenewalCheckHandler(w http.ResponseWriter, r *http.Request) {
	rolled, err := h.jobs.RollForwardRenewals(r.Context())
	if err != nil {
		http.Error(w, "Renewal rollover failed", http.StatusInternalServerError)
		return
	}
	reminded, err := h.jobs.CheckUpcomingRenewals(r.Context())
	if err != nil {
		http.Error(w, "Renewal check failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"rolled_forward": rolled, "reminders_sent": reminded})
}

// WeeklySummaryHandler composes and sends the weekly digest now.
func (h *Handlers) WeeklySummaryHandler(w http.ResponseWriter, r *http.Request) {
	message, err := h.jobs.SendWeeklySummary(r.Context())
	if err != nil {
		http.Error(w, "Weekly summary failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// MonthlySummaryHandler composes and sends the monthly digest now.
func (h *Handlers) MonthlySummaryHandler(w http.ResponseWriter, r *http.Request) {
	message, err := h.jobs.SendMonthlySummary(r.Context())
	if err != nil {
		http.Error(w, "Monthly summary failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// DetectSubscriptionsHandler seeds subscriptions from one person's history.
func (h *Handlers) DetectSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	personID, err := uuid.Parse(chi.URLParam(r, "personID"))
	if err != nil {
		http.Error(w, "Invalid person ID", http.StatusBadRequest)
		return
	}
	created, err := h.subs.AutoDetect(r.Context(), personID)
	if err != nil {
		http.Error(w, "Subscription detection failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"created": created, "count": len(created)})
}

// SpendingStatusHandler returns a person's month-to-date position against
// their limit, or 404 when no limit is configured.
func (h *Handlers) SpendingStatusHandler(w http.ResponseWriter, r *http.Request) {
	personID, err := uuid.Parse(chi.URLParam(r, "personID"))
	if err != nil {
		http.Error(w, "Invalid person ID", http.StatusBadRequest)
		return
	}
	status, err := h.spending.StatusFor(r.Context(), personID)
	if err != nil {
		http.Error(w, "Failed to resolve spending status", http.StatusInternalServerError)
		return
	}
	if status == nil {
		http.Error(w, "No spending limit configured", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// TransactionsHandler returns a person's recent transactions.
func (h *Handlers) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	personID, err := uuid.Parse(chi.URLParam(r, "personID"))
	if err != nil {
		http.Error(w, "Invalid person ID", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	txns, err := h.repo.ListTransactionsByPerson(r.Context(), personID, limit)
	if err != nil {
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, txns)
}

// ListCardsHandler returns every linked card.
func (h *Handlers) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	cards, err := h.repo.ListCards(r.Context())
	if err != nil {
		http.Error(w, "Failed to list cards", http.StatusInternalServerError)
		return
	}
	if cards == nil {
		cards = []domain.LinkedCard{}
	}
	h.writeJSON(w, http.StatusOK, cards)
}

type linkCardRequest struct {
	PersonID    string `json:"person_id"`
	PublicToken string `json:"public_token"`
}

// LinkCardHandler exchanges a public link token for an access token and
// stores the card. Re-linking a card whose mask matches an existing row
// replaces the credential and clears the cursor in place, so the re-linked
// card performs a full resync without duplicating transaction ids.
func (h *Handlers) LinkCardHandler(w http.ResponseWriter, r *http.Request) {
	var req linkCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	personID, err := uuid.Parse(req.PersonID)
	if err != nil {
		http.Error(w, "Invalid person ID", http.StatusBadRequest)
		return
	}
	if req.PublicToken == "" {
		http.Error(w, "public_token is required", http.StatusBadRequest)
		return
	}

	exchange, err := h.aggregator.ExchangePublicToken(r.Context(), req.PublicToken)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		http.Error(w, "Failed to link card", http.StatusBadGateway)
		return
	}

	accounts, err := h.aggregator.GetAccounts(r.Context(), exchange.AccessToken)
	if err != nil || len(accounts) == 0 {
		h.logger.Error("account fetch failed", "error", err)
		http.Error(w, "Failed to link card", http.StatusBadGateway)
		return
	}

	account := accounts[0]
	for _, a := range accounts {
		if a.IsCreditCard() {
			account = a
			break
		}
	}

	existing, err := h.repo.FindCardByLastFour(r.Context(), personID, account.Mask)
	if err != nil {
		http.Error(w, "Failed to link card", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		if err := h.repo.RelinkCard(r.Context(), existing.ID, account.AccountID, exchange.AccessToken, account.Name); err != nil {
			http.Error(w, "Failed to re-link card", http.StatusInternalServerError)
			return
		}
		h.logger.Info("card re-linked", "card_id", existing.ID, "mask", account.Mask)
		h.writeJSON(w, http.StatusOK, map[string]any{"relinked": true, "card_id": existing.ID})
		return
	}

	card := &domain.LinkedCard{
		PersonID:            personID,
		AggregatorAccountID: account.AccountID,
		AccessToken:         exchange.AccessToken,
		LastFour:            account.Mask,
		Nickname:            account.Name,
	}
	if err := h.repo.CreateCard(r.Context(), card); err != nil {
		http.Error(w, "Failed to save card", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"relinked": false, "card_id": card.ID})
}
