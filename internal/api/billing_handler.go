package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/dvelchev/codeforge/internal/billing"
	"github.com/dvelchev/codeforge/internal/cache"
	"github.com/dvelchev/codeforge/internal/models"
	"github.com/dvelchev/codeforge/internal/project"
	"github.com/dvelchev/codeforge/internal/user"
)

const priceCacheTTL = 5 * time.Minute

type BillingHandler struct {
	users      *user.Service
	projects   *project.Service
	billing    *billing.Billing
	store      billing.Store
	processor  *billing.Processor
	proPriceID string
	prices     *cache.TTLCache[[]*models.PriceProduct]
}

func NewBillingHandler(users *user.Service, projects *project.Service, b *billing.Billing, store billing.Store, processor *billing.Processor, proPriceID string) *BillingHandler {
	return &BillingHandler{
		users:      users,
		projects:   projects,
		billing:    b,
		store:      store,
		processor:  processor,
		proPriceID: proPriceID,
		prices:     cache.New[[]*models.PriceProduct](priceCacheTTL),
	}
}

type CheckoutRequest struct {
	PriceID string `json:"price_id,omitempty"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

type PortalResponse struct {
	PortalURL string `json:"portal_url"`
}

type UsageResponse struct {
	Projects    int   `json:"projects"`
	MaxProjects int   `json:"max_projects"`
	StorageKB   int64 `json:"storage_kb"`
	TokensUsed  int64 `json:"tokens_used"`
	TokensLimit int64 `json:"tokens_limit"`
}

type SubscriptionStatusResponse struct {
	Plan         models.SubscriptionPlan `json:"plan"`
	Usage        UsageResponse           `json:"usage"`
	Subscription *models.Subscription    `json:"subscription,omitempty"`
}

type PlanResponse struct {
	ID                models.SubscriptionPlan `json:"id"`
	DisplayName       string                  `json:"display_name"`
	MonthlyPriceCents int64                   `json:"monthly_price_cents"`
	MaxProjects       int                     `json:"max_projects"`
	MaxFilesPerProj   int                     `json:"max_files_per_project"`
	MaxProjectSizeKB  int                     `json:"max_project_size_kb"`
	TokensLimit       int64                   `json:"tokens_limit"`
}

// CreateCheckout starts a Stripe Checkout session for the pro plan,
// lazily creating the Stripe customer on first contact.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}
	if dbUser.Plan == models.PlanPro {
		writeError(w, http.StatusConflict, "Already subscribed to pro")
		return
	}

	priceID := h.proPriceID
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.PriceID != "" {
		if !h.isActivePrice(r.Context(), req.PriceID) {
			writeError(w, http.StatusBadRequest, "Unknown price")
			return
		}
		priceID = req.PriceID
	}

	customerID, err := h.users.EnsureStripeCustomer(r.Context(), dbUser)
	if err != nil {
		log.Printf("Failed to ensure Stripe customer: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	session, err := h.billing.CreateSubscriptionCheckout(r.Context(), customerID, priceID, dbUser.ID.String())
	if err != nil {
		log.Printf("Failed to create subscription checkout: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	writeJSON(w, http.StatusOK, CheckoutResponse{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
	})
}

func (h *BillingHandler) CreatePortal(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok || dbUser.StripeCustomerID == nil {
		writeError(w, http.StatusBadRequest, "No billing account found")
		return
	}

	session, err := h.billing.CreatePortalSession(r.Context(), *dbUser.StripeCustomerID)
	if err != nil {
		log.Printf("Failed to create portal session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create portal session")
		return
	}

	writeJSON(w, http.StatusOK, PortalResponse{PortalURL: session.URL})
}

func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	projectCount, sizeKB, err := h.projects.Usage(r.Context(), dbUser.ID)
	if err != nil {
		log.Printf("Failed to load usage: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load subscription")
		return
	}

	plan := billing.GetPlan(dbUser.Plan)
	resp := SubscriptionStatusResponse{
		Plan: dbUser.Plan,
		Usage: UsageResponse{
			Projects:    projectCount,
			MaxProjects: plan.MaxProjects,
			StorageKB:   sizeKB,
			TokensUsed:  dbUser.TokensUsed,
			TokensLimit: dbUser.TokensLimit,
		},
	}

	sub, err := h.store.GetActiveSubscriptionForUser(r.Context(), dbUser.ID)
	if err == nil {
		resp.Subscription = sub
	} else if !errors.Is(err, billing.ErrSubscriptionNotFound) {
		log.Printf("Failed to load subscription: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load subscription")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok || dbUser.StripeSubscriptionID == nil {
		writeError(w, http.StatusBadRequest, "No active subscription found")
		return
	}

	if _, err := h.billing.CancelAtPeriodEnd(r.Context(), *dbUser.StripeSubscriptionID); err != nil {
		log.Printf("Failed to cancel subscription: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to cancel subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Subscription will cancel at period end"})
}

func (h *BillingHandler) ReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok || dbUser.StripeSubscriptionID == nil {
		writeError(w, http.StatusBadRequest, "No subscription found")
		return
	}

	if _, err := h.billing.Reactivate(r.Context(), *dbUser.StripeSubscriptionID); err != nil {
		log.Printf("Failed to reactivate subscription: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to reactivate subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Subscription reactivated"})
}

func (h *BillingHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	offset, limit := pagination(r)
	payments, total, err := h.store.ListPaymentsForUser(r.Context(), dbUser.ID, offset, limit)
	if err != nil {
		log.Printf("Failed to list payments: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list payments")
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}

	writeJSON(w, http.StatusOK, listResponse{Items: payments, Total: total})
}

func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := make([]PlanResponse, 0, len(billing.PlanOrder))
	for _, id := range billing.PlanOrder {
		p := billing.Plans[id]
		plans = append(plans, PlanResponse{
			ID:                p.ID,
			DisplayName:       p.DisplayName,
			MonthlyPriceCents: p.MonthlyPriceCents,
			MaxProjects:       p.MaxProjects,
			MaxFilesPerProj:   p.MaxFilesPerProj,
			MaxProjectSizeKB:  p.MaxProjectSizeKB,
			TokensLimit:       p.TokensLimit,
		})
	}

	writeJSON(w, http.StatusOK, plans)
}

func (h *BillingHandler) isActivePrice(ctx context.Context, priceID string) bool {
	prices, err := h.activePrices(ctx)
	if err != nil {
		log.Printf("Failed to check price: %v", err)
		return false
	}
	for _, p := range prices {
		if p.StripePriceID == priceID {
			return true
		}
	}
	return false
}

func (h *BillingHandler) activePrices(ctx context.Context) ([]*models.PriceProduct, error) {
	if cached, ok := h.prices.Get("prices"); ok {
		return cached, nil
	}
	prices, err := h.store.ListActivePrices(ctx)
	if err != nil {
		return nil, err
	}
	if prices == nil {
		prices = []*models.PriceProduct{}
	}
	h.prices.Set("prices", prices)
	return prices, nil
}

// ListPrices serves the Stripe price catalog mirrored into Postgres by
// the startup sync. Cached briefly since it changes rarely and the
// pricing page hits it on every load.
func (h *BillingHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.activePrices(r.Context())
	if err != nil {
		log.Printf("Failed to list prices: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list prices")
		return
	}

	writeJSON(w, http.StatusOK, prices)
}

// HandleWebhook accepts Stripe webhook deliveries. Any event that fails
// signature verification is rejected; everything else is acknowledged
// with 200 so Stripe does not retry events we have already recorded.
func (h *BillingHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Failed to read webhook body: %v", err)
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(payload, signature)
	if err != nil {
		log.Printf("Webhook signature verification failed: %v", err)
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	if err := h.processor.Process(r.Context(), event); err != nil {
		if errors.Is(err, billing.ErrDuplicateEvent) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "already processed"})
			return
		}
		log.Printf("Webhook %s handling failed: %v", event.Type, err)
		writeError(w, http.StatusInternalServerError, "Webhook handling failed")
		return
	}

	w.WriteHeader(http.StatusOK)
}
