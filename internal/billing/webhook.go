package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v84"

	"github.com/dvelchev/codeforge/internal/models"
)

// ErrDuplicateEvent means this Stripe event ID was already accepted by
// an earlier delivery.
var ErrDuplicateEvent = errors.New("event already processed")

// UserDirectory is the slice of the user layer the webhook processor
// mutates.
type UserDirectory interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.User, error)
	UpdateStripeCustomerID(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error
	SetPlan(ctx context.Context, userID uuid.UUID, plan models.SubscriptionPlan, stripeSubscriptionID *string, tokensLimit int64) error
}

// Processor applies Stripe webhook events to local state. Every event
// is recorded first; handler failures are stored on the event row so
// Stripe is never asked to retry side effects that already happened.
type Processor struct {
	store Store
	users UserDirectory
}

func NewProcessor(store Store, users UserDirectory) *Processor {
	return &Processor{
		store: store,
		users: users,
	}
}

func (p *Processor) Process(ctx context.Context, event *stripe.Event) error {
	record := &models.WebhookEvent{
		StripeEventID: event.ID,
		EventType:     string(event.Type),
		Data:          json.RawMessage(event.Data.Raw),
	}

	inserted, err := p.store.InsertEvent(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	if !inserted {
		return ErrDuplicateEvent
	}

	if err := p.dispatch(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("webhook handler failed")
		if recErr := p.store.RecordEventError(ctx, event.ID, err.Error()); recErr != nil {
			log.Error().Err(recErr).Str("event_id", event.ID).Msg("failed to record webhook error")
		}
		return nil
	}

	return p.store.MarkEventProcessed(ctx, event.ID)
}

func (p *Processor) dispatch(ctx context.Context, event *stripe.Event) error {
	switch string(event.Type) {
	case "checkout.session.completed":
		return p.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return p.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		return p.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_succeeded":
		return p.handleInvoice(ctx, event, models.PaymentSucceeded)
	case "invoice.payment_failed":
		return p.handleInvoice(ctx, event, models.PaymentFailed)
	default:
		log.Debug().Str("event_type", string(event.Type)).Msg("ignoring webhook event")
		return nil
	}
}

type checkoutSessionData struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

func (p *Processor) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	session, err := parseEventData[checkoutSessionData](event)
	if err != nil {
		return err
	}

	u, err := p.resolveUser(ctx, session.Metadata["user_id"], session.Customer)
	if err != nil {
		return err
	}

	if u.StripeCustomerID == nil && session.Customer != "" {
		if err := p.users.UpdateStripeCustomerID(ctx, u.ID, session.Customer); err != nil {
			return err
		}
	}

	log.Info().
		Str("user_id", u.ID.String()).
		Str("checkout_session", session.ID).
		Msg("checkout completed")
	return nil
}

type subscriptionData struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CancelAt           int64  `json:"cancel_at"`
	CanceledAt         int64  `json:"canceled_at"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	TrialEnd           int64  `json:"trial_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (p *Processor) handleSubscriptionChanged(ctx context.Context, event *stripe.Event) error {
	data, err := parseEventData[subscriptionData](event)
	if err != nil {
		return err
	}

	u, err := p.users.GetByStripeCustomerID(ctx, data.Customer)
	if err != nil {
		return fmt.Errorf("no user for customer %s: %w", data.Customer, err)
	}

	status := mapSubscriptionStatus(data.Status)
	periodStart, periodEnd := data.period()

	sub, err := p.store.GetSubscriptionByStripeID(ctx, data.ID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		sub = &models.Subscription{
			UserID:               u.ID,
			StripeSubscriptionID: data.ID,
			StripeCustomerID:     data.Customer,
			Plan:                 models.PlanPro,
		}
		data.apply(sub, status, periodStart, periodEnd)
		if err := p.store.CreateSubscription(ctx, sub); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		data.apply(sub, status, periodStart, periodEnd)
		if err := p.store.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
	}

	return p.applyPlan(ctx, u.ID, status, data.ID)
}

func (d *subscriptionData) period() (*time.Time, *time.Time) {
	start, end := d.CurrentPeriodStart, d.CurrentPeriodEnd
	if start == 0 && len(d.Items.Data) > 0 {
		start = d.Items.Data[0].CurrentPeriodStart
		end = d.Items.Data[0].CurrentPeriodEnd
	}
	return unixPtr(start), unixPtr(end)
}

func (d *subscriptionData) apply(sub *models.Subscription, status models.SubscriptionStatus, periodStart, periodEnd *time.Time) {
	sub.Status = status
	sub.CurrentPeriodStart = periodStart
	sub.CurrentPeriodEnd = periodEnd
	sub.CancelAt = unixPtr(d.CancelAt)
	sub.CanceledAt = unixPtr(d.CanceledAt)
	sub.TrialEnd = unixPtr(d.TrialEnd)
	if len(d.Items.Data) > 0 && d.Items.Data[0].Price.ID != "" {
		priceID := d.Items.Data[0].Price.ID
		sub.StripePriceID = &priceID
	}
}

func (p *Processor) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	data, err := parseEventData[subscriptionData](event)
	if err != nil {
		return err
	}

	sub, err := p.store.GetSubscriptionByStripeID(ctx, data.ID)
	if err == nil {
		sub.Status = models.SubscriptionCanceled
		now := time.Now()
		sub.CanceledAt = &now
		if err := p.store.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return err
	}

	u, err := p.users.GetByStripeCustomerID(ctx, data.Customer)
	if err != nil {
		return fmt.Errorf("no user for customer %s: %w", data.Customer, err)
	}
	return p.applyPlan(ctx, u.ID, models.SubscriptionCanceled, data.ID)
}

type invoiceData struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Subscription     string `json:"subscription"`
	PaymentIntent    string `json:"payment_intent"`
	AmountPaid       int64  `json:"amount_paid"`
	AmountDue        int64  `json:"amount_due"`
	Currency         string `json:"currency"`
	InvoicePDF       string `json:"invoice_pdf"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
	PeriodStart      int64  `json:"period_start"`
	PeriodEnd        int64  `json:"period_end"`
}

func (p *Processor) handleInvoice(ctx context.Context, event *stripe.Event, status models.PaymentStatus) error {
	data, err := parseEventData[invoiceData](event)
	if err != nil {
		return err
	}

	u, err := p.users.GetByStripeCustomerID(ctx, data.Customer)
	if err != nil {
		return fmt.Errorf("no user for customer %s: %w", data.Customer, err)
	}

	amount := data.AmountPaid
	if status == models.PaymentFailed {
		amount = data.AmountDue
	}

	payment := &models.Payment{
		UserID:      u.ID,
		AmountCents: amount,
		Currency:    data.Currency,
		Status:      status,
		PeriodStart: unixPtr(data.PeriodStart),
		PeriodEnd:   unixPtr(data.PeriodEnd),
	}
	if data.ID != "" {
		payment.StripeInvoiceID = &data.ID
	}
	if data.PaymentIntent != "" {
		payment.StripePaymentIntentID = &data.PaymentIntent
	}
	if data.InvoicePDF != "" {
		payment.InvoicePDF = &data.InvoicePDF
	}
	if data.HostedInvoiceURL != "" {
		payment.HostedInvoiceURL = &data.HostedInvoiceURL
	}

	if err := p.store.CreatePayment(ctx, payment); err != nil {
		return err
	}

	if status == models.PaymentFailed && data.Subscription != "" {
		sub, err := p.store.GetSubscriptionByStripeID(ctx, data.Subscription)
		if err == nil {
			sub.Status = models.SubscriptionPastDue
			return p.store.UpdateSubscription(ctx, sub)
		}
		if !errors.Is(err, ErrSubscriptionNotFound) {
			return err
		}
	}
	return nil
}

// applyPlan moves the user between free and pro based on the current
// subscription status.
func (p *Processor) applyPlan(ctx context.Context, userID uuid.UUID, status models.SubscriptionStatus, stripeSubscriptionID string) error {
	switch status {
	case models.SubscriptionActive, models.SubscriptionTrialing, models.SubscriptionPastDue:
		pro := GetPlan(models.PlanPro)
		return p.users.SetPlan(ctx, userID, models.PlanPro, &stripeSubscriptionID, pro.TokensLimit)
	case models.SubscriptionCanceled, models.SubscriptionUnpaid, models.SubscriptionIncompleteExpired:
		free := GetPlan(models.PlanFree)
		return p.users.SetPlan(ctx, userID, models.PlanFree, nil, free.TokensLimit)
	default:
		return nil
	}
}

func (p *Processor) resolveUser(ctx context.Context, metadataUserID, customerID string) (*models.User, error) {
	if metadataUserID != "" {
		if id, err := uuid.Parse(metadataUserID); err == nil {
			if u, err := p.users.GetByID(ctx, id); err == nil {
				return u, nil
			}
		}
	}
	if customerID != "" {
		return p.users.GetByStripeCustomerID(ctx, customerID)
	}
	return nil, errors.New("event carries no user reference")
}

func mapSubscriptionStatus(s string) models.SubscriptionStatus {
	switch s {
	case "active":
		return models.SubscriptionActive
	case "canceled":
		return models.SubscriptionCanceled
	case "past_due":
		return models.SubscriptionPastDue
	case "trialing":
		return models.SubscriptionTrialing
	case "unpaid":
		return models.SubscriptionUnpaid
	case "incomplete_expired":
		return models.SubscriptionIncompleteExpired
	default:
		return models.SubscriptionIncomplete
	}
}

func parseEventData[T any](event *stripe.Event) (*T, error) {
	var data T
	if err := json.Unmarshal(event.Data.Raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s event: %w", event.Type, err)
	}
	return &data, nil
}

func unixPtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0)
	return &t
}
