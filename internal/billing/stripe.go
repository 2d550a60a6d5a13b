package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/dvelchev/codeforge/internal/config"
)

// Billing wraps the Stripe client with the calls the subscription flow
// needs.
type Billing struct {
	sc            *stripe.Client
	webhookSecret string
	frontendURL   string
}

func NewBilling(cfg *config.Config) *Billing {
	sc := stripe.NewClient(cfg.StripeSecretKey)
	return &Billing{
		sc:            sc,
		webhookSecret: cfg.StripeWebhookSecret,
		frontendURL:   cfg.FrontendURL,
	}
}

func (b *Billing) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerCreateParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	customer, err := b.sc.V1Customers.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return customer.ID, nil
}

// CreateSubscriptionCheckout opens a Stripe Checkout session for a
// recurring price. The user ID travels in the session metadata so the
// completion webhook can attribute the purchase.
func (b *Billing) CreateSubscriptionCheckout(ctx context.Context, customerID, priceID, userID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: []*string{stripe.String("card")},
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:                stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:          stripe.String(b.frontendURL + "/settings/billing?status=success"),
		CancelURL:           stripe.String(b.frontendURL + "/settings/billing?status=canceled"),
		AllowPromotionCodes: stripe.Bool(true),
		Metadata: map[string]string{
			"user_id": userID,
		},
	}
	return b.sc.V1CheckoutSessions.Create(ctx, params)
}

func (b *Billing) CreatePortalSession(ctx context.Context, customerID string) (*stripe.BillingPortalSession, error) {
	params := &stripe.BillingPortalSessionCreateParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(b.frontendURL + "/settings/billing"),
	}
	return b.sc.V1BillingPortalSessions.Create(ctx, params)
}

func (b *Billing) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	return b.sc.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
}

// CancelAtPeriodEnd flags the subscription for cancellation while
// keeping it active until the paid period runs out.
func (b *Billing) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	return b.sc.V1Subscriptions.Update(ctx, subscriptionID, params)
}

func (b *Billing) Reactivate(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	return b.sc.V1Subscriptions.Update(ctx, subscriptionID, params)
}

func (b *Billing) ListActivePrices(ctx context.Context) ([]*stripe.Price, error) {
	params := &stripe.PriceListParams{
		Active: stripe.Bool(true),
		Type:   stripe.String(string(stripe.PriceTypeRecurring)),
	}
	params.AddExpand("data.product")

	var prices []*stripe.Price
	for p, err := range b.sc.V1Prices.List(ctx, params) {
		if err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, nil
}

func (b *Billing) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, b.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}
