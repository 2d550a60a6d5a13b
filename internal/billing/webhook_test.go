package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/dvelchev/codeforge/internal/models"
)

type fakeStore struct {
	events        map[string]*models.WebhookEvent
	subscriptions map[string]*models.Subscription
	payments      []*models.Payment
	prices        map[string]*models.PriceProduct
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:        make(map[string]*models.WebhookEvent),
		subscriptions: make(map[string]*models.Subscription),
		prices:        make(map[string]*models.PriceProduct),
	}
}

func (f *fakeStore) InsertEvent(_ context.Context, event *models.WebhookEvent) (bool, error) {
	if _, exists := f.events[event.StripeEventID]; exists {
		return false, nil
	}
	f.events[event.StripeEventID] = event
	return true, nil
}

func (f *fakeStore) MarkEventProcessed(_ context.Context, id string) error {
	f.events[id].Processed = true
	return nil
}

func (f *fakeStore) RecordEventError(_ context.Context, id, message string) error {
	f.events[id].Error = &message
	return nil
}

func (f *fakeStore) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	f.subscriptions[sub.StripeSubscriptionID] = sub
	return nil
}

func (f *fakeStore) GetSubscriptionByStripeID(_ context.Context, id string) (*models.Subscription, error) {
	if sub, ok := f.subscriptions[id]; ok {
		return sub, nil
	}
	return nil, ErrSubscriptionNotFound
}

func (f *fakeStore) GetActiveSubscriptionForUser(_ context.Context, userID uuid.UUID) (*models.Subscription, error) {
	for _, sub := range f.subscriptions {
		if sub.UserID == userID && sub.Status == models.SubscriptionActive {
			return sub, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (f *fakeStore) UpdateSubscription(_ context.Context, sub *models.Subscription) error {
	f.subscriptions[sub.StripeSubscriptionID] = sub
	return nil
}

func (f *fakeStore) CreatePayment(_ context.Context, payment *models.Payment) error {
	for _, p := range f.payments {
		if p.StripeInvoiceID != nil && payment.StripeInvoiceID != nil && *p.StripeInvoiceID == *payment.StripeInvoiceID {
			return nil
		}
	}
	f.payments = append(f.payments, payment)
	return nil
}

func (f *fakeStore) ListPaymentsForUser(_ context.Context, userID uuid.UUID, offset, limit int) ([]*models.Payment, int, error) {
	var out []*models.Payment
	for _, p := range f.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) UpsertPrice(_ context.Context, price *models.PriceProduct) error {
	f.prices[price.StripePriceID] = price
	return nil
}

func (f *fakeStore) ListActivePrices(_ context.Context) ([]*models.PriceProduct, error) {
	var out []*models.PriceProduct
	for _, p := range f.prices {
		out = append(out, p)
	}
	return out, nil
}

type fakeUsers struct {
	users map[uuid.UUID]*models.User
}

func newFakeUsers(u ...*models.User) *fakeUsers {
	f := &fakeUsers{users: make(map[uuid.UUID]*models.User)}
	for _, usr := range u {
		f.users[usr.ID] = usr
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s not found", id)
}

func (f *fakeUsers) GetByStripeCustomerID(_ context.Context, customerID string) (*models.User, error) {
	for _, u := range f.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			return u, nil
		}
	}
	return nil, fmt.Errorf("no user for customer %s", customerID)
}

func (f *fakeUsers) UpdateStripeCustomerID(_ context.Context, id uuid.UUID, customerID string) error {
	f.users[id].StripeCustomerID = &customerID
	return nil
}

func (f *fakeUsers) SetPlan(_ context.Context, id uuid.UUID, plan models.SubscriptionPlan, subID *string, tokensLimit int64) error {
	u := f.users[id]
	u.Plan = plan
	u.StripeSubscriptionID = subID
	u.TokensLimit = tokensLimit
	return nil
}

func stripeEvent(t *testing.T, id, eventType string, data any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func proCustomer() *models.User {
	customerID := "cus_123"
	return &models.User{
		ID:               uuid.New(),
		Email:            "dev@example.com",
		Username:         "dev",
		Plan:             models.PlanFree,
		StripeCustomerID: &customerID,
		TokensLimit:      10000,
	}
}

func TestProcessDuplicateEvent(t *testing.T) {
	store := newFakeStore()
	u := proCustomer()
	p := NewProcessor(store, newFakeUsers(u))
	ctx := context.Background()

	event := stripeEvent(t, "evt_1", "customer.subscription.created", map[string]any{
		"id":       "sub_1",
		"customer": "cus_123",
		"status":   "active",
	})

	require.NoError(t, p.Process(ctx, event))
	err := p.Process(ctx, event)
	assert.ErrorIs(t, err, ErrDuplicateEvent)

	// the second delivery must not touch state again
	assert.Len(t, store.subscriptions, 1)
}

func TestSubscriptionCreatedUpgradesUser(t *testing.T) {
	store := newFakeStore()
	u := proCustomer()
	users := newFakeUsers(u)
	p := NewProcessor(store, users)
	ctx := context.Background()

	event := stripeEvent(t, "evt_1", "customer.subscription.created", map[string]any{
		"id":       "sub_1",
		"customer": "cus_123",
		"status":   "active",
		"items": map[string]any{
			"data": []map[string]any{
				{
					"current_period_start": 1700000000,
					"current_period_end":   1702600000,
					"price":                map[string]any{"id": "price_pro"},
				},
			},
		},
	})

	require.NoError(t, p.Process(ctx, event))

	assert.Equal(t, models.PlanPro, u.Plan)
	require.NotNil(t, u.StripeSubscriptionID)
	assert.Equal(t, "sub_1", *u.StripeSubscriptionID)
	assert.Equal(t, GetPlan(models.PlanPro).TokensLimit, u.TokensLimit)

	sub := store.subscriptions["sub_1"]
	require.NotNil(t, sub)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, u.ID, sub.UserID)
	require.NotNil(t, sub.StripePriceID)
	assert.Equal(t, "price_pro", *sub.StripePriceID)
	require.NotNil(t, sub.CurrentPeriodStart)

	assert.True(t, store.events["evt_1"].Processed)
}

func TestSubscriptionDeletedDowngradesUser(t *testing.T) {
	store := newFakeStore()
	u := proCustomer()
	u.Plan = models.PlanPro
	p := NewProcessor(store, newFakeUsers(u))
	ctx := context.Background()

	created := stripeEvent(t, "evt_1", "customer.subscription.created", map[string]any{
		"id": "sub_1", "customer": "cus_123", "status": "active",
	})
	require.NoError(t, p.Process(ctx, created))

	deleted := stripeEvent(t, "evt_2", "customer.subscription.deleted", map[string]any{
		"id": "sub_1", "customer": "cus_123", "status": "canceled",
	})
	require.NoError(t, p.Process(ctx, deleted))

	assert.Equal(t, models.PlanFree, u.Plan)
	assert.Nil(t, u.StripeSubscriptionID)
	assert.Equal(t, GetPlan(models.PlanFree).TokensLimit, u.TokensLimit)
	assert.Equal(t, models.SubscriptionCanceled, store.subscriptions["sub_1"].Status)
}

func TestInvoicePaymentSucceededRecordsPayment(t *testing.T) {
	store := newFakeStore()
	u := proCustomer()
	p := NewProcessor(store, newFakeUsers(u))
	ctx := context.Background()

	event := stripeEvent(t, "evt_1", "invoice.payment_succeeded", map[string]any{
		"id":                 "in_1",
		"customer":           "cus_123",
		"amount_paid":        2000,
		"currency":           "usd",
		"hosted_invoice_url": "https://stripe.test/in_1",
		"period_start":       1700000000,
		"period_end":         1702600000,
	})

	require.NoError(t, p.Process(ctx, event))

	require.Len(t, store.payments, 1)
	payment := store.payments[0]
	assert.Equal(t, u.ID, payment.UserID)
	assert.Equal(t, int64(2000), payment.AmountCents)
	assert.Equal(t, models.PaymentSucceeded, payment.Status)
	require.NotNil(t, payment.StripeInvoiceID)
	assert.Equal(t, "in_1", *payment.StripeInvoiceID)
}

func TestInvoicePaymentFailedMarksPastDue(t *testing.T) {
	store := newFakeStore()
	u := proCustomer()
	p := NewProcessor(store, newFakeUsers(u))
	ctx := context.Background()

	created := stripeEvent(t, "evt_1", "customer.subscription.created", map[string]any{
		"id": "sub_1", "customer": "cus_123", "status": "active",
	})
	require.NoError(t, p.Process(ctx, created))

	failed := stripeEvent(t, "evt_2", "invoice.payment_failed", map[string]any{
		"id":           "in_2",
		"customer":     "cus_123",
		"subscription": "sub_1",
		"amount_due":   2000,
		"currency":     "usd",
	})
	require.NoError(t, p.Process(ctx, failed))

	require.Len(t, store.payments, 1)
	assert.Equal(t, models.PaymentFailed, store.payments[0].Status)
	assert.Equal(t, int64(2000), store.payments[0].AmountCents)
	assert.Equal(t, models.SubscriptionPastDue, store.subscriptions["sub_1"].Status)
}

func TestHandlerErrorIsRecordedAndAcked(t *testing.T) {
	store := newFakeStore()
	// no users registered, so the handler cannot resolve the customer
	p := NewProcessor(store, newFakeUsers())
	ctx := context.Background()

	event := stripeEvent(t, "evt_1", "customer.subscription.created", map[string]any{
		"id": "sub_1", "customer": "cus_unknown", "status": "active",
	})

	// Process swallows handler errors so the delivery is acked
	require.NoError(t, p.Process(ctx, event))

	record := store.events["evt_1"]
	require.NotNil(t, record)
	assert.False(t, record.Processed)
	require.NotNil(t, record.Error)
	assert.Contains(t, *record.Error, "cus_unknown")
}

func TestUnknownEventTypeIsIgnoredButRecorded(t *testing.T) {
	store := newFakeStore()
	p := NewProcessor(store, newFakeUsers())
	ctx := context.Background()

	event := stripeEvent(t, "evt_1", "customer.created", map[string]any{"id": "cus_1"})
	require.NoError(t, p.Process(ctx, event))

	assert.True(t, store.events["evt_1"].Processed)
}

func TestMapSubscriptionStatus(t *testing.T) {
	tests := []struct {
		in   string
		want models.SubscriptionStatus
	}{
		{"active", models.SubscriptionActive},
		{"canceled", models.SubscriptionCanceled},
		{"past_due", models.SubscriptionPastDue},
		{"trialing", models.SubscriptionTrialing},
		{"unpaid", models.SubscriptionUnpaid},
		{"incomplete_expired", models.SubscriptionIncompleteExpired},
		{"something_new", models.SubscriptionIncomplete},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapSubscriptionStatus(tt.in), tt.in)
	}
}
