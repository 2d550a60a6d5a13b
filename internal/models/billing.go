package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SubscriptionStatus string

const (
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
)

type Subscription struct {
	bun.BaseModel `bun:"table:subscriptions,alias:sub"`

	ID     uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	UserID uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	User   *User     `bun:"rel:belongs-to,join:user_id=id,on_delete:CASCADE" json:"-"`

	StripeSubscriptionID string             `bun:"stripe_subscription_id,notnull,unique" json:"stripe_subscription_id"`
	StripeCustomerID     string             `bun:"stripe_customer_id,notnull" json:"stripe_customer_id"`
	StripePriceID        *string            `bun:"stripe_price_id" json:"stripe_price_id,omitempty"`
	Status               SubscriptionStatus `bun:"status,notnull" json:"status"`
	Plan                 SubscriptionPlan   `bun:"plan,notnull,default:'pro'" json:"plan"`

	CurrentPeriodStart *time.Time `bun:"current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `bun:"current_period_end" json:"current_period_end,omitempty"`
	CancelAt           *time.Time `bun:"cancel_at" json:"cancel_at,omitempty"`
	CanceledAt         *time.Time `bun:"canceled_at" json:"canceled_at,omitempty"`
	TrialEnd           *time.Time `bun:"trial_end" json:"trial_end,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentPending   PaymentStatus = "pending"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:pay"`

	ID     uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	UserID uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	User   *User     `bun:"rel:belongs-to,join:user_id=id,on_delete:CASCADE" json:"-"`

	StripeInvoiceID       *string       `bun:"stripe_invoice_id,unique" json:"stripe_invoice_id,omitempty"`
	StripePaymentIntentID *string       `bun:"stripe_payment_intent_id" json:"stripe_payment_intent_id,omitempty"`
	AmountCents           int64         `bun:"amount_cents,notnull" json:"amount_cents"`
	Currency              string        `bun:"currency,notnull,default:'usd'" json:"currency"`
	Status                PaymentStatus `bun:"status,notnull" json:"status"`
	Description           *string       `bun:"description" json:"description,omitempty"`
	InvoicePDF            *string       `bun:"invoice_pdf" json:"invoice_pdf,omitempty"`
	HostedInvoiceURL      *string       `bun:"hosted_invoice_url" json:"hosted_invoice_url,omitempty"`

	PeriodStart *time.Time `bun:"period_start" json:"period_start,omitempty"`
	PeriodEnd   *time.Time `bun:"period_end" json:"period_end,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// PriceProduct mirrors one recurring Stripe price. Rows are synced from
// the Stripe catalog and served to the frontend pricing page.
type PriceProduct struct {
	bun.BaseModel `bun:"table:price_products,alias:pp"`

	ID              uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	StripePriceID   string    `bun:"stripe_price_id,notnull,unique" json:"stripe_price_id"`
	StripeProductID string    `bun:"stripe_product_id,notnull" json:"stripe_product_id"`

	Name            string   `bun:"name,notnull" json:"name"`
	Description     *string  `bun:"description" json:"description,omitempty"`
	UnitAmountCents int64    `bun:"unit_amount_cents,notnull" json:"unit_amount_cents"`
	Currency        string   `bun:"currency,notnull,default:'usd'" json:"currency"`
	Interval        string   `bun:"interval,notnull,default:'month'" json:"interval"`
	Features        []string `bun:"features,type:jsonb" json:"features,omitempty"`
	IsActive        bool     `bun:"is_active,notnull,default:true" json:"is_active"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// WebhookEvent records every Stripe event this backend has accepted.
// The unique stripe_event_id column is what makes redelivery a no-op.
type WebhookEvent struct {
	bun.BaseModel `bun:"table:webhook_events,alias:we"`

	ID            uuid.UUID       `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	StripeEventID string          `bun:"stripe_event_id,notnull,unique" json:"stripe_event_id"`
	EventType     string          `bun:"event_type,notnull" json:"event_type"`
	Data          json.RawMessage `bun:"data,type:jsonb" json:"data,omitempty"`

	Processed   bool       `bun:"processed,notnull,default:false" json:"processed"`
	ProcessedAt *time.Time `bun:"processed_at" json:"processed_at,omitempty"`
	Error       *string    `bun:"error" json:"error,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
