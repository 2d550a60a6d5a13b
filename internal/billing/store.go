package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/dvelchev/codeforge/internal/models"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

// Store is the persistence surface the webhook processor and the
// billing endpoints run against.
type Store interface {
	InsertEvent(ctx context.Context, event *models.WebhookEvent) (bool, error)
	MarkEventProcessed(ctx context.Context, stripeEventID string) error
	RecordEventError(ctx context.Context, stripeEventID, message string) error

	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	GetActiveSubscriptionForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error

	CreatePayment(ctx context.Context, payment *models.Payment) error
	ListPaymentsForUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.Payment, int, error)

	UpsertPrice(ctx context.Context, price *models.PriceProduct) error
	ListActivePrices(ctx context.Context) ([]*models.PriceProduct, error)
}

type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// InsertEvent records a webhook delivery. The unique index on
// stripe_event_id plus ON CONFLICT DO NOTHING makes this the atomic
// idempotency gate: exactly one concurrent delivery wins.
func (s *PostgresStore) InsertEvent(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()

	res, err := s.db.NewInsert().
		Model(event).
		On("CONFLICT (stripe_event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) MarkEventProcessed(ctx context.Context, stripeEventID string) error {
	_, err := s.db.NewUpdate().
		Model((*models.WebhookEvent)(nil)).
		Set("processed = TRUE").
		Set("processed_at = ?", time.Now()).
		Where("stripe_event_id = ?", stripeEventID).
		Exec(ctx)
	return err
}

func (s *PostgresStore) RecordEventError(ctx context.Context, stripeEventID, message string) error {
	_, err := s.db.NewUpdate().
		Model((*models.WebhookEvent)(nil)).
		Set("error = ?", message).
		Where("stripe_event_id = ?", stripeEventID).
		Exec(ctx)
	return err
}

func (s *PostgresStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	_, err := s.db.NewInsert().Model(sub).Exec(ctx)
	return err
}

func (s *PostgresStore) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	sub := new(models.Subscription)
	err := s.db.NewSelect().
		Model(sub).
		Where("sub.stripe_subscription_id = ?", stripeSubscriptionID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (s *PostgresStore) GetActiveSubscriptionForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub := new(models.Subscription)
	err := s.db.NewSelect().
		Model(sub).
		Where("sub.user_id = ?", userID).
		Where("sub.status IN (?)", bun.In([]models.SubscriptionStatus{
			models.SubscriptionActive,
			models.SubscriptionTrialing,
			models.SubscriptionPastDue,
		})).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (s *PostgresStore) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	sub.UpdatedAt = time.Now()
	_, err := s.db.NewUpdate().
		Model(sub).
		WherePK().
		Exec(ctx)
	return err
}

func (s *PostgresStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = time.Now()
	_, err := s.db.NewInsert().
		Model(payment).
		On("CONFLICT (stripe_invoice_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *PostgresStore) ListPaymentsForUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.Payment, int, error) {
	var payments []*models.Payment
	count, err := s.db.NewSelect().
		Model(&payments).
		Where("pay.user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return payments, count, nil
}

func (s *PostgresStore) UpsertPrice(ctx context.Context, price *models.PriceProduct) error {
	if price.ID == uuid.Nil {
		price.ID = uuid.New()
	}
	now := time.Now()
	price.CreatedAt = now
	price.UpdatedAt = now

	_, err := s.db.NewInsert().
		Model(price).
		On("CONFLICT (stripe_price_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("description = EXCLUDED.description").
		Set("unit_amount_cents = EXCLUDED.unit_amount_cents").
		Set("currency = EXCLUDED.currency").
		Set("interval = EXCLUDED.interval").
		Set("is_active = EXCLUDED.is_active").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *PostgresStore) ListActivePrices(ctx context.Context) ([]*models.PriceProduct, error) {
	var prices []*models.PriceProduct
	err := s.db.NewSelect().
		Model(&prices).
		Where("pp.is_active = TRUE").
		Order("unit_amount_cents ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return prices, nil
}
