package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/dvelchev/codeforge/internal/models"
)

var ErrNotFound = errors.New("user not found")

type Repository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByEmailOrUsername(ctx context.Context, emailOrUsername string) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateStripeCustomerID(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error
	SetPlan(ctx context.Context, userID uuid.UUID, plan models.SubscriptionPlan, stripeSubscriptionID *string, tokensLimit int64) error
	IncrementTokensUsed(ctx context.Context, userID uuid.UUID, amount int64) error
	TouchLastLogin(ctx context.Context, userID uuid.UUID) error
	UsernameExists(ctx context.Context, username string) (bool, error)
}

type UserRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return r.getWhere(ctx, "u.id = ?", userID)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getWhere(ctx, "u.email = ?", email)
}

func (r *UserRepository) GetByEmailOrUsername(ctx context.Context, emailOrUsername string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("u.email = ?", emailOrUsername).
		WhereOr("u.username = ?", emailOrUsername).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return user, nil
}

func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return r.getWhere(ctx, "u.google_id = ?", googleID)
}

func (r *UserRepository) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.User, error) {
	return r.getWhere(ctx, "u.stripe_customer_id = ?", stripeCustomerID)
}

func (r *UserRepository) getWhere(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where(where, arg).
		Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	return err
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(user).
		WherePK().
		Exec(ctx)
	return err
}

func (r *UserRepository) UpdateStripeCustomerID(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("stripe_customer_id = ?", stripeCustomerID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

func (r *UserRepository) SetPlan(ctx context.Context, userID uuid.UUID, plan models.SubscriptionPlan, stripeSubscriptionID *string, tokensLimit int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("plan = ?", plan).
		Set("stripe_subscription_id = ?", stripeSubscriptionID).
		Set("tokens_limit = ?", tokensLimit).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

func (r *UserRepository) IncrementTokensUsed(ctx context.Context, userID uuid.UUID, amount int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("tokens_used = tokens_used + ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("last_login_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.db.NewSelect().
		Model((*models.User)(nil)).
		Where("u.username = ?", username).
		Exists(ctx)
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
