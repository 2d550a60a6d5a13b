package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type SubscriptionPlan string

const (
	PlanFree SubscriptionPlan = "free"
	PlanPro  SubscriptionPlan = "pro"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	Email          string    `bun:"email,notnull,unique" json:"email"`
	Username       string    `bun:"username,notnull,unique" json:"username"`
	HashedPassword *string   `bun:"hashed_password" json:"-"`
	FullName       *string   `bun:"full_name" json:"full_name,omitempty"`
	AvatarURL      *string   `bun:"avatar_url" json:"avatar_url,omitempty"`
	GoogleID       *string   `bun:"google_id,unique" json:"-"`
	IsActive       bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	IsVerified     bool      `bun:"is_verified,notnull,default:false" json:"is_verified"`
	Role           UserRole  `bun:"role,notnull,default:'user'" json:"role"`

	Plan                 SubscriptionPlan `bun:"plan,notnull,default:'free'" json:"plan"`
	StripeCustomerID     *string          `bun:"stripe_customer_id,unique" json:"-"`
	StripeSubscriptionID *string          `bun:"stripe_subscription_id" json:"-"`
	TokensUsed           int64            `bun:"tokens_used,notnull,default:0" json:"tokens_used"`
	TokensLimit          int64            `bun:"tokens_limit,notnull,default:10000" json:"tokens_limit"`

	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
	LastLoginAt *time.Time `bun:"last_login_at" json:"last_login_at,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session is one issued refresh token. A user may hold several at once,
// one per signed-in device.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID             uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	UserID         uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	User           *User     `bun:"rel:belongs-to,join:user_id=id,on_delete:CASCADE" json:"-"`
	RefreshToken   string    `bun:"refresh_token,notnull,unique" json:"-"`
	UserAgent      *string   `bun:"user_agent" json:"user_agent,omitempty"`
	IPAddress      *string   `bun:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt      time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	LastActivityAt time.Time `bun:"last_activity_at,notnull,default:current_timestamp" json:"last_activity_at"`
}
