package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvelchev/codeforge/internal/auth"
	"github.com/dvelchev/codeforge/internal/billing"
	"github.com/dvelchev/codeforge/internal/models"
)

type fakeRepo struct {
	users map[uuid.UUID]*models.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) GetByEmailOrUsername(_ context.Context, v string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == v || u.Username == v {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) GetByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	for _, u := range f.users {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) GetByStripeCustomerID(_ context.Context, customerID string) (*models.User, error) {
	for _, u := range f.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) Create(_ context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) Update(_ context.Context, u *models.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) UpdateStripeCustomerID(_ context.Context, id uuid.UUID, customerID string) error {
	f.users[id].StripeCustomerID = &customerID
	return nil
}

func (f *fakeRepo) SetPlan(_ context.Context, id uuid.UUID, plan models.SubscriptionPlan, subID *string, tokensLimit int64) error {
	u := f.users[id]
	u.Plan = plan
	u.StripeSubscriptionID = subID
	u.TokensLimit = tokensLimit
	return nil
}

func (f *fakeRepo) IncrementTokensUsed(_ context.Context, id uuid.UUID, amount int64) error {
	f.users[id].TokensUsed += amount
	return nil
}

func (f *fakeRepo) TouchLastLogin(_ context.Context, id uuid.UUID) error {
	now := time.Now()
	f.users[id].LastLoginAt = &now
	return nil
}

func (f *fakeRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	for _, u := range f.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

type fakeSessions struct {
	byToken map[string]*models.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byToken: make(map[string]*models.Session)}
}

func (f *fakeSessions) CreateSession(_ context.Context, s *models.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	f.byToken[s.RefreshToken] = s
	return nil
}

func (f *fakeSessions) GetSessionByToken(_ context.Context, token string) (*models.Session, error) {
	if s, ok := f.byToken[token]; ok {
		return s, nil
	}
	return nil, ErrSessionNotFound
}

func (f *fakeSessions) RotateSession(_ context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	for old, s := range f.byToken {
		if s.ID == id {
			delete(f.byToken, old)
			s.RefreshToken = token
			s.ExpiresAt = expiresAt
			f.byToken[token] = s
			return nil
		}
	}
	return ErrSessionNotFound
}

func (f *fakeSessions) DeleteSessionByToken(_ context.Context, token string) error {
	delete(f.byToken, token)
	return nil
}

func (f *fakeSessions) DeleteSessionsForUser(_ context.Context, userID uuid.UUID) error {
	for token, s := range f.byToken {
		if s.UserID == userID {
			delete(f.byToken, token)
		}
	}
	return nil
}

func (f *fakeSessions) DeleteExpiredSessions(_ context.Context) (int64, error) {
	return 0, nil
}

type fakeGoogle struct {
	user *auth.GoogleUser
	err  error
}

func (f *fakeGoogle) VerifyIDToken(string) (*auth.GoogleUser, error) {
	return f.user, f.err
}

type fakeBilling struct {
	created int
}

func (f *fakeBilling) CreateCustomer(context.Context, string, string) (string, error) {
	f.created++
	return "cus_test123", nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeSessions) {
	t.Helper()
	repo := newFakeRepo()
	sessions := newFakeSessions()
	issuer := auth.NewTokenIssuer("test-secret", time.Hour, 7*24*time.Hour)
	svc := NewService(repo, sessions, issuer, &fakeGoogle{}, &fakeBilling{})
	return svc, repo, sessions
}

func TestSignupAndSignin(t *testing.T) {
	svc, repo, sessions := newTestService(t)
	ctx := context.Background()

	u, pair, err := svc.Signup(ctx, SignupParams{
		Email:    "Dev@Example.com",
		Username: "dev",
		Password: "correct-horse",
	}, ClientInfo{UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", u.Email)
	assert.Equal(t, models.PlanFree, u.Plan)
	assert.Equal(t, billing.GetPlan(models.PlanFree).TokensLimit, u.TokensLimit)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Len(t, sessions.byToken, 1)

	_, _, err = svc.Signup(ctx, SignupParams{
		Email:    "dev@example.com",
		Username: "dev2",
		Password: "x-y-z-w-q",
	}, ClientInfo{})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = svc.Signup(ctx, SignupParams{
		Email:    "other@example.com",
		Username: "dev",
		Password: "x-y-z-w-q",
	}, ClientInfo{})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	got, _, err := svc.Signin(ctx, "dev", "correct-horse", ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotNil(t, repo.users[u.ID].LastLoginAt)

	_, _, err = svc.Signin(ctx, "dev", "wrong", ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Signin(ctx, "nobody", "whatever", ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSigninInactiveUser(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	u, _, err := svc.Signup(ctx, SignupParams{
		Email:    "dev@example.com",
		Username: "dev",
		Password: "correct-horse",
	}, ClientInfo{})
	require.NoError(t, err)

	repo.users[u.ID].IsActive = false

	_, _, err = svc.Signin(ctx, "dev", "correct-horse", ClientInfo{})
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestRefreshRotatesSession(t *testing.T) {
	svc, _, sessions := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Signup(ctx, SignupParams{
		Email:    "dev@example.com",
		Username: "dev",
		Password: "correct-horse",
	}, ClientInfo{})
	require.NoError(t, err)

	newPair, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	// old token no longer maps to a session
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.Error(t, err)

	_, ok := sessions.byToken[newPair.RefreshToken]
	assert.True(t, ok)
}

func TestLogoutDeletesSession(t *testing.T) {
	svc, _, sessions := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Signup(ctx, SignupParams{
		Email:    "dev@example.com",
		Username: "dev",
		Password: "correct-horse",
	}, ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	assert.Empty(t, sessions.byToken)
}

func TestSigninWithGoogleCreatesAndLinks(t *testing.T) {
	repo := newFakeRepo()
	sessions := newFakeSessions()
	issuer := auth.NewTokenIssuer("test-secret", time.Hour, 7*24*time.Hour)
	google := &fakeGoogle{user: &auth.GoogleUser{
		Sub:     "google-sub-1",
		Email:   "Dev@Example.com",
		Name:    "Dev Example",
		Picture: "https://example.com/p.png",
	}}
	svc := NewService(repo, sessions, issuer, google, &fakeBilling{})
	ctx := context.Background()

	u, pair, err := svc.SigninWithGoogle(ctx, "id-token", ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", u.Email)
	assert.Equal(t, "dev", u.Username)
	assert.True(t, u.IsVerified)
	require.NotNil(t, u.GoogleID)
	assert.Equal(t, "google-sub-1", *u.GoogleID)
	assert.Equal(t, billing.GetPlan(models.PlanFree).TokensLimit, u.TokensLimit)
	assert.NotEmpty(t, pair.AccessToken)

	// second sign-in resolves the same account
	again, _, err := svc.SigninWithGoogle(ctx, "id-token", ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Len(t, repo.users, 1)
}

func TestEnsureStripeCustomer(t *testing.T) {
	repo := newFakeRepo()
	billing := &fakeBilling{}
	issuer := auth.NewTokenIssuer("test-secret", time.Hour, time.Hour)
	svc := NewService(repo, newFakeSessions(), issuer, nil, billing)
	ctx := context.Background()

	u := &models.User{Email: "dev@example.com", Username: "dev"}
	require.NoError(t, repo.Create(ctx, u))

	id, err := svc.EnsureStripeCustomer(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "cus_test123", id)
	assert.Equal(t, 1, billing.created)

	// second call reuses the stored customer
	id, err = svc.EnsureStripeCustomer(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "cus_test123", id)
	assert.Equal(t, 1, billing.created)
}
