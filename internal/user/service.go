package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvelchev/codeforge/internal/auth"
	"github.com/dvelchev/codeforge/internal/billing"
	"github.com/dvelchev/codeforge/internal/logger"
	"github.com/dvelchev/codeforge/internal/models"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user account is inactive")
	ErrNoPassword         = errors.New("account has no password set")
)

// CustomerCreator is the slice of the billing layer the user service
// needs: lazily creating a Stripe customer on first billing contact.
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
}

// GoogleTokenVerifier validates a Google ID token and returns the
// identity it asserts.
type GoogleTokenVerifier interface {
	VerifyIDToken(tokenString string) (*auth.GoogleUser, error)
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type SignupParams struct {
	Email    string
	Username string
	Password string
	FullName *string
}

type ClientInfo struct {
	UserAgent string
	IPAddress string
}

type Service struct {
	repo     Repository
	sessions SessionStore
	issuer   *auth.TokenIssuer
	google   GoogleTokenVerifier
	billing  CustomerCreator
}

func NewService(repo Repository, sessions SessionStore, issuer *auth.TokenIssuer, google GoogleTokenVerifier, billing CustomerCreator) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		issuer:   issuer,
		google:   google,
		billing:  billing,
	}
}

func (s *Service) Signup(ctx context.Context, params SignupParams, client ClientInfo) (*models.User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}

	taken, err := s.repo.UsernameExists(ctx, params.Username)
	if err != nil {
		return nil, nil, err
	}
	if taken {
		return nil, nil, ErrUsernameTaken
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, nil, err
	}

	newUser := &models.User{
		Email:          email,
		Username:       params.Username,
		HashedPassword: &hash,
		FullName:       params.FullName,
		IsActive:       true,
		Role:           models.RoleUser,
		Plan:           models.PlanFree,
		TokensLimit:    billing.GetPlan(models.PlanFree).TokensLimit,
	}
	if err := s.repo.Create(ctx, newUser); err != nil {
		return nil, nil, err
	}
	logger.Log.Info("user signed up", "user_id", newUser.ID, "email", newUser.Email)

	pair, err := s.issueTokens(ctx, newUser, client)
	if err != nil {
		return nil, nil, err
	}
	return newUser, pair, nil
}

func (s *Service) Signin(ctx context.Context, emailOrUsername, password string, client ClientInfo) (*models.User, *TokenPair, error) {
	u, err := s.repo.GetByEmailOrUsername(ctx, strings.TrimSpace(emailOrUsername))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if u.HashedPassword == nil {
		return nil, nil, ErrNoPassword
	}
	if !auth.VerifyPassword(*u.HashedPassword, password) {
		return nil, nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, nil, ErrInactiveUser
	}

	if err := s.repo.TouchLastLogin(ctx, u.ID); err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokens(ctx, u, client)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// SigninWithGoogle verifies a Google ID token, links or creates the
// matching account, and starts a session. An existing account with the
// same email is linked to the Google identity on first use.
func (s *Service) SigninWithGoogle(ctx context.Context, idToken string, client ClientInfo) (*models.User, *TokenPair, error) {
	if s.google == nil {
		return nil, nil, errors.New("google sign-in is not configured")
	}

	gu, err := s.google.VerifyIDToken(idToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	u, err := s.repo.GetByGoogleID(ctx, gu.Sub)
	if errors.Is(err, ErrNotFound) {
		u, err = s.linkOrCreateGoogleUser(ctx, gu)
	}
	if err != nil {
		return nil, nil, err
	}

	if !u.IsActive {
		return nil, nil, ErrInactiveUser
	}

	if err := s.repo.TouchLastLogin(ctx, u.ID); err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokens(ctx, u, client)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

func (s *Service) linkOrCreateGoogleUser(ctx context.Context, gu *auth.GoogleUser) (*models.User, error) {
	email := strings.ToLower(gu.Email)

	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		existing.GoogleID = &gu.Sub
		existing.IsVerified = true
		if existing.AvatarURL == nil && gu.Picture != "" {
			existing.AvatarURL = &gu.Picture
		}
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		logger.Log.Info("linked google identity", "user_id", existing.ID, "email", email)
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	username, err := s.uniqueUsername(ctx, email)
	if err != nil {
		return nil, err
	}

	newUser := &models.User{
		Email:       email,
		Username:    username,
		GoogleID:    &gu.Sub,
		IsActive:    true,
		IsVerified:  true,
		Role:        models.RoleUser,
		Plan:        models.PlanFree,
		TokensLimit: billing.GetPlan(models.PlanFree).TokensLimit,
	}
	if gu.Name != "" {
		newUser.FullName = &gu.Name
	}
	if gu.Picture != "" {
		newUser.AvatarURL = &gu.Picture
	}

	if err := s.repo.Create(ctx, newUser); err != nil {
		return nil, err
	}
	logger.Log.Info("created user from google identity", "user_id", newUser.ID, "email", email)
	return newUser, nil
}

// uniqueUsername derives a username from the email local part, adding a
// numeric suffix until it is free.
func (s *Service) uniqueUsername(ctx context.Context, email string) (string, error) {
	base, _, _ := strings.Cut(email, "@")
	if base == "" {
		base = "user"
	}

	candidate := base
	for i := 1; ; i++ {
		taken, err := s.repo.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}

// Refresh rotates the session: the presented refresh token is verified,
// matched against its session row, and replaced by a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSessionByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionNotFound
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}

	accessToken, err := s.issuer.CreateAccessToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, err
	}
	newRefresh, err := s.issuer.CreateRefreshToken(u.ID)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.issuer.RefreshTTL())
	if err := s.sessions.RotateSession(ctx, session.ID, newRefresh, expiresAt); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.DeleteSessionByToken(ctx, refreshToken)
}

// EnsureStripeCustomer creates the Stripe customer for a user on first
// billing contact and persists the ID.
func (s *Service) EnsureStripeCustomer(ctx context.Context, u *models.User) (string, error) {
	if u.StripeCustomerID != nil {
		return *u.StripeCustomerID, nil
	}

	name := u.Username
	if u.FullName != nil {
		name = *u.FullName
	}
	customerID, err := s.billing.CreateCustomer(ctx, u.Email, name)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateStripeCustomerID(ctx, u.ID, customerID); err != nil {
		return "", err
	}
	u.StripeCustomerID = &customerID
	return customerID, nil
}

func (s *Service) issueTokens(ctx context.Context, u *models.User, client ClientInfo) (*TokenPair, error) {
	accessToken, err := s.issuer.CreateAccessToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.issuer.CreateRefreshToken(u.ID)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       u.ID,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.issuer.RefreshTTL()),
	}
	if client.UserAgent != "" {
		session.UserAgent = &client.UserAgent
	}
	if client.IPAddress != "" {
		session.IPAddress = &client.IPAddress
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}
