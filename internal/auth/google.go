package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

const googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var ErrWrongAudience = errors.New("token issued for a different client")

// GoogleUser is the identity extracted from a verified Google ID token.
type GoogleUser struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

// GoogleVerifier validates Google-issued ID tokens against Google's
// published JWKS. The key set refreshes itself in the background.
type GoogleVerifier struct {
	jwks     *keyfunc.JWKS
	clientID string
	mu       sync.RWMutex
}

func NewGoogleVerifier(clientID string) (*GoogleVerifier, error) {
	jwks, err := keyfunc.Get(googleJWKSURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	return &GoogleVerifier{
		jwks:     jwks,
		clientID: clientID,
	}, nil
}

func (v *GoogleVerifier) VerifyIDToken(tokenString string) (*GoogleUser, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMissingClaims
	}

	iss, _ := claims["iss"].(string)
	if iss != "https://accounts.google.com" && iss != "accounts.google.com" {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, iss)
	}

	aud, _ := claims["aud"].(string)
	if v.clientID != "" && aud != v.clientID {
		return nil, ErrWrongAudience
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMissingClaims)
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrMissingClaims)
	}

	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)

	return &GoogleUser{
		Sub:     sub,
		Email:   email,
		Name:    name,
		Picture: picture,
	}, nil
}

func (v *GoogleVerifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
