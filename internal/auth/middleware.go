package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	unauthorizedMessage = "Unauthorized"
	invalidTokenMessage = "Invalid token"
)

type contextKey string

const IdentityContextKey contextKey = "identity"

// Identity is what an access token proves about the caller. The full
// database user is loaded one middleware later.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

type Middleware struct {
	issuer *TokenIssuer
}

func NewMiddleware(issuer *TokenIssuer) *Middleware {
	return &Middleware{
		issuer: issuer,
	}
}

func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get(authorizationHeader)
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			http.Error(w, unauthorizedMessage, http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := m.issuer.VerifyAccessToken(tokenString)
		if err != nil {
			http.Error(w, invalidTokenMessage, http.StatusUnauthorized)
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			http.Error(w, invalidTokenMessage, http.StatusUnauthorized)
			return
		}

		identity := &Identity{
			UserID: userID,
			Email:  claims.Email,
			Role:   claims.Role,
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetIdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(*Identity)
	return identity, ok
}
