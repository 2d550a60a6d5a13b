package user

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/dvelchev/codeforge/internal/auth"
	"github.com/dvelchev/codeforge/internal/models"
)

type dbContextKey string

const dbUserContextKey dbContextKey = "db_user"

func GetDBUserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(dbUserContextKey).(*models.User)
	return u, ok
}

// Middleware resolves the token identity to the database user and puts
// it on the request context. Runs after auth.Middleware.RequireAuth.
func Middleware(repo Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.GetIdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			dbUser, err := repo.GetByID(r.Context(), identity.UserID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				log.Printf("Failed to load user %s: %v", identity.UserID, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			if !dbUser.IsActive {
				http.Error(w, "Account disabled", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), dbUserContextKey, dbUser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route on the loaded user's role. Runs after
// Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := GetDBUserFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !u.IsAdmin() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
