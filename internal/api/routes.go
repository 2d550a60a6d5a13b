package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/uptrace/bun"

	"github.com/dvelchev/codeforge/internal/auth"
	"github.com/dvelchev/codeforge/internal/user"
)

type Handlers struct {
	Auth    *AuthHandler
	Project *ProjectHandler
	File    *FileHandler
	Chat    *ChatHandler
	Billing *BillingHandler
	Model   *ModelHandler
}

func SetupRoutes(h Handlers, authMW *auth.Middleware, userRepo user.Repository, db *bun.DB, corsOrigin string) *mux.Router {
	r := mux.NewRouter()

	r.Use(CORSMiddleware(corsOrigin))
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.HandleFunc("/health", healthCheck(db)).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// public endpoints
	api.HandleFunc("/auth/signup", h.Auth.Signup).Methods("POST")
	api.HandleFunc("/auth/signin", h.Auth.Signin).Methods("POST")
	api.HandleFunc("/auth/google", h.Auth.SigninWithGoogle).Methods("POST")
	api.HandleFunc("/auth/refresh", h.Auth.Refresh).Methods("POST")
	api.HandleFunc("/auth/logout", h.Auth.Logout).Methods("POST")
	api.HandleFunc("/billing/plans", h.Billing.ListPlans).Methods("GET")
	api.HandleFunc("/billing/prices", h.Billing.ListPrices).Methods("GET")

	// Stripe calls this directly, authenticated by signature instead of
	// a bearer token.
	api.HandleFunc("/billing/webhook", h.Billing.HandleWebhook).Methods("POST")

	authed := api.PathPrefix("").Subrouter()
	authed.Use(authMW.RequireAuth)
	authed.Use(user.Middleware(userRepo))

	authed.HandleFunc("/auth/me", h.Auth.Me).Methods("GET")

	authed.HandleFunc("/projects", h.Project.List).Methods("GET")
	authed.HandleFunc("/projects", h.Project.Create).Methods("POST")
	authed.HandleFunc("/projects/{projectID}", h.Project.Get).Methods("GET")
	authed.HandleFunc("/projects/{projectID}", h.Project.Update).Methods("PATCH")
	authed.HandleFunc("/projects/{projectID}", h.Project.Delete).Methods("DELETE")
	authed.HandleFunc("/projects/{projectID}/stats", h.Project.Stats).Methods("GET")

	authed.HandleFunc("/projects/{projectID}/files", h.File.List).Methods("GET")
	authed.HandleFunc("/projects/{projectID}/files", h.File.Create).Methods("POST")
	authed.HandleFunc("/projects/{projectID}/files/tree", h.File.Tree).Methods("GET")
	authed.HandleFunc("/projects/{projectID}/files/{fileID}", h.File.Get).Methods("GET")
	authed.HandleFunc("/projects/{projectID}/files/{fileID}", h.File.Update).Methods("PATCH")
	authed.HandleFunc("/projects/{projectID}/files/{fileID}", h.File.Delete).Methods("DELETE")
	authed.HandleFunc("/projects/{projectID}/files/{fileID}/move", h.File.Move).Methods("POST")
	authed.HandleFunc("/projects/{projectID}/files/{fileID}/download", h.File.Download).Methods("GET")

	authed.HandleFunc("/projects/{projectID}/chat/sessions", h.Chat.ListSessions).Methods("GET")
	authed.HandleFunc("/projects/{projectID}/chat/sessions", h.Chat.CreateSession).Methods("POST")
	authed.HandleFunc("/projects/{projectID}/chat/sessions/{sessionID}", h.Chat.GetSession).Methods("GET")
	authed.HandleFunc("/projects/{projectID}/chat/sessions/{sessionID}", h.Chat.DeleteSession).Methods("DELETE")
	authed.HandleFunc("/projects/{projectID}/chat/sessions/{sessionID}/messages", h.Chat.ListMessages).Methods("GET")
	authed.HandleFunc("/projects/{projectID}/chat/sessions/{sessionID}/messages", h.Chat.SendMessage).Methods("POST")
	authed.HandleFunc("/projects/{projectID}/chat/sessions/{sessionID}/stream", h.Chat.StreamMessage).Methods("POST")

	authed.HandleFunc("/code/{kind:generate|explain|fix|improve}", h.Chat.Assist).Methods("POST")

	authed.HandleFunc("/billing/checkout", h.Billing.CreateCheckout).Methods("POST")
	authed.HandleFunc("/billing/portal", h.Billing.CreatePortal).Methods("POST")
	authed.HandleFunc("/billing/subscription", h.Billing.GetSubscription).Methods("GET")
	authed.HandleFunc("/billing/subscription/cancel", h.Billing.CancelSubscription).Methods("POST")
	authed.HandleFunc("/billing/subscription/reactivate", h.Billing.ReactivateSubscription).Methods("POST")
	authed.HandleFunc("/billing/payments", h.Billing.ListPayments).Methods("GET")

	authed.HandleFunc("/models", h.Model.List).Methods("GET")
	authed.HandleFunc("/models/default", h.Model.GetDefault).Methods("GET")
	authed.HandleFunc("/models/{modelID}", h.Model.Get).Methods("GET")

	admin := authed.PathPrefix("/admin").Subrouter()
	admin.Use(user.RequireAdmin)

	admin.HandleFunc("/models", h.Model.Create).Methods("POST")
	admin.HandleFunc("/models/seed", h.Model.Seed).Methods("POST")
	admin.HandleFunc("/models/{modelID}", h.Model.Update).Methods("PATCH")
	admin.HandleFunc("/models/{modelID}", h.Model.Deactivate).Methods("DELETE")
	admin.HandleFunc("/models/{modelID}/default", h.Model.SetDefault).Methods("POST")

	// mux only runs middleware on matched routes, so preflights need a
	// route of their own; the CORS middleware answers them before this
	// handler is reached.
	r.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	return r
}

func healthCheck(db *bun.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				log.Printf("Health check database ping failed: %v", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
