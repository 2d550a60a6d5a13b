package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvelchev/codeforge/internal/ai"
	"github.com/dvelchev/codeforge/internal/api"
	"github.com/dvelchev/codeforge/internal/auth"
	"github.com/dvelchev/codeforge/internal/billing"
	"github.com/dvelchev/codeforge/internal/chat"
	"github.com/dvelchev/codeforge/internal/config"
	"github.com/dvelchev/codeforge/internal/db"
	"github.com/dvelchev/codeforge/internal/files"
	"github.com/dvelchev/codeforge/internal/project"
	"github.com/dvelchev/codeforge/internal/registry"
	"github.com/dvelchev/codeforge/internal/user"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	bdb := db.NewBunPostgresClient(cfg.DatabaseURL)
	defer bdb.Close()

	if err := db.InitSchema(ctx, bdb); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	issuer := auth.NewTokenIssuer(
		cfg.JWTSecret,
		time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute,
		time.Duration(cfg.RefreshTokenTTLDays)*24*time.Hour,
	)

	var googleVerifier user.GoogleTokenVerifier
	if cfg.GoogleOAuthClientID != "" {
		gv, err := auth.NewGoogleVerifier(cfg.GoogleOAuthClientID)
		if err != nil {
			log.Fatalf("Failed to create Google verifier: %v", err)
		}
		defer gv.Close()
		googleVerifier = gv
	} else {
		log.Println("GOOGLE_OAUTH_CLIENT_ID not set, Google sign-in disabled")
	}

	stripeBilling := billing.NewBilling(cfg)
	billingStore := billing.NewPostgresStore(bdb)

	userRepo := user.NewUserRepository(bdb)
	sessionRepo := user.NewSessionRepository(bdb)
	userService := user.NewService(userRepo, sessionRepo, issuer, googleVerifier, stripeBilling)

	processor := billing.NewProcessor(billingStore, userRepo)

	projectRepo := project.NewProjectRepository(bdb)
	projectService := project.NewService(projectRepo)

	fileStore := files.NewStore(bdb)

	aiClient, err := ai.NewGeminiClient(ctx,
		ai.WithAPIKey(cfg.GeminiAPIKey),
		ai.WithDefaultModel(cfg.DefaultModel),
	)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	chatService := chat.NewService(chat.NewPostgresStore(bdb), fileStore, aiClient, userRepo)

	modelStore := registry.NewModelStore(bdb)
	modelService := registry.NewService(modelStore, cfg.DefaultModel)
	if err := modelService.Seed(ctx); err != nil {
		log.Printf("Failed to seed model catalog: %v", err)
	}

	if cfg.StripeSecretKey != "" {
		if err := billing.SyncStripeCatalog(ctx, stripeBilling, billingStore); err != nil {
			log.Printf("Failed to sync Stripe catalog: %v", err)
		}
	}

	handlers := api.Handlers{
		Auth:    api.NewAuthHandler(userService),
		Project: api.NewProjectHandler(projectService),
		File:    api.NewFileHandler(projectService, fileStore),
		Chat:    api.NewChatHandler(projectService, chatService, modelService),
		Billing: api.NewBillingHandler(userService, projectService, stripeBilling, billingStore, processor, cfg.StripeProPriceID),
		Model:   api.NewModelHandler(modelService),
	}

	router := api.SetupRoutes(handlers, auth.NewMiddleware(issuer), userRepo, bdb, cfg.CORSOrigin)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on %s", cfg.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}
