package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dvelchev/codeforge/internal/auth"
)

func testRouter() http.Handler {
	issuer := auth.NewTokenIssuer("test-secret", time.Minute, time.Hour)
	h := Handlers{
		Auth:    &AuthHandler{},
		Project: &ProjectHandler{},
		File:    &FileHandler{},
		Chat:    &ChatHandler{},
		Billing: &BillingHandler{},
		Model:   &ModelHandler{},
	}
	return SetupRoutes(h, auth.NewMiddleware(issuer), nil, nil, "http://localhost:5173")
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	testRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)

	testRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := testRouter()
	paths := []string{
		"/api/v1/projects",
		"/api/v1/projects/1b4e28ba-2fa1-11d2-883f-0016d3cca427/files",
		"/api/v1/billing/checkout",
		"/api/v1/admin/models",
	}

	for _, path := range paths {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST", path)
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)

	testRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
