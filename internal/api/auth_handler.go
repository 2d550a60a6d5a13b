package api

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/dvelchev/codeforge/internal/models"
	"github.com/dvelchev/codeforge/internal/user"
)

const (
	invalidRequestMessage    = "Invalid request"
	authenticateErrorMessage = "Failed to authenticate"
	refreshTokenErrorMessage = "Failed to refresh token"
)

type AuthHandler struct {
	users *user.Service
}

func NewAuthHandler(users *user.Service) *AuthHandler {
	return &AuthHandler{users: users}
}

type SignupRequest struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
}

type SigninRequest struct {
	EmailOrUsername string `json:"email_or_username"`
	Password        string `json:"password"`
}

type GoogleSigninRequest struct {
	IDToken string `json:"id_token"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	User   *models.User    `json:"user"`
	Tokens *user.TokenPair `json:"tokens"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email, username and password are required")
		return
	}

	u, tokens, err := h.users.Signup(r.Context(), user.SignupParams{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
	}, clientInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken), errors.Is(err, user.ErrUsernameTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("Signup failed: %v", err)
			writeError(w, http.StatusInternalServerError, authenticateErrorMessage)
		}
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: u, Tokens: tokens})
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	u, tokens, err := h.users.Signin(r.Context(), req.EmailOrUsername, req.Password, clientInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidCredentials), errors.Is(err, user.ErrNoPassword):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, user.ErrInactiveUser):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			log.Printf("Signin failed: %v", err)
			writeError(w, http.StatusInternalServerError, authenticateErrorMessage)
		}
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: u, Tokens: tokens})
}

func (h *AuthHandler) SigninWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req GoogleSigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}
	if req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "id_token is required")
		return
	}

	u, tokens, err := h.users.SigninWithGoogle(r.Context(), req.IDToken, clientInfo(r))
	if err != nil {
		if errors.Is(err, user.ErrInactiveUser) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		log.Printf("Google signin failed: %v", err)
		writeError(w, http.StatusUnauthorized, authenticateErrorMessage)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: u, Tokens: tokens})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	tokens, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, refreshTokenErrorMessage)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	if err := h.users.Logout(r.Context(), req.RefreshToken); err != nil {
		log.Printf("Logout failed: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, dbUser)
}

func clientInfo(r *http.Request) user.ClientInfo {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return user.ClientInfo{
		UserAgent: r.UserAgent(),
		IPAddress: ip,
	}
}
