package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dvelchev/codeforge/internal/chat"
	"github.com/dvelchev/codeforge/internal/models"
	"github.com/dvelchev/codeforge/internal/project"
	"github.com/dvelchev/codeforge/internal/registry"
	"github.com/dvelchev/codeforge/internal/user"
)

const tokenQuotaMessage = "Token quota exhausted for current billing period"

type ChatHandler struct {
	projects *project.Service
	chat     *chat.Service
	models   *registry.Service
}

func NewChatHandler(projects *project.Service, chatSvc *chat.Service, modelsSvc *registry.Service) *ChatHandler {
	return &ChatHandler{projects: projects, chat: chatSvc, models: modelsSvc}
}

type CreateSessionRequest struct {
	Title *string `json:"title,omitempty"`
}

type SendMessageRequest struct {
	Content        string      `json:"content"`
	FileReferences []uuid.UUID `json:"file_references,omitempty"`
	Model          string      `json:"model,omitempty"`
}

type AssistRequest struct {
	Prompt       string     `json:"prompt"`
	Language     string     `json:"language,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Model        string     `json:"model,omitempty"`
	ProjectID    *uuid.UUID `json:"project_id,omitempty"`
}

func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	sessions, err := h.chat.ListSessions(r.Context(), p.ID)
	if err != nil {
		log.Printf("Failed to list chat sessions: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list chat sessions")
		return
	}
	if sessions == nil {
		sessions = []*models.ChatSession{}
	}

	writeJSON(w, http.StatusOK, sessions)
}

func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	p, dbUser, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if r.Body != nil {
		// body is optional for this endpoint
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	session, err := h.chat.CreateSession(r.Context(), p.ID, dbUser.ID, req.Title)
	if err != nil {
		log.Printf("Failed to create chat session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create chat session")
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

type SessionDetailResponse struct {
	Session  *models.ChatSession   `json:"session"`
	Messages []*models.ChatMessage `json:"messages"`
}

func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDVar(w, r)
	if !ok {
		return
	}

	session, err := h.chat.GetSession(r.Context(), p.ID, sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Chat session not found")
			return
		}
		log.Printf("Failed to get chat session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get chat session")
		return
	}

	messages, err := h.chat.ListMessages(r.Context(), p.ID, sessionID)
	if err != nil {
		log.Printf("Failed to list messages: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list messages")
		return
	}
	if messages == nil {
		messages = []*models.ChatMessage{}
	}

	writeJSON(w, http.StatusOK, SessionDetailResponse{Session: session, Messages: messages})
}

func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDVar(w, r)
	if !ok {
		return
	}

	if err := h.chat.DeleteSession(r.Context(), p.ID, sessionID); err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Chat session not found")
			return
		}
		log.Printf("Failed to delete chat session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete chat session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat session deleted"})
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDVar(w, r)
	if !ok {
		return
	}

	messages, err := h.chat.ListMessages(r.Context(), p.ID, sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Chat session not found")
			return
		}
		log.Printf("Failed to list messages: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list messages")
		return
	}
	if messages == nil {
		messages = []*models.ChatMessage{}
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	p, dbUser, ok := h.scope(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDVar(w, r)
	if !ok {
		return
	}

	params, ok := h.sendParams(w, r, dbUser)
	if !ok {
		return
	}

	reply, err := h.chat.SendMessage(r.Context(), p, sessionID, *params)
	if err != nil {
		h.writeChatError(w, err, "Failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

// StreamMessage runs the same chat turn as SendMessage but delivers the
// reply incrementally over server-sent events. Errors after the stream
// has started are sent as an error frame on the stream itself.
func (h *ChatHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
	p, dbUser, ok := h.scope(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDVar(w, r)
	if !ok {
		return
	}

	params, ok := h.sendParams(w, r, dbUser)
	if !ok {
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	reply, err := h.chat.StreamMessage(r.Context(), p, sessionID, *params, func(chunk string) error {
		return sse.Send(streamChunk{Content: chunk})
	})
	if err != nil {
		log.Printf("Chat stream failed: %v", err)
		_ = sse.Send(streamError{Error: "stream interrupted"})
		return
	}

	_ = sse.Send(streamDone{Done: true, MessageID: reply.ID.String()})
}

// Assist handles the standalone code operations. The operation kind comes
// from the route, {kind} being one of generate, explain, fix or improve.
func (h *ChatHandler) Assist(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}
	kind := chat.AssistKind(mux.Vars(r)["kind"])

	var req AssistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if !hasTokenBudget(dbUser) {
		writeError(w, http.StatusPaymentRequired, tokenQuotaMessage)
		return
	}

	model, ok := h.resolveModel(w, r, req.Model, dbUser)
	if !ok {
		return
	}

	result, err := h.chat.Assist(r.Context(), dbUser.ID, chat.AssistParams{
		Kind:         kind,
		Prompt:       req.Prompt,
		Language:     req.Language,
		ErrorMessage: req.ErrorMessage,
		Model:        model,
		ProjectID:    req.ProjectID,
	})
	if err != nil {
		h.writeChatError(w, err, "Failed to run code assistant")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ChatHandler) sendParams(w http.ResponseWriter, r *http.Request, dbUser *models.User) (*chat.SendParams, bool) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return nil, false
	}

	if !hasTokenBudget(dbUser) {
		writeError(w, http.StatusPaymentRequired, tokenQuotaMessage)
		return nil, false
	}

	model, ok := h.resolveModel(w, r, req.Model, dbUser)
	if !ok {
		return nil, false
	}

	return &chat.SendParams{
		Content:        req.Content,
		FileReferences: req.FileReferences,
		Model:          model,
	}, true
}

func (h *ChatHandler) resolveModel(w http.ResponseWriter, r *http.Request, requested string, dbUser *models.User) (string, bool) {
	model, err := h.models.Resolve(r.Context(), requested, dbUser)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrModelNotFound):
			writeError(w, http.StatusBadRequest, "Unknown model")
		case errors.Is(err, registry.ErrModelInactive):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, registry.ErrModelProOnly):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			log.Printf("Failed to resolve model: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to resolve model")
		}
		return "", false
	}
	return model, true
}

func (h *ChatHandler) writeChatError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Chat session not found")
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("%s: %v", fallback, err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *ChatHandler) scope(w http.ResponseWriter, r *http.Request) (*models.Project, *models.User, bool) {
	dbUser, projectID, ok := projectScope(w, r)
	if !ok {
		return nil, nil, false
	}

	p, err := h.projects.Get(r.Context(), projectID, dbUser.ID)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return nil, nil, false
		}
		log.Printf("Failed to get project: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get project")
		return nil, nil, false
	}
	return p, dbUser, true
}

func hasTokenBudget(u *models.User) bool {
	return u.TokensLimit <= 0 || u.TokensUsed < u.TokensLimit
}

func sessionIDVar(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(mux.Vars(r)["sessionID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID")
		return uuid.Nil, false
	}
	return sessionID, true
}
