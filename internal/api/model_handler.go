package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dvelchev/codeforge/internal/models"
	"github.com/dvelchev/codeforge/internal/registry"
)

type ModelHandler struct {
	registry *registry.Service
}

func NewModelHandler(reg *registry.Service) *ModelHandler {
	return &ModelHandler{registry: reg}
}

type CreateModelRequest struct {
	ModelID       string  `json:"model_id"`
	Name          string  `json:"name"`
	Provider      string  `json:"provider,omitempty"`
	Description   *string `json:"description,omitempty"`
	ContextWindow int     `json:"context_window,omitempty"`
	MaxOutput     int     `json:"max_output,omitempty"`
	ProOnly       bool    `json:"pro_only,omitempty"`
}

type UpdateModelRequest struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	ContextWindow *int    `json:"context_window,omitempty"`
	MaxOutput     *int    `json:"max_output,omitempty"`
	IsActive      *bool   `json:"is_active,omitempty"`
	IsDeprecated  *bool   `json:"is_deprecated,omitempty"`
	ProOnly       *bool   `json:"pro_only,omitempty"`
}

// List serves the model catalog to any authenticated user. Inactive and
// deprecated entries are only included when asked for explicitly, which
// the admin console does.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, limit := pagination(r)
	params := registry.ListParams{
		ActiveOnly:        q.Get("include_inactive") != "true",
		IncludeDeprecated: q.Get("include_deprecated") == "true",
		Offset:            offset,
		Limit:             limit,
	}

	list, total, err := h.registry.List(r.Context(), params)
	if err != nil {
		log.Printf("Failed to list models: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list models")
		return
	}
	if list == nil {
		list = []*models.AIModel{}
	}

	writeJSON(w, http.StatusOK, listResponse{Items: list, Total: total})
}

func (h *ModelHandler) GetDefault(w http.ResponseWriter, r *http.Request) {
	m, err := h.registry.Default(r.Context())
	if err != nil {
		if errors.Is(err, registry.ErrModelNotFound) {
			writeError(w, http.StatusNotFound, "No default model configured")
			return
		}
		log.Printf("Failed to get default model: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get default model")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// Get looks a model up by its provider identifier rather than its row ID,
// so clients can ask about the same string they pass when chatting.
func (h *ModelHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.registry.Get(r.Context(), mux.Vars(r)["modelID"])
	if err != nil {
		if errors.Is(err, registry.ErrModelNotFound) {
			writeError(w, http.StatusNotFound, "Model not found")
			return
		}
		log.Printf("Failed to get model: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get model")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func (h *ModelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}
	if req.ModelID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "model_id and name are required")
		return
	}
	if req.Provider == "" {
		req.Provider = "google"
	}

	if _, err := h.registry.Get(r.Context(), req.ModelID); err == nil {
		writeError(w, http.StatusConflict, "A model with this model_id already exists")
		return
	} else if !errors.Is(err, registry.ErrModelNotFound) {
		log.Printf("Failed to check model: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create model")
		return
	}

	m := &models.AIModel{
		ModelID:       req.ModelID,
		Name:          req.Name,
		Provider:      req.Provider,
		Description:   req.Description,
		ContextWindow: req.ContextWindow,
		MaxOutput:     req.MaxOutput,
		ProOnly:       req.ProOnly,
		IsActive:      true,
	}
	if err := h.registry.Create(r.Context(), m); err != nil {
		log.Printf("Failed to create model: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create model")
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (h *ModelHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := modelIDVar(w, r)
	if !ok {
		return
	}

	var req UpdateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	m, err := h.registry.Update(r.Context(), id, registry.UpdateParams{
		Name:          req.Name,
		Description:   req.Description,
		ContextWindow: req.ContextWindow,
		MaxOutput:     req.MaxOutput,
		IsActive:      req.IsActive,
		IsDeprecated:  req.IsDeprecated,
		ProOnly:       req.ProOnly,
	})
	if err != nil {
		if errors.Is(err, registry.ErrModelNotFound) {
			writeError(w, http.StatusNotFound, "Model not found")
			return
		}
		log.Printf("Failed to update model: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update model")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func (h *ModelHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := modelIDVar(w, r)
	if !ok {
		return
	}

	if err := h.registry.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrModelNotFound) {
			writeError(w, http.StatusNotFound, "Model not found")
			return
		}
		log.Printf("Failed to deactivate model: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to deactivate model")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Model deactivated"})
}

func (h *ModelHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	id, ok := modelIDVar(w, r)
	if !ok {
		return
	}

	if err := h.registry.SetDefault(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrModelNotFound) {
			writeError(w, http.StatusNotFound, "Model not found")
			return
		}
		log.Printf("Failed to set default model: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to set default model")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Default model updated"})
}

// Seed re-applies the built-in model catalog, skipping entries that
// already exist.
func (h *ModelHandler) Seed(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Seed(r.Context()); err != nil {
		log.Printf("Failed to seed models: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to seed models")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Model catalog seeded"})
}

func modelIDVar(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["modelID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid model ID")
		return uuid.Nil, false
	}
	return id, true
}
