package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dvelchev/codeforge/internal/models"
	"github.com/dvelchev/codeforge/internal/project"
	"github.com/dvelchev/codeforge/internal/user"
)

type ProjectHandler struct {
	projects *project.Service
}

func NewProjectHandler(projects *project.Service) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Language    string  `json:"language,omitempty"`
	Framework   *string `json:"framework,omitempty"`
	IsPublic    bool    `json:"is_public,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string               `json:"name,omitempty"`
	Description *string               `json:"description,omitempty"`
	Language    *string               `json:"language,omitempty"`
	Framework   *string               `json:"framework,omitempty"`
	Status      *models.ProjectStatus `json:"status,omitempty"`
	IsPublic    *bool                 `json:"is_public,omitempty"`
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	offset, limit := pagination(r)
	projects, total, err := h.projects.List(r.Context(), dbUser.ID, offset, limit)
	if err != nil {
		log.Printf("Failed to list projects: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}

	writeJSON(w, http.StatusOK, listResponse{Items: projects, Total: total})
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	p, err := h.projects.Create(r.Context(), dbUser, project.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		Language:    req.Language,
		Framework:   req.Framework,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		switch {
		case errors.Is(err, project.ErrEmptyName):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, project.ErrProjectLimit):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			log.Printf("Failed to create project: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to create project")
		}
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	dbUser, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}

	p, err := h.projects.Get(r.Context(), projectID, dbUser.ID)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		log.Printf("Failed to get project: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get project")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	dbUser, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	p, err := h.projects.Update(r.Context(), projectID, dbUser.ID, project.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		Language:    req.Language,
		Framework:   req.Framework,
		Status:      req.Status,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		switch {
		case errors.Is(err, project.ErrNotFound):
			writeError(w, http.StatusNotFound, "Project not found")
		case errors.Is(err, project.ErrEmptyName):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("Failed to update project: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to update project")
		}
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	dbUser, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}

	if err := h.projects.Delete(r.Context(), projectID, dbUser.ID); err != nil {
		if errors.Is(err, project.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		log.Printf("Failed to delete project: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete project")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Project deleted"})
}

func (h *ProjectHandler) Stats(w http.ResponseWriter, r *http.Request) {
	dbUser, projectID, ok := projectScope(w, r)
	if !ok {
		return
	}

	stats, err := h.projects.Stats(r.Context(), projectID, dbUser.ID)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		log.Printf("Failed to get project stats: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get project stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// projectScope pulls the authenticated user and the {projectID} path
// variable out of the request, writing the error response itself when
// either is missing.
func projectScope(w http.ResponseWriter, r *http.Request) (*models.User, uuid.UUID, bool) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return nil, uuid.Nil, false
	}

	projectID, err := uuid.Parse(mux.Vars(r)["projectID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project ID")
		return nil, uuid.Nil, false
	}
	return dbUser, projectID, true
}
