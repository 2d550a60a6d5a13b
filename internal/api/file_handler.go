package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dvelchev/codeforge/internal/billing"
	"github.com/dvelchev/codeforge/internal/files"
	"github.com/dvelchev/codeforge/internal/models"
	"github.com/dvelchev/codeforge/internal/project"
)

type FileHandler struct {
	projects *project.Service
	files    *files.Store
}

func NewFileHandler(projects *project.Service, store *files.Store) *FileHandler {
	return &FileHandler{projects: projects, files: store}
}

type CreateFileRequest struct {
	Name     string          `json:"name"`
	Path     string          `json:"path,omitempty"`
	Type     models.FileType `json:"type"`
	Content  *string         `json:"content,omitempty"`
	ParentID *uuid.UUID      `json:"parent_id,omitempty"`
}

type UpdateFileRequest struct {
	Content *string `json:"content,omitempty"`
	Name    *string `json:"name,omitempty"`
}

type MoveFileRequest struct {
	NewPath     string     `json:"new_path"`
	NewParentID *uuid.UUID `json:"new_parent_id,omitempty"`
}

type FileListResponse struct {
	Items          []*models.ProjectFile `json:"items"`
	TotalFiles     int                   `json:"total_files"`
	TotalSizeBytes int64                 `json:"total_size_bytes"`
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireProject(w, r)
	if !ok {
		return
	}

	list, err := h.files.List(r.Context(), p.ID, r.URL.Query().Get("prefix"))
	if err != nil {
		log.Printf("Failed to list files: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list files")
		return
	}
	if list == nil {
		list = []*models.ProjectFile{}
	}

	resp := FileListResponse{Items: list}
	for _, f := range list {
		if f.Type == models.FileTypeFile {
			resp.TotalFiles++
			resp.TotalSizeBytes += int64(f.SizeBytes)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *FileHandler) Tree(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireProject(w, r)
	if !ok {
		return
	}

	tree, err := h.files.Tree(r.Context(), p.ID)
	if err != nil {
		log.Printf("Failed to build file tree: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to build file tree")
		return
	}
	if tree == nil {
		tree = []*files.TreeNode{}
	}

	writeJSON(w, http.StatusOK, tree)
}

func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireProject(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDVar(w, r)
	if !ok {
		return
	}

	f, err := h.files.Get(r.Context(), p.ID, fileID)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		log.Printf("Failed to get file: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get file")
		return
	}

	writeJSON(w, http.StatusOK, f)
}

// Download serves the raw file content as an attachment.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireProject(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDVar(w, r)
	if !ok {
		return
	}

	f, err := h.files.Get(r.Context(), p.ID, fileID)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		log.Printf("Failed to get file: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get file")
		return
	}
	if f.Type == models.FileTypeDirectory {
		writeError(w, http.StatusBadRequest, "Directories cannot be downloaded")
		return
	}

	contentType := "text/plain; charset=utf-8"
	if f.MimeType != nil && *f.MimeType != "" {
		contentType = *f.MimeType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", files.BaseName(f.Path)))
	w.WriteHeader(http.StatusOK)
	if f.Content != nil {
		io.WriteString(w, *f.Content)
	}
}

func (h *FileHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, plan, ok := h.requireProjectWithPlan(w, r)
	if !ok {
		return
	}

	var req CreateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}
	if req.Type != models.FileTypeFile && req.Type != models.FileTypeDirectory {
		writeError(w, http.StatusBadRequest, "type must be file or directory")
		return
	}

	f, err := h.files.Create(r.Context(), p.ID, plan, files.CreateParams{
		Name:     req.Name,
		Path:     req.Path,
		Type:     req.Type,
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		h.writeFileError(w, err, "Failed to create file")
		return
	}
	h.projects.Invalidate(p.ID)

	writeJSON(w, http.StatusCreated, f)
}

func (h *FileHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, plan, ok := h.requireProjectWithPlan(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDVar(w, r)
	if !ok {
		return
	}

	var req UpdateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	f, err := h.files.Update(r.Context(), p.ID, plan, fileID, files.UpdateParams{
		Content: req.Content,
		Name:    req.Name,
	})
	if err != nil {
		h.writeFileError(w, err, "Failed to update file")
		return
	}
	h.projects.Invalidate(p.ID)

	writeJSON(w, http.StatusOK, f)
}

func (h *FileHandler) Move(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireProject(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDVar(w, r)
	if !ok {
		return
	}

	var req MoveFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	f, err := h.files.Move(r.Context(), p.ID, fileID, req.NewPath, req.NewParentID)
	if err != nil {
		h.writeFileError(w, err, "Failed to move file")
		return
	}

	writeJSON(w, http.StatusOK, f)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireProject(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDVar(w, r)
	if !ok {
		return
	}

	if err := h.files.Delete(r.Context(), p.ID, fileID); err != nil {
		h.writeFileError(w, err, "Failed to delete file")
		return
	}
	h.projects.Invalidate(p.ID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted"})
}

func (h *FileHandler) writeFileError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, files.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, files.ErrParentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, files.ErrPathExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, files.ErrFileLimit), errors.Is(err, files.ErrSizeLimit):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, files.ErrInvalidPath),
		errors.Is(err, files.ErrIsDirectory),
		errors.Is(err, files.ErrMoveIntoSelf):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("%s: %v", fallback, err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// requireProject resolves {projectID} to a project owned by the caller.
func (h *FileHandler) requireProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	p, _, ok := h.requireProjectWithPlan(w, r)
	return p, ok
}

func (h *FileHandler) requireProjectWithPlan(w http.ResponseWriter, r *http.Request) (*models.Project, *billing.Plan, bool) {
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
	return p, billing.GetPlan(dbUser.Plan), true
}

func fileIDVar(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	fileID, err := uuid.Parse(mux.Vars(r)["fileID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file ID")
		return uuid.Nil, false
	}
	return fileID, true
}
