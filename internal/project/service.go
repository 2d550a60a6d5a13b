package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvelchev/codeforge/internal/billing"
	"github.com/dvelchev/codeforge/internal/cache"
	"github.com/dvelchev/codeforge/internal/models"
)

var (
	ErrProjectLimit = errors.New("project limit reached for current plan")
	ErrEmptyName    = errors.New("project name must not be empty")
)

const defaultLanguage = "python"

type CreateParams struct {
	Name        string
	Description *string
	Language    string
	Framework   *string
	IsPublic    bool
}

type UpdateParams struct {
	Name        *string
	Description *string
	Language    *string
	Framework   *string
	Status      *models.ProjectStatus
	IsPublic    *bool
}

type Service struct {
	repo  Repository
	cache *cache.TTLCache[*models.Project]
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New[*models.Project](30 * time.Second),
	}
}

// Create enforces the per-plan project quota before inserting.
func (s *Service) Create(ctx context.Context, owner *models.User, params CreateParams) (*models.Project, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrEmptyName
	}

	plan := billing.GetPlan(owner.Plan)
	count, err := s.repo.CountByOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if !plan.AllowsProjects(count) {
		return nil, ErrProjectLimit
	}

	language := params.Language
	if language == "" {
		language = defaultLanguage
	}

	project := &models.Project{
		OwnerID:     owner.ID,
		Name:        name,
		Description: params.Description,
		Language:    language,
		Framework:   params.Framework,
		Status:      models.ProjectActive,
		IsPublic:    params.IsPublic,
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.Project, int, error) {
	return s.repo.ListByOwner(ctx, ownerID, offset, limit)
}

// Usage reports how much of the plan quota an owner is consuming.
func (s *Service) Usage(ctx context.Context, ownerID uuid.UUID) (projects int, sizeKB int64, err error) {
	return s.repo.UsageByOwner(ctx, ownerID)
}

// Get loads a project for its owner, marking it accessed. A short TTL
// cache absorbs the burst of reads the editor produces on open.
func (s *Service) Get(ctx context.Context, projectID, ownerID uuid.UUID) (*models.Project, error) {
	if cached, ok := s.cache.Get(projectID.String()); ok && cached.OwnerID == ownerID {
		return cached, nil
	}

	project, err := s.repo.GetForOwner(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.TouchAccessed(ctx, projectID); err != nil {
		return nil, err
	}

	s.cache.Set(projectID.String(), project)
	return project, nil
}

func (s *Service) Update(ctx context.Context, projectID, ownerID uuid.UUID, params UpdateParams) (*models.Project, error) {
	project, err := s.repo.GetForOwner(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		project.Name = name
	}
	if params.Description != nil {
		project.Description = params.Description
	}
	if params.Language != nil {
		project.Language = *params.Language
	}
	if params.Framework != nil {
		project.Framework = params.Framework
	}
	if params.Status != nil {
		project.Status = *params.Status
	}
	if params.IsPublic != nil {
		project.IsPublic = *params.IsPublic
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}

	s.cache.Delete(projectID.String())
	return project, nil
}

func (s *Service) Delete(ctx context.Context, projectID, ownerID uuid.UUID) error {
	if err := s.repo.Delete(ctx, projectID, ownerID); err != nil {
		return err
	}
	s.cache.Delete(projectID.String())
	return nil
}

func (s *Service) Stats(ctx context.Context, projectID, ownerID uuid.UUID) (*Stats, error) {
	if _, err := s.repo.GetForOwner(ctx, projectID, ownerID); err != nil {
		return nil, err
	}
	return s.repo.Stats(ctx, projectID)
}

// Invalidate drops a project from the read cache. The file store calls
// this after mutating the project's usage counters.
func (s *Service) Invalidate(projectID uuid.UUID) {
	s.cache.Delete(projectID.String())
}
