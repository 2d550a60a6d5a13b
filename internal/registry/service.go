package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dvelchev/codeforge/internal/cache"
	"github.com/dvelchev/codeforge/internal/models"
)

var (
	ErrModelInactive = errors.New("model is not available")
	ErrModelProOnly  = errors.New("model requires a pro subscription")
)

const modelCacheTTL = 5 * time.Minute

// Service answers "which model should this request use" on the hot path
// and exposes the catalog management operations behind the admin API.
type Service struct {
	store         Store
	fallbackModel string
	cache         *cache.TTLCache[*models.AIModel]
}

func NewService(store Store, fallbackModel string) *Service {
	return &Service{
		store:         store,
		fallbackModel: fallbackModel,
		cache:         cache.New[*models.AIModel](modelCacheTTL),
	}
}

func (s *Service) List(ctx context.Context, params ListParams) ([]*models.AIModel, int, error) {
	return s.store.List(ctx, params)
}

// Get looks a model up by its provider identifier, e.g. "gemini-2.0-flash".
func (s *Service) Get(ctx context.Context, modelID string) (*models.AIModel, error) {
	if m, ok := s.cache.Get("model:" + modelID); ok {
		return m, nil
	}
	m, err := s.store.GetByModelID(ctx, modelID)
	if err != nil {
		return nil, err
	}
	s.cache.Set("model:"+modelID, m)
	return m, nil
}

// Default returns the catalog's default model.
func (s *Service) Default(ctx context.Context) (*models.AIModel, error) {
	if m, ok := s.cache.Get("default"); ok {
		return m, nil
	}
	m, err := s.store.GetDefault(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set("default", m)
	return m, nil
}

// DefaultModelID returns the catalog default, falling back to the
// configured model when the catalog has none.
func (s *Service) DefaultModelID(ctx context.Context) string {
	m, err := s.Default(ctx)
	if err != nil {
		return s.fallbackModel
	}
	return m.ModelID
}

// Resolve validates a requested model against the catalog and the user's
// plan. An empty request resolves to the default model.
func (s *Service) Resolve(ctx context.Context, requested string, user *models.User) (string, error) {
	if requested == "" {
		return s.DefaultModelID(ctx), nil
	}

	m, err := s.Get(ctx, requested)
	if err != nil {
		return "", err
	}

	if !m.IsActive {
		return "", ErrModelInactive
	}
	if m.ProOnly && (user == nil || user.Plan != models.PlanPro) {
		return "", ErrModelProOnly
	}
	return m.ModelID, nil
}

func (s *Service) Create(ctx context.Context, model *models.AIModel) error {
	if err := s.store.Create(ctx, model); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.AIModel, error) {
	m, err := s.store.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return m, nil
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Deactivate(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Service) SetDefault(ctx context.Context, id uuid.UUID) error {
	if err := s.store.SetDefault(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Service) Seed(ctx context.Context) error {
	return s.store.SeedDefaults(ctx)
}

func (s *Service) invalidate() {
	s.cache.Delete("default")
	s.cache.DeletePrefix("model:")
}
