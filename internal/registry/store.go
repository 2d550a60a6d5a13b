package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/dvelchev/codeforge/internal/models"
)

var ErrModelNotFound = errors.New("model not found")

// Store persists the AI model catalog.
type Store interface {
	List(ctx context.Context, params ListParams) ([]*models.AIModel, int, error)
	GetByModelID(ctx context.Context, modelID string) (*models.AIModel, error)
	GetDefault(ctx context.Context) (*models.AIModel, error)
	Create(ctx context.Context, model *models.AIModel) error
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.AIModel, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	SetDefault(ctx context.Context, id uuid.UUID) error
	SeedDefaults(ctx context.Context) error
}

type ListParams struct {
	ActiveOnly        bool
	IncludeDeprecated bool
	Limit             int
	Offset            int
}

type UpdateParams struct {
	Name          *string
	Description   *string
	ContextWindow *int
	MaxOutput     *int
	IsActive      *bool
	IsDeprecated  *bool
	ProOnly       *bool
}

type ModelStore struct {
	db *bun.DB
}

func NewModelStore(db *bun.DB) *ModelStore {
	return &ModelStore{db: db}
}

func (s *ModelStore) List(ctx context.Context, params ListParams) ([]*models.AIModel, int, error) {
	var out []*models.AIModel
	q := s.db.NewSelect().Model(&out)
	if params.ActiveOnly {
		q = q.Where("is_active = TRUE")
	}
	if !params.IncludeDeprecated {
		q = q.Where("is_deprecated = FALSE")
	}
	q = q.Order("is_default DESC").Order("name ASC")
	if params.Limit > 0 {
		q = q.Limit(params.Limit).Offset(params.Offset)
	}
	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list models: %w", err)
	}
	return out, total, nil
}

func (s *ModelStore) GetByModelID(ctx context.Context, modelID string) (*models.AIModel, error) {
	model := new(models.AIModel)
	err := s.db.NewSelect().Model(model).Where("model_id = ?", modelID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return model, nil
}

func (s *ModelStore) GetDefault(ctx context.Context) (*models.AIModel, error) {
	model := new(models.AIModel)
	err := s.db.NewSelect().Model(model).
		Where("is_default = TRUE").
		Where("is_active = TRUE").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default model: %w", err)
	}
	return model, nil
}

func (s *ModelStore) Create(ctx context.Context, model *models.AIModel) error {
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}
	return nil
}

func (s *ModelStore) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.AIModel, error) {
	q := s.db.NewUpdate().Model((*models.AIModel)(nil)).Where("id = ?", id)
	if params.Name != nil {
		q = q.Set("name = ?", *params.Name)
	}
	if params.Description != nil {
		q = q.Set("description = ?", *params.Description)
	}
	if params.ContextWindow != nil {
		q = q.Set("context_window = ?", *params.ContextWindow)
	}
	if params.MaxOutput != nil {
		q = q.Set("max_output = ?", *params.MaxOutput)
	}
	if params.IsActive != nil {
		q = q.Set("is_active = ?", *params.IsActive)
	}
	if params.IsDeprecated != nil {
		q = q.Set("is_deprecated = ?", *params.IsDeprecated)
	}
	if params.ProOnly != nil {
		q = q.Set("pro_only = ?", *params.ProOnly)
	}
	q = q.Set("updated_at = ?", time.Now())

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update model: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrModelNotFound
	}

	model := new(models.AIModel)
	if err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to reload model: %w", err)
	}
	return model, nil
}

func (s *ModelStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewUpdate().Model((*models.AIModel)(nil)).
		Set("is_active = FALSE").
		Set("is_default = FALSE").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to deactivate model: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrModelNotFound
	}
	return nil
}

// SetDefault promotes one model to be the default, clearing the flag on
// whichever model held it before. Both updates run in one transaction so
// there is never more than one default.
func (s *ModelStore) SetDefault(ctx context.Context, id uuid.UUID) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*models.AIModel)(nil)).
			Set("is_default = TRUE").
			Set("is_active = TRUE").
			Set("updated_at = ?", time.Now()).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set default model: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrModelNotFound
		}

		if _, err := tx.NewUpdate().Model((*models.AIModel)(nil)).
			Set("is_default = FALSE").
			Set("updated_at = ?", time.Now()).
			Where("is_default = TRUE").
			Where("id != ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear previous default: %w", err)
		}
		return nil
	})
}

func strPtr(s string) *string { return &s }

var defaultCatalog = []*models.AIModel{
	{
		ModelID:       "gemini-2.0-flash",
		Name:          "Gemini 2.0 Flash",
		Provider:      "google",
		Description:   strPtr("Fast general-purpose model, good default for chat and code assistance."),
		ContextWindow: 1048576,
		MaxOutput:     8192,
		IsActive:      true,
		IsDefault:     true,
	},
	{
		ModelID:       "gemini-2.0-flash-lite",
		Name:          "Gemini 2.0 Flash Lite",
		Provider:      "google",
		Description:   strPtr("Smaller, cheaper variant for simple completions."),
		ContextWindow: 1048576,
		MaxOutput:     8192,
		IsActive:      true,
	},
	{
		ModelID:       "gemini-2.5-pro",
		Name:          "Gemini 2.5 Pro",
		Provider:      "google",
		Description:   strPtr("Strongest reasoning model, reserved for pro subscribers."),
		ContextWindow: 1048576,
		MaxOutput:     65536,
		IsActive:      true,
		ProOnly:       true,
	},
	{
		ModelID:      "gemini-1.5-flash",
		Name:         "Gemini 1.5 Flash",
		Provider:     "google",
		Description:  strPtr("Previous generation, kept for existing sessions."),
		IsActive:     true,
		IsDeprecated: true,
	},
}

// SeedDefaults inserts the built-in catalog, skipping models that already
// exist so operator edits survive restarts.
func (s *ModelStore) SeedDefaults(ctx context.Context) error {
	for _, m := range defaultCatalog {
		if _, err := s.db.NewInsert().Model(m).
			On("CONFLICT (model_id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to seed model %s: %w", m.ModelID, err)
		}
	}
	return nil
}
