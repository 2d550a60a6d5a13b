package registry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvelchev/codeforge/internal/models"
)

type fakeStore struct {
	models      map[string]*models.AIModel
	defaultID   string
	getDefaults int
}

func newFakeStore() *fakeStore {
	return &fakeStore{models: make(map[string]*models.AIModel)}
}

func (f *fakeStore) add(m *models.AIModel) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	f.models[m.ModelID] = m
	if m.IsDefault {
		f.defaultID = m.ModelID
	}
}

func (f *fakeStore) List(_ context.Context, params ListParams) ([]*models.AIModel, int, error) {
	var out []*models.AIModel
	for _, m := range f.models {
		if params.ActiveOnly && !m.IsActive {
			continue
		}
		if !params.IncludeDeprecated && m.IsDeprecated {
			continue
		}
		out = append(out, m)
	}
	return out, len(out), nil
}

func (f *fakeStore) GetByModelID(_ context.Context, modelID string) (*models.AIModel, error) {
	m, ok := f.models[modelID]
	if !ok {
		return nil, ErrModelNotFound
	}
	return m, nil
}

func (f *fakeStore) GetDefault(_ context.Context) (*models.AIModel, error) {
	f.getDefaults++
	m, ok := f.models[f.defaultID]
	if !ok {
		return nil, ErrModelNotFound
	}
	return m, nil
}

func (f *fakeStore) Create(_ context.Context, m *models.AIModel) error {
	f.add(m)
	return nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, params UpdateParams) (*models.AIModel, error) {
	for _, m := range f.models {
		if m.ID == id {
			if params.IsActive != nil {
				m.IsActive = *params.IsActive
			}
			return m, nil
		}
	}
	return nil, ErrModelNotFound
}

func (f *fakeStore) Deactivate(_ context.Context, id uuid.UUID) error {
	for _, m := range f.models {
		if m.ID == id {
			m.IsActive = false
			m.IsDefault = false
			return nil
		}
	}
	return ErrModelNotFound
}

func (f *fakeStore) SetDefault(_ context.Context, id uuid.UUID) error {
	for _, m := range f.models {
		m.IsDefault = m.ID == id
		if m.IsDefault {
			f.defaultID = m.ModelID
		}
	}
	return nil
}

func (f *fakeStore) SeedDefaults(context.Context) error { return nil }

func TestResolveEmptyUsesDefault(t *testing.T) {
	store := newFakeStore()
	store.add(&models.AIModel{ModelID: "gemini-2.0-flash", IsActive: true, IsDefault: true})
	svc := NewService(store, "fallback-model")

	got, err := svc.Resolve(context.Background(), "", &models.User{Plan: models.PlanFree})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", got)
}

func TestDefaultModelIDFallsBack(t *testing.T) {
	svc := NewService(newFakeStore(), "gemini-2.0-flash")
	assert.Equal(t, "gemini-2.0-flash", svc.DefaultModelID(context.Background()))
}

func TestDefaultModelIDCached(t *testing.T) {
	store := newFakeStore()
	store.add(&models.AIModel{ModelID: "gemini-2.0-flash", IsActive: true, IsDefault: true})
	svc := NewService(store, "fallback")

	svc.DefaultModelID(context.Background())
	svc.DefaultModelID(context.Background())
	assert.Equal(t, 1, store.getDefaults)
}

func TestResolveRejectsInactive(t *testing.T) {
	store := newFakeStore()
	store.add(&models.AIModel{ModelID: "retired", IsActive: false})
	svc := NewService(store, "fallback")

	_, err := svc.Resolve(context.Background(), "retired", &models.User{Plan: models.PlanPro})
	assert.ErrorIs(t, err, ErrModelInactive)
}

func TestResolveProOnlyGating(t *testing.T) {
	store := newFakeStore()
	store.add(&models.AIModel{ModelID: "gemini-2.5-pro", IsActive: true, ProOnly: true})
	svc := NewService(store, "fallback")
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "gemini-2.5-pro", &models.User{Plan: models.PlanFree})
	assert.ErrorIs(t, err, ErrModelProOnly)

	got, err := svc.Resolve(ctx, "gemini-2.5-pro", &models.User{Plan: models.PlanPro})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", got)
}

func TestResolveUnknownModel(t *testing.T) {
	svc := NewService(newFakeStore(), "fallback")
	_, err := svc.Resolve(context.Background(), "nope", &models.User{})
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestSetDefaultInvalidatesCache(t *testing.T) {
	store := newFakeStore()
	a := &models.AIModel{ModelID: "model-a", IsActive: true, IsDefault: true}
	b := &models.AIModel{ModelID: "model-b", IsActive: true}
	store.add(a)
	store.add(b)
	svc := NewService(store, "fallback")
	ctx := context.Background()

	assert.Equal(t, "model-a", svc.DefaultModelID(ctx))
	require.NoError(t, svc.SetDefault(ctx, b.ID))
	assert.Equal(t, "model-b", svc.DefaultModelID(ctx))
}
