package project

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvelchev/codeforge/internal/models"
)

type fakeRepo struct {
	projects map[uuid.UUID]*models.Project
	touched  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{projects: make(map[uuid.UUID]*models.Project)}
}

func (f *fakeRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.Project, int, error) {
	var out []*models.Project
	for _, p := range f.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) CountByOwner(_ context.Context, ownerID uuid.UUID) (int, error) {
	n := 0
	for _, p := range f.projects {
		if p.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) Create(_ context.Context, p *models.Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.projects[p.ID] = p
	return nil
}

func (f *fakeRepo) GetForOwner(_ context.Context, projectID, ownerID uuid.UUID) (*models.Project, error) {
	p, ok := f.projects[projectID]
	if !ok || p.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) Update(_ context.Context, p *models.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, projectID, ownerID uuid.UUID) error {
	p, ok := f.projects[projectID]
	if !ok || p.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(f.projects, projectID)
	return nil
}

func (f *fakeRepo) UsageByOwner(_ context.Context, ownerID uuid.UUID) (int, int64, error) {
	var count int
	var sizeKB int64
	for _, p := range f.projects {
		if p.OwnerID == ownerID {
			count++
			sizeKB += int64(p.TotalSizeKB)
		}
	}
	return count, sizeKB, nil
}

func (f *fakeRepo) TouchAccessed(_ context.Context, _ uuid.UUID) error {
	f.touched++
	return nil
}

func (f *fakeRepo) Stats(_ context.Context, _ uuid.UUID) (*Stats, error) {
	return &Stats{}, nil
}

func freeUser() *models.User {
	return &models.User{ID: uuid.New(), Plan: models.PlanFree}
}

func TestCreateEnforcesProjectQuota(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	owner := freeUser()
	ctx := context.Background()

	first, err := svc.Create(ctx, owner, CreateParams{Name: "my app"})
	require.NoError(t, err)
	assert.Equal(t, "my app", first.Name)
	assert.Equal(t, "python", first.Language)

	_, err = svc.Create(ctx, owner, CreateParams{Name: "second"})
	assert.ErrorIs(t, err, ErrProjectLimit)
}

func TestCreateProUserUnlimited(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	owner := &models.User{ID: uuid.New(), Plan: models.PlanPro}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, owner, CreateParams{Name: "app", Language: "go"})
		require.NoError(t, err)
	}
	count, _ := repo.CountByOwner(ctx, owner.ID)
	assert.Equal(t, 5, count)
}

func TestCreateRejectsEmptyName(t *testing.T) {
	svc := NewService(newFakeRepo())
	_, err := svc.Create(context.Background(), freeUser(), CreateParams{Name: "   "})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestGetChecksOwnership(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	owner := freeUser()
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, CreateParams{Name: "mine"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.Get(ctx, p.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUsesCache(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	owner := freeUser()
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, CreateParams{Name: "mine"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID, owner.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.touched, "second read should come from cache")
}

func TestUpdateInvalidatesCache(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	owner := freeUser()
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, CreateParams{Name: "old name"})
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID, owner.ID)
	require.NoError(t, err)

	newName := "new name"
	_, err = svc.Update(ctx, p.ID, owner.ID, UpdateParams{Name: &newName})
	require.NoError(t, err)

	got, err := svc.Get(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "new name", got.Name)
}

func TestDelete(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	owner := freeUser()
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, CreateParams{Name: "doomed"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID, owner.ID))
	_, err = svc.Get(ctx, p.ID, owner.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, p.ID, owner.ID), ErrNotFound)
}
