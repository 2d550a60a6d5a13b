package project

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/dvelchev/codeforge/internal/models"
)

var ErrNotFound = errors.New("project not found")

// Stats is the aggregate view served by the project stats endpoint.
type Stats struct {
	FileCount      int            `json:"file_count"`
	TotalSizeKB    int            `json:"total_size_kb"`
	Languages      map[string]int `json:"languages"`
	ChatSessions   int            `json:"chat_sessions"`
	LastActivityAt *time.Time     `json:"last_activity_at,omitempty"`
}

type Repository interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.Project, int, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
	UsageByOwner(ctx context.Context, ownerID uuid.UUID) (projects int, sizeKB int64, err error)
	Create(ctx context.Context, project *models.Project) error
	GetForOwner(ctx context.Context, projectID, ownerID uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, projectID, ownerID uuid.UUID) error
	TouchAccessed(ctx context.Context, projectID uuid.UUID) error
	Stats(ctx context.Context, projectID uuid.UUID) (*Stats, error)
}

type ProjectRepository struct {
	db *bun.DB
}

func NewProjectRepository(db *bun.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.Project, int, error) {
	var projects []*models.Project
	count, err := r.db.NewSelect().
		Model(&projects).
		Where("p.owner_id = ?", ownerID).
		Where("p.status != ?", models.ProjectDeleted).
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return projects, count, nil
}

func (r *ProjectRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	return r.db.NewSelect().
		Model((*models.Project)(nil)).
		Where("p.owner_id = ?", ownerID).
		Where("p.status != ?", models.ProjectDeleted).
		Count(ctx)
}

// UsageByOwner sums the denormalized per-project counters across all of
// an owner's live projects.
func (r *ProjectRepository) UsageByOwner(ctx context.Context, ownerID uuid.UUID) (projects int, sizeKB int64, err error) {
	var row struct {
		Count  int   `bun:"count"`
		SizeKB int64 `bun:"size_kb"`
	}
	err = r.db.NewSelect().
		Model((*models.Project)(nil)).
		ColumnExpr("count(*) AS count").
		ColumnExpr("coalesce(sum(p.total_size_kb), 0) AS size_kb").
		Where("p.owner_id = ?", ownerID).
		Where("p.status != ?", models.ProjectDeleted).
		Scan(ctx, &row)
	if err != nil {
		return 0, 0, err
	}
	return row.Count, row.SizeKB, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	project.CreatedAt = time.Now()
	project.UpdatedAt = project.CreatedAt
	_, err := r.db.NewInsert().Model(project).Exec(ctx)
	return err
}

func (r *ProjectRepository) GetForOwner(ctx context.Context, projectID, ownerID uuid.UUID) (*models.Project, error) {
	project := new(models.Project)
	err := r.db.NewSelect().
		Model(project).
		Where("p.id = ?", projectID).
		Where("p.owner_id = ?", ownerID).
		Where("p.status != ?", models.ProjectDeleted).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(project).
		WherePK().
		Exec(ctx)
	return err
}

func (r *ProjectRepository) Delete(ctx context.Context, projectID, ownerID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*models.Project)(nil)).
		Where("id = ?", projectID).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) TouchAccessed(ctx context.Context, projectID uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*models.Project)(nil)).
		Set("last_accessed_at = ?", time.Now()).
		Where("id = ?", projectID).
		Exec(ctx)
	return err
}

func (r *ProjectRepository) Stats(ctx context.Context, projectID uuid.UUID) (*Stats, error) {
	project := new(models.Project)
	err := r.db.NewSelect().
		Model(project).
		Column("p.file_count", "p.total_size_kb", "p.updated_at", "p.last_accessed_at").
		Where("p.id = ?", projectID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var langRows []struct {
		Language string `bun:"language"`
		Count    int    `bun:"count"`
	}
	err = r.db.NewSelect().
		Model((*models.ProjectFile)(nil)).
		Column("language").
		ColumnExpr("COUNT(*) AS count").
		Where("pf.project_id = ?", projectID).
		Where("pf.type = ?", models.FileTypeFile).
		Where("pf.language IS NOT NULL").
		Group("language").
		Scan(ctx, &langRows)
	if err != nil {
		return nil, err
	}

	languages := make(map[string]int, len(langRows))
	for _, row := range langRows {
		languages[row.Language] = row.Count
	}

	chatSessions, err := r.db.NewSelect().
		Model((*models.ChatSession)(nil)).
		Where("cs.project_id = ?", projectID).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		FileCount:    project.FileCount,
		TotalSizeKB:  project.TotalSizeKB,
		Languages:    languages,
		ChatSessions: chatSessions,
	}
	lastActivity := project.UpdatedAt
	if project.LastAccessedAt != nil && project.LastAccessedAt.After(lastActivity) {
		lastActivity = *project.LastAccessedAt
	}
	stats.LastActivityAt = &lastActivity

	return stats, nil
}
