package files

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/dvelchev/codeforge/internal/billing"
	"github.com/dvelchev/codeforge/internal/models"
)

var (
	ErrNotFound       = errors.New("file not found")
	ErrPathExists     = errors.New("path already exists in project")
	ErrFileLimit      = errors.New("file limit reached for current plan")
	ErrSizeLimit      = errors.New("project size limit reached for current plan")
	ErrInvalidPath    = errors.New("invalid path")
	ErrIsDirectory    = errors.New("operation not valid for directories")
	ErrParentNotFound = errors.New("parent directory not found")
	ErrMoveIntoSelf   = errors.New("cannot move a directory into itself")
)

type CreateParams struct {
	Name     string
	Path     string
	Type     models.FileType
	Content  *string
	ParentID *uuid.UUID
}

type UpdateParams struct {
	Content *string
	Name    *string
}

// Store runs every file mutation inside a transaction holding a FOR
// UPDATE lock on the project row. The lock serializes quota checks and
// the denormalized counters against concurrent writers.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// List returns the project's files ordered by path. A non-empty prefix
// restricts the result to one subtree.
func (s *Store) List(ctx context.Context, projectID uuid.UUID, prefix string) ([]*models.ProjectFile, error) {
	var entries []*models.ProjectFile
	q := s.db.NewSelect().
		Model(&entries).
		Where("pf.project_id = ?", projectID)
	if prefix = NormalizePath(prefix); prefix != "" {
		q = q.Where("(pf.path = ? OR pf.path LIKE ?)", prefix, prefix+"/%")
	}
	err := q.Order("path ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Tree returns the project's files nested for the sidebar.
func (s *Store) Tree(ctx context.Context, projectID uuid.UUID) ([]*TreeNode, error) {
	entries, err := s.List(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	return BuildTree(entries), nil
}

func (s *Store) Get(ctx context.Context, projectID, fileID uuid.UUID) (*models.ProjectFile, error) {
	file := new(models.ProjectFile)
	err := s.db.NewSelect().
		Model(file).
		Where("pf.id = ?", fileID).
		Where("pf.project_id = ?", projectID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

// GetMany loads the requested files that exist in the project,
// preserving input order.
func (s *Store) GetMany(ctx context.Context, projectID uuid.UUID, fileIDs []uuid.UUID) ([]*models.ProjectFile, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	var entries []*models.ProjectFile
	err := s.db.NewSelect().
		Model(&entries).
		Where("pf.project_id = ?", projectID).
		Where("pf.id IN (?)", bun.In(fileIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*models.ProjectFile, len(entries))
	for _, f := range entries {
		byID[f.ID] = f
	}
	ordered := make([]*models.ProjectFile, 0, len(entries))
	for _, id := range fileIDs {
		if f, ok := byID[id]; ok {
			ordered = append(ordered, f)
		}
	}
	return ordered, nil
}

func (s *Store) Create(ctx context.Context, projectID uuid.UUID, plan *billing.Plan, params CreateParams) (*models.ProjectFile, error) {
	path := params.Path
	if path == "" {
		path = params.Name
	}
	path = NormalizePath(path)
	if path == "" {
		return nil, ErrInvalidPath
	}

	file := &models.ProjectFile{
		ID:        uuid.New(),
		ProjectID: projectID,
		ParentID:  params.ParentID,
		Name:      BaseName(path),
		Path:      path,
		Type:      params.Type,
	}

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		project, err := lockProject(ctx, tx, projectID)
		if err != nil {
			return err
		}

		taken, err := pathTaken(ctx, tx, projectID, path, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return ErrPathExists
		}

		if params.ParentID != nil {
			if err := checkParent(ctx, tx, projectID, *params.ParentID); err != nil {
				return err
			}
		}

		sizeDeltaKB := 0
		if file.Type == models.FileTypeFile {
			if !plan.AllowsFiles(project.FileCount) {
				return ErrFileLimit
			}

			content := ""
			if params.Content != nil {
				content = *params.Content
			}
			file.Content = &content
			file.SizeBytes = len(content)

			if lang := DetectLanguage(file.Name); lang != "" {
				file.Language = &lang
			}
			mt := DetectMimeType(file.Name)
			file.MimeType = &mt

			sizeDeltaKB = file.SizeBytes / 1024
			if !plan.AllowsSizeKB(project.TotalSizeKB + sizeDeltaKB) {
				return ErrSizeLimit
			}
		}

		now := time.Now()
		file.CreatedAt = now
		file.UpdatedAt = now
		if _, err := tx.NewInsert().Model(file).Exec(ctx); err != nil {
			return err
		}

		fileCountDelta := 0
		if file.Type == models.FileTypeFile {
			fileCountDelta = 1
		}
		return bumpProjectUsage(ctx, tx, projectID, fileCountDelta, sizeDeltaKB)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *Store) Update(ctx context.Context, projectID uuid.UUID, plan *billing.Plan, fileID uuid.UUID, params UpdateParams) (*models.ProjectFile, error) {
	var file *models.ProjectFile

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		project, err := lockProject(ctx, tx, projectID)
		if err != nil {
			return err
		}

		file, err = getFileLocked(ctx, tx, projectID, fileID)
		if err != nil {
			return err
		}

		sizeDeltaKB := 0
		if params.Content != nil {
			if file.Type != models.FileTypeFile {
				return ErrIsDirectory
			}
			oldKB := file.SizeBytes / 1024
			file.Content = params.Content
			file.SizeBytes = len(*params.Content)
			newKB := file.SizeBytes / 1024

			sizeDeltaKB = newKB - oldKB
			if !plan.AllowsSizeKB(project.TotalSizeKB + sizeDeltaKB) {
				return ErrSizeLimit
			}
		}

		if params.Name != nil && *params.Name != file.Name {
			name := NormalizePath(*params.Name)
			if name == "" || strings.Contains(name, "/") {
				return ErrInvalidPath
			}
			newPath := JoinPath(ParentPath(file.Path), name)
			if err := moveLocked(ctx, tx, file, newPath, file.ParentID); err != nil {
				return err
			}
		}

		file.UpdatedAt = time.Now()
		if _, err := tx.NewUpdate().Model(file).WherePK().Exec(ctx); err != nil {
			return err
		}
		return bumpProjectUsage(ctx, tx, projectID, 0, sizeDeltaKB)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Move relocates a file or directory. Moving a directory rewrites the
// stored path of every descendant in the same transaction.
func (s *Store) Move(ctx context.Context, projectID, fileID uuid.UUID, newPath string, newParentID *uuid.UUID) (*models.ProjectFile, error) {
	var file *models.ProjectFile

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := lockProject(ctx, tx, projectID); err != nil {
			return err
		}

		var err error
		file, err = getFileLocked(ctx, tx, projectID, fileID)
		if err != nil {
			return err
		}

		if newParentID != nil {
			if err := checkParent(ctx, tx, projectID, *newParentID); err != nil {
				return err
			}
		}

		if err := moveLocked(ctx, tx, file, newPath, newParentID); err != nil {
			return err
		}

		file.UpdatedAt = time.Now()
		if _, err := tx.NewUpdate().Model(file).WherePK().Exec(ctx); err != nil {
			return err
		}
		return bumpProjectUsage(ctx, tx, projectID, 0, 0)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Delete removes a file, or a directory together with everything under
// it, and gives the freed quota back to the project counters.
func (s *Store) Delete(ctx context.Context, projectID, fileID uuid.UUID) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := lockProject(ctx, tx, projectID); err != nil {
			return err
		}

		file, err := getFileLocked(ctx, tx, projectID, fileID)
		if err != nil {
			return err
		}

		doomed := []*models.ProjectFile{file}
		if file.Type == models.FileTypeDirectory {
			var descendants []*models.ProjectFile
			err := tx.NewSelect().
				Model(&descendants).
				Column("id", "type", "size_bytes").
				Where("pf.project_id = ?", projectID).
				Where("pf.path LIKE ?", file.Path+"/%").
				Scan(ctx)
			if err != nil {
				return err
			}
			doomed = append(doomed, descendants...)
		}

		removedFiles := 0
		removedKB := 0
		ids := make([]uuid.UUID, 0, len(doomed))
		for _, f := range doomed {
			ids = append(ids, f.ID)
			if f.Type == models.FileTypeFile {
				removedFiles++
				removedKB += f.SizeBytes / 1024
			}
		}

		_, err = tx.NewDelete().
			Model((*models.ProjectFile)(nil)).
			Where("project_id = ?", projectID).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return err
		}

		return bumpProjectUsage(ctx, tx, projectID, -removedFiles, -removedKB)
	})
}

func moveLocked(ctx context.Context, tx bun.Tx, file *models.ProjectFile, newPath string, newParentID *uuid.UUID) error {
	norm := NormalizePath(newPath)
	if norm == "" {
		return ErrInvalidPath
	}

	oldPath := file.Path
	if norm == oldPath {
		file.ParentID = newParentID
		return nil
	}

	if file.Type == models.FileTypeDirectory && strings.HasPrefix(norm+"/", oldPath+"/") {
		return ErrMoveIntoSelf
	}

	taken, err := pathTaken(ctx, tx, file.ProjectID, norm, file.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrPathExists
	}

	file.Path = norm
	file.Name = BaseName(norm)
	file.ParentID = newParentID
	if file.Type == models.FileTypeFile {
		file.Language = nil
		if lang := DetectLanguage(file.Name); lang != "" {
			file.Language = &lang
		}
		mt := DetectMimeType(file.Name)
		file.MimeType = &mt
	}

	if file.Type != models.FileTypeDirectory {
		return nil
	}

	var descendants []*models.ProjectFile
	err = tx.NewSelect().
		Model(&descendants).
		Column("id", "path").
		Where("pf.project_id = ?", file.ProjectID).
		Where("pf.path LIKE ?", oldPath+"/%").
		Scan(ctx)
	if err != nil {
		return err
	}

	// Rows can already exist under the target path because create does
	// not require ancestor directory rows; a rewritten descendant must
	// not land on one of them.
	var occupied []string
	err = tx.NewSelect().
		Model((*models.ProjectFile)(nil)).
		Column("path").
		Where("pf.project_id = ?", file.ProjectID).
		Where("pf.path LIKE ?", norm+"/%").
		Where("pf.path NOT LIKE ?", oldPath+"/%").
		Scan(ctx, &occupied)
	if err != nil {
		return err
	}
	oldPaths := make([]string, len(descendants))
	for i, d := range descendants {
		oldPaths[i] = d.Path
	}
	if MoveCollides(oldPaths, occupied, oldPath, norm) {
		return ErrPathExists
	}

	for _, d := range descendants {
		rewritten := RewriteDescendantPath(d.Path, oldPath, norm)
		_, err := tx.NewUpdate().
			Model((*models.ProjectFile)(nil)).
			Set("path = ?", rewritten).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", d.ID).
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func lockProject(ctx context.Context, tx bun.Tx, projectID uuid.UUID) (*models.Project, error) {
	project := new(models.Project)
	err := tx.NewSelect().
		Model(project).
		Where("p.id = ?", projectID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

func getFileLocked(ctx context.Context, tx bun.Tx, projectID, fileID uuid.UUID) (*models.ProjectFile, error) {
	file := new(models.ProjectFile)
	err := tx.NewSelect().
		Model(file).
		Where("pf.id = ?", fileID).
		Where("pf.project_id = ?", projectID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

func pathTaken(ctx context.Context, tx bun.Tx, projectID uuid.UUID, path string, excludeID uuid.UUID) (bool, error) {
	q := tx.NewSelect().
		Model((*models.ProjectFile)(nil)).
		Where("pf.project_id = ?", projectID).
		Where("pf.path = ?", path)
	if excludeID != uuid.Nil {
		q = q.Where("pf.id != ?", excludeID)
	}
	return q.Exists(ctx)
}

func checkParent(ctx context.Context, tx bun.Tx, projectID, parentID uuid.UUID) error {
	parent, err := getFileLocked(ctx, tx, projectID, parentID)
	if err != nil {
		return ErrParentNotFound
	}
	if parent.Type != models.FileTypeDirectory {
		return ErrParentNotFound
	}
	return nil
}

func bumpProjectUsage(ctx context.Context, tx bun.Tx, projectID uuid.UUID, fileCountDelta, sizeDeltaKB int) error {
	_, err := tx.NewUpdate().
		Model((*models.Project)(nil)).
		Set("file_count = file_count + ?", fileCountDelta).
		Set("total_size_kb = GREATEST(total_size_kb + ?, 0)", sizeDeltaKB).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", projectID).
		Exec(ctx)
	return err
}
