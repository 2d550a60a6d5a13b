package chat

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/dvelchev/codeforge/internal/models"
)

var ErrSessionNotFound = errors.New("chat session not found")

// Store is the persistence surface of the chat service.
type Store interface {
	ListSessions(ctx context.Context, projectID uuid.UUID) ([]*models.ChatSession, error)
	CreateSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, projectID, sessionID uuid.UUID) (*models.ChatSession, error)
	DeleteSession(ctx context.Context, projectID, sessionID uuid.UUID) error
	TouchSession(ctx context.Context, sessionID uuid.UUID) error
	SetSessionTitle(ctx context.Context, sessionID uuid.UUID, title string) error

	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error)
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int, before uuid.UUID) ([]*models.ChatMessage, error)
	CreateMessage(ctx context.Context, message *models.ChatMessage) error

	CreateGeneration(ctx context.Context, generation *models.CodeGeneration) error
}

type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListSessions(ctx context.Context, projectID uuid.UUID) ([]*models.ChatSession, error) {
	var sessions []*models.ChatSession
	err := s.db.NewSelect().
		Model(&sessions).
		Where("cs.project_id = ?", projectID).
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *models.ChatSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	_, err := s.db.NewInsert().Model(session).Exec(ctx)
	return err
}

func (s *PostgresStore) GetSession(ctx context.Context, projectID, sessionID uuid.UUID) (*models.ChatSession, error) {
	session := new(models.ChatSession)
	err := s.db.NewSelect().
		Model(session).
		Where("cs.id = ?", sessionID).
		Where("cs.project_id = ?", projectID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, projectID, sessionID uuid.UUID) error {
	res, err := s.db.NewDelete().
		Model((*models.ChatSession)(nil)).
		Where("id = ?", sessionID).
		Where("project_id = ?", projectID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) TouchSession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.db.NewUpdate().
		Model((*models.ChatSession)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", sessionID).
		Exec(ctx)
	return err
}

func (s *PostgresStore) SetSessionTitle(ctx context.Context, sessionID uuid.UUID, title string) error {
	_, err := s.db.NewUpdate().
		Model((*models.ChatSession)(nil)).
		Set("title = ?", title).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", sessionID).
		Exec(ctx)
	return err
}

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error) {
	var messages []*models.ChatMessage
	err := s.db.NewSelect().
		Model(&messages).
		Where("cm.session_id = ?", sessionID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// RecentMessages returns the last limit messages before the given
// message, oldest first.
func (s *PostgresStore) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int, before uuid.UUID) ([]*models.ChatMessage, error) {
	var messages []*models.ChatMessage
	q := s.db.NewSelect().
		Model(&messages).
		Where("cm.session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit)
	if before != uuid.Nil {
		q = q.Where("cm.id != ?", before)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, message *models.ChatMessage) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	message.CreatedAt = time.Now()
	_, err := s.db.NewInsert().Model(message).Exec(ctx)
	return err
}

func (s *PostgresStore) CreateGeneration(ctx context.Context, generation *models.CodeGeneration) error {
	if generation.ID == uuid.Nil {
		generation.ID = uuid.New()
	}
	generation.CreatedAt = time.Now()
	_, err := s.db.NewInsert().Model(generation).Exec(ctx)
	return err
}
