package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/dvelchev/codeforge/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error)
	RotateSession(ctx context.Context, sessionID uuid.UUID, refreshToken string, expiresAt time.Time) error
	DeleteSessionByToken(ctx context.Context, refreshToken string) error
	DeleteSessionsForUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type SessionRepository struct {
	db *bun.DB
}

func NewSessionRepository(db *bun.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now()
	session.LastActivityAt = session.CreatedAt
	_, err := r.db.NewInsert().Model(session).Exec(ctx)
	return err
}

func (r *SessionRepository) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	session := new(models.Session)
	err := r.db.NewSelect().
		Model(session).
		Where("s.refresh_token = ?", refreshToken).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (r *SessionRepository) RotateSession(ctx context.Context, sessionID uuid.UUID, refreshToken string, expiresAt time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("refresh_token = ?", refreshToken).
		Set("expires_at = ?", expiresAt).
		Set("last_activity_at = ?", time.Now()).
		Where("id = ?", sessionID).
		Exec(ctx)
	return err
}

func (r *SessionRepository) DeleteSessionByToken(ctx context.Context, refreshToken string) error {
	_, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("refresh_token = ?", refreshToken).
		Exec(ctx)
	return err
}

func (r *SessionRepository) DeleteSessionsForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("expires_at < ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
