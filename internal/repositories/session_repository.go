package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository looks up login sessions issued by the auth service.
type SessionRepository interface {
	SessionForToken(ctx context.Context, token string) (models.Session, error)
}

type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// SessionForToken returns the owner and expiry of an unexpired session token.
func (r *SessionRepo) SessionForToken(ctx context.Context, token string) (models.Session, error) {
	var session models.Session
	err := r.db.GetContext(ctx, &session, `SELECT user_id, expires FROM sessions WHERE session_token=$1 AND expires > NOW()`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, err
	}
	return session, nil
}
