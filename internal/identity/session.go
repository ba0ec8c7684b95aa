package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"messaging-service/internal/cache"
	"messaging-service/internal/repositories"
)

// SessionResolver looks tokens up in the sessions table, caching hits no
// longer than the session itself lives.
type SessionResolver struct {
	sessions repositories.SessionRepository
	cache    cache.Cache
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewSessionResolver(sessions repositories.SessionRepository, c cache.Cache, ttl time.Duration, log *zap.Logger) *SessionResolver {
	if c == nil {
		c = cache.Noop{}
	}
	return &SessionResolver{sessions: sessions, cache: c, ttl: ttl, log: log, now: time.Now}
}

func (r *SessionResolver) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	key := sessionCacheKey(token)

	if userID, err := r.cache.Get(ctx, key); err == nil && userID != "" {
		return userID, nil
	} else if err != nil && !errors.Is(err, cache.ErrMiss) {
		r.log.Warn("session cache read failed", zap.Error(err))
	}

	session, err := r.sessions.SessionForToken(ctx, token)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	if session.UserID == "" {
		return "", ErrInvalidToken
	}

	ttl := r.ttl
	if remaining := session.Expires.Sub(r.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl > 0 {
		if err := r.cache.Set(ctx, key, session.UserID, ttl); err != nil {
			r.log.Warn("session cache write failed", zap.Error(err))
		}
	}
	return session.UserID, nil
}

// sessionCacheKey hashes the token so raw credentials never reach the cache.
func sessionCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}
