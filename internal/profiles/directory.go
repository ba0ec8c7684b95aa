package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"messaging-service/internal/cache"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// Directory resolves profile summaries for a set of users.
type Directory interface {
	Lookup(ctx context.Context, userIDs []string) (map[string]models.ProfileSummary, error)
}

// CachedDirectory serves profile summaries from the cache and loads misses
// from the profile store in one query.
type CachedDirectory struct {
	repo  repositories.ProfileRepository
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedDirectory(repo repositories.ProfileRepository, c cache.Cache, ttl time.Duration, log *zap.Logger) *CachedDirectory {
	if c == nil {
		c = cache.Noop{}
	}
	return &CachedDirectory{repo: repo, cache: c, ttl: ttl, log: log}
}

func (d *CachedDirectory) Lookup(ctx context.Context, userIDs []string) (map[string]models.ProfileSummary, error) {
	result := make(map[string]models.ProfileSummary, len(userIDs))
	misses := make([]string, 0, len(userIDs))
	seen := map[string]struct{}{}

	for _, id := range userIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}

		raw, err := d.cache.Get(ctx, profileCacheKey(id))
		if err != nil {
			if !errors.Is(err, cache.ErrMiss) {
				d.log.Warn("profile cache read failed", zap.String("user_id", id), zap.Error(err))
			}
			misses = append(misses, id)
			continue
		}
		var p models.ProfileSummary
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			misses = append(misses, id)
			continue
		}
		result[id] = p
	}

	if len(misses) == 0 {
		return result, nil
	}

	loaded, err := d.repo.BulkProfiles(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, p := range loaded {
		result[p.UserID] = p
		if raw, err := json.Marshal(p); err == nil {
			if err := d.cache.Set(ctx, profileCacheKey(p.UserID), string(raw), d.ttl); err != nil {
				d.log.Warn("profile cache write failed", zap.String("user_id", p.UserID), zap.Error(err))
			}
		}
	}
	return result, nil
}

func profileCacheKey(userID string) string {
	return "profile:" + userID
}
