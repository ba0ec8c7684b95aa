package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

// ProfileRepository reads public profile data owned by the profile service.
type ProfileRepository interface {
	BulkProfiles(ctx context.Context, userIDs []string) ([]models.ProfileSummary, error)
}

// ProfileRepo is a read-only sqlx view over the profiles table.
type ProfileRepo struct {
	db *sqlx.DB
}

func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// BulkProfiles loads the profiles of the given users. Users without a
// profile are absent from the result. Display name falls back to username.
func (r *ProfileRepo) BulkProfiles(ctx context.Context, userIDs []string) ([]models.ProfileSummary, error) {
	profiles := []models.ProfileSummary{}
	if len(userIDs) == 0 {
		return profiles, nil
	}
	err := r.db.SelectContext(ctx, &profiles, `SELECT user_id, username,
            COALESCE(NULLIF(display_name, ''), username) AS display_name,
            profile_image AS avatar_url
        FROM profiles
        WHERE user_id = ANY($1)`, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
