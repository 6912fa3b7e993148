package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messenger/internal/models"
)

// ProfileRepository reads user profiles.
type ProfileRepository interface {
	ListProfilesExcept(ctx context.Context, userID uuid.UUID) ([]models.Profile, error)
}

// ProfileRepo is a sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// ListProfilesExcept returns every profile other than the given user's.
func (r *ProfileRepo) ListProfilesExcept(ctx context.Context, userID uuid.UUID) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.SelectContext(ctx, &profiles, `SELECT id, username, COALESCE(full_name, '') AS full_name, COALESCE(avatar_url, '') AS avatar_url
        FROM profiles WHERE id<>$1 ORDER BY username ASC`, userID)
	return profiles, err
}
