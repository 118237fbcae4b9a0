package repository

import (
	"context"

	"github.com/bid2build/bid2build/internal/domain"
)

// ProfileRepository persists role-specific registration answers.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByUserID(ctx context.Context, userID string) (*domain.Profile, error)
}

type profileRepository struct {
	db DBTX
}

// NewProfileRepository constructs repository.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	if profile.Attributes == nil {
		profile.Attributes = map[string]string{}
	}
	const query = `
        INSERT INTO profiles (user_id, role, attributes)
        VALUES ($1, $2, $3)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query, profile.UserID, profile.Role, profile.Attributes).Scan(&profile.CreatedAt)
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	const query = `SELECT user_id, role, attributes, created_at FROM profiles WHERE user_id=$1`
	var profile domain.Profile
	if err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.Role,
		&profile.Attributes,
		&profile.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}
