package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/bid2build/bid2build/internal/domain"
)

// UserRepository defines persistence access for marketplace accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetForUpdate reads the user and holds its row lock until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, first_name, last_name, phone, password_hash, role, status, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, email, first_name, last_name, phone, password_hash, role, status)
        VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.PasswordHash,
		user.Role,
		user.Status,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err, "users_email_key") {
		return ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET first_name=$1, last_name=$2, phone=$3, password_hash=$4, status=$5, updated_at=NOW()
        WHERE id=$6`

	cmd, err := r.db.Exec(ctx, query,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.PasswordHash,
		user.Status,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1 FOR UPDATE`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) scanOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
