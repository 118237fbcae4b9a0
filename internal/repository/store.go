package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Users          UserRepository
	Profiles       ProfileRepository
	Documents      DocumentRepository
	PasswordResets PasswordResetRepository
}

// Store hands out repositories and runs multi-table writes atomically.
type Store interface {
	Repos() Repositories
	RunInTx(ctx context.Context, fn func(repos Repositories) error) error
}

const defaultTxTimeout = 10 * time.Second

type postgresStore struct {
	pool    *pgxpool.Pool
	repos   Repositories
	timeout time.Duration
}

// NewPostgresStore builds a Store over a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool, repos: newRepositories(pool), timeout: defaultTxTimeout}
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Users:          NewUserRepository(db),
		Profiles:       NewProfileRepository(db),
		Documents:      NewDocumentRepository(db),
		PasswordResets: NewPasswordResetRepository(db),
	}
}

func (s *postgresStore) Repos() Repositories {
	return s.repos
}

func (s *postgresStore) RunInTx(ctx context.Context, fn func(repos Repositories) error) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(newRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
