package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-core/internal/models"
)

// UserRepository is the user directory consulted by the chat core.
type UserRepository interface {
	EnsureUser(ctx context.Context, identity models.Identity) error
	GetUser(ctx context.Context, id string) (models.Identity, error)
	ListUsersExcept(ctx context.Context, id string) ([]models.Identity, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// EnsureUser records a verified identity so it shows up in the directory.
// A changed username replaces the stored one; a username held by another id
// fails with ErrUsernameTaken.
func (r *UserRepo) EnsureUser(ctx context.Context, identity models.Identity) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, username) VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username`, identity.ID, identity.Username)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrUsernameTaken, identity.Username)
	}
	return err
}

const uniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// GetUser looks up one identity.
func (r *UserRepo) GetUser(ctx context.Context, id string) (models.Identity, error) {
	var identity models.Identity
	err := r.db.GetContext(ctx, &identity, `SELECT id, username, created_at FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Identity{}, ErrUserNotFound
	}
	return identity, err
}

// ListUsersExcept returns every identity but id, ordered by username.
func (r *UserRepo) ListUsersExcept(ctx context.Context, id string) ([]models.Identity, error) {
	users := []models.Identity{}
	err := r.db.SelectContext(ctx, &users, `SELECT id, username, created_at FROM users WHERE id<>$1 ORDER BY username ASC`, id)
	return users, err
}
