package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/taasclub/cardbet/internal/domain"
)

// UserRepository persists user accounts. Balance mutations live in
// WalletRepository; this repo only touches identity and role fields.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user row, mapping unique violations to the matching
// domain errors.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	const query = `
		INSERT INTO users
			(id, email, username, password_hash, role, deposit_amount, is_active, created_at, updated_at)
		VALUES
			(:id, :email, :username, :password_hash, :role, :deposit_amount, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, u); err != nil {
		switch {
		case IsUniqueViolation(err, "users_email_key"):
			return domain.ErrEmailTaken
		case IsUniqueViolation(err, "users_username_key"):
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("user_repo.Create: %w", err)
	}
	return nil
}

// getOne runs a single-row user lookup and maps no-rows to ErrUserNotFound.
func (r *UserRepository) getOne(ctx context.Context, op, query string, arg interface{}) (*domain.User, error) {
	var u domain.User
	if err := r.db.GetContext(ctx, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.%s: %w", op, err)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, "GetByID", `SELECT * FROM users WHERE id = $1`, id)
}

// GetByEmail is the login lookup.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "GetByEmail", `SELECT * FROM users WHERE email = $1`, email)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "GetByUsername", `SELECT * FROM users WHERE username = $1`, username)
}

// List pages through all users, newest first, and reports the total count.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("user_repo.List count: %w", err)
	}

	var users []*domain.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT * FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("user_repo.List select: %w", err)
	}
	return users, total, nil
}

// updateOne runs a single-row UPDATE and maps zero affected rows to
// ErrUserNotFound.
func (r *UserRepository) updateOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("user_repo.%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdateRole changes a user's role. Back-office only.
func (r *UserRepository) UpdateRole(ctx context.Context, userID uuid.UUID, role domain.UserRole) error {
	return r.updateOne(ctx, "UpdateRole",
		`UPDATE users SET role = $1, updated_at = now() WHERE id = $2`,
		string(role), userID)
}

// SetActive suspends or reinstates an account. Login and token refresh reject
// inactive users, so suspension takes effect at the next token expiry.
func (r *UserRepository) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	return r.updateOne(ctx, "SetActive",
		`UPDATE users SET is_active = $1, updated_at = now() WHERE id = $2`,
		active, userID)
}
