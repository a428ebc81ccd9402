package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

const userColumns = `id, phone, username, email, name, password_hash, role_id, is_active, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, phone, username, email, name, password_hash, role_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Phone,
		user.Username,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.RoleID,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapError(err, "create user")
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var user model.User
	err := r.read(ctx, "get_user", func() error {
		return r.db.GetContext(ctx, &user, query, id)
	})
	if err != nil {
		return nil, mapError(err, "get user")
	}
	return &user, nil
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	var user model.User
	err := r.read(ctx, "get_user_by_phone", func() error {
		return r.db.GetContext(ctx, &user, query, phone)
	})
	if err != nil {
		return nil, mapError(err, "get user by phone")
	}
	return &user, nil
}

func (r *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return mapError(err, "set user active")
	}
	return requireRows(result, "set user active")
}

func (r *userRepository) SetRole(ctx context.Context, id uuid.UUID, roleID *uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET role_id = $1, updated_at = NOW() WHERE id = $2`, roleID, id)
	if err != nil {
		return mapError(err, "set user role")
	}
	return requireRows(result, "set user role")
}

func (r *userRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
	if err != nil {
		return mapError(err, "set password hash")
	}
	return requireRows(result, "set password hash")
}
