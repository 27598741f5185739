package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/deadline-tracker/internal/model"
)

type userRepository struct {
	ext sqlx.ExtContext
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, display_name, timezone, active,
			password_hash, default_offsets, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	_, err := r.ext.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.Timezone,
		user.Active,
		user.PasswordHash,
		user.DefaultOffsets,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return wrapErr("user", err)
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, email, display_name, timezone, active,
			   password_hash, default_offsets, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	if err := sqlx.GetContext(ctx, r.ext, &user, query, id); err != nil {
		return nil, wrapErr("user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, display_name, timezone, active,
			   password_hash, default_offsets, created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1)
	`
	var user model.User
	if err := sqlx.GetContext(ctx, r.ext, &user, query, email); err != nil {
		return nil, wrapErr("user", err)
	}
	return &user, nil
}

func (r *userRepository) ListActive(ctx context.Context) ([]*model.User, error) {
	query := `
		SELECT id, email, display_name, timezone, active,
			   password_hash, default_offsets, created_at, updated_at
		FROM users
		WHERE active = true
		ORDER BY created_at ASC
	`
	var users []*model.User
	if err := sqlx.SelectContext(ctx, r.ext, &users, query); err != nil {
		return nil, wrapErr("users", err)
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET display_name = $1, timezone = $2, default_offsets = $3, updated_at = $4
		WHERE id = $5
	`
	user.UpdatedAt = time.Now().UTC()

	result, err := r.ext.ExecContext(ctx, query,
		user.DisplayName,
		user.Timezone,
		user.DefaultOffsets,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return wrapErr("user", err)
	}
	return requireRow(result, "user")
}

func (r *userRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET active = false, updated_at = $1 WHERE id = $2`
	result, err := r.ext.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return wrapErr("user", err)
	}
	return requireRow(result, "user")
}
