package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/deadline-tracker/internal/model"
)

type labelRepository struct {
	ext sqlx.ExtContext
}

func (r *labelRepository) Create(ctx context.Context, label *model.Label) error {
	query := `
		INSERT INTO labels (id, user_id, name, color, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if label.ID == uuid.Nil {
		label.ID = uuid.New()
	}
	label.CreatedAt = time.Now().UTC()

	_, err := r.ext.ExecContext(ctx, query,
		label.ID,
		label.UserID,
		label.Name,
		label.Color,
		label.CreatedAt,
	)
	return wrapErr("label", err)
}

func (r *labelRepository) Get(ctx context.Context, id uuid.UUID) (*model.Label, error) {
	query := `SELECT id, user_id, name, color, created_at FROM labels WHERE id = $1`
	var label model.Label
	if err := sqlx.GetContext(ctx, r.ext, &label, query, id); err != nil {
		return nil, wrapErr("label", err)
	}
	return &label, nil
}

func (r *labelRepository) GetByName(ctx context.Context, userID uuid.UUID, name string) (*model.Label, error) {
	query := `
		SELECT id, user_id, name, color, created_at
		FROM labels
		WHERE user_id = $1 AND lower(name) = lower($2)
	`
	var label model.Label
	if err := sqlx.GetContext(ctx, r.ext, &label, query, userID, name); err != nil {
		return nil, wrapErr("label", err)
	}
	return &label, nil
}

func (r *labelRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Label, error) {
	query := `
		SELECT id, user_id, name, color, created_at
		FROM labels
		WHERE user_id = $1
		ORDER BY name ASC
	`
	var labels []*model.Label
	if err := sqlx.SelectContext(ctx, r.ext, &labels, query, userID); err != nil {
		return nil, wrapErr("labels", err)
	}
	return labels, nil
}

// Delete removes the label; event_labels rows go with it via FK cascade,
// events themselves are untouched.
func (r *labelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.ext.ExecContext(ctx, `DELETE FROM labels WHERE id = $1`, id)
	if err != nil {
		return wrapErr("label", err)
	}
	return requireRow(result, "label")
}
