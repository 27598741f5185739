package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/deadline-tracker/internal/model"
)

type digestRunRepository struct {
	ext sqlx.ExtContext
}

// Create relies on the unique (user_id, covered_date) index; a second run for
// the same user-local date surfaces as a conflict error.
func (r *digestRunRepository) Create(ctx context.Context, run *model.DigestRun) error {
	query := `
		INSERT INTO digest_runs (id, user_id, covered_date, built_at)
		VALUES ($1, $2, $3, $4)
	`
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.BuiltAt.IsZero() {
		run.BuiltAt = time.Now().UTC()
	}

	_, err := r.ext.ExecContext(ctx, query,
		run.ID,
		run.UserID,
		run.CoveredDate,
		run.BuiltAt,
	)
	return wrapErr("digest run", err)
}

func (r *digestRunRepository) Get(ctx context.Context, userID uuid.UUID, coveredDate string) (*model.DigestRun, error) {
	// covered_date is a DATE column; cast back to text for the model.
	query := `
		SELECT id, user_id, covered_date::text AS covered_date, built_at
		FROM digest_runs
		WHERE user_id = $1 AND covered_date = $2
	`
	var run model.DigestRun
	if err := sqlx.GetContext(ctx, r.ext, &run, query, userID, coveredDate); err != nil {
		return nil, wrapErr("digest run", err)
	}
	return &run, nil
}
