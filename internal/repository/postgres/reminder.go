package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/deadline-tracker/internal/model"
)

type reminderRepository struct {
	ext sqlx.ExtContext
}

const reminderColumns = `
	id, event_id, offset_ns, fire_at, state, channel,
	attempt_count, last_error, created_at, updated_at
`

func (r *reminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	query := `
		INSERT INTO reminders (
			id, event_id, offset_ns, fire_at, state, channel,
			attempt_count, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if reminder.ID == uuid.Nil {
		reminder.ID = uuid.New()
	}
	reminder.CreatedAt = time.Now().UTC()
	reminder.UpdatedAt = reminder.CreatedAt

	_, err := r.ext.ExecContext(ctx, query,
		reminder.ID,
		reminder.EventID,
		reminder.Offset,
		reminder.FireAt,
		reminder.State,
		reminder.Channel,
		reminder.AttemptCount,
		reminder.LastError,
		reminder.CreatedAt,
		reminder.UpdatedAt,
	)
	return wrapErr("reminder", err)
}

func (r *reminderRepository) Get(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`
	var reminder model.Reminder
	if err := sqlx.GetContext(ctx, r.ext, &reminder, query, id); err != nil {
		return nil, wrapErr("reminder", err)
	}
	return &reminder, nil
}

func (r *reminderRepository) Update(ctx context.Context, reminder *model.Reminder) error {
	query := `
		UPDATE reminders
		SET fire_at = $1, state = $2, attempt_count = $3, last_error = $4, updated_at = $5
		WHERE id = $6
	`
	reminder.UpdatedAt = time.Now().UTC()

	result, err := r.ext.ExecContext(ctx, query,
		reminder.FireAt,
		reminder.State,
		reminder.AttemptCount,
		reminder.LastError,
		reminder.UpdatedAt,
		reminder.ID,
	)
	if err != nil {
		return wrapErr("reminder", err)
	}
	return requireRow(result, "reminder")
}

func (r *reminderRepository) ListByEvent(ctx context.Context, eventID uuid.UUID, state model.ReminderState) ([]*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE event_id = $1`
	args := []interface{}{eventID}
	if state != "" {
		query += fmt.Sprintf(" AND state = $%d", len(args)+1)
		args = append(args, state)
	}
	query += " ORDER BY fire_at ASC"

	var reminders []*model.Reminder
	if err := sqlx.SelectContext(ctx, r.ext, &reminders, query, args...); err != nil {
		return nil, wrapErr("reminders", err)
	}
	return reminders, nil
}

func (r *reminderRepository) ListPending(ctx context.Context, limit int) ([]*model.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE state = $1
		ORDER BY fire_at ASC
		LIMIT $2
	`
	var reminders []*model.Reminder
	if err := sqlx.SelectContext(ctx, r.ext, &reminders, query, model.ReminderStatePending, limit); err != nil {
		return nil, wrapErr("reminders", err)
	}
	return reminders, nil
}
