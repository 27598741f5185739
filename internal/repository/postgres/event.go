package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/deadline-tracker/internal/model"
)

type eventRepository struct {
	ext sqlx.ExtContext
}

const eventColumns = `
	id, user_id, title, description, due_at, status,
	offsets, external_ref, created_at, updated_at
`

func (r *eventRepository) Create(ctx context.Context, event *model.Event) error {
	query := `
		INSERT INTO events (
			id, user_id, title, description, due_at, status,
			offsets, external_ref, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt

	_, err := r.ext.ExecContext(ctx, query,
		event.ID,
		event.UserID,
		event.Title,
		event.Description,
		event.DueAt,
		event.Status,
		event.Offsets,
		event.ExternalRef,
		event.CreatedAt,
		event.UpdatedAt,
	)
	return wrapErr("event", err)
}

func (r *eventRepository) Get(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	var event model.Event
	if err := sqlx.GetContext(ctx, r.ext, &event, query, id); err != nil {
		return nil, wrapErr("event", err)
	}

	labels, err := r.GetLabels(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	event.Labels = labels
	return &event, nil
}

func (r *eventRepository) GetByExternalRef(ctx context.Context, userID uuid.UUID, ref string) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE user_id = $1 AND external_ref = $2`
	var event model.Event
	if err := sqlx.GetContext(ctx, r.ext, &event, query, userID, ref); err != nil {
		return nil, wrapErr("event", err)
	}
	return &event, nil
}

func (r *eventRepository) Update(ctx context.Context, event *model.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, due_at = $3, status = $4,
			offsets = $5, updated_at = $6
		WHERE id = $7
	`
	event.UpdatedAt = time.Now().UTC()

	result, err := r.ext.ExecContext(ctx, query,
		event.Title,
		event.Description,
		event.DueAt,
		event.Status,
		event.Offsets,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return wrapErr("event", err)
	}
	return requireRow(result, "event")
}

func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.ext.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return wrapErr("event", err)
	}
	return requireRow(result, "event")
}

func (r *eventRepository) ListByUser(ctx context.Context, userID uuid.UUID, filters *model.EventFilters) ([]*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE user_id = $1`
	args := []interface{}{userID}
	argCount := 2

	if filters != nil {
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if filters.Label != "" {
			query += fmt.Sprintf(` AND id IN (
				SELECT el.event_id FROM event_labels el
				JOIN labels l ON l.id = el.label_id
				WHERE lower(l.name) = lower($%d)
			)`, argCount)
			args = append(args, filters.Label)
			argCount++
		}
		if filters.From != nil {
			query += fmt.Sprintf(" AND due_at >= $%d", argCount)
			args = append(args, *filters.From)
			argCount++
		}
		if filters.To != nil {
			query += fmt.Sprintf(" AND due_at < $%d", argCount)
			args = append(args, *filters.To)
			argCount++
		}
	}

	query += " ORDER BY due_at ASC"

	var events []*model.Event
	if err := sqlx.SelectContext(ctx, r.ext, &events, query, args...); err != nil {
		return nil, wrapErr("events", err)
	}
	return events, nil
}

func (r *eventRepository) ListDueWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE user_id = $1 AND status = $2 AND due_at >= $3 AND due_at < $4
		ORDER BY due_at ASC
	`
	var events []*model.Event
	if err := sqlx.SelectContext(ctx, r.ext, &events, query, userID, model.EventStatusOpen, from, to); err != nil {
		return nil, wrapErr("events", err)
	}

	for _, event := range events {
		labels, err := r.GetLabels(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		event.Labels = labels
	}
	return events, nil
}

func (r *eventRepository) SetLabels(ctx context.Context, eventID uuid.UUID, labelIDs []uuid.UUID) error {
	if _, err := r.ext.ExecContext(ctx, `DELETE FROM event_labels WHERE event_id = $1`, eventID); err != nil {
		return wrapErr("event labels", err)
	}
	for _, labelID := range labelIDs {
		query := `
			INSERT INTO event_labels (event_id, label_id, added_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (event_id, label_id) DO NOTHING
		`
		if _, err := r.ext.ExecContext(ctx, query, eventID, labelID, time.Now().UTC()); err != nil {
			return wrapErr("event labels", err)
		}
	}
	return nil
}

func (r *eventRepository) GetLabels(ctx context.Context, eventID uuid.UUID) ([]*model.Label, error) {
	query := `
		SELECT l.id, l.user_id, l.name, l.color, l.created_at
		FROM labels l
		JOIN event_labels el ON el.label_id = l.id
		WHERE el.event_id = $1
		ORDER BY l.name ASC
	`
	var labels []*model.Label
	if err := sqlx.SelectContext(ctx, r.ext, &labels, query, eventID); err != nil {
		return nil, wrapErr("event labels", err)
	}
	return labels, nil
}
