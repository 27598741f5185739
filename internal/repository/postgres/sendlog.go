package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/deadline-tracker/internal/model"
)

type sendLogRepository struct {
	ext sqlx.ExtContext
}

func (r *sendLogRepository) Create(ctx context.Context, log *model.SendLog) error {
	query := `
		INSERT INTO send_logs (
			id, reminder_id, digest_run_id, user_id, channel,
			status, sent_at, external_message_id, last_error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.CreatedAt = time.Now().UTC()

	_, err := r.ext.ExecContext(ctx, query,
		log.ID,
		log.ReminderID,
		log.DigestRunID,
		log.UserID,
		log.Channel,
		log.Status,
		log.SentAt,
		log.ExternalMessageID,
		log.LastError,
		log.CreatedAt,
	)
	return wrapErr("send log", err)
}

// Update only touches the delivery outcome fields; send logs are otherwise
// append-only.
func (r *sendLogRepository) Update(ctx context.Context, log *model.SendLog) error {
	query := `
		UPDATE send_logs
		SET status = $1, sent_at = $2, external_message_id = $3, last_error = $4
		WHERE id = $5
	`
	result, err := r.ext.ExecContext(ctx, query,
		log.Status,
		log.SentAt,
		log.ExternalMessageID,
		log.LastError,
		log.ID,
	)
	if err != nil {
		return wrapErr("send log", err)
	}
	return requireRow(result, "send log")
}

func (r *sendLogRepository) ListByReminder(ctx context.Context, reminderID uuid.UUID) ([]*model.SendLog, error) {
	query := `
		SELECT id, reminder_id, digest_run_id, user_id, channel,
			   status, sent_at, external_message_id, last_error, created_at
		FROM send_logs
		WHERE reminder_id = $1
		ORDER BY created_at ASC
	`
	var logs []*model.SendLog
	if err := sqlx.SelectContext(ctx, r.ext, &logs, query, reminderID); err != nil {
		return nil, wrapErr("send logs", err)
	}
	return logs, nil
}

func (r *sendLogRepository) HasDelivered(ctx context.Context, reminderID uuid.UUID) (bool, error) {
	query := `SELECT count(*) FROM send_logs WHERE reminder_id = $1 AND status = $2`
	var count int
	if err := sqlx.GetContext(ctx, r.ext, &count, query, reminderID, model.DeliveryStatusDelivered); err != nil {
		return false, wrapErr("send logs", err)
	}
	return count > 0, nil
}
