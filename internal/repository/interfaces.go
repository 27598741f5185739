package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/deadline-tracker/internal/model"
)

// Store aggregates all repositories and provides transaction scoping. Every
// multi-row mutation must run inside WithTx; the callback receives a Store
// bound to the transaction.
type Store interface {
	Users() UserRepository
	Labels() LabelRepository
	Events() EventRepository
	Reminders() ReminderRepository
	SendLogs() SendLogRepository
	DigestRuns() DigestRunRepository

	WithTx(ctx context.Context, fn func(Store) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ListActive(ctx context.Context) ([]*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type LabelRepository interface {
	Create(ctx context.Context, label *model.Label) error
	Get(ctx context.Context, id uuid.UUID) (*model.Label, error)
	// GetByName is a case-insensitive lookup among the owner's labels.
	GetByName(ctx context.Context, userID uuid.UUID, name string) (*model.Label, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Label, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	Get(ctx context.Context, id uuid.UUID) (*model.Event, error)
	GetByExternalRef(ctx context.Context, userID uuid.UUID, ref string) (*model.Event, error)
	Update(ctx context.Context, event *model.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, filters *model.EventFilters) ([]*model.Event, error)
	// ListDueWindow returns open events with due_at in [from, to), ordered
	// by due_at ascending, labels populated.
	ListDueWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*model.Event, error)
	SetLabels(ctx context.Context, eventID uuid.UUID, labelIDs []uuid.UUID) error
	GetLabels(ctx context.Context, eventID uuid.UUID) ([]*model.Label, error)
}

type ReminderRepository interface {
	Create(ctx context.Context, reminder *model.Reminder) error
	Get(ctx context.Context, id uuid.UUID) (*model.Reminder, error)
	Update(ctx context.Context, reminder *model.Reminder) error
	ListByEvent(ctx context.Context, eventID uuid.UUID, state model.ReminderState) ([]*model.Reminder, error)
	// ListPending returns pending reminders for scheduler resync, ordered
	// by fire_at ascending.
	ListPending(ctx context.Context, limit int) ([]*model.Reminder, error)
}

type SendLogRepository interface {
	Create(ctx context.Context, log *model.SendLog) error
	Update(ctx context.Context, log *model.SendLog) error
	ListByReminder(ctx context.Context, reminderID uuid.UUID) ([]*model.SendLog, error)
	// HasDelivered reports whether a delivered row already exists for the
	// reminder, the guard behind the at-most-one-delivered invariant.
	HasDelivered(ctx context.Context, reminderID uuid.UUID) (bool, error)
}

type DigestRunRepository interface {
	// Create fails with a conflict error when (user, covered_date) exists.
	Create(ctx context.Context, run *model.DigestRun) error
	Get(ctx context.Context, userID uuid.UUID, coveredDate string) (*model.DigestRun, error)
}
