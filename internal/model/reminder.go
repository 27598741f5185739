package model

import (
	"time"

	"github.com/google/uuid"
)

type ReminderState string

const (
	ReminderStatePending   ReminderState = "pending"
	ReminderStateSent      ReminderState = "sent"
	ReminderStateCancelled ReminderState = "cancelled"
	ReminderStateFailed    ReminderState = "failed"
)

// Reminder is a materialized notification intent. (event_id, offset, channel)
// is unique; fire_at is always event.due_at minus offset.
type Reminder struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	EventID      uuid.UUID     `json:"event_id" db:"event_id"`
	Offset       time.Duration `json:"offset" db:"offset_ns"`
	FireAt       time.Time     `json:"fire_at" db:"fire_at"`
	State        ReminderState `json:"state" db:"state"`
	Channel      string        `json:"channel" db:"channel"`
	AttemptCount int           `json:"attempt_count" db:"attempt_count"`
	LastError    *string       `json:"last_error,omitempty" db:"last_error"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// Key identifies a reminder within its event for materializer diffing.
type ReminderKey struct {
	Offset  time.Duration
	Channel string
}

func (r *Reminder) Key() ReminderKey {
	return ReminderKey{Offset: r.Offset, Channel: r.Channel}
}
