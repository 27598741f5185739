package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type EventStatus string

const (
	EventStatusOpen     EventStatus = "open"
	EventStatusDone     EventStatus = "done"
	EventStatusArchived EventStatus = "archived"
)

// Event is a deadline with an absolute due instant. The owner's timezone is
// applied only when rendering; due_at is always stored in UTC.
type Event struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	UserID      uuid.UUID      `json:"user_id" db:"user_id"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	DueAt       time.Time      `json:"due_at" db:"due_at"`
	Status      EventStatus    `json:"status" db:"status"`
	Offsets     pq.StringArray `json:"offsets" db:"offsets"`
	ExternalRef *string        `json:"external_ref,omitempty" db:"external_ref"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`

	// Labels is populated by the repository on reads; the join rows live
	// in event_labels.
	Labels []*Label `json:"labels,omitempty" db:"-"`
}

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required,max=200"`
	Description string    `json:"description"`
	DueAt       time.Time `json:"due_at" binding:"required"`
	Offsets     []string  `json:"offsets" binding:"omitempty,dive,offset"`
	LabelIDs    []string  `json:"label_ids" binding:"omitempty,dive,uuid"`
}

type UpdateEventRequest struct {
	Title       *string    `json:"title" binding:"omitempty,max=200"`
	Description *string    `json:"description"`
	DueAt       *time.Time `json:"due_at"`
	Offsets     []string   `json:"offsets" binding:"omitempty,dive,offset"`
	LabelIDs    []string   `json:"label_ids" binding:"omitempty,dive,uuid"`
}

type EventFilters struct {
	Status EventStatus `form:"status"`
	Label  string      `form:"label"`
	From   *time.Time  `form:"from"`
	To     *time.Time  `form:"to"`
}
