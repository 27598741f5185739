package model

import (
	"time"

	"github.com/google/uuid"
)

// Label is a user-owned tag. Name is unique per owner, case-insensitive.
// Deleting a label only detaches it from events.
type Label struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CreateLabelRequest struct {
	Name  string `json:"name" binding:"required,max=40"`
	Color string `json:"color" binding:"omitempty,hexcolor"`
}
