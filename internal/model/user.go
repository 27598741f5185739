package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// User owns labels and events. Identity is immutable; deactivation is the
// only form of removal.
type User struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Email          string         `json:"email" db:"email"`
	DisplayName    string         `json:"display_name" db:"display_name"`
	Timezone       string         `json:"timezone" db:"timezone"`
	Active         bool           `json:"active" db:"active"`
	PasswordHash   string         `json:"-" db:"password_hash"`
	DefaultOffsets pq.StringArray `json:"default_offsets" db:"default_offsets"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Location resolves the user's IANA timezone, falling back to UTC on a bad
// or empty name.
func (u *User) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name" binding:"required"`
	Timezone    string `json:"timezone"`
	Password    string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
