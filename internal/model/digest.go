package model

import (
	"time"

	"github.com/google/uuid"
)

// DigestRun is the idempotency record guarding one digest per user per local
// date. CoveredDate is the user-local calendar day in YYYY-MM-DD form.
type DigestRun struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	CoveredDate string    `json:"covered_date" db:"covered_date"`
	BuiltAt     time.Time `json:"built_at" db:"built_at"`
}
