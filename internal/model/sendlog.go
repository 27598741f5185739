package model

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	DeliveryStatusAttempting         DeliveryStatus = "attempting"
	DeliveryStatusDelivered          DeliveryStatus = "delivered"
	DeliveryStatusDeliveredDuplicate DeliveryStatus = "delivered_duplicate"
	DeliveryStatusTransientFail      DeliveryStatus = "transient_fail"
	DeliveryStatusPermanentFail      DeliveryStatus = "permanent_fail"
)

// SendLog is the append-only audit record of a delivery attempt. ReminderID
// is nil for digest sends. At most one row per reminder may carry
// delivery_status=delivered; a duplicate delivery on a non-idempotent channel
// is recorded as delivered_duplicate instead.
type SendLog struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	ReminderID        *uuid.UUID     `json:"reminder_id,omitempty" db:"reminder_id"`
	DigestRunID       *uuid.UUID     `json:"digest_run_id,omitempty" db:"digest_run_id"`
	UserID            uuid.UUID      `json:"user_id" db:"user_id"`
	Channel           string         `json:"channel" db:"channel"`
	Status            DeliveryStatus `json:"status" db:"status"`
	SentAt            time.Time      `json:"sent_at" db:"sent_at"`
	ExternalMessageID *string        `json:"external_message_id,omitempty" db:"external_message_id"`
	LastError         *string        `json:"last_error,omitempty" db:"last_error"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}
