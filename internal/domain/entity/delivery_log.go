package entity

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryLog records the outcome of one processed change event. Persisted
// best-effort when a database is configured; never blocks delivery.
type DeliveryLog struct {
	ID             uuid.UUID `json:"id"`              // The Global Unique Identifier (GUID) for the log entry.
	NotificationID string    `json:"notification_id"` // The inserted notification row this log belongs to.
	UserID         string    `json:"user_id"`         // The recipient the push targeted.
	Status         string    `json:"status"`          // sent, skipped or failed.
	MessageID      string    `json:"message_id"`      // The FCM message ID, when the gateway returned one.
	Detail         string    `json:"detail"`          // Skip reason or error detail.
	SentAt         time.Time `json:"sent_at"`         // Timestamp of when the event was processed.
}
