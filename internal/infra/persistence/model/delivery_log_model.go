// Package model contains the GORM persistence models.
package model

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryLogModel is the GORM model backing the delivery_logs table.
type DeliveryLogModel struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	NotificationID string    `gorm:"column:notification_id"`
	UserID         string    `gorm:"column:user_id;index"`
	Status         string    `gorm:"column:status"`
	MessageID      string    `gorm:"column:message_id"`
	Detail         string    `gorm:"column:detail"`
	SentAt         time.Time `gorm:"column:sent_at"`
}

// TableName overrides the GORM table name.
func (DeliveryLogModel) TableName() string {
	return "delivery_logs"
}
