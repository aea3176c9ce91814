package repository

import (
	"context"

	"pushrelay/internal/domain/entity"
)

// DeliveryLogRepository persists per-event delivery outcomes. Optional: the
// pipeline runs without one and logging failures never fail a request.
type DeliveryLogRepository interface {
	// CreateDeliveryLog persists a single delivery log entry.
	CreateDeliveryLog(ctx context.Context, log *entity.DeliveryLog) error
}
