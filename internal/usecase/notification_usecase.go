// Package usecase defines the application-level interfaces of the project.
package usecase

import (
	"context"

	"pushrelay/internal/domain/entity"
)

// NotificationUsecase drives one change event through resolution and push
// delivery. The returned outcome is always terminal: sent, skipped or failed.
// An error means the pipeline itself broke, not that a recipient was
// unreachable.
type NotificationUsecase interface {
	// ProcessChangeEvent resolves the recipient's push destination and
	// dispatches the notification. Skips (no token, opted out) are outcomes,
	// never errors.
	ProcessChangeEvent(ctx context.Context, record *entity.NotificationRecord) (*entity.PushOutcome, error)
}
