// Package impl provides the implementations of the usecase interfaces.
package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "pushrelay/internal/delivery/context"
	"pushrelay/internal/domain/entity"
	"pushrelay/internal/domain/repository"
	"pushrelay/internal/domain/service"
	"pushrelay/internal/usecase"

	"github.com/pkg/errors"
)

type notificationService struct {
	profileRepo     repository.ProfileRepository
	dispatcher      service.PushDispatcher
	deliveryLogRepo repository.DeliveryLogRepository
	logger          *slog.Logger
}

// NewNotificationService creates the change event processing pipeline.
// deliveryLogRepo may be nil; outcomes are then not persisted.
func NewNotificationService(
	profileRepo repository.ProfileRepository,
	dispatcher service.PushDispatcher,
	deliveryLogRepo repository.DeliveryLogRepository,
	logger *slog.Logger,
) usecase.NotificationUsecase {
	return &notificationService{
		profileRepo:     profileRepo,
		dispatcher:      dispatcher,
		deliveryLogRepo: deliveryLogRepo,
		logger:          logger,
	}
}

// ProcessChangeEvent resolves the recipient and dispatches the push.
func (s *notificationService) ProcessChangeEvent(ctx context.Context, record *entity.NotificationRecord) (*entity.PushOutcome, error) {
	logger := deliverycontext.GetLoggerOrDefault(ctx, s.logger)

	token, outcome, err := s.resolveToken(ctx, record, logger)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		s.recordOutcome(ctx, record, outcome, logger)

		return outcome, nil
	}

	outcome, err = s.dispatcher.Dispatch(ctx, token, record.Title, record.BodyText(), record.CategoryOrDefault(), record.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "dispatch push")
	}

	s.recordOutcome(ctx, record, outcome, logger)

	return outcome, nil
}

// resolveToken returns either a deliverable token or a terminal skip outcome.
// A token carried on the record itself bypasses the resolver entirely.
func (s *notificationService) resolveToken(ctx context.Context, record *entity.NotificationRecord, logger *slog.Logger) (string, *entity.PushOutcome, error) {
	if record.FCMToken != "" {
		return record.FCMToken, nil, nil
	}

	profile, err := s.profileRepo.ResolveProfile(ctx, record.UserID)
	if err != nil {
		return "", nil, errors.Wrap(err, "resolve recipient profile")
	}

	if profile.FCMToken == "" {
		logger.Info("No FCM token for recipient, skipping",
			slog.String("user_id", record.UserID),
		)

		return "", entity.SkippedOutcome(entity.SkipReasonNoToken), nil
	}

	if !profile.NotificationsEnabled {
		logger.Info("Recipient opted out of notifications, skipping",
			slog.String("user_id", record.UserID),
		)

		return "", entity.SkippedOutcome(entity.SkipReasonDisabled), nil
	}

	return profile.FCMToken, nil, nil
}

// recordOutcome persists the delivery log entry. Best effort: failures are
// logged and never surface to the caller.
func (s *notificationService) recordOutcome(ctx context.Context, record *entity.NotificationRecord, outcome *entity.PushOutcome, logger *slog.Logger) {
	if s.deliveryLogRepo == nil {
		return
	}

	detail := outcome.SkipReason
	if outcome.Status == entity.OutcomeFailed {
		detail = outcome.ErrorDetail
	}

	entry := &entity.DeliveryLog{
		NotificationID: record.ID,
		UserID:         record.UserID,
		Status:         string(outcome.Status),
		MessageID:      outcome.MessageID,
		Detail:         detail,
		SentAt:         time.Now(),
	}

	if err := s.deliveryLogRepo.CreateDeliveryLog(ctx, entry); err != nil {
		logger.Warn("Failed to persist delivery log",
			slog.String("user_id", record.UserID),
			slog.Any("error", err),
		)
	}
}
