package postgres

import (
	"context"

	"pushrelay/internal/domain/entity"
	"pushrelay/internal/domain/repository"
	"pushrelay/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// deliveryLogRepository implements the repository.DeliveryLogRepository interface.
type deliveryLogRepository struct {
	db *gorm.DB
}

// NewDeliveryLogRepository is the constructor for deliveryLogRepository.
// Returns nil when no database is configured; callers treat a nil repository
// as logging disabled.
func NewDeliveryLogRepository(db *gorm.DB) repository.DeliveryLogRepository {
	if db == nil {
		return nil
	}

	return &deliveryLogRepository{
		db: db,
	}
}

// CreateDeliveryLog persists a single delivery log entry.
func (repo *deliveryLogRepository) CreateDeliveryLog(ctx context.Context, log *entity.DeliveryLog) error {
	logM := fromDeliveryLogDomain(log)

	if err := repo.db.WithContext(ctx).Create(logM).Error; err != nil {
		return errors.Wrap(err, "failed to create delivery log")
	}

	log.ID = logM.ID

	return nil
}

// --- Mapper Functions ---

// fromDeliveryLogDomain converts a domain DeliveryLog to a GORM DeliveryLogModel.
func fromDeliveryLogDomain(log *entity.DeliveryLog) *model.DeliveryLogModel {
	id := log.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	return &model.DeliveryLogModel{
		ID:             id,
		NotificationID: log.NotificationID,
		UserID:         log.UserID,
		Status:         log.Status,
		MessageID:      log.MessageID,
		Detail:         log.Detail,
		SentAt:         log.SentAt,
	}
}
