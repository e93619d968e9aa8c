package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/models"
)

// NotificationRepository handles persistence for notification entities.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uint) (models.Notification, error)
}

type notificationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db, now: time.Now}
}

func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(notifications, 100).Error
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var notifications []models.Notification
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("expires_at IS NULL OR expires_at > ?", r.now()).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}

	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uint) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&notification).Error; err != nil {
		return models.Notification{}, err
	}

	if notification.Read {
		return notification, nil
	}

	notification.Read = true
	if err := r.db.WithContext(ctx).Save(&notification).Error; err != nil {
		return models.Notification{}, err
	}

	return notification, nil
}
