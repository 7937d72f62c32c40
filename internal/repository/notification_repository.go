package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vahub-messaging/internal/domain/notification"
	vahub_errors "vahub-messaging/pkg/errors"
)

type PostgresNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *PostgresNotificationRepository) GetForRecipient(ctx context.Context, recipientID uuid.UUID, page, limit int) ([]notification.Notification, int64, error) {
	var notifications []notification.Notification
	var total int64

	q := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("recipient_id = ?", recipientID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit
	if err := q.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read_at", gorm.Expr("COALESCE(read_at, NOW())"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}
