package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/domain/message"
	vahub_errors "vahub-messaging/pkg/errors"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) || isUniqueViolation(res.Error) {
			return vahub_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Preload("Reactions").
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, vahub_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) GetByTempID(ctx context.Context, tempID string) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("temp_id = ?", tempID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, vahub_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

// GetConversationMessages pages newest-first on (created_at, id).
func (r *PostgresMessageRepository) GetConversationMessages(ctx context.Context, conversationID uuid.UUID, cursor *Cursor, limit int) ([]message.Message, *Cursor, error) {
	var messages []message.Message
	q := r.db.WithContext(ctx).
		Preload("Attachments").
		Preload("Reactions").
		Where("conversation_id = ?", conversationID)

	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if len(messages) == limit {
		last := messages[len(messages)-1]
		next = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return messages, next, nil
}

func (r *PostgresMessageRepository) GetConversationTranscript(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND deleted_at IS NULL", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerRole domain.Role, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_role <> ? AND read_at IS NULL", conversationID, readerRole).
		Updates(map[string]interface{}{
			"read_at": at,
			"status":  message.StatusRead,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresMessageRepository) MarkDelivered(ctx context.Context, messageIDs []uuid.UUID, at time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id IN ? AND status = ?", messageIDs, message.StatusSent).
		Updates(map[string]interface{}{
			"delivered_at": at,
			"status":       message.StatusDelivered,
		}).Error
}

func (r *PostgresMessageRepository) CountUnreadForRole(ctx context.Context, conversationID uuid.UUID, role domain.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_role <> ? AND read_at IS NULL AND deleted_at IS NULL", conversationID, role).
		Count(&count).Error
	return count, err
}

func (r *PostgresMessageRepository) UpdateBody(ctx context.Context, id uuid.UUID, body, bodyHTML string, editedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"body":      body,
			"body_html": bodyHTML,
			"edited_at": editedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) AddEdit(ctx context.Context, e *message.Edit) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, forEveryone bool) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"deleted_at":           time.Now(),
			"deleted_by_id":        deletedBy,
			"deleted_for_everyone": forEveryone,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}

// UpsertReaction keeps one emoji per user per message, replacing in
// place on a second reaction.
func (r *PostgresMessageRepository) UpsertReaction(ctx context.Context, reaction *message.Reaction) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"emoji", "created_at"}),
		}).
		Create(reaction).Error
}

func (r *PostgresMessageRepository) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Delete(&message.Reaction{}, "message_id = ? AND user_id = ?", messageID, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) AddAttachments(ctx context.Context, attachments []message.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&attachments).Error
}
