package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/domain/conversation"
	vahub_errors "vahub-messaging/pkg/errors"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) || isUniqueViolation(res.Error) {
			return vahub_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, vahub_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetByPair(ctx context.Context, vaID, businessID uuid.UUID, intercepted bool) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("va_id = ? AND business_id = ? AND is_intercepted = ?", vaID, businessID, intercepted).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, vahub_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetUserConversations(ctx context.Context, userID uuid.UUID, includeIntercepted bool, page, limit int) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	q := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id IN (?)", subQuery)
	if !includeIntercepted {
		q = q.Where("is_intercepted = ?", false)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit
	if err := q.
		Preload("Participants").
		Order("last_message_at DESC NULLS LAST").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *PostgresConversationRepository) GetIntercepted(ctx context.Context, status conversation.AdminStatus, page, limit int) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	q := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("is_intercepted = ?", true)
	if status != "" {
		q = q.Where("admin_status = ?", status)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit
	if err := q.
		Preload("Participants").
		Preload("AdminActions").
		Order("last_message_at DESC NULLS LAST").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *PostgresConversationRepository) InterceptStatusCounts(ctx context.Context) (map[conversation.AdminStatus]int64, error) {
	type row struct {
		AdminStatus conversation.AdminStatus
		Count       int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Select("admin_status, COUNT(*) AS count").
		Where("is_intercepted = ?", true).
		Group("admin_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[conversation.AdminStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.AdminStatus] = row.Count
	}
	return counts, nil
}

func (r *PostgresConversationRepository) CountInterceptedWithAdminUnread(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("is_intercepted = ? AND unread_admin > 0", true).
		Count(&count).Error
	return count, err
}

func unreadColumn(role domain.Role) string {
	switch role {
	case domain.RoleVA:
		return "unread_va"
	case domain.RoleBusiness:
		return "unread_business"
	case domain.RoleAdmin:
		return "unread_admin"
	}
	return ""
}

// IncrementUnread applies the +1 at the store level so concurrent
// sends cannot lose an increment to a read-modify-write race.
func (r *PostgresConversationRepository) IncrementUnread(ctx context.Context, id uuid.UUID, roles []domain.Role) error {
	if len(roles) == 0 {
		return nil
	}
	updates := make(map[string]interface{}, len(roles))
	for _, role := range roles {
		col := unreadColumn(role)
		if col == "" {
			return vahub_errors.ErrInvalidInput
		}
		updates[col] = gorm.Expr(col+" + ?", 1)
	}
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}

// ResetUnread writes 0, never a delta, so a second concurrent reset is
// a harmless no-op.
func (r *PostgresConversationRepository) ResetUnread(ctx context.Context, id uuid.UUID, role domain.Role) error {
	col := unreadColumn(role)
	if col == "" {
		return vahub_errors.ErrInvalidInput
	}
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Update(col, 0)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) SetLastMessage(ctx context.Context, id uuid.UUID, body string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message":    body,
			"last_message_at": at,
			"messages_count":  gorm.Expr("messages_count + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) SetAdminStatus(ctx context.Context, id uuid.UUID, status conversation.AdminStatus) error {
	return r.updateField(ctx, id, "admin_status", status)
}

func (r *PostgresConversationRepository) SetAdminNotes(ctx context.Context, id uuid.UUID, notes string) error {
	return r.updateField(ctx, id, "admin_notes", notes)
}

func (r *PostgresConversationRepository) SetStatus(ctx context.Context, id uuid.UUID, status conversation.Status) error {
	return r.updateField(ctx, id, "status", status)
}

func (r *PostgresConversationRepository) SetForwarded(ctx context.Context, id, forwardedConversationID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"admin_status":              conversation.AdminForwarded,
			"forwarded_at":              time.Now(),
			"forwarded_conversation_id": forwardedConversationID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) SetReplied(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"admin_status": conversation.AdminReplied,
			"replied_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) SetBlocked(ctx context.Context, id uuid.UUID, by domain.Role, blocked bool) error {
	var col string
	switch by {
	case domain.RoleVA:
		col = "va_blocked_at"
	case domain.RoleBusiness:
		col = "business_blocked_at"
	default:
		return vahub_errors.ErrInvalidInput
	}
	var value interface{}
	if blocked {
		value = time.Now()
	}
	return r.updateField(ctx, id, col, value)
}

func (r *PostgresConversationRepository) updateField(ctx context.Context, id uuid.UUID, column string, value interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) AddParticipant(ctx context.Context, p *conversation.Participant) error {
	res := r.db.WithContext(ctx).Create(p)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) || isUniqueViolation(res.Error) {
			return vahub_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	var p conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Participant{}, vahub_errors.ErrNotFound
		}
		return conversation.Participant{}, err
	}
	return p, nil
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresConversationRepository) PinConversation(ctx context.Context, conversationID, userID uuid.UUID, pinned bool) error {
	var value interface{}
	if pinned {
		value = time.Now()
	}
	return r.updateParticipant(ctx, conversationID, userID, "pinned_at", value)
}

func (r *PostgresConversationRepository) MuteConversation(ctx context.Context, conversationID, userID uuid.UUID, until *time.Time) error {
	var value interface{}
	if until != nil {
		value = *until
	}
	return r.updateParticipant(ctx, conversationID, userID, "muted_until", value)
}

func (r *PostgresConversationRepository) ArchiveForUser(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error {
	return r.updateParticipant(ctx, conversationID, userID, "archived", archived)
}

func (r *PostgresConversationRepository) updateParticipant(ctx context.Context, conversationID, userID uuid.UUID, column string, value interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vahub_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) GetContactIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	var contactIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Distinct("user_id").
		Where("conversation_id IN (?) AND user_id <> ?", subQuery, userID).
		Pluck("user_id", &contactIDs).Error
	if err != nil {
		return nil, err
	}
	return contactIDs, nil
}

func (r *PostgresConversationRepository) AddAdminAction(ctx context.Context, a *conversation.AdminAction) error {
	return r.db.WithContext(ctx).Create(a).Error
}
