package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/domain/conversation"
	"vahub-messaging/internal/domain/message"
	"vahub-messaging/internal/domain/notification"
	"vahub-messaging/internal/domain/presence"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetByPair(ctx context.Context, vaID, businessID uuid.UUID, intercepted bool) (conversation.Conversation, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID, includeIntercepted bool, page, limit int) ([]conversation.Conversation, int64, error)
	GetIntercepted(ctx context.Context, status conversation.AdminStatus, page, limit int) ([]conversation.Conversation, int64, error)
	InterceptStatusCounts(ctx context.Context) (map[conversation.AdminStatus]int64, error)
	CountInterceptedWithAdminUnread(ctx context.Context) (int64, error)

	// Atomic counter primitives. Increment applies a relative +1;
	// ResetUnread writes the target value 0 so concurrent calls cannot
	// double-decrement.
	IncrementUnread(ctx context.Context, id uuid.UUID, roles []domain.Role) error
	ResetUnread(ctx context.Context, id uuid.UUID, role domain.Role) error

	SetLastMessage(ctx context.Context, id uuid.UUID, body string, at time.Time) error
	SetAdminStatus(ctx context.Context, id uuid.UUID, status conversation.AdminStatus) error
	SetAdminNotes(ctx context.Context, id uuid.UUID, notes string) error
	SetStatus(ctx context.Context, id uuid.UUID, status conversation.Status) error
	SetForwarded(ctx context.Context, id, forwardedConversationID uuid.UUID) error
	SetReplied(ctx context.Context, id uuid.UUID) error
	SetBlocked(ctx context.Context, id uuid.UUID, by domain.Role, blocked bool) error

	AddParticipant(ctx context.Context, p *conversation.Participant) error
	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	PinConversation(ctx context.Context, conversationID, userID uuid.UUID, pinned bool) error
	MuteConversation(ctx context.Context, conversationID, userID uuid.UUID, until *time.Time) error
	ArchiveForUser(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error

	// GetContactIDs returns the set of users sharing at least one
	// conversation with userID, used for presence broadcast targeting.
	GetContactIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)

	AddAdminAction(ctx context.Context, a *conversation.AdminAction) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	GetByTempID(ctx context.Context, tempID string) (message.Message, error)
	GetConversationMessages(ctx context.Context, conversationID uuid.UUID, cursor *Cursor, limit int) ([]message.Message, *Cursor, error)
	GetConversationTranscript(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error)

	// MarkConversationRead marks every message in the conversation not
	// authored by the given role as read, returning the affected count.
	// Idempotent: already-read rows are untouched.
	MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerRole domain.Role, at time.Time) (int64, error)
	MarkDelivered(ctx context.Context, messageIDs []uuid.UUID, at time.Time) error
	CountUnreadForRole(ctx context.Context, conversationID uuid.UUID, role domain.Role) (int64, error)

	UpdateBody(ctx context.Context, id uuid.UUID, body, bodyHTML string, editedAt time.Time) error
	AddEdit(ctx context.Context, e *message.Edit) error
	SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, forEveryone bool) error

	UpsertReaction(ctx context.Context, r *message.Reaction) error
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID) error

	AddAttachments(ctx context.Context, attachments []message.Attachment) error
}

type PresenceRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (presence.Record, error)
	// GetOrCreate lazily materializes the record on first touch.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (presence.Record, error)
	Update(ctx context.Context, r presence.Record) error
	GetMany(ctx context.Context, userIDs []uuid.UUID) ([]presence.Record, error)
	// SweepStale force-transitions online/away records whose lastSeen
	// predates the threshold to offline, returning affected user ids.
	SweepStale(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error)
	// MarkAway transitions idle online users to away.
	MarkAway(ctx context.Context, idleSince time.Time) ([]uuid.UUID, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	GetForRecipient(ctx context.Context, recipientID uuid.UUID, page, limit int) ([]notification.Notification, int64, error)
	MarkRead(ctx context.Context, id, recipientID uuid.UUID) error
}
