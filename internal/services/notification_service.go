package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"vahub-messaging/internal/domain/conversation"
	"vahub-messaging/internal/domain/message"
	"vahub-messaging/internal/domain/notification"
	"vahub-messaging/internal/platform"
	"vahub-messaging/internal/repository"
	vahub_errors "vahub-messaging/pkg/errors"
	"vahub-messaging/pkg/logger"
	"vahub-messaging/pkg/metrics"
)

// NotificationService turns message-path events into durable inbox
// records, best-effort email for offline recipients, and the admin
// badge broadcast. It implements Notifier; failures here never fail
// the send that triggered them.
type NotificationService struct {
	notifications repository.NotificationRepository
	conversations repository.ConversationRepository
	email         platform.EmailSender
	broadcaster   Broadcaster
	log           *logger.Logger
}

var _ Notifier = (*NotificationService)(nil)

func NewNotificationService(
	notifications repository.NotificationRepository,
	conversations repository.ConversationRepository,
	email platform.EmailSender,
	broadcaster Broadcaster,
	log *logger.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		conversations: conversations,
		email:         email,
		broadcaster:   broadcaster,
		log:           log,
	}
}

func (s *NotificationService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// NewMessage writes one inbox record per recipient and emails the ones
// without a live socket.
func (s *NotificationService) NewMessage(ctx context.Context, conv conversation.Conversation, msg message.Message, recipients []uuid.UUID) {
	preview := truncatePreview(msg.Body, 140)
	payload, _ := json.Marshal(map[string]interface{}{
		"conversation_id": conv.ID,
		"message_id":      msg.ID,
		"sender_role":     msg.SenderRole,
		"preview":         preview,
	})

	for _, recipientID := range recipients {
		online := s.broadcaster != nil && s.broadcaster.IsOnline(recipientID)

		if muted, err := s.muted(ctx, conv.ID, recipientID); err == nil && muted {
			continue
		}

		if err := s.notifications.Create(ctx, &notification.Notification{
			ID:          uuid.New(),
			RecipientID: recipientID,
			Type:        notification.TypeNewMessage,
			Payload:     string(payload),
		}); err != nil {
			if s.log != nil {
				s.log.Warnf("notification write failed for %s: %v", recipientID, err)
			}
			continue
		}
		metrics.NotificationsCreatedTotal.WithLabelValues(strconv.FormatBool(online)).Inc()

		if !online && s.email != nil {
			if err := s.email.Send(ctx, "new_message", map[string]any{
				"recipient_id":    recipientID,
				"conversation_id": conv.ID,
				"preview":         preview,
			}); err != nil && s.log != nil {
				s.log.Warnf("email notification failed for %s: %v", recipientID, err)
			}
		}
	}
}

// AdminUnreadChanged recomputes the review-desk badge and pushes it to
// every connected admin.
func (s *NotificationService) AdminUnreadChanged(ctx context.Context) {
	if s.broadcaster == nil {
		return
	}
	badge, err := s.conversations.CountInterceptedWithAdminUnread(ctx)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("admin badge recount failed: %v", err)
		}
		return
	}
	s.broadcaster.ToAdmins(NewEvent(EventAdminUnreadUpdate, map[string]interface{}{
		"unread_conversations": badge,
	}))
}

// List pages the recipient's inbox.
func (s *NotificationService) List(ctx context.Context, recipientID uuid.UUID, page, limit int) ([]notification.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.notifications.GetForRecipient(ctx, recipientID, page, limit)
}

// MarkRead acknowledges a single inbox record; only the recipient can.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	if id == uuid.Nil {
		return vahub_errors.ErrInvalidInput
	}
	return s.notifications.MarkRead(ctx, id, recipientID)
}

// truncatePreview caps the body at max bytes without splitting a
// UTF-8 sequence.
func truncatePreview(body string, max int) string {
	if len(body) <= max {
		return body
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

func (s *NotificationService) muted(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	p, err := s.conversations.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return false, err
	}
	return p.MutedUntil.Valid && p.MutedUntil.Time.After(time.Now()), nil
}
