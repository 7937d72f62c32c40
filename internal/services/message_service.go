package services

import (
	"context"
	"database/sql"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/domain/conversation"
	"vahub-messaging/internal/domain/message"
	"vahub-messaging/internal/repository"
	vahub_errors "vahub-messaging/pkg/errors"
	"vahub-messaging/pkg/logger"
	"vahub-messaging/pkg/metrics"
)

// Notifier is the async notification surface the message path calls
// into after a successful write. Implementations must not block the
// send path on external delivery.
type Notifier interface {
	NewMessage(ctx context.Context, conv conversation.Conversation, msg message.Message, recipients []uuid.UUID)
	AdminUnreadChanged(ctx context.Context)
}

// NoopNotifier is the test and pre-wiring stand-in.
type NoopNotifier struct{}

func (NoopNotifier) NewMessage(context.Context, conversation.Conversation, message.Message, []uuid.UUID) {
}
func (NoopNotifier) AdminUnreadChanged(context.Context) {}

// SendInput carries one outbound message. TempID is the client's
// idempotency token; resending it returns the originally stored row.
type SendInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	SenderRole     domain.Role
	TempID         string
	Body           string
	ReplyToID      uuid.NullUUID
	Attachments    []message.Attachment
}

const maxBodyLength = 10000

type MessageService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	counter       *UnreadCounter
	broadcaster   Broadcaster
	notifier      Notifier
	log           *logger.Logger
	editWindow    time.Duration
}

func NewMessageService(
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	counter *UnreadCounter,
	broadcaster Broadcaster,
	notifier Notifier,
	log *logger.Logger,
	editWindow time.Duration,
) *MessageService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &MessageService{
		messages:      messages,
		conversations: conversations,
		counter:       counter,
		broadcaster:   broadcaster,
		notifier:      notifier,
		log:           log,
		editWindow:    editWindow,
	}
}

func (s *MessageService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }
func (s *MessageService) SetNotifier(n Notifier)       { s.notifier = n }

// Send persists a message and fans it out. For intercepted
// conversations the fan-out is contained: a business message reaches
// the admin room only and increments only the admin counter; the VA
// side sees nothing until an admin forwards or replies.
func (s *MessageService) Send(ctx context.Context, in SendInput) (message.Message, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" && len(in.Attachments) == 0 {
		return message.Message{}, vahub_errors.Validation("EMPTY_MESSAGE", "message needs a body or attachments")
	}
	if len(body) > maxBodyLength {
		return message.Message{}, vahub_errors.Validation("BODY_TOO_LONG", "message body exceeds the maximum length")
	}

	conv, err := s.conversations.GetByID(ctx, in.ConversationID)
	if err != nil {
		return message.Message{}, err
	}
	senderRole, err := s.authorizeSender(&conv, in.SenderID, in.SenderRole)
	if err != nil {
		return message.Message{}, err
	}
	if conv.IsBlocked() && senderRole != domain.RoleAdmin {
		return message.Message{}, vahub_errors.ErrConversationBlock
	}
	if conv.Status == conversation.StatusArchived {
		// sending into an archived conversation revives it
		if err := s.conversations.SetStatus(ctx, conv.ID, conversation.StatusActive); err != nil {
			return message.Message{}, err
		}
	}

	if in.TempID != "" {
		if existing, err := s.messages.GetByTempID(ctx, in.TempID); err == nil {
			return existing, nil
		} else if !vahub_errors.IsNotFound(err) {
			return message.Message{}, err
		}
	}

	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		SenderRole:     senderRole,
		Body:           body,
		BodyHTML:       renderHTML(body),
		ReplyToID:      in.ReplyToID,
		Status:         message.StatusSent,
	}
	if in.TempID != "" {
		msg.TempID = sql.NullString{String: in.TempID, Valid: true}
	}
	if err := s.messages.Create(ctx, &msg); err != nil {
		if vahub_errors.IsConflict(err) && in.TempID != "" {
			// concurrent resend; return the row that won
			return s.messages.GetByTempID(ctx, in.TempID)
		}
		return message.Message{}, err
	}
	if len(in.Attachments) > 0 {
		for i := range in.Attachments {
			in.Attachments[i].ID = uuid.New()
			in.Attachments[i].MessageID = msg.ID
		}
		if err := s.messages.AddAttachments(ctx, in.Attachments); err != nil {
			return message.Message{}, err
		}
		msg.Attachments = in.Attachments
	}

	if err := s.counter.Increment(ctx, conv.ID, senderRole, conv.IsIntercepted); err != nil {
		return message.Message{}, err
	}
	if err := s.conversations.SetLastMessage(ctx, conv.ID, body, msg.CreatedAt); err != nil {
		return message.Message{}, err
	}
	if conv.IsIntercepted && senderRole == domain.RoleBusiness && conv.AdminStatus == conversation.AdminReplied {
		// a fresh business message reopens the admin queue item
		if err := s.conversations.SetAdminStatus(ctx, conv.ID, conversation.AdminAwaitingReply); err != nil && s.log != nil {
			s.log.Warnf("admin status rollover failed for %s: %v", conv.ID, err)
		}
	}

	metrics.MessagesSentTotal.WithLabelValues(string(senderRole), strconv.FormatBool(conv.IsIntercepted)).Inc()

	recipients := deliveryTargets(&conv, in.SenderID, senderRole)
	s.fanOut(ctx, conv, msg, recipients)
	return msg, nil
}

// GetMessages pages a conversation backwards from the cursor (newest
// first). VAs never see intercepted conversations.
func (s *MessageService) GetMessages(ctx context.Context, conversationID, userID uuid.UUID, role domain.Role, cursorToken string, limit int) ([]message.Message, string, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, "", err
	}
	if err := s.authorizeReader(&conv, userID, role); err != nil {
		return nil, "", err
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	cursor, err := repository.DecodeCursor(cursorToken)
	if err != nil {
		return nil, "", vahub_errors.Validation("INVALID_CURSOR", "malformed pagination cursor")
	}

	msgs, next, err := s.messages.GetConversationMessages(ctx, conversationID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	nextToken := ""
	if next != nil {
		nextToken = next.Encode()
	}
	return msgs, nextToken, nil
}

// MarkRead acknowledges everything the viewer's role has not read in
// the conversation, resets the role counter to zero, and notifies the
// other side. Idempotent: a second call affects nothing and broadcasts
// nothing.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, userID uuid.UUID, role domain.Role) (int64, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if err := s.authorizeReader(&conv, userID, role); err != nil {
		return 0, err
	}

	now := time.Now()
	affected, err := s.messages.MarkConversationRead(ctx, conversationID, role, now)
	if err != nil {
		return 0, err
	}
	if err := s.counter.Reset(ctx, conversationID, role); err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, nil
	}
	metrics.MessagesMarkedReadTotal.Add(float64(affected))

	if s.broadcaster != nil {
		event := NewEvent(EventMessagesRead, map[string]interface{}{
			"conversation_id": conversationID,
			"reader_id":       userID,
			"reader_role":     role,
			"read_at":         now,
			"count":           affected,
		})
		for _, p := range conv.Participants {
			if p.UserID != userID {
				if conv.IsIntercepted && p.Role == domain.RoleVA {
					continue
				}
				s.broadcaster.ToUser(p.UserID, event)
			}
		}
		if conv.IsIntercepted && role != domain.RoleAdmin {
			s.broadcaster.ToAdmins(event)
		}
	}
	if conv.IsIntercepted && role == domain.RoleAdmin {
		s.notifier.AdminUnreadChanged(ctx)
	}
	return affected, nil
}

// Edit replaces the body of the caller's own message inside the edit
// window, preserving the prior body in the edit history.
func (s *MessageService) Edit(ctx context.Context, messageID, editorID uuid.UUID, newBody string) (message.Message, error) {
	newBody = strings.TrimSpace(newBody)
	if newBody == "" {
		return message.Message{}, vahub_errors.Validation("EMPTY_MESSAGE", "edited body cannot be empty")
	}
	if len(newBody) > maxBodyLength {
		return message.Message{}, vahub_errors.Validation("BODY_TOO_LONG", "message body exceeds the maximum length")
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if msg.SenderID != editorID {
		return message.Message{}, vahub_errors.Authorization("NOT_SENDER", "only the sender can edit a message")
	}
	if msg.Deleted() {
		return message.Message{}, vahub_errors.Conflict("MESSAGE_DELETED", "deleted messages cannot be edited")
	}
	if time.Since(msg.CreatedAt) > s.editWindow {
		return message.Message{}, vahub_errors.ErrEditWindowClosed
	}

	now := time.Now()
	if err := s.messages.AddEdit(ctx, &message.Edit{
		ID:        uuid.New(),
		MessageID: msg.ID,
		Body:      msg.Body,
		EditedAt:  now,
	}); err != nil {
		return message.Message{}, err
	}
	if err := s.messages.UpdateBody(ctx, msg.ID, newBody, renderHTML(newBody), now); err != nil {
		return message.Message{}, err
	}
	msg.Body = newBody
	msg.BodyHTML = renderHTML(newBody)
	msg.EditedAt = sql.NullTime{Time: now, Valid: true}

	s.broadcastToConversation(ctx, msg.ConversationID, msg.SenderID, NewEvent(EventMessageEdited, map[string]interface{}{
		"message_id":      msg.ID,
		"conversation_id": msg.ConversationID,
		"body":            msg.Body,
		"body_html":       msg.BodyHTML,
		"edited_at":       now,
	}))
	return msg, nil
}

// Delete tombstones a message. The sender can delete their own; admins
// can delete anything for everyone.
func (s *MessageService) Delete(ctx context.Context, messageID, userID uuid.UUID, role domain.Role, forEveryone bool) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID && role != domain.RoleAdmin {
		return vahub_errors.Authorization("NOT_SENDER", "only the sender or an admin can delete a message")
	}
	if role == domain.RoleAdmin {
		forEveryone = true
	}
	if err := s.messages.SoftDelete(ctx, messageID, userID, forEveryone); err != nil {
		return err
	}
	if forEveryone {
		s.broadcastToConversation(ctx, msg.ConversationID, uuid.Nil, NewEvent(EventMessageDeleted, map[string]interface{}{
			"message_id":      messageID,
			"conversation_id": msg.ConversationID,
		}))
	}
	return nil
}

// React sets the caller's emoji on a message, replacing any prior one.
func (s *MessageService) React(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	if emoji == "" {
		return vahub_errors.Validation("EMPTY_REACTION", "emoji is required")
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	ok, err := s.conversations.IsParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return vahub_errors.ErrNotParticipant
	}
	if err := s.messages.UpsertReaction(ctx, &message.Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	}); err != nil {
		return err
	}
	s.broadcastToConversation(ctx, msg.ConversationID, uuid.Nil, NewEvent(EventReactionAdded, map[string]interface{}{
		"message_id": messageID,
		"user_id":    userID,
		"emoji":      emoji,
	}))
	return nil
}

// Unreact removes the caller's reaction from a message.
func (s *MessageService) Unreact(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.messages.RemoveReaction(ctx, messageID, userID); err != nil {
		return err
	}
	s.broadcastToConversation(ctx, msg.ConversationID, uuid.Nil, NewEvent(EventReactionRemoved, map[string]interface{}{
		"message_id": messageID,
		"user_id":    userID,
	}))
	return nil
}

// authorizeSender resolves the effective sender role. A participant
// sends as their participant role; an admin may write into intercepted
// conversations without being a participant.
func (s *MessageService) authorizeSender(conv *conversation.Conversation, senderID uuid.UUID, claimed domain.Role) (domain.Role, error) {
	if role, ok := conv.RoleOf(senderID); ok {
		return role, nil
	}
	if claimed == domain.RoleAdmin && conv.IsIntercepted {
		return domain.RoleAdmin, nil
	}
	return "", vahub_errors.ErrNotParticipant
}

func (s *MessageService) authorizeReader(conv *conversation.Conversation, userID uuid.UUID, role domain.Role) error {
	if memberRole, ok := conv.RoleOf(userID); ok {
		if conv.IsIntercepted && memberRole == domain.RoleVA {
			return vahub_errors.ErrNotParticipant
		}
		return nil
	}
	if role == domain.RoleAdmin && conv.IsIntercepted {
		return nil
	}
	return vahub_errors.ErrNotParticipant
}

// deliveryTargets applies the containment rule: intercepted business
// traffic terminates at the admin room, never at the VA's sockets.
// Admins receive intercepted traffic via ToAdmins, not this list.
func deliveryTargets(conv *conversation.Conversation, senderID uuid.UUID, senderRole domain.Role) []uuid.UUID {
	if conv.IsIntercepted {
		switch senderRole {
		case domain.RoleBusiness:
			return nil
		case domain.RoleAdmin, domain.RoleVA:
			return []uuid.UUID{conv.BusinessID}
		}
		return nil
	}
	targets := make([]uuid.UUID, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p.UserID != senderID {
			targets = append(targets, p.UserID)
		}
	}
	return targets
}

func (s *MessageService) fanOut(ctx context.Context, conv conversation.Conversation, msg message.Message, recipients []uuid.UUID) {
	if s.broadcaster != nil {
		// sender echo carries the temp_id -> id mapping for client-side
		// optimistic state reconciliation
		s.broadcaster.ToUser(msg.SenderID, NewEvent(EventMessageSent, map[string]interface{}{
			"message": msg,
			"temp_id": msg.TempID.String,
		}))

		event := NewEvent(EventNewMessage, map[string]interface{}{
			"message":         msg,
			"conversation_id": conv.ID,
		})
		delivered := false
		for _, recipientID := range recipients {
			s.broadcaster.ToUser(recipientID, event)
			if s.broadcaster.IsOnline(recipientID) {
				delivered = true
			}
		}
		if conv.IsIntercepted {
			s.broadcaster.ToAdmins(event)
		}
		if delivered {
			now := time.Now()
			if err := s.messages.MarkDelivered(ctx, []uuid.UUID{msg.ID}, now); err != nil {
				if s.log != nil {
					s.log.Warnf("delivery mark failed for %s: %v", msg.ID, err)
				}
			} else {
				s.broadcaster.ToUser(msg.SenderID, NewEvent(EventMessageDelivered, map[string]interface{}{
					"message_id":   msg.ID,
					"delivered_at": now,
				}))
			}
		}
	}

	s.notifier.NewMessage(ctx, conv, msg, recipients)
	if conv.IsIntercepted && msg.SenderRole == domain.RoleBusiness {
		s.notifier.AdminUnreadChanged(ctx)
	}
}

// broadcastToConversation pushes an event to every participant except
// skip (pass uuid.Nil to include everyone), respecting intercept
// containment for VAs.
func (s *MessageService) broadcastToConversation(ctx context.Context, conversationID, skip uuid.UUID, event Event) {
	if s.broadcaster == nil {
		return
	}
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return
	}
	for _, p := range conv.Participants {
		if p.UserID == skip {
			continue
		}
		if conv.IsIntercepted && p.Role == domain.RoleVA {
			continue
		}
		s.broadcaster.ToUser(p.UserID, event)
	}
	if conv.IsIntercepted {
		s.broadcaster.ToAdmins(event)
	}
}

// renderHTML escapes the body and turns newlines into breaks; clients
// render this directly.
func renderHTML(body string) string {
	return strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")
}
