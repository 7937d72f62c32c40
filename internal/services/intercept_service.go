package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/domain/conversation"
	"vahub-messaging/internal/repository"
	vahub_errors "vahub-messaging/pkg/errors"
	"vahub-messaging/pkg/logger"
	"vahub-messaging/pkg/metrics"
)

// InterceptStats is the admin dashboard summary.
type InterceptStats struct {
	StatusCounts map[conversation.AdminStatus]int64 `json:"status_counts"`
	Total        int64                              `json:"total"`
	UnreadBadge  int64                              `json:"unread_badge"`
}

// BatchResult reports per-conversation outcomes of a batch action.
type BatchResult struct {
	Succeeded []uuid.UUID          `json:"succeeded"`
	Failed    map[uuid.UUID]string `json:"failed,omitempty"`
}

// InterceptService is the admin review desk over intercepted
// conversations: listing the queue, forwarding vetted threads to VAs,
// replying on a VA's behalf, and working the status workflow. Every
// mutation is recorded in the admin action audit trail.
type InterceptService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	messageSvc    *MessageService
	counter       *UnreadCounter
	broadcaster   Broadcaster
	notifier      Notifier
	log           *logger.Logger
}

func NewInterceptService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	messageSvc *MessageService,
	counter *UnreadCounter,
	broadcaster Broadcaster,
	notifier Notifier,
	log *logger.Logger,
) *InterceptService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &InterceptService{
		conversations: conversations,
		messages:      messages,
		messageSvc:    messageSvc,
		counter:       counter,
		broadcaster:   broadcaster,
		notifier:      notifier,
		log:           log,
	}
}

func (s *InterceptService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }
func (s *InterceptService) SetNotifier(n Notifier)       { s.notifier = n }

// List pages the intercepted queue, optionally filtered by status.
func (s *InterceptService) List(ctx context.Context, role domain.Role, status conversation.AdminStatus, page, limit int) ([]conversation.Conversation, int64, error) {
	if role != domain.RoleAdmin {
		return nil, 0, vahub_errors.ErrAdminOnly
	}
	if status != "" && !status.Valid() {
		return nil, 0, vahub_errors.Validation("INVALID_STATUS", "unknown admin status")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.conversations.GetIntercepted(ctx, status, page, limit)
}

// Stats returns queue counts and the unread badge (conversations with
// pending admin unread).
func (s *InterceptService) Stats(ctx context.Context, role domain.Role) (InterceptStats, error) {
	if role != domain.RoleAdmin {
		return InterceptStats{}, vahub_errors.ErrAdminOnly
	}
	counts, err := s.conversations.InterceptStatusCounts(ctx)
	if err != nil {
		return InterceptStats{}, err
	}
	badge, err := s.conversations.CountInterceptedWithAdminUnread(ctx)
	if err != nil {
		return InterceptStats{}, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return InterceptStats{StatusCounts: counts, Total: total, UnreadBadge: badge}, nil
}

// MarkRead clears the admin counter on an intercepted conversation and
// refreshes the admin badge everywhere.
func (s *InterceptService) MarkRead(ctx context.Context, adminID uuid.UUID, role domain.Role, conversationID uuid.UUID) error {
	if role != domain.RoleAdmin {
		return vahub_errors.ErrAdminOnly
	}
	if _, err := s.interceptedByID(ctx, conversationID); err != nil {
		return err
	}
	if _, err := s.messageSvc.MarkRead(ctx, conversationID, adminID, domain.RoleAdmin); err != nil {
		return err
	}
	metrics.InterceptActionsTotal.WithLabelValues("mark_read").Inc()
	return nil
}

// Forward releases an intercepted thread to the VA: it creates (or
// reuses) the direct, non-intercepted conversation for the same pair
// and posts the vetted content there attributed to the business, with
// an optional transcript of the withheld messages. The intercepted
// original flips to forwarded and stays as the audit record.
func (s *InterceptService) Forward(ctx context.Context, adminID uuid.UUID, role domain.Role, conversationID uuid.UUID, note string, includeTranscript bool) (conversation.Conversation, error) {
	if role != domain.RoleAdmin {
		return conversation.Conversation{}, vahub_errors.ErrAdminOnly
	}
	conv, err := s.interceptedByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if conv.AdminStatus == conversation.AdminSpam {
		return conversation.Conversation{}, vahub_errors.ErrSpamTerminal
	}

	direct, err := s.conversations.GetByPair(ctx, conv.VAID, conv.BusinessID, false)
	if vahub_errors.IsNotFound(err) {
		now := time.Now()
		direct = conversation.Conversation{
			ID:         uuid.New(),
			VAID:       conv.VAID,
			BusinessID: conv.BusinessID,
			Status:     conversation.StatusActive,
		}
		if err := s.conversations.Create(ctx, &direct); err != nil {
			return conversation.Conversation{}, err
		}
		for _, p := range []conversation.Participant{
			{ConversationID: direct.ID, UserID: conv.VAID, Role: domain.RoleVA, JoinedAt: now},
			{ConversationID: direct.ID, UserID: conv.BusinessID, Role: domain.RoleBusiness, JoinedAt: now},
		} {
			p := p
			if err := s.conversations.AddParticipant(ctx, &p); err != nil {
				return conversation.Conversation{}, err
			}
		}
		direct, err = s.conversations.GetByID(ctx, direct.ID)
		if err != nil {
			return conversation.Conversation{}, err
		}
	} else if err != nil {
		return conversation.Conversation{}, err
	}

	body := strings.TrimSpace(note)
	if includeTranscript {
		transcript, err := s.renderTranscript(ctx, conv.ID)
		if err != nil {
			return conversation.Conversation{}, err
		}
		if body != "" {
			body += "\n\n"
		}
		body += transcript
	}
	if body == "" {
		return conversation.Conversation{}, vahub_errors.Validation("EMPTY_FORWARD", "a note or transcript is required")
	}

	// attributed to the business so the VA sees who they are talking to
	if _, err := s.messageSvc.Send(ctx, SendInput{
		ConversationID: direct.ID,
		SenderID:       conv.BusinessID,
		SenderRole:     domain.RoleBusiness,
		Body:           body,
	}); err != nil {
		return conversation.Conversation{}, err
	}

	if err := s.conversations.SetForwarded(ctx, conv.ID, direct.ID); err != nil {
		return conversation.Conversation{}, err
	}
	s.audit(ctx, conv.ID, adminID, "forward", map[string]interface{}{
		"forwarded_conversation_id": direct.ID,
		"include_transcript":        includeTranscript,
	})
	metrics.InterceptActionsTotal.WithLabelValues("forward").Inc()
	s.notifier.AdminUnreadChanged(ctx)

	return s.conversations.GetByID(ctx, conv.ID)
}

// ReplyAsVA posts into the intercepted conversation attributed to the
// VA, so the business sees VA traffic while the real VA stays
// shielded. The admin queue item flips to replied and the admin
// counter is cleared.
func (s *InterceptService) ReplyAsVA(ctx context.Context, adminID uuid.UUID, role domain.Role, conversationID uuid.UUID, body string) error {
	if role != domain.RoleAdmin {
		return vahub_errors.ErrAdminOnly
	}
	conv, err := s.interceptedByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.AdminStatus == conversation.AdminSpam {
		return vahub_errors.ErrSpamTerminal
	}

	if _, err := s.messageSvc.Send(ctx, SendInput{
		ConversationID: conversationID,
		SenderID:       conv.VAID,
		SenderRole:     domain.RoleVA,
		Body:           body,
	}); err != nil {
		return err
	}

	// the reply settles the pending business messages
	if _, err := s.messages.MarkConversationRead(ctx, conversationID, domain.RoleAdmin, time.Now()); err != nil {
		return err
	}
	if err := s.counter.Reset(ctx, conversationID, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.conversations.SetReplied(ctx, conversationID); err != nil {
		return err
	}
	s.audit(ctx, conversationID, adminID, "reply_as_va", map[string]interface{}{
		"body_length": len(body),
	})
	metrics.InterceptActionsTotal.WithLabelValues("reply_as_va").Inc()
	s.notifier.AdminUnreadChanged(ctx)
	return nil
}

// UpdateNotes replaces the admin scratchpad on a conversation.
func (s *InterceptService) UpdateNotes(ctx context.Context, adminID uuid.UUID, role domain.Role, conversationID uuid.UUID, notes string) error {
	if role != domain.RoleAdmin {
		return vahub_errors.ErrAdminOnly
	}
	if _, err := s.interceptedByID(ctx, conversationID); err != nil {
		return err
	}
	if err := s.conversations.SetAdminNotes(ctx, conversationID, notes); err != nil {
		return err
	}
	s.audit(ctx, conversationID, adminID, "update_notes", nil)
	metrics.InterceptActionsTotal.WithLabelValues("update_notes").Inc()
	return nil
}

// UpdateStatus moves a queue item through the workflow. Spam is
// terminal: leaving it requires force.
func (s *InterceptService) UpdateStatus(ctx context.Context, adminID uuid.UUID, role domain.Role, conversationID uuid.UUID, status conversation.AdminStatus, force bool) error {
	if role != domain.RoleAdmin {
		return vahub_errors.ErrAdminOnly
	}
	if !status.Valid() {
		return vahub_errors.Validation("INVALID_STATUS", "unknown admin status")
	}
	conv, err := s.interceptedByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.AdminStatus == conversation.AdminSpam && status != conversation.AdminSpam && !force {
		return vahub_errors.ErrSpamTerminal
	}
	if err := s.conversations.SetAdminStatus(ctx, conversationID, status); err != nil {
		return err
	}
	s.audit(ctx, conversationID, adminID, "update_status", map[string]interface{}{
		"from": conv.AdminStatus,
		"to":   status,
	})
	metrics.InterceptActionsTotal.WithLabelValues("update_status").Inc()

	if s.broadcaster != nil {
		s.broadcaster.ToAdmins(NewEvent(EventConversationUpdated, map[string]interface{}{
			"conversation_id": conversationID,
			"admin_status":    status,
		}))
	}
	return nil
}

// Batch applies mark_read, resolve, or spam across many queue items,
// continuing past individual failures.
func (s *InterceptService) Batch(ctx context.Context, adminID uuid.UUID, role domain.Role, action string, ids []uuid.UUID) (BatchResult, error) {
	if role != domain.RoleAdmin {
		return BatchResult{}, vahub_errors.ErrAdminOnly
	}
	if len(ids) == 0 {
		return BatchResult{}, vahub_errors.Validation("EMPTY_BATCH", "no conversation ids given")
	}

	result := BatchResult{Failed: make(map[uuid.UUID]string)}
	for _, id := range ids {
		var err error
		switch action {
		case "mark_read":
			err = s.MarkRead(ctx, adminID, role, id)
		case "resolve":
			err = s.UpdateStatus(ctx, adminID, role, id, conversation.AdminResolved, false)
		case "spam":
			err = s.UpdateStatus(ctx, adminID, role, id, conversation.AdminSpam, false)
		default:
			return BatchResult{}, vahub_errors.Validation("INVALID_ACTION", "unknown batch action")
		}
		if err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	if len(result.Failed) == 0 {
		result.Failed = nil
	}
	metrics.InterceptActionsTotal.WithLabelValues("batch_" + action).Inc()
	return result, nil
}

func (s *InterceptService) interceptedByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !conv.IsIntercepted {
		return conversation.Conversation{}, vahub_errors.Validation("NOT_INTERCEPTED", "conversation is not under review")
	}
	return conv, nil
}

func (s *InterceptService) renderTranscript(ctx context.Context, conversationID uuid.UUID) (string, error) {
	msgs, err := s.messages.GetConversationTranscript(ctx, conversationID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("--- Forwarded conversation ---\n")
	for _, m := range msgs {
		if m.Deleted() {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.SenderRole, m.Body)
	}
	return b.String(), nil
}

func (s *InterceptService) audit(ctx context.Context, conversationID, adminID uuid.UUID, action string, details map[string]interface{}) {
	payload := "{}"
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			payload = string(data)
		}
	}
	if err := s.conversations.AddAdminAction(ctx, &conversation.AdminAction{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Action:         action,
		PerformedBy:    adminID,
		PerformedAt:    time.Now(),
		Details:        payload,
	}); err != nil && s.log != nil {
		s.log.Warnf("audit write failed for %s/%s: %v", conversationID, action, err)
	}
}
