package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/domain/conversation"
	"vahub-messaging/internal/platform"
	"vahub-messaging/internal/repository"
	vahub_errors "vahub-messaging/pkg/errors"
	"vahub-messaging/pkg/logger"
)

// interceptThreshold is the minimum profile-completion percentage a
// business needs before its messages reach VAs directly. Below it,
// conversations start intercepted and route through the admin desk.
const interceptThreshold = 80

// ConversationView is a conversation projected for a particular viewer:
// the unread counter is scoped to their role and per-user settings
// (pinned, muted, archived) are folded in.
type ConversationView struct {
	Conversation conversation.Conversation `json:"conversation"`
	Unread       int                       `json:"unread"`
	Pinned       bool                      `json:"pinned"`
	MutedUntil   *time.Time                `json:"muted_until,omitempty"`
	Archived     bool                      `json:"archived"`
}

type ConversationService struct {
	conversations repository.ConversationRepository
	completion    platform.CompletionProvider
	broadcaster   Broadcaster
	log           *logger.Logger
}

func NewConversationService(
	conversations repository.ConversationRepository,
	completion platform.CompletionProvider,
	broadcaster Broadcaster,
	log *logger.Logger,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		completion:    completion,
		broadcaster:   broadcaster,
		log:           log,
	}
}

func (s *ConversationService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Start opens (or returns) the conversation between a VA and a
// business. When the initiator is a business whose profile completion
// is below the threshold, the conversation is created intercepted and
// queued for admin review.
func (s *ConversationService) Start(ctx context.Context, initiatorID uuid.UUID, initiatorRole domain.Role, vaID, businessID uuid.UUID) (conversation.Conversation, error) {
	if vaID == uuid.Nil || businessID == uuid.Nil {
		return conversation.Conversation{}, vahub_errors.Validation("INVALID_PAIR", "va and business ids are required")
	}
	switch initiatorRole {
	case domain.RoleVA:
		if initiatorID != vaID {
			return conversation.Conversation{}, vahub_errors.ErrUnauthorized
		}
	case domain.RoleBusiness:
		if initiatorID != businessID {
			return conversation.Conversation{}, vahub_errors.ErrUnauthorized
		}
	case domain.RoleAdmin:
		// admins may open conversations on behalf of either side
	default:
		return conversation.Conversation{}, vahub_errors.ErrUnauthorized
	}

	intercepted := false
	if initiatorRole == domain.RoleBusiness {
		pct, err := s.completion.CompletionPercentage(ctx, businessID)
		if err != nil {
			// Fail closed: an unknown score routes through review.
			if s.log != nil {
				s.log.Warnf("completion lookup failed for %s, intercepting: %v", businessID, err)
			}
			intercepted = true
		} else {
			intercepted = pct < interceptThreshold
		}
	}

	if existing, err := s.conversations.GetByPair(ctx, vaID, businessID, intercepted); err == nil {
		return existing, nil
	} else if !vahub_errors.IsNotFound(err) {
		return conversation.Conversation{}, err
	}

	now := time.Now()
	conv := conversation.Conversation{
		ID:            uuid.New(),
		VAID:          vaID,
		BusinessID:    businessID,
		Status:        conversation.StatusActive,
		IsIntercepted: intercepted,
		AdminStatus:   conversation.AdminPending,
	}
	if intercepted {
		conv.InterceptedAt = sql.NullTime{Time: now, Valid: true}
		conv.OriginalSenderID = uuid.NullUUID{UUID: businessID, Valid: true}
		// the queue item needs admin attention from the moment it exists
		conv.UnreadAdmin = 1
	}
	if err := s.conversations.Create(ctx, &conv); err != nil {
		if vahub_errors.IsConflict(err) {
			// lost a create race; the winning row is what we want
			return s.conversations.GetByPair(ctx, vaID, businessID, intercepted)
		}
		return conversation.Conversation{}, err
	}

	for _, p := range []conversation.Participant{
		{ConversationID: conv.ID, UserID: vaID, Role: domain.RoleVA, JoinedAt: now},
		{ConversationID: conv.ID, UserID: businessID, Role: domain.RoleBusiness, JoinedAt: now},
	} {
		p := p
		if err := s.conversations.AddParticipant(ctx, &p); err != nil {
			return conversation.Conversation{}, err
		}
	}

	if intercepted && s.broadcaster != nil {
		s.broadcaster.ToAdmins(NewEvent(EventConversationUpdated, map[string]interface{}{
			"conversation_id": conv.ID,
			"is_intercepted":  true,
			"admin_status":    conv.AdminStatus,
		}))
	}
	return s.conversations.GetByID(ctx, conv.ID)
}

// Get returns a single conversation after an access check.
func (s *ConversationService) Get(ctx context.Context, conversationID, userID uuid.UUID, role domain.Role) (ConversationView, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return ConversationView{}, err
	}
	if err := s.authorize(&conv, userID, role); err != nil {
		return ConversationView{}, err
	}
	return s.view(ctx, conv, userID, role), nil
}

// List returns the viewer's conversations with role-scoped unread
// counters. Intercepted conversations are hidden from VAs entirely;
// businesses see theirs (they authored the messages) without any hint
// of the review state.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID, role domain.Role, page, limit int) ([]ConversationView, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	includeIntercepted := role != domain.RoleVA
	convs, total, err := s.conversations.GetUserConversations(ctx, userID, includeIntercepted, page, limit)
	if err != nil {
		return nil, 0, err
	}

	views := make([]ConversationView, 0, len(convs))
	for _, conv := range convs {
		views = append(views, s.view(ctx, conv, userID, role))
	}
	return views, total, nil
}

// Archive hides a conversation from the viewer's list without touching
// the other side's view.
func (s *ConversationService) Archive(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return vahub_errors.ErrNotParticipant
	}
	return s.conversations.ArchiveForUser(ctx, conversationID, userID, archived)
}

// Pin toggles the viewer's pin on a conversation.
func (s *ConversationService) Pin(ctx context.Context, conversationID, userID uuid.UUID, pinned bool) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return vahub_errors.ErrNotParticipant
	}
	return s.conversations.PinConversation(ctx, conversationID, userID, pinned)
}

// Mute silences notifications for the viewer until the given time; a
// nil until unmutes.
func (s *ConversationService) Mute(ctx context.Context, conversationID, userID uuid.UUID, until *time.Time) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return vahub_errors.ErrNotParticipant
	}
	return s.conversations.MuteConversation(ctx, conversationID, userID, until)
}

// Block stops message flow in the conversation. Either participant can
// block; unblocking clears only the caller's side.
func (s *ConversationService) Block(ctx context.Context, conversationID, userID uuid.UUID, blocked bool) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	role, ok := conv.RoleOf(userID)
	if !ok {
		return vahub_errors.ErrNotParticipant
	}
	if role == domain.RoleAdmin {
		return vahub_errors.Validation("ADMIN_BLOCK", "admins moderate via intercept status, not blocks")
	}
	if err := s.conversations.SetBlocked(ctx, conversationID, role, blocked); err != nil {
		return err
	}

	if s.broadcaster != nil {
		targets := make([]uuid.UUID, 0, len(conv.Participants))
		for _, p := range conv.Participants {
			targets = append(targets, p.UserID)
		}
		s.broadcaster.ToUsers(targets, NewEvent(EventConversationUpdated, map[string]interface{}{
			"conversation_id": conversationID,
			"blocked":         blocked,
			"blocked_by_role": role,
		}))
	}
	return nil
}

// authorize enforces who may read a conversation: its participants
// minus the VA while intercepted, plus any admin when the conversation
// is intercepted. The VA is still a stored participant of an
// intercepted thread, so participation alone is not enough.
func (s *ConversationService) authorize(conv *conversation.Conversation, userID uuid.UUID, role domain.Role) error {
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

func (s *ConversationService) view(ctx context.Context, conv conversation.Conversation, userID uuid.UUID, role domain.Role) ConversationView {
	v := ConversationView{
		Conversation: conv,
		Unread:       conv.Unread(role),
	}
	p, err := s.conversations.GetParticipant(ctx, conv.ID, userID)
	if err == nil {
		v.Pinned = p.PinnedAt.Valid
		v.Archived = p.Archived
		if p.MutedUntil.Valid {
			t := p.MutedUntil.Time
			v.MutedUntil = &t
		}
	}
	return v
}
