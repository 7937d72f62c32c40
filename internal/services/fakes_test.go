package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/domain/conversation"
	"vahub-messaging/internal/domain/message"
	"vahub-messaging/internal/domain/notification"
	"vahub-messaging/internal/domain/presence"
	"vahub-messaging/internal/repository"
	vahub_errors "vahub-messaging/pkg/errors"
	"vahub-messaging/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

// seedConversation creates a conversation with its VA and business
// participants in the fake repo and returns it with fresh ids.
func seedConversation(t interface{ Fatalf(string, ...interface{}) }, repo *fakeConversationRepo, intercepted bool) conversation.Conversation {
	conv := conversation.Conversation{
		ID:            uuid.New(),
		VAID:          uuid.New(),
		BusinessID:    uuid.New(),
		Status:        conversation.StatusActive,
		IsIntercepted: intercepted,
		AdminStatus:   conversation.AdminPending,
	}
	ctx := context.Background()
	if err := repo.Create(ctx, &conv); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	for _, p := range []conversation.Participant{
		{ConversationID: conv.ID, UserID: conv.VAID, Role: domain.RoleVA, JoinedAt: time.Now()},
		{ConversationID: conv.ID, UserID: conv.BusinessID, Role: domain.RoleBusiness, JoinedAt: time.Now()},
	} {
		p := p
		if err := repo.AddParticipant(ctx, &p); err != nil {
			t.Fatalf("seed participant: %v", err)
		}
	}
	out, err := repo.GetByID(ctx, conv.ID)
	if err != nil {
		t.Fatalf("reload conversation: %v", err)
	}
	return out
}

// In-memory fakes for the repository interfaces. They implement the
// same atomic-counter and idempotency contracts as the postgres
// implementations so service behavior can be asserted without a
// database.

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*conversation.Conversation
	participants  map[uuid.UUID][]*conversation.Participant
	actions       []conversation.AdminAction
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[uuid.UUID]*conversation.Conversation),
		participants:  make(map[uuid.UUID][]*conversation.Participant),
	}
}

func (f *fakeConversationRepo) Create(ctx context.Context, c *conversation.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.conversations {
		if existing.VAID == c.VAID && existing.BusinessID == c.BusinessID && existing.IsIntercepted == c.IsIntercepted {
			return vahub_errors.ErrAlreadyExists
		}
	}
	cp := *c
	f.conversations[c.ID] = &cp
	return nil
}

func (f *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return conversation.Conversation{}, vahub_errors.ErrNotFound
	}
	out := *c
	out.Participants = f.participantsLocked(id)
	return out, nil
}

func (f *fakeConversationRepo) participantsLocked(id uuid.UUID) []conversation.Participant {
	var out []conversation.Participant
	for _, p := range f.participants[id] {
		out = append(out, *p)
	}
	return out
}

func (f *fakeConversationRepo) GetByPair(ctx context.Context, vaID, businessID uuid.UUID, intercepted bool) (conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.conversations {
		if c.VAID == vaID && c.BusinessID == businessID && c.IsIntercepted == intercepted {
			out := *c
			out.Participants = f.participantsLocked(id)
			return out, nil
		}
	}
	return conversation.Conversation{}, vahub_errors.ErrNotFound
}

func (f *fakeConversationRepo) GetUserConversations(ctx context.Context, userID uuid.UUID, includeIntercepted bool, page, limit int) ([]conversation.Conversation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []conversation.Conversation
	for id, c := range f.conversations {
		member := false
		for _, p := range f.participants[id] {
			if p.UserID == userID {
				member = true
			}
		}
		if !member {
			continue
		}
		if c.IsIntercepted && !includeIntercepted {
			continue
		}
		cc := *c
		cc.Participants = f.participantsLocked(id)
		out = append(out, cc)
	}
	return out, int64(len(out)), nil
}

func (f *fakeConversationRepo) GetIntercepted(ctx context.Context, status conversation.AdminStatus, page, limit int) ([]conversation.Conversation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []conversation.Conversation
	for id, c := range f.conversations {
		if !c.IsIntercepted {
			continue
		}
		if status != "" && c.AdminStatus != status {
			continue
		}
		cc := *c
		cc.Participants = f.participantsLocked(id)
		out = append(out, cc)
	}
	return out, int64(len(out)), nil
}

func (f *fakeConversationRepo) InterceptStatusCounts(ctx context.Context) (map[conversation.AdminStatus]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[conversation.AdminStatus]int64)
	for _, c := range f.conversations {
		if c.IsIntercepted {
			counts[c.AdminStatus]++
		}
	}
	return counts, nil
}

func (f *fakeConversationRepo) CountInterceptedWithAdminUnread(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.conversations {
		if c.IsIntercepted && c.UnreadAdmin > 0 {
			n++
		}
	}
	return n, nil
}

func (f *fakeConversationRepo) IncrementUnread(ctx context.Context, id uuid.UUID, roles []domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return vahub_errors.ErrNotFound
	}
	for _, role := range roles {
		switch role {
		case domain.RoleVA:
			c.UnreadVA++
		case domain.RoleBusiness:
			c.UnreadBusiness++
		case domain.RoleAdmin:
			c.UnreadAdmin++
		default:
			return vahub_errors.ErrInvalidInput
		}
	}
	return nil
}

func (f *fakeConversationRepo) ResetUnread(ctx context.Context, id uuid.UUID, role domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return vahub_errors.ErrNotFound
	}
	switch role {
	case domain.RoleVA:
		c.UnreadVA = 0
	case domain.RoleBusiness:
		c.UnreadBusiness = 0
	case domain.RoleAdmin:
		c.UnreadAdmin = 0
	default:
		return vahub_errors.ErrInvalidInput
	}
	return nil
}

func (f *fakeConversationRepo) SetLastMessage(ctx context.Context, id uuid.UUID, body string, at time.Time) error {
	return f.mutate(id, func(c *conversation.Conversation) {
		c.LastMessage.String = body
		c.LastMessage.Valid = true
		c.LastMessageAt.Time = at
		c.LastMessageAt.Valid = true
		c.MessagesCount++
	})
}

func (f *fakeConversationRepo) SetAdminStatus(ctx context.Context, id uuid.UUID, status conversation.AdminStatus) error {
	return f.mutate(id, func(c *conversation.Conversation) { c.AdminStatus = status })
}

func (f *fakeConversationRepo) SetAdminNotes(ctx context.Context, id uuid.UUID, notes string) error {
	return f.mutate(id, func(c *conversation.Conversation) {
		c.AdminNotes.String = notes
		c.AdminNotes.Valid = true
	})
}

func (f *fakeConversationRepo) SetStatus(ctx context.Context, id uuid.UUID, status conversation.Status) error {
	return f.mutate(id, func(c *conversation.Conversation) { c.Status = status })
}

func (f *fakeConversationRepo) SetForwarded(ctx context.Context, id, forwardedConversationID uuid.UUID) error {
	return f.mutate(id, func(c *conversation.Conversation) {
		c.AdminStatus = conversation.AdminForwarded
		c.ForwardedAt.Time = time.Now()
		c.ForwardedAt.Valid = true
		c.ForwardedConversationID = uuid.NullUUID{UUID: forwardedConversationID, Valid: true}
	})
}

func (f *fakeConversationRepo) SetReplied(ctx context.Context, id uuid.UUID) error {
	return f.mutate(id, func(c *conversation.Conversation) {
		c.AdminStatus = conversation.AdminReplied
		c.RepliedAt.Time = time.Now()
		c.RepliedAt.Valid = true
	})
}

func (f *fakeConversationRepo) SetBlocked(ctx context.Context, id uuid.UUID, by domain.Role, blocked bool) error {
	return f.mutate(id, func(c *conversation.Conversation) {
		switch by {
		case domain.RoleVA:
			c.VABlockedAt.Valid = blocked
			c.VABlockedAt.Time = time.Now()
		case domain.RoleBusiness:
			c.BusinessBlockedAt.Valid = blocked
			c.BusinessBlockedAt.Time = time.Now()
		}
	})
}

func (f *fakeConversationRepo) mutate(id uuid.UUID, fn func(*conversation.Conversation)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return vahub_errors.ErrNotFound
	}
	fn(c)
	return nil
}

func (f *fakeConversationRepo) AddParticipant(ctx context.Context, p *conversation.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.participants[p.ConversationID] = append(f.participants[p.ConversationID], &cp)
	return nil
}

func (f *fakeConversationRepo) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants[conversationID] {
		if p.UserID == userID {
			return *p, nil
		}
	}
	return conversation.Participant{}, vahub_errors.ErrNotFound
}

func (f *fakeConversationRepo) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	_, err := f.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if vahub_errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (f *fakeConversationRepo) PinConversation(ctx context.Context, conversationID, userID uuid.UUID, pinned bool) error {
	return f.mutateParticipant(conversationID, userID, func(p *conversation.Participant) {
		p.PinnedAt.Valid = pinned
		p.PinnedAt.Time = time.Now()
	})
}

func (f *fakeConversationRepo) MuteConversation(ctx context.Context, conversationID, userID uuid.UUID, until *time.Time) error {
	return f.mutateParticipant(conversationID, userID, func(p *conversation.Participant) {
		if until == nil {
			p.MutedUntil.Valid = false
			return
		}
		p.MutedUntil.Time = *until
		p.MutedUntil.Valid = true
	})
}

func (f *fakeConversationRepo) ArchiveForUser(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error {
	return f.mutateParticipant(conversationID, userID, func(p *conversation.Participant) {
		p.Archived = archived
	})
}

func (f *fakeConversationRepo) mutateParticipant(conversationID, userID uuid.UUID, fn func(*conversation.Participant)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants[conversationID] {
		if p.UserID == userID {
			fn(p)
			return nil
		}
	}
	return vahub_errors.ErrNotFound
}

func (f *fakeConversationRepo) GetContactIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	for convID, ps := range f.participants {
		member := false
		for _, p := range ps {
			if p.UserID == userID {
				member = true
			}
		}
		if !member {
			continue
		}
		for _, p := range f.participants[convID] {
			if p.UserID != userID {
				seen[p.UserID] = struct{}{}
			}
		}
	}
	out := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeConversationRepo) AddAdminAction(ctx context.Context, a *conversation.AdminAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, *a)
	return nil
}

var _ repository.ConversationRepository = (*fakeConversationRepo)(nil)

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*message.Message
	order    []uuid.UUID
	edits    []message.Edit
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[uuid.UUID]*message.Message)}
}

func (f *fakeMessageRepo) Create(ctx context.Context, m *message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.TempID.Valid {
		for _, existing := range f.messages {
			if existing.TempID.Valid && existing.TempID.String == m.TempID.String {
				return vahub_errors.ErrAlreadyExists
			}
		}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	cp := *m
	f.messages[m.ID] = &cp
	f.order = append(f.order, m.ID)
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return message.Message{}, vahub_errors.ErrNotFound
	}
	return *m, nil
}

func (f *fakeMessageRepo) GetByTempID(ctx context.Context, tempID string) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.TempID.Valid && m.TempID.String == tempID {
			return *m, nil
		}
	}
	return message.Message{}, vahub_errors.ErrNotFound
}

func (f *fakeMessageRepo) GetConversationMessages(ctx context.Context, conversationID uuid.UUID, cursor *repository.Cursor, limit int) ([]message.Message, *repository.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Message
	for i := len(f.order) - 1; i >= 0 && len(out) < limit; i-- {
		m := f.messages[f.order[i]]
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil, nil
}

func (f *fakeMessageRepo) GetConversationTranscript(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Message
	for _, id := range f.order {
		m := f.messages[id]
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerRole domain.Role, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var affected int64
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.SenderRole != readerRole && !m.ReadAt.Valid {
			m.ReadAt.Time = at
			m.ReadAt.Valid = true
			m.Status = message.StatusRead
			affected++
		}
	}
	return affected, nil
}

func (f *fakeMessageRepo) MarkDelivered(ctx context.Context, messageIDs []uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range messageIDs {
		if m, ok := f.messages[id]; ok && !m.ReadAt.Valid {
			m.DeliveredAt.Time = at
			m.DeliveredAt.Valid = true
			m.Status = message.StatusDelivered
		}
	}
	return nil
}

func (f *fakeMessageRepo) CountUnreadForRole(ctx context.Context, conversationID uuid.UUID, role domain.Role) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.SenderRole != role && !m.ReadAt.Valid {
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageRepo) UpdateBody(ctx context.Context, id uuid.UUID, body, bodyHTML string, editedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return vahub_errors.ErrNotFound
	}
	m.Body = body
	m.BodyHTML = bodyHTML
	m.EditedAt.Time = editedAt
	m.EditedAt.Valid = true
	return nil
}

func (f *fakeMessageRepo) AddEdit(ctx context.Context, e *message.Edit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, *e)
	return nil
}

func (f *fakeMessageRepo) SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, forEveryone bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return vahub_errors.ErrNotFound
	}
	m.DeletedAt.Time = time.Now()
	m.DeletedAt.Valid = true
	m.DeletedByID = uuid.NullUUID{UUID: deletedBy, Valid: true}
	m.DeletedForEveryone = forEveryone
	return nil
}

func (f *fakeMessageRepo) UpsertReaction(ctx context.Context, r *message.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[r.MessageID]
	if !ok {
		return vahub_errors.ErrNotFound
	}
	for i := range m.Reactions {
		if m.Reactions[i].UserID == r.UserID {
			m.Reactions[i].Emoji = r.Emoji
			return nil
		}
	}
	m.Reactions = append(m.Reactions, *r)
	return nil
}

func (f *fakeMessageRepo) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok {
		return vahub_errors.ErrNotFound
	}
	for i := range m.Reactions {
		if m.Reactions[i].UserID == userID {
			m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeMessageRepo) AddAttachments(ctx context.Context, attachments []message.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range attachments {
		if m, ok := f.messages[a.MessageID]; ok {
			m.Attachments = append(m.Attachments, a)
		}
	}
	return nil
}

var _ repository.MessageRepository = (*fakeMessageRepo)(nil)

type fakePresenceRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*presence.Record
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{records: make(map[uuid.UUID]*presence.Record)}
}

func (f *fakePresenceRepo) Get(ctx context.Context, userID uuid.UUID) (presence.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[userID]
	if !ok {
		return presence.Record{}, vahub_errors.ErrNotFound
	}
	return *r, nil
}

func (f *fakePresenceRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (presence.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[userID]
	if !ok {
		r = &presence.Record{
			UserID:   userID,
			Status:   presence.StatusOffline,
			LastSeen: time.Now(),
		}
		f.records[userID] = r
	}
	return *r, nil
}

func (f *fakePresenceRepo) Update(ctx context.Context, rec presence.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := rec
	f.records[rec.UserID] = &cp
	return nil
}

func (f *fakePresenceRepo) GetMany(ctx context.Context, userIDs []uuid.UUID) ([]presence.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []presence.Record
	for _, id := range userIDs {
		if r, ok := f.records[id]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakePresenceRepo) SweepStale(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for id, r := range f.records {
		if (r.Status == presence.StatusOnline || r.Status == presence.StatusAway) && r.LastSeen.Before(olderThan) {
			r.Status = presence.StatusOffline
			r.IsTyping = false
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakePresenceRepo) MarkAway(ctx context.Context, idleSince time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for id, r := range f.records {
		if r.Status == presence.StatusOnline && r.LastSeen.Before(idleSince) {
			r.Status = presence.StatusAway
			out = append(out, id)
		}
	}
	return out, nil
}

var _ repository.PresenceRepository = (*fakePresenceRepo)(nil)

type fakeNotificationRepo struct {
	mu      sync.Mutex
	records []notification.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *n)
	return nil
}

func (f *fakeNotificationRepo) GetForRecipient(ctx context.Context, recipientID uuid.UUID, page, limit int) ([]notification.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notification.Notification
	for _, n := range f.records {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id && f.records[i].RecipientID == recipientID {
			f.records[i].ReadAt.Time = time.Now()
			f.records[i].ReadAt.Valid = true
			return nil
		}
	}
	return vahub_errors.ErrNotFound
}

var _ repository.NotificationRepository = (*fakeNotificationRepo)(nil)

// recordingBroadcaster captures every delivered event for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []deliveredEvent
	online map[uuid.UUID]bool
}

type deliveredEvent struct {
	UserID  uuid.UUID
	Admins  bool
	Event   Event
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{online: make(map[uuid.UUID]bool)}
}

func (b *recordingBroadcaster) ToUser(userID uuid.UUID, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, deliveredEvent{UserID: userID, Event: event})
}

func (b *recordingBroadcaster) ToUsers(userIDs []uuid.UUID, event Event) {
	for _, id := range userIDs {
		b.ToUser(id, event)
	}
}

func (b *recordingBroadcaster) ToAdmins(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, deliveredEvent{Admins: true, Event: event})
}

func (b *recordingBroadcaster) IsOnline(userID uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online[userID]
}

func (b *recordingBroadcaster) setOnline(userID uuid.UUID, online bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.online[userID] = online
}

func (b *recordingBroadcaster) eventsFor(userID uuid.UUID, eventType string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.events {
		if !e.Admins && e.UserID == userID && e.Event.Type == eventType {
			out = append(out, e.Event)
		}
	}
	return out
}

func (b *recordingBroadcaster) adminEvents(eventType string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.events {
		if e.Admins && e.Event.Type == eventType {
			out = append(out, e.Event)
		}
	}
	return out
}

var _ Broadcaster = (*recordingBroadcaster)(nil)
