package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/domain/message"
	"vahub-messaging/internal/domain/notification"
)

type recordingEmailSender struct {
	mu    sync.Mutex
	sends []map[string]any
}

func (s *recordingEmailSender) Send(_ context.Context, _ string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, data)
	return nil
}

type notificationFixture struct {
	inbox *fakeNotificationRepo
	convs *fakeConversationRepo
	email *recordingEmailSender
	bcast *recordingBroadcaster
	svc   *NotificationService
}

func newNotificationFixture() *notificationFixture {
	inbox := newFakeNotificationRepo()
	convs := newFakeConversationRepo()
	email := &recordingEmailSender{}
	bcast := newRecordingBroadcaster()
	svc := NewNotificationService(inbox, convs, email, bcast, testLogger())
	return &notificationFixture{inbox: inbox, convs: convs, email: email, bcast: bcast, svc: svc}
}

func TestNewMessageEmailsOfflineRecipientsOnly(t *testing.T) {
	f := newNotificationFixture()
	conv := seedConversation(t, f.convs, false)
	f.bcast.setOnline(conv.BusinessID, true)

	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       conv.VAID,
		SenderRole:     domain.RoleVA,
		Body:           "weekly report attached",
	}
	f.svc.NewMessage(context.Background(), conv, msg, []uuid.UUID{conv.BusinessID})
	assert.Len(t, f.inbox.records, 1)
	assert.Empty(t, f.email.sends)

	f.bcast.setOnline(conv.BusinessID, false)
	f.svc.NewMessage(context.Background(), conv, msg, []uuid.UUID{conv.BusinessID})
	assert.Len(t, f.inbox.records, 2)
	require.Len(t, f.email.sends, 1)
	assert.Equal(t, "weekly report attached", f.email.sends[0]["preview"])
}

func TestNewMessageSkipsMutedRecipients(t *testing.T) {
	f := newNotificationFixture()
	conv := seedConversation(t, f.convs, false)
	until := time.Now().Add(time.Hour)
	require.NoError(t, f.convs.MuteConversation(context.Background(), conv.ID, conv.BusinessID, &until))

	f.svc.NewMessage(context.Background(), conv, message.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       conv.VAID,
		SenderRole:     domain.RoleVA,
		Body:           "checking in",
	}, []uuid.UUID{conv.BusinessID})

	assert.Empty(t, f.inbox.records)
	assert.Empty(t, f.email.sends)
}

func TestNewMessageTruncatesPreview(t *testing.T) {
	f := newNotificationFixture()
	conv := seedConversation(t, f.convs, false)

	f.svc.NewMessage(context.Background(), conv, message.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       conv.BusinessID,
		SenderRole:     domain.RoleBusiness,
		Body:           strings.Repeat("a", 500),
	}, []uuid.UUID{conv.VAID})

	require.Len(t, f.inbox.records, 1)
	assert.NotContains(t, f.inbox.records[0].Payload, strings.Repeat("a", 141))
	assert.Contains(t, f.inbox.records[0].Payload, strings.Repeat("a", 140))
	assert.Equal(t, notification.TypeNewMessage, f.inbox.records[0].Type)
}

func TestNewMessagePreviewKeepsRuneBoundary(t *testing.T) {
	f := newNotificationFixture()
	conv := seedConversation(t, f.convs, false)

	// byte 140 lands inside the two-byte "é"; a byte slice there
	// would leave an invalid sequence in the payload
	body := strings.Repeat("a", 139) + strings.Repeat("é", 10)
	f.svc.NewMessage(context.Background(), conv, message.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       conv.BusinessID,
		SenderRole:     domain.RoleBusiness,
		Body:           body,
	}, []uuid.UUID{conv.VAID})

	require.Len(t, f.inbox.records, 1)
	assert.True(t, utf8.ValidString(f.inbox.records[0].Payload))
	assert.Contains(t, f.inbox.records[0].Payload, strings.Repeat("a", 139))
	assert.NotContains(t, f.inbox.records[0].Payload, "�")

	assert.Equal(t, strings.Repeat("a", 100), truncatePreview(strings.Repeat("a", 100), 140))
	assert.Equal(t, "aé", truncatePreview("aéé", 4))
	assert.Equal(t, "a", truncatePreview("aéé", 2))
}

func TestAdminUnreadChangedPushesBadge(t *testing.T) {
	f := newNotificationFixture()
	ctx := context.Background()
	conv := seedConversation(t, f.convs, true)
	require.NoError(t, f.convs.IncrementUnread(ctx, conv.ID, []domain.Role{domain.RoleAdmin}))

	f.svc.AdminUnreadChanged(ctx)

	events := f.bcast.adminEvents(EventAdminUnreadUpdate)
	require.Len(t, events, 1)
	payload, ok := events[0].Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(1), payload["unread_conversations"])
}

func TestInboxMarkRead(t *testing.T) {
	f := newNotificationFixture()
	ctx := context.Background()
	recipient := uuid.New()
	n := notification.Notification{ID: uuid.New(), RecipientID: recipient, Type: notification.TypeNewMessage}
	require.NoError(t, f.inbox.Create(ctx, &n))

	require.NoError(t, f.svc.MarkRead(ctx, n.ID, recipient))
	records, _, err := f.svc.List(ctx, recipient, 1, 20)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].ReadAt.Valid)

	// a stranger cannot acknowledge someone else's inbox
	require.Error(t, f.svc.MarkRead(ctx, n.ID, uuid.New()))
}
