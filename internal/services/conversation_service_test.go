package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/platform"
	vahub_errors "vahub-messaging/pkg/errors"
)

type failingCompletion struct{}

func (failingCompletion) CompletionPercentage(context.Context, uuid.UUID) (int, error) {
	return 0, errors.New("profile service unreachable")
}

func newConversationFixture(completion platform.CompletionProvider) (*ConversationService, *fakeConversationRepo, *recordingBroadcaster) {
	repo := newFakeConversationRepo()
	bcast := newRecordingBroadcaster()
	svc := NewConversationService(repo, completion, bcast, testLogger())
	return svc, repo, bcast
}

func TestStartByVAIsDirect(t *testing.T) {
	svc, _, bcast := newConversationFixture(&platform.StaticCompletionProvider{Percentage: 0})
	vaID, businessID := uuid.New(), uuid.New()

	conv, err := svc.Start(context.Background(), vaID, domain.RoleVA, vaID, businessID)
	require.NoError(t, err)
	assert.False(t, conv.IsIntercepted)
	assert.Len(t, conv.Participants, 2)
	assert.Empty(t, bcast.adminEvents(EventConversationUpdated))
}

func TestStartByBusinessBelowThresholdIntercepts(t *testing.T) {
	svc, _, bcast := newConversationFixture(&platform.StaticCompletionProvider{Percentage: 79})
	vaID, businessID := uuid.New(), uuid.New()

	conv, err := svc.Start(context.Background(), businessID, domain.RoleBusiness, vaID, businessID)
	require.NoError(t, err)
	assert.True(t, conv.IsIntercepted)
	assert.True(t, conv.InterceptedAt.Valid)
	assert.Equal(t, businessID, conv.OriginalSenderID.UUID)
	assert.Equal(t, 1, conv.UnreadAdmin)
	assert.Len(t, bcast.adminEvents(EventConversationUpdated), 1)
}

func TestStartByBusinessAtThresholdIsDirect(t *testing.T) {
	svc, _, _ := newConversationFixture(&platform.StaticCompletionProvider{Percentage: 80})
	vaID, businessID := uuid.New(), uuid.New()

	conv, err := svc.Start(context.Background(), businessID, domain.RoleBusiness, vaID, businessID)
	require.NoError(t, err)
	assert.False(t, conv.IsIntercepted)
}

func TestStartCompletionLookupFailureFailsClosed(t *testing.T) {
	svc, _, _ := newConversationFixture(failingCompletion{})
	vaID, businessID := uuid.New(), uuid.New()

	conv, err := svc.Start(context.Background(), businessID, domain.RoleBusiness, vaID, businessID)
	require.NoError(t, err)
	assert.True(t, conv.IsIntercepted)
}

func TestStartReusesExistingConversation(t *testing.T) {
	svc, _, _ := newConversationFixture(&platform.StaticCompletionProvider{Percentage: 100})
	vaID, businessID := uuid.New(), uuid.New()
	ctx := context.Background()

	first, err := svc.Start(ctx, vaID, domain.RoleVA, vaID, businessID)
	require.NoError(t, err)
	second, err := svc.Start(ctx, businessID, domain.RoleBusiness, vaID, businessID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestStartRejectsImpersonation(t *testing.T) {
	svc, _, _ := newConversationFixture(&platform.StaticCompletionProvider{Percentage: 100})
	vaID, businessID := uuid.New(), uuid.New()

	_, err := svc.Start(context.Background(), uuid.New(), domain.RoleVA, vaID, businessID)
	require.ErrorIs(t, err, vahub_errors.ErrUnauthorized)
}

func TestListHidesInterceptedFromVA(t *testing.T) {
	svc, repo, _ := newConversationFixture(&platform.StaticCompletionProvider{Percentage: 100})
	ctx := context.Background()

	direct := seedConversation(t, repo, false)
	intercepted := seedConversation(t, repo, true)

	// both conversations involve their own VA; list for the
	// intercepted one's VA must come back empty
	views, total, err := svc.List(ctx, intercepted.VAID, domain.RoleVA, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, views)

	// the business still sees its intercepted thread
	views, _, err = svc.List(ctx, intercepted.BusinessID, domain.RoleBusiness, 1, 20)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, intercepted.ID, views[0].Conversation.ID)

	views, _, err = svc.List(ctx, direct.VAID, domain.RoleVA, 1, 20)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestViewCarriesRoleScopedUnread(t *testing.T) {
	svc, repo, _ := newConversationFixture(&platform.StaticCompletionProvider{Percentage: 100})
	ctx := context.Background()
	conv := seedConversation(t, repo, false)
	require.NoError(t, repo.IncrementUnread(ctx, conv.ID, []domain.Role{domain.RoleBusiness}))
	require.NoError(t, repo.IncrementUnread(ctx, conv.ID, []domain.Role{domain.RoleBusiness}))

	asBusiness, err := svc.Get(ctx, conv.ID, conv.BusinessID, domain.RoleBusiness)
	require.NoError(t, err)
	assert.Equal(t, 2, asBusiness.Unread)

	asVA, err := svc.Get(ctx, conv.ID, conv.VAID, domain.RoleVA)
	require.NoError(t, err)
	assert.Zero(t, asVA.Unread)
}

func TestParticipantSettings(t *testing.T) {
	svc, repo, _ := newConversationFixture(&platform.StaticCompletionProvider{Percentage: 100})
	ctx := context.Background()
	conv := seedConversation(t, repo, false)
	until := time.Now().Add(time.Hour)

	require.NoError(t, svc.Pin(ctx, conv.ID, conv.VAID, true))
	require.NoError(t, svc.Mute(ctx, conv.ID, conv.VAID, &until))
	require.NoError(t, svc.Archive(ctx, conv.ID, conv.VAID, true))

	view, err := svc.Get(ctx, conv.ID, conv.VAID, domain.RoleVA)
	require.NoError(t, err)
	assert.True(t, view.Pinned)
	assert.True(t, view.Archived)
	require.NotNil(t, view.MutedUntil)

	// settings are per participant
	other, err := svc.Get(ctx, conv.ID, conv.BusinessID, domain.RoleBusiness)
	require.NoError(t, err)
	assert.False(t, other.Pinned)
	assert.False(t, other.Archived)

	err = svc.Pin(ctx, conv.ID, uuid.New(), true)
	require.ErrorIs(t, err, vahub_errors.ErrNotParticipant)
}

func TestBlockByParticipant(t *testing.T) {
	svc, repo, bcast := newConversationFixture(&platform.StaticCompletionProvider{Percentage: 100})
	ctx := context.Background()
	conv := seedConversation(t, repo, false)

	require.NoError(t, svc.Block(ctx, conv.ID, conv.BusinessID, true))
	reloaded, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsBlocked())
	assert.True(t, reloaded.BusinessBlockedAt.Valid)
	assert.False(t, reloaded.VABlockedAt.Valid)
	assert.Len(t, bcast.eventsFor(conv.VAID, EventConversationUpdated), 1)

	require.NoError(t, svc.Block(ctx, conv.ID, conv.BusinessID, false))
	reloaded, err = repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsBlocked())
}

func TestAdminAccessToIntercepted(t *testing.T) {
	svc, repo, _ := newConversationFixture(&platform.StaticCompletionProvider{Percentage: 100})
	ctx := context.Background()
	conv := seedConversation(t, repo, true)
	adminID := uuid.New()

	_, err := svc.Get(ctx, conv.ID, adminID, domain.RoleAdmin)
	require.NoError(t, err)

	direct := seedConversation(t, repo, false)
	_, err = svc.Get(ctx, direct.ID, adminID, domain.RoleAdmin)
	require.ErrorIs(t, err, vahub_errors.ErrNotParticipant)
}

func TestVACannotViewInterceptedConversation(t *testing.T) {
	svc, repo, _ := newConversationFixture(&platform.StaticCompletionProvider{Percentage: 100})
	ctx := context.Background()
	conv := seedConversation(t, repo, true)

	// the denormalized last-message column carries withheld business
	// text, so a participant-only check would hand it to the VA
	require.NoError(t, repo.SetLastMessage(ctx, conv.ID, "held business message", time.Now()))

	_, err := svc.Get(ctx, conv.ID, conv.VAID, domain.RoleVA)
	require.ErrorIs(t, err, vahub_errors.ErrNotParticipant)

	// the same VA still reads its direct conversations
	direct := seedConversation(t, repo, false)
	_, err = svc.Get(ctx, direct.ID, direct.VAID, domain.RoleVA)
	require.NoError(t, err)
}
