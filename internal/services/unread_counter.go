package services

import (
	"context"

	"github.com/google/uuid"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/repository"
)

// UnreadCounter is the single mutation path for role-scoped unread
// counters. Every code path that moves a counter goes through here;
// increments are atomic at the store, resets write the target value.
type UnreadCounter struct {
	conversations repository.ConversationRepository
}

func NewUnreadCounter(conversations repository.ConversationRepository) *UnreadCounter {
	return &UnreadCounter{conversations: conversations}
}

// Increment bumps the counters a new message affects, given the sender
// role and intercept state.
func (c *UnreadCounter) Increment(ctx context.Context, conversationID uuid.UUID, sender domain.Role, intercepted bool) error {
	roles := domain.CounterRoles(sender, intercepted)
	if len(roles) == 0 {
		return nil
	}
	return c.conversations.IncrementUnread(ctx, conversationID, roles)
}

// Reset zeroes a role's counter. Safe to call concurrently and
// repeatedly; the stored value is always 0 afterwards.
func (c *UnreadCounter) Reset(ctx context.Context, conversationID uuid.UUID, role domain.Role) error {
	return c.conversations.ResetUnread(ctx, conversationID, role)
}
