package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Redis key prefixes
const (
	typingKeyPrefix   = "typing:"         // Set of currently-typing user ids per conversation
	presenceOnlineSet = "presence:online" // Set of online user IDs
)

// TypingStore tracks short-lived typing indicators in Redis. The TTL
// is the receiver-side safety net: a dropped typing_stop still clears
// within the window.
type TypingStore struct {
	client    *goredis.Client
	publisher *Publisher
	ttl       time.Duration
}

func NewTypingStore(client *goredis.Client, publisher *Publisher, ttl time.Duration) *TypingStore {
	if ttl == 0 {
		ttl = 3 * time.Second
	}
	return &TypingStore{
		client:    client,
		publisher: publisher,
		ttl:       ttl,
	}
}

// SetTyping adds or removes a user from a conversation's typing set.
func (s *TypingStore) SetTyping(ctx context.Context, conversationID, userID uuid.UUID, isTyping bool) error {
	key := typingKeyPrefix + conversationID.String()

	if isTyping {
		pipe := s.client.Pipeline()
		pipe.SAdd(ctx, key, userID.String())
		pipe.Expire(ctx, key, s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	} else {
		if err := s.client.SRem(ctx, key, userID.String()).Err(); err != nil {
			return err
		}
	}

	return s.publishTypingEvent(ctx, conversationID, userID, isTyping)
}

// GetTypingUsers returns users currently typing in a conversation.
func (s *TypingStore) GetTypingUsers(ctx context.Context, conversationID uuid.UUID) ([]string, error) {
	key := typingKeyPrefix + conversationID.String()
	return s.client.SMembers(ctx, key).Result()
}

// TTL exposes the expiry window so socket clients can schedule their
// own sender-side stop timers.
func (s *TypingStore) TTL() time.Duration {
	return s.ttl
}

// SetOnline maintains the online-user set used for quick membership
// checks without touching Postgres.
func (s *TypingStore) SetOnline(ctx context.Context, userID uuid.UUID, online bool) error {
	if online {
		return s.client.SAdd(ctx, presenceOnlineSet, userID.String()).Err()
	}
	return s.client.SRem(ctx, presenceOnlineSet, userID.String()).Err()
}

// IsOnline checks set membership.
func (s *TypingStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.client.SIsMember(ctx, presenceOnlineSet, userID.String()).Result()
}

// GetOnlineCount returns the count of online users.
func (s *TypingStore) GetOnlineCount(ctx context.Context) (int64, error) {
	return s.client.SCard(ctx, presenceOnlineSet).Result()
}

func (s *TypingStore) publishTypingEvent(ctx context.Context, conversationID, userID uuid.UUID, isTyping bool) error {
	if s.publisher == nil {
		return nil
	}

	event := map[string]interface{}{
		"event_type":      "typing.status",
		"conversation_id": conversationID.String(),
		"user_id":         userID.String(),
		"is_typing":       isTyping,
		"occurred_at":     time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := fmt.Sprintf("channel:typing:%s", conversationID)
	return s.publisher.Publish(ctx, channel, data)
}
