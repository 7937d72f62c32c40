package services

import (
	"time"

	"github.com/google/uuid"
)

// Event is the JSON envelope pushed over websockets.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}

func NewEvent(eventType string, payload interface{}) Event {
	return Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Socket event types
const (
	EventNewMessage           = "new_message"
	EventMessageSent          = "message_sent"
	EventMessageDelivered     = "message_delivered"
	EventMessagesRead         = "messages_read"
	EventMessageEdited        = "message_edited"
	EventMessageDeleted       = "message_deleted"
	EventTypingStatus         = "typing_status"
	EventUserStatusChanged    = "user_status_changed"
	EventContactStatusChanged = "contact_status_changed"
	EventConversationUpdated  = "conversation_updated"
	EventAdminUnreadUpdate    = "admin_unread_update"
	EventReactionAdded        = "reaction_added"
	EventReactionRemoved      = "reaction_removed"
	EventJoinedConversations  = "joined_conversations"
	EventError                = "error"
)

// Broadcaster is the socket-delivery surface services depend on. The
// websocket hub implements it; tests substitute fakes. Delivery is
// best-effort: a full client buffer drops the event.
type Broadcaster interface {
	ToUser(userID uuid.UUID, event Event)
	ToUsers(userIDs []uuid.UUID, event Event)
	ToAdmins(event Event)
	IsOnline(userID uuid.UUID) bool
}

// NoopBroadcaster satisfies Broadcaster before the hub starts and in
// tests that don't assert on delivery.
type NoopBroadcaster struct{}

func (NoopBroadcaster) ToUser(uuid.UUID, Event)    {}
func (NoopBroadcaster) ToUsers([]uuid.UUID, Event) {}
func (NoopBroadcaster) ToAdmins(Event)             {}
func (NoopBroadcaster) IsOnline(uuid.UUID) bool    { return false }
