package conversation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"vahub-messaging/internal/domain"
)

// Status is the participant-facing lifecycle of a conversation.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusBlocked  Status = "blocked"
)

// AdminStatus tracks an intercepted conversation through the review
// desk. Spam is terminal; leaving it requires an explicit status change.
type AdminStatus string

const (
	AdminPending       AdminStatus = "pending"
	AdminForwarded     AdminStatus = "forwarded"
	AdminReplied       AdminStatus = "replied"
	AdminAwaitingReply AdminStatus = "awaiting_reply"
	AdminResolved      AdminStatus = "resolved"
	AdminSpam          AdminStatus = "spam"
)

func (s AdminStatus) Valid() bool {
	switch s {
	case AdminPending, AdminForwarded, AdminReplied, AdminAwaitingReply, AdminResolved, AdminSpam:
		return true
	}
	return false
}

// Conversation represents the conversations table
type Conversation struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	VAID       uuid.UUID `gorm:"type:uuid;index:idx_conversations_pair,unique"`
	BusinessID uuid.UUID `gorm:"type:uuid;index:idx_conversations_pair,unique"`

	Status Status `gorm:"type:varchar(16);default:'active'"`

	// Role-scoped unread counters. Mutated only through atomic updates
	// in the repository, never read-modify-write in services.
	UnreadVA       int `gorm:"default:0"`
	UnreadBusiness int `gorm:"default:0"`
	UnreadAdmin    int `gorm:"default:0"`

	// Denormalized newest-message cache for list views.
	LastMessage   sql.NullString
	LastMessageAt sql.NullTime `gorm:"index"`
	MessagesCount int          `gorm:"default:0"`

	// Intercept workflow.
	IsIntercepted    bool `gorm:"index:idx_conversations_pair,unique"`
	AdminStatus      AdminStatus `gorm:"type:varchar(16);default:'pending'"`
	AdminNotes       sql.NullString
	OriginalSenderID uuid.NullUUID `gorm:"type:uuid"`
	InterceptedAt    sql.NullTime
	ForwardedAt      sql.NullTime
	RepliedAt        sql.NullTime
	// Secondary non-intercepted thread created by a forward.
	ForwardedConversationID uuid.NullUUID `gorm:"type:uuid"`

	// Block state, one timestamp per side.
	VABlockedAt       sql.NullTime
	BusinessBlockedAt sql.NullTime

	CreatedAt time.Time
	UpdatedAt time.Time

	Participants []Participant
	AdminActions []AdminAction
}

// Participant represents the participants table
type Participant struct {
	ConversationID uuid.UUID   `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID   `gorm:"type:uuid;primaryKey"`
	Role           domain.Role `gorm:"type:varchar(16)"`
	JoinedAt       time.Time
	MutedUntil     sql.NullTime
	PinnedAt       sql.NullTime
	Archived       bool `gorm:"default:false"`
}

// AdminAction is the audit trail of admin operations on an intercepted
// conversation.
type AdminAction struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;index"`
	Action         string    `gorm:"type:varchar(32)"`
	PerformedBy    uuid.UUID `gorm:"type:uuid"`
	PerformedAt    time.Time
	Details        string `gorm:"type:jsonb;default:'{}'"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}

func (AdminAction) TableName() string {
	return "admin_actions"
}

// IsBlocked reports whether either side has blocked the conversation.
func (c *Conversation) IsBlocked() bool {
	return c.VABlockedAt.Valid || c.BusinessBlockedAt.Valid
}

// Unread returns the counter scoped to the given role.
func (c *Conversation) Unread(role domain.Role) int {
	switch role {
	case domain.RoleVA:
		return c.UnreadVA
	case domain.RoleBusiness:
		return c.UnreadBusiness
	case domain.RoleAdmin:
		return c.UnreadAdmin
	}
	return 0
}

// RoleOf resolves a participant's role; admins are implicit
// participants of intercepted conversations.
func (c *Conversation) RoleOf(userID uuid.UUID) (domain.Role, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p.Role, true
		}
	}
	return "", false
}
