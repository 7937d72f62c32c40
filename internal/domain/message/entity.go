package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"vahub-messaging/internal/domain"
)

// Status tracks the delivery lifecycle: sent when persisted, delivered
// when a recipient socket was present, read on acknowledgment.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Message represents the messages table
type Message struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID   `gorm:"type:uuid;index:idx_messages_conversation_created"`
	SenderID       uuid.UUID   `gorm:"type:uuid;index"`
	SenderRole     domain.Role `gorm:"type:varchar(16)"`

	Body     string `gorm:"type:text"`
	BodyHTML string `gorm:"type:text"`

	ReplyToID uuid.NullUUID `gorm:"type:uuid"`

	// Client-supplied idempotency token; a resend with the same token
	// returns the original row instead of appending a duplicate.
	TempID sql.NullString `gorm:"uniqueIndex"`

	Status      Status `gorm:"type:varchar(16);default:'sent'"`
	DeliveredAt sql.NullTime
	ReadAt      sql.NullTime

	EditedAt           sql.NullTime
	DeletedAt          sql.NullTime
	DeletedByID        uuid.NullUUID `gorm:"type:uuid"`
	DeletedForEveryone bool          `gorm:"default:false"`

	CreatedAt time.Time `gorm:"index:idx_messages_conversation_created"`

	Attachments []Attachment
	Reactions   []Reaction
	Edits       []Edit
}

// Attachment metadata; the bytes themselves live in external storage
// and are referenced by URL only.
type Attachment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;index"`
	URL       string
	Name      string
	Size      int64
	MimeType  string `gorm:"type:varchar(128)"`
}

// Reaction represents message_reactions; one emoji per user per
// message, replaced in place on change.
type Reaction struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Emoji     string    `gorm:"type:varchar(16)"`
	CreatedAt time.Time
}

// Edit keeps the prior body when a message is edited.
type Edit struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;index"`
	Body      string    `gorm:"type:text"`
	EditedAt  time.Time
}

func (Message) TableName() string {
	return "messages"
}

func (Attachment) TableName() string {
	return "attachments"
}

func (Reaction) TableName() string {
	return "message_reactions"
}

func (Edit) TableName() string {
	return "message_edits"
}

// Deleted reports whether the message is a tombstone. The row is never
// removed; moderation needs the audit trail.
func (m *Message) Deleted() bool {
	return m.DeletedAt.Valid
}
