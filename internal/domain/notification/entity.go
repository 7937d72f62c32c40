package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Type discriminates notification payloads.
type Type string

const (
	TypeNewMessage    Type = "new_message"
	TypeMessagesRead  Type = "messages_read"
	TypeStatusChanged Type = "conversation_status_changed"
)

// Notification represents the notifications table: the durable inbox
// record created on fan-out regardless of recipient connectivity.
type Notification struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	RecipientID uuid.UUID `gorm:"type:uuid;index"`
	Type        Type      `gorm:"type:varchar(32)"`
	Payload     string    `gorm:"type:jsonb;default:'{}'"`
	ReadAt      sql.NullTime
	CreatedAt   time.Time `gorm:"index"`
}

func (Notification) TableName() string {
	return "notifications"
}
