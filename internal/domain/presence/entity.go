package presence

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the availability state machine value.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Record represents the presence_records table, one row per user,
// created lazily on first connection or status query.
type Record struct {
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Status   Status    `gorm:"type:varchar(16);default:'offline';index"`
	LastSeen time.Time `gorm:"index"`

	IsTyping bool          `gorm:"default:false"`
	TypingIn uuid.NullUUID `gorm:"type:uuid"`

	CustomStatusEmoji   sql.NullString `gorm:"type:varchar(16)"`
	CustomStatusText    sql.NullString
	CustomStatusExpires sql.NullTime

	ActiveSocketID sql.NullString
	ConnectedAt    sql.NullTime
	DisconnectedAt sql.NullTime

	ShowOnlineStatus    bool `gorm:"default:true"`
	ShowLastSeen        bool `gorm:"default:true"`
	ShowTypingIndicator bool `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "presence_records"
}

// Online reports whether the user counts as reachable.
func (r *Record) Online() bool {
	return r.Status != StatusOffline
}
