package sessions

import (
	"time"
)

const (
	SenderUser  = "user"
	SenderAgent = "agent"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

type Session struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	SessionType string    `db:"session_type" json:"session_type"`
	Status      string    `db:"status" json:"status"`
	Title       *string   `db:"title" json:"title,omitempty"`
	IsDeleted   bool      `db:"is_deleted" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Message is one transcript entry. Messages are immutable once written,
// except for the feedback flag.
type Message struct {
	ID               int64     `db:"id" json:"id"`
	SessionID        int64     `db:"session_id" json:"session_id"`
	Sender           string    `db:"sender" json:"sender"`
	ContentText      string    `db:"content_text" json:"content_text"`
	ContentAudioPath string    `db:"content_audio_path" json:"content_audio_path,omitempty"`
	Feedback         int       `db:"feedback" json:"feedback"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
