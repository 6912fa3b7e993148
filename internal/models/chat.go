package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat is a direct or group conversation as the views consume it: its
// participants and latest message already joined in.
type Chat struct {
	ID           uuid.UUID    `json:"id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	IsGroup      bool         `json:"is_group"`
	Name         *string      `json:"name,omitempty"`
	CreatedBy    *uuid.UUID   `json:"created_by,omitempty"`
	Participants []Profile    `json:"participants"`
	AdminIDs     []uuid.UUID  `json:"admin_ids"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	// UnreadCount is not tracked; it is always zero.
	UnreadCount int `json:"unread_count"`
}

// LastMessage summarises the most recent message of a chat.
type LastMessage struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Sender    Profile   `json:"sender"`
}

// ChatRow is a row of the chats table.
type ChatRow struct {
	ID        uuid.UUID  `db:"id"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	IsGroup   bool       `db:"is_group"`
	Name      *string    `db:"name"`
	CreatedBy *uuid.UUID `db:"created_by"`
}

// NewChat carries the columns supplied when a chat is created.
type NewChat struct {
	IsGroup   bool
	Name      *string
	CreatedBy uuid.UUID
}

// NewParticipant carries the columns supplied when a participant is added.
type NewParticipant struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// ParticipantRow is a chat_participants row joined with its profile.
type ParticipantRow struct {
	ChatID    uuid.UUID `db:"chat_id"`
	UserID    uuid.UUID `db:"user_id"`
	IsAdmin   bool      `db:"is_admin"`
	CreatedAt time.Time `db:"created_at"`
	Username  string    `db:"username"`
	FullName  string    `db:"full_name"`
	AvatarURL string    `db:"avatar_url"`
}

func (r ParticipantRow) Profile() Profile {
	return Profile{ID: r.UserID, Username: r.Username, FullName: r.FullName, AvatarURL: r.AvatarURL}
}
