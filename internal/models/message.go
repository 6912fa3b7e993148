package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a chat message with its sender attached. Messages are never
// edited or deleted.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Sender    Profile   `json:"sender"`
}

// MessageRow is a messages row joined with the sender profile.
type MessageRow struct {
	ID        uuid.UUID `db:"id"`
	ChatID    uuid.UUID `db:"chat_id"`
	SenderID  uuid.UUID `db:"sender_id"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
	Username  string    `db:"username"`
	FullName  string    `db:"full_name"`
	AvatarURL string    `db:"avatar_url"`
}

func (r MessageRow) Message() Message {
	return Message{
		ID:        r.ID,
		ChatID:    r.ChatID,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
		Sender: Profile{
			ID:        r.SenderID,
			Username:  r.Username,
			FullName:  r.FullName,
			AvatarURL: r.AvatarURL,
		},
	}
}

// ChatEvent is pushed to websocket clients.
type ChatEvent struct {
	Type    string   `json:"type"`
	ChatID  string   `json:"chat_id,omitempty"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// MessageRecord holds the native columns of an inserted messages row, as
// carried by change notifications.
type MessageRecord struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ChatID    uuid.UUID `db:"chat_id" json:"chat_id"`
	SenderID  uuid.UUID `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
