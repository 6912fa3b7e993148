package models

import "github.com/google/uuid"

// Profile is a user's public identity. It is owned by the signup flow and
// read-only here.
type Profile struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	FullName  string    `db:"full_name" json:"full_name"`
	AvatarURL string    `db:"avatar_url" json:"avatar_url"`
}
