package models

import "time"

// User is a collaborator record: only the fields the engine reads.
type User struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Property struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// IsOwner reports whether userID owns the property. A nil user owns nothing.
func (p *Property) IsOwner(userID *int64) bool {
	return userID != nil && *userID == p.OwnerID
}
