package models

import "time"

type NotificationKind string

const (
	NotificationBookingCreated       NotificationKind = "booking_created"
	NotificationBookingStatusChanged NotificationKind = "booking_status_changed"
	NotificationBookingCancelled     NotificationKind = "booking_cancelled"
	NotificationJobAssigned          NotificationKind = "job_assigned"
	NotificationJobStatusChanged     NotificationKind = "job_status_changed"
	NotificationMaintenanceUpdated   NotificationKind = "maintenance_ticket_updated"
)

type Notification struct {
	ID          int64            `json:"id"`
	RecipientID int64            `json:"recipient_id"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        map[string]any   `json:"data,omitempty"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Conversation is the single thread between two users. The pair is stored
// ordered so that (a, b) and (b, a) resolve to the same row.
type Conversation struct {
	ID                 int64      `json:"id"`
	ParticipantLow     int64      `json:"participant_low"`
	ParticipantHigh    int64      `json:"participant_high"`
	PropertyID         *int64     `json:"property_id,omitempty"`
	LastMessagePreview string     `json:"last_message_preview,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	UnreadLow          int        `json:"unread_low"`
	UnreadHigh         int        `json:"unread_high"`
	CreatedAt          time.Time  `json:"created_at"`
}

// OrderedPair returns the two ids low first.
func OrderedPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func (c *Conversation) Has(userID int64) bool {
	return c.ParticipantLow == userID || c.ParticipantHigh == userID
}

type MessageKind string

const (
	MessageText           MessageKind = "text"
	MessageBookingSummary MessageKind = "booking_summary"
)

type Message struct {
	ID             int64          `json:"id"`
	ConversationID int64          `json:"conversation_id"`
	SenderID       int64          `json:"sender_id"`
	Kind           MessageKind    `json:"kind"`
	Body           string         `json:"body"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
