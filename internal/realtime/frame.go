package realtime

import "realtyhub/internal/models"

type FrameType string

// Server to client.
const (
	FrameNotification FrameType = "notification"
	FrameUnreadCount  FrameType = "unread-count"
	FrameAck          FrameType = "ack"
	FrameError        FrameType = "error"
)

// Client to server.
const (
	FrameAuth       FrameType = "auth"
	FrameMarkAsRead FrameType = "mark-as-read"
)

type Frame struct {
	Type FrameType `json:"type"`
	Data any       `json:"data,omitempty"`
}

type UnreadCountData struct {
	Count int `json:"count"`
}

type AckData struct {
	NotificationID int64 `json:"notification_id"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClientFrame is everything a client may send.
type ClientFrame struct {
	Type           FrameType `json:"type"`
	Token          string    `json:"token,omitempty"`
	NotificationID int64     `json:"notification_id,omitempty"`
}

func NotificationFrame(n *models.Notification) Frame {
	return Frame{Type: FrameNotification, Data: n}
}

func UnreadCountFrame(count int) Frame {
	return Frame{Type: FrameUnreadCount, Data: UnreadCountData{Count: count}}
}

func ErrorFrame(code, message string) Frame {
	return Frame{Type: FrameError, Data: ErrorData{Code: code, Message: message}}
}
