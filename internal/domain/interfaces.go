package domain

import (
	"context"
	"time"

	"realtyhub/internal/events"
	"realtyhub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BookingStore persists bookings. CreateBooking claims the calendar hold of
// a stay in the same transaction as the insert and fails with
// ErrDateConflict when another hold overlaps.
type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus, note string) error
	ListBookingsByProperty(ctx context.Context, propertyID int64) ([]*models.Booking, error)
	ListBookingsByRequester(ctx context.Context, requesterID int64) ([]*models.Booking, error)
}

// AvailabilityIndex returns holds of a property intersecting [from, to].
type AvailabilityIndex interface {
	Holds(ctx context.Context, propertyID int64, from, to time.Time) ([]models.Hold, error)
}

type BlockStore interface {
	CreateBlock(ctx context.Context, block *models.AvailabilityBlock) error
	DeleteBlock(ctx context.Context, propertyID, blockID int64) error
	ListBlocks(ctx context.Context, propertyID int64) ([]*models.AvailabilityBlock, error)
}

type ConflictChecker interface {
	HasConflict(ctx context.Context, propertyID int64, start, end time.Time) (bool, error)
}

type PropertyDirectory interface {
	GetProperty(ctx context.Context, id int64) (*models.Property, error)
}

type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type ConversationStore interface {
	EnsureConversation(ctx context.Context, a, b int64, propertyID *int64) (*models.Conversation, bool, error)
	FindConversation(ctx context.Context, a, b int64) (*models.Conversation, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
}

type UnreadCounter interface {
	CountUnread(ctx context.Context, recipientID int64) (int, error)
}

type NotificationStore interface {
	UnreadCounter
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipientID int64, unreadOnly bool, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, recipientID, id int64) error
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
}

type FailureJournal interface {
	RecordSideEffectFailure(ctx context.Context, failure *models.SideEffectFailure) error
	DueSideEffectFailures(ctx context.Context, limit int) ([]models.SideEffectFailure, error)
	UpdateSideEffectFailure(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
	Dispatch(ctx context.Context, event events.Event) error
}

// Pusher delivers frames to a user's live channels. Delivery is best
// effort: offline users receive nothing and no error is reported.
type Pusher interface {
	PushNotification(ctx context.Context, userID int64, n *models.Notification)
	PushUnreadCount(ctx context.Context, userID int64, count int)
}

// NotificationMirror copies a persisted notification to an external channel.
type NotificationMirror interface {
	Mirror(ctx context.Context, n *models.Notification) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramBot is the slice of the Bot API the chat front end drives.
type TelegramBot interface {
	TelegramSender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type ChatLinks interface {
	SetTelegramChat(ctx context.Context, userID, chatID int64) error
	UserByTelegramChat(ctx context.Context, chatID int64) (*models.User, error)
}

type TokenVerifier interface {
	Verify(token string) (int64, error)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SideEffectReplayer re-runs a journaled effect.
type SideEffectReplayer interface {
	Replay(ctx context.Context, failure models.SideEffectFailure) error
}

type BookingLedger interface {
	Submit(ctx context.Context, req SubmitRequest) (*models.Booking, error)
	Transition(ctx context.Context, bookingID, actorID int64, status models.BookingStatus, note string) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID int64, actorID *int64) (*models.Booking, error)
	Get(ctx context.Context, bookingID int64, actorID *int64) (*models.Booking, error)
	ListForProperty(ctx context.Context, propertyID, actorID int64) ([]*models.Booking, error)
	ListForRequester(ctx context.Context, actorID int64) ([]*models.Booking, error)
}

type AvailabilityService interface {
	CreateBlock(ctx context.Context, actorID int64, block *models.AvailabilityBlock) error
	DeleteBlock(ctx context.Context, actorID, propertyID, blockID int64) error
	ListBlocks(ctx context.Context, actorID, propertyID int64) ([]*models.AvailabilityBlock, error)
	Availability(ctx context.Context, propertyID int64, from, to time.Time) ([]models.Hold, error)
}

type NotificationService interface {
	List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, notificationID int64) (int, error)
	MarkAllRead(ctx context.Context, userID int64) (int, error)
}

// SubmitRequest carries a booking submission. RequesterID is nil for guests.
// ClientKey identifies an anonymous submitter for rate limiting.
type SubmitRequest struct {
	PropertyID  int64
	RequesterID *int64
	ClientKey   string
	Kind        models.BookingKind
	Contact     models.Contact
	Payload     models.Payload
	Payment     *models.Payment
	Message     string
}
