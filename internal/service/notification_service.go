package service

import (
	"context"

	"realtyhub/internal/domain"
	"realtyhub/internal/models"
)

// NotificationService is the read side of persisted notifications. Read
// mutations broadcast the fresh unread count to the user's live channels.
type NotificationService struct {
	store  domain.NotificationStore
	pusher domain.Pusher
}

func NewNotificationService(store domain.NotificationStore, pusher domain.Pusher) *NotificationService {
	return &NotificationService{store: store, pusher: pusher}
}

func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*models.Notification, error) {
	switch {
	case limit <= 0:
		limit = models.DefaultNotificationPageSize
	case limit > models.MaxNotificationPageSize:
		limit = models.MaxNotificationPageSize
	}
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkRead returns the unread count after the update.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) (int, error) {
	if err := s.store.MarkRead(ctx, userID, notificationID); err != nil {
		return 0, err
	}
	return s.broadcast(ctx, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	if _, err := s.store.MarkAllRead(ctx, userID); err != nil {
		return 0, err
	}
	return s.broadcast(ctx, userID)
}

func (s *NotificationService) broadcast(ctx context.Context, userID int64) (int, error) {
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.pusher != nil {
		s.pusher.PushUnreadCount(ctx, userID, count)
	}
	return count, nil
}
