package notify

import (
	"context"
	"errors"
	"fmt"

	"realtyhub/internal/domain"
	"realtyhub/internal/events"
	"realtyhub/internal/metrics"
	"realtyhub/internal/models"

	"github.com/rs/zerolog"
)

var ErrListenerExists = errors.New("notification listener already registered")

// Service turns bus events into persisted notifications and pushes them to
// the recipient's live channels.
type Service struct {
	store  domain.NotificationStore
	pusher domain.Pusher
	mirror domain.NotificationMirror
	logger *zerolog.Logger
}

// NewService builds the listener set. mirror may be nil.
func NewService(store domain.NotificationStore, pusher domain.Pusher, mirror domain.NotificationMirror, logger *zerolog.Logger) *Service {
	child := logger.With().Str("component", "notify").Logger()
	return &Service{
		store:  store,
		pusher: pusher,
		mirror: mirror,
		logger: &child,
	}
}

// Register installs exactly one listener per event kind. It fails without
// registering anything when any kind already has a listener.
func Register(bus *events.Bus, svc *Service) error {
	for _, kind := range events.Kinds {
		if bus.Listeners(kind) > 0 {
			return fmt.Errorf("%w: %s", ErrListenerExists, kind)
		}
	}

	events.Subscribe(bus, "notify.booking_created", svc.onBookingCreated)
	events.Subscribe(bus, "notify.booking_status_changed", svc.onBookingStatusChanged)
	events.Subscribe(bus, "notify.booking_cancelled", svc.onBookingCancelled)
	events.Subscribe(bus, "notify.job_assigned", svc.onJobAssigned)
	events.Subscribe(bus, "notify.job_status_changed", svc.onJobStatusChanged)
	events.Subscribe(bus, "notify.maintenance_ticket_updated", svc.onMaintenanceTicketUpdated)
	return nil
}

func (s *Service) onBookingCreated(ctx context.Context, e events.BookingCreated) error {
	return s.deliver(ctx, renderBookingCreated(e))
}

func (s *Service) onBookingStatusChanged(ctx context.Context, e events.BookingStatusChanged) error {
	return s.deliver(ctx, renderBookingStatusChanged(e))
}

func (s *Service) onBookingCancelled(ctx context.Context, e events.BookingCancelled) error {
	return s.deliver(ctx, renderBookingCancelled(e))
}

func (s *Service) onJobAssigned(ctx context.Context, e events.JobAssigned) error {
	return s.deliver(ctx, renderJobAssigned(e))
}

func (s *Service) onJobStatusChanged(ctx context.Context, e events.JobStatusChanged) error {
	return s.deliver(ctx, renderJobStatusChanged(e))
}

func (s *Service) onMaintenanceTicketUpdated(ctx context.Context, e events.MaintenanceTicketUpdated) error {
	return s.deliver(ctx, renderMaintenanceTicketUpdated(e))
}

// deliver persists n, then pushes it. Only the persist step can fail the
// listener; push and mirror are best effort.
func (s *Service) deliver(ctx context.Context, n *models.Notification) error {
	if n.RecipientID <= 0 {
		return domain.Invalid("recipient_id", "is required")
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("persist %s notification: %w", n.Kind, err)
	}
	metrics.IncNotification(string(n.Kind))

	s.pusher.PushNotification(ctx, n.RecipientID, n)
	if count, err := s.store.CountUnread(ctx, n.RecipientID); err != nil {
		s.logger.Warn().Err(err).Int64("recipient_id", n.RecipientID).Msg("unread count after notify failed")
	} else {
		s.pusher.PushUnreadCount(ctx, n.RecipientID, count)
	}

	if s.mirror != nil {
		if err := s.mirror.Mirror(ctx, n); err != nil {
			s.logger.Warn().Err(err).
				Int64("notification_id", n.ID).
				Int64("recipient_id", n.RecipientID).
				Msg("notification mirror failed")
		}
	}

	s.logger.Debug().
		Int64("notification_id", n.ID).
		Int64("recipient_id", n.RecipientID).
		Str("kind", string(n.Kind)).
		Msg("notification delivered")
	return nil
}
