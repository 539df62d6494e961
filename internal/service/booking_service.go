package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realtyhub/internal/config"
	"realtyhub/internal/domain"
	"realtyhub/internal/metrics"
	"realtyhub/internal/models"

	"github.com/rs/zerolog"
)

// transitions lists the owner-driven edges of the booking state machine.
// Cancellation is requester-driven and handled by Cancel.
var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.StatusPending:   {models.StatusConfirmed, models.StatusRejected},
	models.StatusConfirmed: {models.StatusCompleted},
}

func canTransition(from, to models.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BookingService is the booking ledger: it validates, persists and moves
// bookings through their lifecycle, then hands successful writes to the
// orchestrator.
type BookingService struct {
	repo          domain.BookingStore
	properties    domain.PropertyDirectory
	checker       domain.ConflictChecker
	orchestrator  *Orchestrator
	limiter       domain.RateLimiter
	maxStayNights int
	guestLimit    int
	guestWindow   time.Duration
	logger        *zerolog.Logger
}

// NewBookingService wires the ledger. limiter may be nil, in which case
// guest submissions are not throttled.
func NewBookingService(
	repo domain.BookingStore,
	properties domain.PropertyDirectory,
	checker domain.ConflictChecker,
	orchestrator *Orchestrator,
	limiter domain.RateLimiter,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	maxNights := cfg.MaxStayNights
	if maxNights <= 0 {
		maxNights = models.DefaultMaxStayNights
	}
	window := cfg.GuestRateWindow
	if window <= 0 {
		window = time.Hour
	}
	child := logger.With().Str("component", "booking-service").Logger()
	return &BookingService{
		repo:          repo,
		properties:    properties,
		checker:       checker,
		orchestrator:  orchestrator,
		limiter:       limiter,
		maxStayNights: maxNights,
		guestLimit:    cfg.GuestRateLimit,
		guestWindow:   window,
		logger:        &child,
	}
}

func (s *BookingService) validate(req domain.SubmitRequest) error {
	if !req.Kind.Valid() {
		return domain.Invalid("kind", "must be one of viewing, inquiry, stay")
	}
	if err := req.Contact.Validate(); err != nil {
		return err
	}
	if req.Payload == nil {
		return domain.Invalid("payload", "is required")
	}
	if req.Payload.Kind() != req.Kind {
		return domain.Invalid("payload", fmt.Sprintf("%s payload does not match kind %s", req.Payload.Type(), req.Kind))
	}
	if err := req.Payload.Validate(); err != nil {
		return err
	}
	if stay, ok := req.Payload.(*models.StayPayload); ok && stay.Nights() > s.maxStayNights {
		return domain.Invalid("payload.check_out", fmt.Sprintf("stay exceeds %d nights", s.maxStayNights))
	}
	if req.Payment != nil && req.Payment.Amount < 0 {
		return domain.Invalid("payment.amount", "must not be negative")
	}
	return nil
}

func (s *BookingService) allowGuest(ctx context.Context, req domain.SubmitRequest) error {
	if req.RequesterID != nil || s.limiter == nil || s.guestLimit <= 0 || req.ClientKey == "" {
		return nil
	}
	allowed, err := s.limiter.CheckRateLimit(ctx, "guest_submit:"+req.ClientKey, s.guestLimit, s.guestWindow)
	if err != nil {
		// A broken limiter must not block bookings.
		s.logger.Warn().Err(err).Msg("guest rate limit check failed")
		return nil
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

// Submit validates and persists a new pending booking. Side effects run
// after the write and never change the result.
func (s *BookingService) Submit(ctx context.Context, req domain.SubmitRequest) (*models.Booking, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if err := s.allowGuest(ctx, req); err != nil {
		return nil, err
	}

	property, err := s.properties.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}

	if stay, ok := req.Payload.(*models.StayPayload); ok {
		conflict, err := s.checker.HasConflict(ctx, property.ID, stay.CheckIn, stay.CheckOut)
		if err != nil {
			return nil, err
		}
		if conflict {
			metrics.IncDateConflict()
			return nil, domain.ErrDateConflict
		}
	}

	booking := &models.Booking{
		PropertyID:  property.ID,
		RequesterID: req.RequesterID,
		Kind:        req.Kind,
		Status:      models.StatusPending,
		Contact:     req.Contact,
		Payload:     req.Payload,
		Payment:     req.Payment,
		Message:     req.Message,
	}
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, domain.ErrDateConflict) {
			metrics.IncDateConflict()
		}
		return nil, err
	}
	metrics.IncBookingSubmitted(string(booking.Kind), booking.IsGuest())

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("property_id", booking.PropertyID).
		Str("kind", string(booking.Kind)).
		Bool("guest", booking.IsGuest()).
		Msg("booking submitted")

	if s.orchestrator != nil {
		s.orchestrator.AfterSubmit(ctx, booking, property)
	}
	return booking, nil
}

// Transition applies an owner decision to a booking.
func (s *BookingService) Transition(ctx context.Context, bookingID, actorID int64, status models.BookingStatus, note string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	property, err := s.properties.GetProperty(ctx, booking.PropertyID)
	if err != nil {
		return nil, err
	}
	if !property.IsOwner(&actorID) {
		return nil, domain.ErrForbidden
	}
	if !canTransition(booking.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, booking.Status, status)
	}

	from := booking.Status
	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, status, note); err != nil {
		return nil, err
	}
	booking.Status = status
	booking.Note = note
	booking.Version++
	metrics.IncTransition(string(status))

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("actor_id", actorID).
		Str("from", string(from)).
		Str("to", string(status)).
		Msg("booking status changed")

	if s.orchestrator != nil {
		s.orchestrator.AfterTransition(ctx, booking, property, from)
	}
	return booking, nil
}

// Cancel withdraws a booking. Authenticated bookings are cancelled by
// their requester only; guest bookings only through an anonymous call.
func (s *BookingService) Cancel(ctx context.Context, bookingID int64, actorID *int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.IsGuest() {
		if actorID != nil {
			return nil, fmt.Errorf("%w: guest bookings are cancelled through support", domain.ErrForbidden)
		}
	} else if actorID == nil || *actorID != *booking.RequesterID {
		return nil, domain.ErrForbidden
	}

	if booking.Status != models.StatusPending && booking.Status != models.StatusConfirmed {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, booking.Status, models.StatusCancelled)
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusCancelled, booking.Note); err != nil {
		return nil, err
	}
	booking.Status = models.StatusCancelled
	booking.Version++
	metrics.IncTransition(string(models.StatusCancelled))

	s.logger.Info().Int64("booking_id", booking.ID).Bool("guest", booking.IsGuest()).Msg("booking cancelled")

	if s.orchestrator != nil {
		property, err := s.properties.GetProperty(ctx, booking.PropertyID)
		if err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("property lookup after cancel failed")
		} else {
			s.orchestrator.AfterCancel(ctx, booking, property)
		}
	}
	return booking, nil
}

// Get returns a booking visible to the actor: the property owner or the
// authenticated requester.
func (s *BookingService) Get(ctx context.Context, bookingID int64, actorID *int64) (*models.Booking, error) {
	if actorID == nil {
		return nil, domain.ErrUnauthorized
	}
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RequesterID != nil && *booking.RequesterID == *actorID {
		return booking, nil
	}
	property, err := s.properties.GetProperty(ctx, booking.PropertyID)
	if err != nil {
		return nil, err
	}
	if !property.IsOwner(actorID) {
		return nil, domain.ErrForbidden
	}
	return booking, nil
}

func (s *BookingService) ListForProperty(ctx context.Context, propertyID, actorID int64) ([]*models.Booking, error) {
	property, err := s.properties.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !property.IsOwner(&actorID) {
		return nil, domain.ErrForbidden
	}
	return s.repo.ListBookingsByProperty(ctx, propertyID)
}

func (s *BookingService) ListForRequester(ctx context.Context, actorID int64) ([]*models.Booking, error) {
	return s.repo.ListBookingsByRequester(ctx, actorID)
}
