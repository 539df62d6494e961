package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"realtyhub/internal/domain"
	"realtyhub/internal/events"
	"realtyhub/internal/metrics"
	"realtyhub/internal/models"

	"github.com/rs/zerolog"
)

// Effect names, as logged and journaled.
const (
	EffectThreadEnsure    = "thread.ensure"
	EffectNotifyOwner     = "notify.owner"
	EffectNotifyRequester = "notify.requester"
	EffectNotifyCancel    = "notify.owner.cancel"
)

var ErrUnknownEffect = errors.New("unknown side effect")

// Orchestrator runs the best-effort work that follows a committed booking
// write. Failures are logged, counted and journaled for replay; they never
// reach the caller of the ledger.
type Orchestrator struct {
	bookings      domain.BookingStore
	properties    domain.PropertyDirectory
	conversations domain.ConversationStore
	bus           domain.EventPublisher
	journal       domain.FailureJournal
	logger        *zerolog.Logger
}

// NewOrchestrator wires the effects. journal may be nil.
func NewOrchestrator(
	bookings domain.BookingStore,
	properties domain.PropertyDirectory,
	conversations domain.ConversationStore,
	bus domain.EventPublisher,
	journal domain.FailureJournal,
	logger *zerolog.Logger,
) *Orchestrator {
	child := logger.With().Str("component", "orchestrator").Logger()
	return &Orchestrator{
		bookings:      bookings,
		properties:    properties,
		conversations: conversations,
		bus:           bus,
		journal:       journal,
		logger:        &child,
	}
}

// AfterSubmit ensures the conversation thread, then notifies the owner.
// The owner notification still goes out when the thread step fails.
func (o *Orchestrator) AfterSubmit(ctx context.Context, booking *models.Booking, property *models.Property) {
	var conversationID *int64

	arena := o.arena(booking.ID)
	arena.run(ctx, EffectThreadEnsure, func(ctx context.Context) error {
		id, err := o.ensureThread(ctx, booking, property)
		conversationID = id
		return err
	})
	arena.notify(ctx, EffectNotifyOwner, func() events.Event {
		return events.BookingCreated{
			BookingID:      booking.ID,
			PropertyID:     property.ID,
			PropertyTitle:  property.Title,
			OwnerID:        property.OwnerID,
			BookingKind:    booking.Kind,
			RequesterID:    booking.RequesterID,
			ContactName:    booking.Contact.Name,
			ConversationID: conversationID,
		}
	})
}

// AfterTransition tells an authenticated requester about an owner decision.
// Guests have no recipient id and get nothing.
func (o *Orchestrator) AfterTransition(ctx context.Context, booking *models.Booking, property *models.Property, from models.BookingStatus) {
	if booking.RequesterID == nil {
		return
	}
	o.arena(booking.ID).notify(ctx, EffectNotifyRequester, func() events.Event {
		return events.BookingStatusChanged{
			BookingID:     booking.ID,
			PropertyID:    property.ID,
			PropertyTitle: property.Title,
			RecipientID:   *booking.RequesterID,
			From:          from,
			To:            booking.Status,
			Note:          booking.Note,
		}
	})
}

func (o *Orchestrator) AfterCancel(ctx context.Context, booking *models.Booking, property *models.Property) {
	o.arena(booking.ID).notify(ctx, EffectNotifyCancel, func() events.Event {
		return events.BookingCancelled{
			BookingID:     booking.ID,
			PropertyID:    property.ID,
			PropertyTitle: property.Title,
			OwnerID:       property.OwnerID,
			ContactName:   booking.Contact.Name,
			ByGuest:       booking.IsGuest(),
		}
	})
}

// Replay re-runs a journaled effect. Thread effects are rebuilt from the
// booking; notify effects re-dispatch the recorded event.
func (o *Orchestrator) Replay(ctx context.Context, failure models.SideEffectFailure) error {
	switch failure.Effect {
	case EffectThreadEnsure:
		booking, err := o.bookings.GetBooking(ctx, failure.BookingID)
		if err != nil {
			return err
		}
		property, err := o.properties.GetProperty(ctx, booking.PropertyID)
		if err != nil {
			return err
		}
		_, err = o.ensureThread(ctx, booking, property)
		return err
	case EffectNotifyOwner, EffectNotifyRequester, EffectNotifyCancel:
		event, err := events.Decode(events.Kind(failure.EventKind), []byte(failure.Payload))
		if err != nil {
			return err
		}
		return o.bus.Dispatch(ctx, event)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEffect, failure.Effect)
	}
}

// ensureThread finds or creates the conversation between an authenticated
// requester and the owner and appends the booking summary. Guests and
// owners booking their own property get no thread.
func (o *Orchestrator) ensureThread(ctx context.Context, booking *models.Booking, property *models.Property) (*int64, error) {
	if booking.RequesterID == nil || *booking.RequesterID == property.OwnerID {
		return nil, nil
	}
	requesterID := *booking.RequesterID

	conv, created, err := o.conversations.EnsureConversation(ctx, requesterID, property.OwnerID, &property.ID)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}
	if created {
		o.logger.Debug().Int64("conversation_id", conv.ID).Int64("booking_id", booking.ID).Msg("conversation created")
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       requesterID,
		Kind:           models.MessageBookingSummary,
		Body:           bookingSummary(booking, property),
		Metadata: map[string]any{
			"booking_id":  booking.ID,
			"property_id": property.ID,
			"kind":        string(booking.Kind),
		},
	}
	if err := o.conversations.AppendMessage(ctx, msg); err != nil {
		return &conv.ID, fmt.Errorf("append booking summary: %w", err)
	}
	return &conv.ID, nil
}

func bookingSummary(b *models.Booking, p *models.Property) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Booking request (%s) for %q\n", b.Kind, p.Title)

	switch payload := b.Payload.(type) {
	case *models.StayPayload:
		fmt.Fprintf(&sb, "Dates: %s to %s, %d guest(s)\n",
			payload.CheckIn.Format(models.DateLayout), payload.CheckOut.Format(models.DateLayout), payload.Guests)
	case *models.ViewingPayload:
		fmt.Fprintf(&sb, "Viewing at %s UTC", payload.ScheduledAt.UTC().Format("2006-01-02 15:04"))
		if payload.DurationMinutes > 0 {
			fmt.Fprintf(&sb, " for %d min", payload.DurationMinutes)
		}
		sb.WriteString("\n")
	case *models.GeneralInquiry:
		fmt.Fprintf(&sb, "Subject: %s\n", payload.Subject)
	case *models.LeaseInquiry:
		fmt.Fprintf(&sb, "Lease from %s for %d months\n", payload.MoveIn.Format(models.DateLayout), payload.TermMonths)
	case *models.SaleOffer:
		fmt.Fprintf(&sb, "Offer: %.2f %s\n", payload.OfferAmount, payload.Currency)
	case *models.CommercialInquiry:
		fmt.Fprintf(&sb, "Business: %s\n", payload.BusinessType)
	}

	if b.Message != "" {
		sb.WriteString(b.Message)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// effectArena executes effects for one booking in order.
type effectArena struct {
	o         *Orchestrator
	bookingID int64
}

func (o *Orchestrator) arena(bookingID int64) *effectArena {
	return &effectArena{o: o, bookingID: bookingID}
}

func (a *effectArena) run(ctx context.Context, name string, fn func(ctx context.Context) error) {
	err := guard(func() error { return fn(ctx) })
	if err != nil {
		a.fail(ctx, name, nil, err)
	}
}

// notify builds the event lazily so it sees the output of earlier effects.
func (a *effectArena) notify(ctx context.Context, name string, build func() events.Event) {
	var event events.Event
	err := guard(func() error {
		event = build()
		return a.o.bus.Dispatch(ctx, event)
	})
	if err != nil {
		a.fail(ctx, name, event, err)
	}
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("effect panic: %v", r)
		}
	}()
	return fn()
}

func (a *effectArena) fail(ctx context.Context, name string, event events.Event, cause error) {
	a.o.logger.Error().Err(cause).
		Int64("booking_id", a.bookingID).
		Str("effect", name).
		Msg("side effect failed")
	metrics.IncSideEffectFailure(name)

	if a.o.journal == nil {
		return
	}
	failure := &models.SideEffectFailure{
		BookingID: a.bookingID,
		Effect:    name,
		LastError: cause.Error(),
	}
	if event != nil {
		kind, raw, err := events.Encode(event)
		if err == nil {
			failure.EventKind = string(kind)
			failure.Payload = string(raw)
		}
	}
	if err := a.o.journal.RecordSideEffectFailure(ctx, failure); err != nil {
		a.o.logger.Error().Err(err).
			Int64("booking_id", a.bookingID).
			Str("effect", name).
			Msg("journal side effect failure")
	}
}
