package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"realtyhub/internal/availability"
	"realtyhub/internal/config"
	"realtyhub/internal/database"
	"realtyhub/internal/domain"
	"realtyhub/internal/events"
	"realtyhub/internal/models"
	"realtyhub/internal/notify"
	"realtyhub/internal/realtime"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveChannel struct {
	id     string
	mu     sync.Mutex
	frames []realtime.Frame
}

func (c *liveChannel) ID() string { return c.id }

func (c *liveChannel) Send(f realtime.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return true
}

func (c *liveChannel) Close() {}

func (c *liveChannel) ofType(t realtime.FrameType) []realtime.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []realtime.Frame
	for _, f := range c.frames {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

type idToken struct{}

func (idToken) Verify(token string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(token, "user-%d", &id); err != nil {
		return 0, domain.ErrUnauthorized
	}
	return id, nil
}

type stack struct {
	db       *database.DB
	registry *realtime.Registry
	ledger   *BookingService
	blocks   *AvailabilityService
	owner    *models.User
	guest    *models.User
	property *models.Property
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewSQLite(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	owner := &models.User{Name: "Olga", Email: "olga@example.com"}
	guest := &models.User{Name: "Anna", Email: "anna@example.com"}
	require.NoError(t, db.CreateUser(ctx, owner))
	require.NoError(t, db.CreateUser(ctx, guest))
	property := &models.Property{OwnerID: owner.ID, Title: "Loft"}
	require.NoError(t, db.CreateProperty(ctx, property))

	registry := realtime.NewRegistry(idToken{}, db, &logger)
	bus := events.NewBus(&logger)
	require.NoError(t, notify.Register(bus, notify.NewService(db, registry, nil, &logger)))

	orch := NewOrchestrator(db, db, db, bus, db, &logger)
	ledger := NewBookingService(db, db, availability.NewChecker(db), orch, nil, config.BookingConfig{}, &logger)

	blocks := NewAvailabilityService(db, db, db, &logger)

	return &stack{db: db, registry: registry, ledger: ledger, blocks: blocks, owner: owner, guest: guest, property: property}
}

func TestBlockThenStaysEndToEnd(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	block := &models.AvailabilityBlock{PropertyID: s.property.ID, Start: day(6, 10), End: day(6, 15), Reason: "renovation"}
	require.NoError(t, s.blocks.CreateBlock(ctx, s.owner.ID, block))

	stay := func(in, out time.Time) domain.SubmitRequest {
		return domain.SubmitRequest{
			PropertyID:  s.property.ID,
			RequesterID: &s.guest.ID,
			Kind:        models.KindStay,
			Contact:     models.Contact{Name: "Anna", Email: "anna@example.com", Phone: "+100"},
			Payload:     &models.StayPayload{CheckIn: in, CheckOut: out, Guests: 2},
		}
	}

	_, err := s.ledger.Submit(ctx, stay(day(6, 12), day(6, 20)))
	require.ErrorIs(t, err, domain.ErrDateConflict)

	booking, err := s.ledger.Submit(ctx, stay(day(6, 16), day(6, 20)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, booking.Status)

	holds, err := s.db.Holds(ctx, s.property.ID, day(6, 1), day(6, 30))
	require.NoError(t, err)
	require.Len(t, holds, 2)

	bookings, err := s.db.ListBookingsByProperty(ctx, s.property.ID)
	require.NoError(t, err)
	assert.Len(t, bookings, 1, "the conflicting stay left nothing behind")

	notifications, err := s.db.ListNotifications(ctx, s.owner.ID, false, 10)
	require.NoError(t, err)
	assert.Len(t, notifications, 1, "only the accepted stay notifies the owner")
}

func TestInquiryEndToEnd(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	ch := &liveChannel{id: "owner-tab"}
	userID, err := s.registry.Connect(ctx, ch, fmt.Sprintf("user-%d", s.owner.ID))
	require.NoError(t, err)
	require.Equal(t, s.owner.ID, userID)

	booking, err := s.ledger.Submit(ctx, domain.SubmitRequest{
		PropertyID:  s.property.ID,
		RequesterID: &s.guest.ID,
		Kind:        models.KindInquiry,
		Contact:     models.Contact{Name: "Anna", Email: "anna@example.com", Phone: "+100"},
		Payload:     &models.GeneralInquiry{Subject: "Parking?"},
		Message:     "Is there a garage?",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, booking.Status)

	conv, err := s.db.FindConversation(ctx, s.owner.ID, s.guest.ID)
	require.NoError(t, err)
	messages, err := s.db.ListMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.MessageBookingSummary, messages[0].Kind)

	notifications, err := s.db.ListNotifications(ctx, s.owner.ID, false, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationBookingCreated, notifications[0].Kind)
	assert.Equal(t, float64(conv.ID), notifications[0].Data["conversation_id"])

	pushed := ch.ofType(realtime.FrameNotification)
	require.Len(t, pushed, 1)

	t.Run("SecondSubmitReusesThread", func(t *testing.T) {
		_, err := s.ledger.Submit(ctx, domain.SubmitRequest{
			PropertyID:  s.property.ID,
			RequesterID: &s.guest.ID,
			Kind:        models.KindInquiry,
			Contact:     models.Contact{Name: "Anna", Email: "anna@example.com", Phone: "+100"},
			Payload:     &models.GeneralInquiry{Subject: "Pets?"},
		})
		require.NoError(t, err)

		again, err := s.db.FindConversation(ctx, s.guest.ID, s.owner.ID)
		require.NoError(t, err)
		assert.Equal(t, conv.ID, again.ID)
		assert.Len(t, ch.ofType(realtime.FrameNotification), 2)
	})
}

func TestGuestStayLifecycle(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	stay := func(in, out int) domain.SubmitRequest {
		return domain.SubmitRequest{
			PropertyID: s.property.ID,
			Kind:       models.KindStay,
			Contact:    models.Contact{Name: "Ivan", Email: "ivan@example.com", Phone: "+200"},
			Payload:    &models.StayPayload{CheckIn: day(7, in), CheckOut: day(7, out), Guests: 1},
		}
	}

	booking, err := s.ledger.Submit(ctx, stay(10, 15))
	require.NoError(t, err)

	_, err = s.db.FindConversation(ctx, s.owner.ID, s.guest.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "guests get no thread")

	_, err = s.ledger.Submit(ctx, stay(15, 18))
	assert.ErrorIs(t, err, domain.ErrDateConflict, "checkout day is still held")

	_, err = s.ledger.Transition(ctx, booking.ID, s.owner.ID, models.StatusRejected, "")
	require.NoError(t, err)

	_, err = s.ledger.Submit(ctx, stay(15, 18))
	assert.NoError(t, err, "rejection releases the dates")

	count, err := s.db.CountUnread(ctx, s.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one notification per successful submit")
}

func TestConcurrentOverlappingSubmits(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ledger.Submit(ctx, domain.SubmitRequest{
				PropertyID: s.property.ID,
				Kind:       models.KindStay,
				Contact:    models.Contact{Name: "G", Email: "g@example.com", Phone: "1"},
				Payload:    &models.StayPayload{CheckIn: day(8, 1+i%3), CheckOut: day(8, 10), Guests: 1},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, domain.ErrDateConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}
