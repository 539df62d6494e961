package service

import (
	"context"
	"testing"
	"time"

	"realtyhub/internal/config"
	"realtyhub/internal/domain"
	"realtyhub/internal/events"
	"realtyhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	ownerID    int64 = 1
	guestUser  int64 = 2
	propertyID int64 = 10
)

type ledgerFixture struct {
	repo          *mockBookingStore
	properties    *mockProperties
	checker       *mockChecker
	limiter       *mockLimiter
	conversations *mockConversations
	bus           *recordingBus
	svc           *BookingService
}

func newLedger(t *testing.T) *ledgerFixture {
	t.Helper()
	logger := zerolog.Nop()
	f := &ledgerFixture{
		repo:          new(mockBookingStore),
		properties:    new(mockProperties),
		checker:       new(mockChecker),
		limiter:       new(mockLimiter),
		conversations: new(mockConversations),
		bus:           &recordingBus{},
	}
	orch := NewOrchestrator(f.repo, f.properties, f.conversations, f.bus, nil, &logger)
	cfg := config.BookingConfig{MaxStayNights: 30, GuestRateLimit: 2, GuestRateWindow: time.Hour}
	f.svc = NewBookingService(f.repo, f.properties, f.checker, orch, f.limiter, cfg, &logger)
	f.properties.On("GetProperty", mock.Anything, propertyID).
		Return(&models.Property{ID: propertyID, OwnerID: ownerID, Title: "Loft"}, nil).Maybe()
	return f
}

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func contact() models.Contact {
	return models.Contact{Name: "Anna", Email: "anna@example.com", Phone: "+100"}
}

func stayRequest(requester *int64, in, out time.Time) domain.SubmitRequest {
	return domain.SubmitRequest{
		PropertyID:  propertyID,
		RequesterID: requester,
		Kind:        models.KindStay,
		Contact:     contact(),
		Payload:     &models.StayPayload{CheckIn: in, CheckOut: out, Guests: 2},
	}
}

func assignID(id int64) func(mock.Arguments) {
	return func(args mock.Arguments) {
		args.Get(1).(*models.Booking).ID = id
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.SubmitRequest
	}{
		{"unknown kind", domain.SubmitRequest{PropertyID: propertyID, Kind: "auction", Contact: contact(), Payload: &models.GeneralInquiry{Subject: "x"}}},
		{"missing contact email", domain.SubmitRequest{PropertyID: propertyID, Kind: models.KindInquiry, Contact: models.Contact{Name: "A", Phone: "1"}, Payload: &models.GeneralInquiry{Subject: "x"}}},
		{"missing payload", domain.SubmitRequest{PropertyID: propertyID, Kind: models.KindInquiry, Contact: contact()}},
		{"kind mismatch", domain.SubmitRequest{PropertyID: propertyID, Kind: models.KindViewing, Contact: contact(), Payload: &models.GeneralInquiry{Subject: "x"}}},
		{"checkout before checkin", stayRequest(nil, day(6, 10), day(6, 5))},
		{"stay too long", stayRequest(nil, day(6, 1), day(8, 1))},
		{"negative payment", domain.SubmitRequest{PropertyID: propertyID, Kind: models.KindInquiry, Contact: contact(), Payload: &models.GeneralInquiry{Subject: "x"}, Payment: &models.Payment{Amount: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	f.repo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestSubmitPropertyNotFound(t *testing.T) {
	f := newLedger(t)
	f.properties.On("GetProperty", mock.Anything, int64(99)).Return(nil, domain.ErrPropertyNotFound)

	req := stayRequest(nil, day(6, 1), day(6, 3))
	req.PropertyID = 99
	_, err := f.svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmitStayConflict(t *testing.T) {
	f := newLedger(t)
	f.checker.On("HasConflict", mock.Anything, propertyID, day(6, 15), day(6, 20)).Return(true, nil)

	_, err := f.svc.Submit(context.Background(), stayRequest(nil, day(6, 15), day(6, 20)))
	assert.ErrorIs(t, err, domain.ErrDateConflict)
	f.repo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	assert.Empty(t, f.bus.published())
}

func TestSubmitStoreConflictSurfaces(t *testing.T) {
	f := newLedger(t)
	f.checker.On("HasConflict", mock.Anything, propertyID, mock.Anything, mock.Anything).Return(false, nil)
	f.repo.On("CreateBooking", mock.Anything, mock.Anything).Return(domain.ErrDateConflict)

	_, err := f.svc.Submit(context.Background(), stayRequest(nil, day(6, 16), day(6, 20)))
	assert.ErrorIs(t, err, domain.ErrDateConflict)
	assert.Empty(t, f.bus.published(), "no effects for a failed write")
}

func TestSubmitGuestStay(t *testing.T) {
	f := newLedger(t)
	f.checker.On("HasConflict", mock.Anything, propertyID, day(6, 16), day(6, 20)).Return(false, nil)
	f.repo.On("CreateBooking", mock.Anything, mock.MatchedBy(func(b *models.Booking) bool {
		return b.Status == models.StatusPending && b.RequesterID == nil && b.Kind == models.KindStay
	})).Return(nil).Run(assignID(42))

	booking, err := f.svc.Submit(context.Background(), stayRequest(nil, day(6, 16), day(6, 20)))
	require.NoError(t, err)
	assert.Equal(t, int64(42), booking.ID)
	assert.Equal(t, models.StatusPending, booking.Status)

	f.conversations.AssertNotCalled(t, "EnsureConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	published := f.bus.published()
	require.Len(t, published, 1)
	created := published[0].(events.BookingCreated)
	assert.Equal(t, ownerID, created.OwnerID)
	assert.Nil(t, created.ConversationID)
}

func TestSubmitGuestRateLimit(t *testing.T) {
	f := newLedger(t)
	req := domain.SubmitRequest{
		PropertyID: propertyID,
		Kind:       models.KindInquiry,
		Contact:    contact(),
		Payload:    &models.GeneralInquiry{Subject: "Is it pet friendly?"},
		ClientKey:  "203.0.113.7",
	}
	f.limiter.On("CheckRateLimit", mock.Anything, "guest_submit:203.0.113.7", 2, time.Hour).Return(false, nil).Once()

	_, err := f.svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	t.Run("AuthenticatedIsNotLimited", func(t *testing.T) {
		authed := req
		authed.RequesterID = models.Int64Ptr(guestUser)
		f.repo.On("CreateBooking", mock.Anything, mock.Anything).Return(nil).Run(assignID(7)).Once()
		f.conversations.On("EnsureConversation", mock.Anything, guestUser, ownerID, mock.Anything).
			Return(&models.Conversation{ID: 3, ParticipantLow: ownerID, ParticipantHigh: guestUser}, true, nil)
		f.conversations.On("AppendMessage", mock.Anything, mock.Anything).Return(nil)

		_, err := f.svc.Submit(context.Background(), authed)
		require.NoError(t, err)
		f.limiter.AssertNumberOfCalls(t, "CheckRateLimit", 1)
	})
}

func TestTransition(t *testing.T) {
	ctx := context.Background()
	pending := func(requester *int64) *models.Booking {
		return &models.Booking{ID: 5, PropertyID: propertyID, RequesterID: requester, Kind: models.KindViewing, Status: models.StatusPending, Version: 3}
	}

	t.Run("OnlyOwner", func(t *testing.T) {
		f := newLedger(t)
		f.repo.On("GetBooking", ctx, int64(5)).Return(pending(nil), nil)

		_, err := f.svc.Transition(ctx, 5, guestUser, models.StatusConfirmed, "")
		assert.ErrorIs(t, err, domain.ErrForbidden)
		f.repo.AssertNotCalled(t, "UpdateBookingStatusWithVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidEdges", func(t *testing.T) {
		cases := []struct {
			from, to models.BookingStatus
		}{
			{models.StatusPending, models.StatusCompleted},
			{models.StatusPending, models.StatusCancelled},
			{models.StatusConfirmed, models.StatusRejected},
			{models.StatusCompleted, models.StatusConfirmed},
			{models.StatusRejected, models.StatusConfirmed},
			{models.StatusCancelled, models.StatusConfirmed},
			{models.StatusPending, models.StatusPending},
		}
		for _, c := range cases {
			f := newLedger(t)
			b := pending(nil)
			b.Status = c.from
			f.repo.On("GetBooking", ctx, int64(5)).Return(b, nil)

			_, err := f.svc.Transition(ctx, 5, ownerID, c.to, "")
			assert.ErrorIs(t, err, domain.ErrInvalidTransition, "%s -> %s", c.from, c.to)
		}
	})

	t.Run("ConcurrentModification", func(t *testing.T) {
		f := newLedger(t)
		f.repo.On("GetBooking", ctx, int64(5)).Return(pending(nil), nil)
		f.repo.On("UpdateBookingStatusWithVersion", ctx, int64(5), int64(3), models.StatusConfirmed, "").
			Return(domain.ErrConcurrentModification)

		_, err := f.svc.Transition(ctx, 5, ownerID, models.StatusConfirmed, "")
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
		assert.Empty(t, f.bus.published())
	})

	t.Run("NotifiesAuthenticatedRequester", func(t *testing.T) {
		f := newLedger(t)
		f.repo.On("GetBooking", ctx, int64(5)).Return(pending(models.Int64Ptr(guestUser)), nil)
		f.repo.On("UpdateBookingStatusWithVersion", ctx, int64(5), int64(3), models.StatusConfirmed, "See you").Return(nil)

		b, err := f.svc.Transition(ctx, 5, ownerID, models.StatusConfirmed, "See you")
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, b.Status)
		assert.Equal(t, int64(4), b.Version)

		published := f.bus.published()
		require.Len(t, published, 1)
		changed := published[0].(events.BookingStatusChanged)
		assert.Equal(t, guestUser, changed.RecipientID)
		assert.Equal(t, models.StatusPending, changed.From)
		assert.Equal(t, models.StatusConfirmed, changed.To)
		assert.Equal(t, "See you", changed.Note)
	})

	t.Run("GuestRequesterGetsNothing", func(t *testing.T) {
		f := newLedger(t)
		f.repo.On("GetBooking", ctx, int64(5)).Return(pending(nil), nil)
		f.repo.On("UpdateBookingStatusWithVersion", ctx, int64(5), int64(3), models.StatusRejected, "").Return(nil)

		_, err := f.svc.Transition(ctx, 5, ownerID, models.StatusRejected, "")
		require.NoError(t, err)
		assert.Empty(t, f.bus.published())
	})
}

func TestCancelAsymmetry(t *testing.T) {
	ctx := context.Background()
	other := int64(77)

	tests := []struct {
		name      string
		requester *int64
		actor     *int64
		wantErr   error
	}{
		{"requester cancels own booking", models.Int64Ptr(guestUser), models.Int64Ptr(guestUser), nil},
		{"another user is forbidden", models.Int64Ptr(guestUser), &other, domain.ErrForbidden},
		{"anonymous caller on authenticated booking", models.Int64Ptr(guestUser), nil, domain.ErrForbidden},
		{"anonymous caller on guest booking", nil, nil, nil},
		{"authenticated caller on guest booking", nil, &other, domain.ErrForbidden},
		{"owner cannot cancel guest booking", nil, models.Int64Ptr(ownerID), domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedger(t)
			f.repo.On("GetBooking", ctx, int64(8)).Return(&models.Booking{
				ID: 8, PropertyID: propertyID, RequesterID: tt.requester, Status: models.StatusPending, Version: 1, Contact: contact(),
			}, nil)
			f.repo.On("UpdateBookingStatusWithVersion", ctx, int64(8), int64(1), models.StatusCancelled, "").Return(nil).Maybe()

			b, err := f.svc.Cancel(ctx, 8, tt.actor)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.bus.published())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.StatusCancelled, b.Status)
			published := f.bus.published()
			require.Len(t, published, 1)
			cancelled := published[0].(events.BookingCancelled)
			assert.Equal(t, ownerID, cancelled.OwnerID)
			assert.Equal(t, tt.requester == nil, cancelled.ByGuest)
		})
	}
}

func TestCancelTerminal(t *testing.T) {
	ctx := context.Background()
	for _, status := range []models.BookingStatus{models.StatusCancelled, models.StatusCompleted, models.StatusRejected} {
		f := newLedger(t)
		f.repo.On("GetBooking", ctx, int64(8)).Return(&models.Booking{ID: 8, PropertyID: propertyID, Status: status}, nil)

		_, err := f.svc.Cancel(ctx, 8, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, status)
	}
}

func TestGetAndList(t *testing.T) {
	ctx := context.Background()
	f := newLedger(t)
	booking := &models.Booking{ID: 9, PropertyID: propertyID, RequesterID: models.Int64Ptr(guestUser), Status: models.StatusPending}
	f.repo.On("GetBooking", ctx, int64(9)).Return(booking, nil)
	f.repo.On("ListBookingsByProperty", ctx, propertyID).Return([]*models.Booking{booking}, nil)
	f.repo.On("ListBookingsByRequester", ctx, guestUser).Return([]*models.Booking{booking}, nil)

	_, err := f.svc.Get(ctx, 9, models.Int64Ptr(guestUser))
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, 9, models.Int64Ptr(ownerID))
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, 9, models.Int64Ptr(55))
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.Get(ctx, 9, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	list, err := f.svc.ListForProperty(ctx, propertyID, ownerID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = f.svc.ListForProperty(ctx, propertyID, guestUser)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	mine, err := f.svc.ListForRequester(ctx, guestUser)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
