package service

import (
	"context"
	"sync"
	"time"

	"realtyhub/internal/events"
	"realtyhub/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockBookingStore struct {
	mock.Mock
}

func (m *mockBookingStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBookingStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingStore) UpdateBookingStatusWithVersion(ctx context.Context, id, v int64, s models.BookingStatus, note string) error {
	return m.Called(ctx, id, v, s, note).Error(0)
}

func (m *mockBookingStore) ListBookingsByProperty(ctx context.Context, propertyID int64) ([]*models.Booking, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingStore) ListBookingsByRequester(ctx context.Context, requesterID int64) ([]*models.Booking, error) {
	args := m.Called(ctx, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type mockProperties struct {
	mock.Mock
}

func (m *mockProperties) GetProperty(ctx context.Context, id int64) (*models.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) HasConflict(ctx context.Context, propertyID int64, start, end time.Time) (bool, error) {
	args := m.Called(ctx, propertyID, start, end)
	return args.Bool(0), args.Error(1)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type mockConversations struct {
	mock.Mock
}

func (m *mockConversations) EnsureConversation(ctx context.Context, a, b int64, propertyID *int64) (*models.Conversation, bool, error) {
	args := m.Called(ctx, a, b, propertyID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.Conversation), args.Bool(1), args.Error(2)
}

func (m *mockConversations) FindConversation(ctx context.Context, a, b int64) (*models.Conversation, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *mockConversations) AppendMessage(ctx context.Context, msg *models.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) RecordSideEffectFailure(ctx context.Context, f *models.SideEffectFailure) error {
	return m.Called(ctx, f).Error(0)
}

func (m *mockJournal) DueSideEffectFailures(ctx context.Context, limit int) ([]models.SideEffectFailure, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SideEffectFailure), args.Error(1)
}

func (m *mockJournal) UpdateSideEffectFailure(ctx context.Context, id int64, status, errMsg string, next *time.Time) error {
	return m.Called(ctx, id, status, errMsg, next).Error(0)
}

// recordingBus captures dispatched events and optionally fails them.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (b *recordingBus) Publish(ctx context.Context, e events.Event) {
	_ = b.Dispatch(ctx, e)
}

func (b *recordingBus) Dispatch(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return b.err
}

func (b *recordingBus) published() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.events...)
}

type recordingPusher struct {
	mu     sync.Mutex
	counts map[int64][]int
}

func (p *recordingPusher) PushNotification(context.Context, int64, *models.Notification) {}

func (p *recordingPusher) PushUnreadCount(_ context.Context, userID int64, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts == nil {
		p.counts = make(map[int64][]int)
	}
	p.counts[userID] = append(p.counts[userID], count)
}
