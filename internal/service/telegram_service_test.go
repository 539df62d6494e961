package service

import (
	"context"
	"errors"
	"testing"

	"realtyhub/internal/domain"
	"realtyhub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetUser(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func TestTelegramService(t *testing.T) {
	ctx := context.Background()

	t.Run("SendMessage", func(t *testing.T) {
		sender := new(mockTelegramSender)
		svc := NewTelegramService(sender, new(mockUsers))

		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.Text == "hello" && msg.ChatID == 123
		})).Return(tgbotapi.Message{}, nil).Once()

		_, err := svc.SendMessage(123, "hello")
		assert.NoError(t, err)
		sender.AssertExpectations(t)
	})

	t.Run("MirrorLinkedUser", func(t *testing.T) {
		sender := new(mockTelegramSender)
		users := new(mockUsers)
		svc := NewTelegramService(sender, users)

		users.On("GetUser", ctx, int64(10)).Return(&models.User{ID: 10, TelegramChatID: 555}, nil)
		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.ChatID == 555 && msg.Text == "New booking request\nAnna sent a viewing request."
		})).Return(tgbotapi.Message{}, nil).Once()

		err := svc.Mirror(ctx, &models.Notification{RecipientID: 10, Title: "New booking request", Message: "Anna sent a viewing request."})
		assert.NoError(t, err)
		sender.AssertExpectations(t)
	})

	t.Run("MirrorUnlinkedUser", func(t *testing.T) {
		sender := new(mockTelegramSender)
		users := new(mockUsers)
		svc := NewTelegramService(sender, users)

		users.On("GetUser", ctx, int64(11)).Return(&models.User{ID: 11}, nil)

		assert.NoError(t, svc.Mirror(ctx, &models.Notification{RecipientID: 11, Title: "x"}))
		sender.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("MirrorErrors", func(t *testing.T) {
		sender := new(mockTelegramSender)
		users := new(mockUsers)
		svc := NewTelegramService(sender, users)

		users.On("GetUser", ctx, int64(12)).Return(nil, domain.ErrNotFound)
		users.On("GetUser", ctx, int64(13)).Return(&models.User{ID: 13, TelegramChatID: 1}, nil)
		sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("blocked by user"))

		assert.ErrorIs(t, svc.Mirror(ctx, &models.Notification{RecipientID: 12}), domain.ErrNotFound)
		assert.ErrorContains(t, svc.Mirror(ctx, &models.Notification{RecipientID: 13}), "blocked by user")
	})
}
