package service

import (
	"context"
	"fmt"

	"realtyhub/internal/domain"
	"realtyhub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramService mirrors persisted notifications to the recipient's
// Telegram chat when the user has linked one.
type TelegramService struct {
	bot   domain.TelegramSender
	users domain.UserDirectory
}

func NewTelegramService(bot domain.TelegramSender, users domain.UserDirectory) *TelegramService {
	return &TelegramService{
		bot:   bot,
		users: users,
	}
}

func (s *TelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return s.bot.Send(msg)
}

// Mirror implements domain.NotificationMirror. Users without a linked chat
// are skipped silently.
func (s *TelegramService) Mirror(ctx context.Context, n *models.Notification) error {
	user, err := s.users.GetUser(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("lookup recipient %d: %w", n.RecipientID, err)
	}
	if user.TelegramChatID == 0 {
		return nil
	}
	if _, err := s.SendMessage(user.TelegramChatID, n.Title+"\n"+n.Message); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
