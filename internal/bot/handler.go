package bot

import (
	"context"
	"fmt"
	"strings"

	"realtyhub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	latestLimit = 5

	helpText = `Commands:
/start <token> - link this chat to your account
/unread - number of unread notifications
/latest - your latest unread notifications
/read - mark everything as read
/stop - stop mirroring notifications here`
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.reply(msg.Chat.ID, helpText)
		return
	}

	command := msg.Command()
	if b.metrics != nil {
		b.metrics.CommandsProcessed.WithLabelValues(command).Inc()
	}
	zerolog.Ctx(ctx).Debug().Str("command", command).Msg("Command received")

	switch command {
	case "start":
		b.handleStart(ctx, msg.Chat.ID, msg.CommandArguments())
	case "stop":
		b.handleStop(ctx, msg.Chat.ID)
	case "unread":
		b.handleUnread(ctx, msg.Chat.ID)
	case "latest":
		b.handleLatest(ctx, msg.Chat.ID)
	case "read":
		b.handleReadAll(ctx, msg.Chat.ID)
	default:
		b.reply(msg.Chat.ID, helpText)
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		b.reply(chatID, "Welcome! Send /start <token> with the link token from your account page.\n\n"+helpText)
		return
	}

	userID, err := b.tokens.Verify(token)
	if err != nil {
		b.reply(chatID, b.getErrorMessage(err))
		return
	}
	if err := b.links.SetTelegramChat(ctx, userID, chatID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to link chat")
		b.reply(chatID, b.getErrorMessage(err))
		return
	}

	zerolog.Ctx(ctx).Info().Int64("user_id", userID).Msg("Chat linked")
	b.reply(chatID, "Chat linked. New notifications will be sent here.")
}

func (b *Bot) handleStop(ctx context.Context, chatID int64) {
	user, ok := b.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	if err := b.links.SetTelegramChat(ctx, user.ID, 0); err != nil {
		b.reply(chatID, b.getErrorMessage(err))
		return
	}
	b.reply(chatID, "Chat unlinked. Notifications will no longer be sent here.")
}

func (b *Bot) handleUnread(ctx context.Context, chatID int64) {
	user, ok := b.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	count, err := b.notifications.UnreadCount(ctx, user.ID)
	if err != nil {
		b.reply(chatID, b.getErrorMessage(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("You have %d unread notification(s).", count))
}

func (b *Bot) handleLatest(ctx context.Context, chatID int64) {
	user, ok := b.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	list, err := b.notifications.List(ctx, user.ID, true, latestLimit)
	if err != nil {
		b.reply(chatID, b.getErrorMessage(err))
		return
	}
	b.reply(chatID, formatNotifications(list))
}

func (b *Bot) handleReadAll(ctx context.Context, chatID int64) {
	user, ok := b.linkedUser(ctx, chatID)
	if !ok {
		return
	}
	if _, err := b.notifications.MarkAllRead(ctx, user.ID); err != nil {
		b.reply(chatID, b.getErrorMessage(err))
		return
	}
	b.reply(chatID, "All notifications marked as read.")
}

// linkedUser resolves the chat's account, replying when there is none.
func (b *Bot) linkedUser(ctx context.Context, chatID int64) (*models.User, bool) {
	user, err := b.links.UserByTelegramChat(ctx, chatID)
	if err != nil {
		b.reply(chatID, b.getErrorMessage(err))
		return nil, false
	}
	return user, true
}

func formatNotifications(list []*models.Notification) string {
	if len(list) == 0 {
		return "No unread notifications."
	}
	var sb strings.Builder
	for i, n := range list {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "• %s\n%s", n.Title, n.Message)
	}
	return sb.String()
}
