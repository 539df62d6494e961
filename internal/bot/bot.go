// Package bot is the Telegram front end: users link a chat to their account
// and read their notifications from it.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"realtyhub/internal/config"
	"realtyhub/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Bot struct {
	api           domain.TelegramBot
	cfg           config.TelegramConfig
	tokens        domain.TokenVerifier
	links         domain.ChatLinks
	notifications domain.NotificationService
	limiter       domain.RateLimiter
	metrics       *Metrics
	logger        *zerolog.Logger
}

// NewBot wires the front end. limiter and metrics may be nil.
func NewBot(
	api domain.TelegramBot,
	cfg config.TelegramConfig,
	tokens domain.TokenVerifier,
	links domain.ChatLinks,
	notifications domain.NotificationService,
	limiter domain.RateLimiter,
	metrics *Metrics,
	logger *zerolog.Logger,
) *Bot {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	child := logger.With().Str("component", "telegram-bot").Logger()
	return &Bot{
		api:           api,
		cfg:           cfg,
		tokens:        tokens,
		links:         links,
		notifications: notifications,
		limiter:       limiter,
		metrics:       metrics,
		logger:        &child,
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.api.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.NewString()).Int64("chat_id", msg.Chat.ID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		if !b.allow(updateCtx, msg.Chat.ID) {
			b.reply(msg.Chat.ID, "You are sending messages too fast. Please wait a moment.")
			return
		}
		b.handleMessage(updateCtx, msg)
	})
}

func (b *Bot) allow(ctx context.Context, chatID int64) bool {
	if b.limiter == nil || b.cfg.RateLimitMessages <= 0 {
		return true
	}
	allowed, err := b.limiter.CheckRateLimit(ctx, fmt.Sprintf("tg_chat:%d", chatID), b.cfg.RateLimitMessages, b.cfg.RateLimitWindow)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Rate limit check failed")
		return true
	}
	if !allowed {
		zerolog.Ctx(ctx).Warn().Msg("Rate limit exceeded")
	}
	return allowed
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(text))
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send reply")
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
	}
}
