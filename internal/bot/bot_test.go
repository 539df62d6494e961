package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"realtyhub/internal/auth"
	"realtyhub/internal/config"
	"realtyhub/internal/database"
	"realtyhub/internal/models"
	"realtyhub/internal/repository"
	"realtyhub/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTelegramBot struct {
	updatesChan chan tgbotapi.Update
	mu          sync.Mutex
	sent        []tgbotapi.MessageConfig
	stopped     bool
}

func (m *mockTelegramBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updatesChan
}

func (m *mockTelegramBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.sent = append(m.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (m *mockTelegramBot) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "test_bot"}
}

func (m *mockTelegramBot) StopReceivingUpdates() {
	m.stopped = true
}

func (m *mockTelegramBot) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

type nopPusher struct{}

func (nopPusher) PushNotification(context.Context, int64, *models.Notification) {}

func (nopPusher) PushUnreadCount(context.Context, int64, int) {}

type fixture struct {
	api     *mockTelegramBot
	bot     *Bot
	db      *database.DB
	tokens  *auth.Manager
	user    *models.User
	metrics *Metrics
}

func newFixture(t *testing.T, cfg config.TelegramConfig) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewSQLite(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	user := &models.User{Name: "Olga", Email: "olga@example.com"}
	require.NoError(t, db.CreateUser(context.Background(), user))

	f := &fixture{
		api:     &mockTelegramBot{updatesChan: make(chan tgbotapi.Update, 16)},
		db:      db,
		tokens:  auth.NewManager("bot-test-secret-0123", "realtyhub", time.Hour),
		user:    user,
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	f.bot = NewBot(f.api, cfg, f.tokens, db, service.NewNotificationService(db, nopPusher{}),
		repository.NewMemoryRateLimiter(), f.metrics, &logger)
	return f
}

func command(chatID int64, text string) tgbotapi.Update {
	length := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		length = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}}
}

// send runs one update through the bot and returns the reply text.
func (f *fixture) send(update tgbotapi.Update) string {
	f.bot.processUpdate(context.Background(), update)
	return f.api.last()
}

func (f *fixture) notify(t *testing.T, title string) {
	t.Helper()
	require.NoError(t, f.db.CreateNotification(context.Background(), &models.Notification{
		RecipientID: f.user.ID, Kind: models.NotificationBookingCreated, Title: title, Message: "Someone wants to visit",
	}))
}

func TestLinkAndRead(t *testing.T) {
	f := newFixture(t, config.TelegramConfig{})
	const chatID = 777

	assert.Contains(t, f.send(command(chatID, "/unread")), "not linked")

	token, err := f.tokens.Issue(f.user.ID)
	require.NoError(t, err)
	assert.Contains(t, f.send(command(chatID, "/start "+token)), "Chat linked")

	linked, err := f.db.GetUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(chatID), linked.TelegramChatID)

	f.notify(t, "New booking request")
	f.notify(t, "Booking confirmed")

	assert.Equal(t, "You have 2 unread notification(s).", f.send(command(chatID, "/unread")))

	latest := f.send(command(chatID, "/latest"))
	assert.Contains(t, latest, "• Booking confirmed")
	assert.Contains(t, latest, "• New booking request")

	assert.Contains(t, f.send(command(chatID, "/read")), "marked as read")
	assert.Equal(t, "No unread notifications.", f.send(command(chatID, "/latest")))

	assert.Contains(t, f.send(command(chatID, "/stop")), "Chat unlinked")
	assert.Contains(t, f.send(command(chatID, "/unread")), "not linked")

	assert.Equal(t, float64(3), testutil.ToFloat64(f.metrics.CommandsProcessed.WithLabelValues("unread")))
}

func TestStartRejectsBadToken(t *testing.T) {
	f := newFixture(t, config.TelegramConfig{})

	assert.Contains(t, f.send(command(1, "/start garbage")), "invalid or expired")
	assert.Contains(t, f.send(command(1, "/start")), "Welcome")

	other := auth.NewManager("bot-test-secret-0123", "realtyhub", time.Hour)
	token, err := other.Issue(9999)
	require.NoError(t, err)
	assert.Contains(t, f.send(command(1, "/start "+token)), "not linked", "unknown user")
}

func TestPlainTextGetsHelp(t *testing.T) {
	f := newFixture(t, config.TelegramConfig{})
	reply := f.send(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 5}, Text: "hello"}})
	assert.Contains(t, reply, "/start <token>")
}

func TestRateLimitPerChat(t *testing.T) {
	f := newFixture(t, config.TelegramConfig{RateLimitMessages: 2, RateLimitWindow: time.Minute})

	f.send(command(9, "/help"))
	f.send(command(9, "/help"))
	assert.Contains(t, f.send(command(9, "/help")), "too fast")
	assert.Contains(t, f.send(command(10, "/help")), "Commands:", "other chats are unaffected")
}

func TestStartLoopStops(t *testing.T) {
	f := newFixture(t, config.TelegramConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.bot.Start(ctx)
		close(done)
	}()

	f.api.updatesChan <- command(3, "/help")
	require.Eventually(t, func() bool { return f.api.last() != "" }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	assert.True(t, f.api.stopped)
}

func TestIgnoresUpdatesWithoutMessage(t *testing.T) {
	f := newFixture(t, config.TelegramConfig{})
	f.send(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "x"}})
	assert.Empty(t, f.api.sent)
}
